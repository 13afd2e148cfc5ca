package infusion

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"hivestake/core/events"
	"hivestake/core/types"
	"hivestake/native/common"
	"hivestake/native/fees"
)

// ModuleName identifies this engine for pause toggles.
const ModuleName = "infusion"

var (
	errNilState = errors.New("infusion: state not configured")

	ErrNotEnabled          = errors.New("infusion: module disabled")
	ErrNotStaked           = errors.New("infusion: position not staked")
	ErrNotOwner            = errors.New("infusion: caller does not own position")
	ErrBelowMinimum        = errors.New("infusion: deposit below minimum")
	ErrCapReached          = errors.New("infusion: variant cap reached")
	ErrNotInfused          = errors.New("infusion: no deposit for position")
	ErrNothingToHarvest    = errors.New("infusion: nothing to harvest")
	ErrInsufficientDeposit = errors.New("infusion: withdrawal exceeds deposit")
	ErrDepositFailed       = errors.New("infusion: deposit transfer failed")
)

// State is the persistence surface for infusion records.
type State interface {
	InfusionGet(key types.TokenKey) (*InfusionPosition, bool, error)
	InfusionPut(p *InfusionPosition) error
	InfusionDelete(key types.TokenKey) error
}

// Positions is the view into the staking ledger an infusion needs: ownership,
// the variant selecting the cap, and a setter keeping the position's tier in
// step with the deposit.
type Positions interface {
	PositionView(key types.TokenKey) (owner [20]byte, variant uint8, staked bool, err error)
	SetInfusionLevel(key types.TokenKey, level uint8) error
}

// Token is the fungible token collaborator holding deposits in the vault.
type Token interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// FeeCharger resolves and settles operation fees. Flat fees (entry, reinvest,
// withdraw) are charged directly; the harvest fee is computed here and
// withheld from the payout instead.
type FeeCharger interface {
	Charge(operation string, payer [20]byte) error
	Resolve(operation string) (fees.Config, bool)
}

// Issuer books harvests against the shared daily quota and settles payouts
// treasury-first.
type Issuer interface {
	Consume(addr [20]byte, amount *big.Int) error
	Refund(addr [20]byte, amount *big.Int) error
	Distribute(addr [20]byte, amount *big.Int) (*big.Int, *big.Int, error)
}

// BalanceAdjuster reports the stake-balance multiplier for an account, 100
// meaning neutral. Wired to the staking ledger's share curve.
type BalanceAdjuster interface {
	BalanceMultiplierFor(owner [20]byte) uint64
}

// Engine operates the infusion sub-ledger.
type Engine struct {
	config    Config
	state     State
	positions Positions
	token     Token
	collector FeeCharger
	issuer    Issuer
	balance   BalanceAdjuster
	vault     [20]byte
	emitter   events.Emitter
	guard     *common.ReentrancyGuard
	pauses    common.PauseView
	nowFn     func() int64
}

// NewEngine constructs an infusion engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		guard:   common.NewReentrancyGuard(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetConfig installs the engine configuration.
func (e *Engine) SetConfig(cfg Config) { e.config = *cfg.Clone() }

// SetState configures the persistence backend.
func (e *Engine) SetState(state State) { e.state = state }

// SetPositions wires the staking ledger view.
func (e *Engine) SetPositions(p Positions) { e.positions = p }

// SetToken configures the deposit token collaborator.
func (e *Engine) SetToken(token Token) { e.token = token }

// SetCollector configures the fee collector collaborator.
func (e *Engine) SetCollector(c FeeCharger) { e.collector = c }

// SetIssuer configures the issuance limiter collaborator.
func (e *Engine) SetIssuer(i Issuer) { e.issuer = i }

// SetBalanceAdjuster wires the stake-balance curve applied to harvests.
func (e *Engine) SetBalanceAdjuster(b BalanceAdjuster) { e.balance = b }

// SetVault configures the address custodying deposits.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetPauseView wires the module pause toggle.
func (e *Engine) SetPauseView(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) begin(op string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if !e.config.Enabled {
		return ErrNotEnabled
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	return e.guard.Enter(op)
}

// view validates that the position is staked and owned by the caller and
// returns its owner and variant.
func (e *Engine) view(key types.TokenKey, caller [20]byte) ([20]byte, uint8, error) {
	if e.positions == nil {
		return [20]byte{}, 0, errNilState
	}
	owner, variant, staked, err := e.positions.PositionView(key)
	if err != nil {
		return [20]byte{}, 0, err
	}
	if !staked {
		return [20]byte{}, 0, ErrNotStaked
	}
	if owner != caller {
		return [20]byte{}, 0, ErrNotOwner
	}
	return owner, variant, nil
}

func (e *Engine) load(key types.TokenKey) (*InfusionPosition, bool, error) {
	record, ok, err := e.state.InfusionGet(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &InfusionPosition{Key: key, Amount: big.NewInt(0)}, false, nil
	}
	return record.Clone().Normalize(), true, nil
}

// syncTier recomputes the tier from the deposit and pushes it to the staking
// ledger. Tier is a pure function of the amount/cap ratio.
func (e *Engine) syncTier(key types.TokenKey, amount *big.Int, variant uint8) (uint8, error) {
	level := e.config.Tier(amount, e.config.VariantCap(variant))
	if e.positions == nil {
		return level, errNilState
	}
	return level, e.positions.SetInfusionLevel(key, level)
}

// Infuse deposits into the infusion sub-ledger. Deposits on top of an
// existing record harvest the pending reward first so no accrual is lost, and
// are clamped to the remaining room under the variant cap. The entry fee is
// charged only on the first deposit for a position.
func (e *Engine) Infuse(key types.TokenKey, caller [20]byte, amount *big.Int) (*InfusionPosition, error) {
	if err := e.begin("infuse"); err != nil {
		return nil, err
	}
	defer e.guard.Exit("infuse")

	owner, variant, err := e.view(key, caller)
	if err != nil {
		return nil, err
	}
	deposit := common.CloneBig(amount)
	if deposit.Cmp(e.config.MinDeposit()) < 0 {
		return nil, ErrBelowMinimum
	}
	record, existed, err := e.load(key)
	if err != nil {
		return nil, err
	}
	if existed && record.Infused {
		if _, _, _, err := e.harvestLocked(record, owner, variant); err != nil {
			return nil, err
		}
	}
	room := common.SaturatingSub(e.config.VariantCap(variant), record.Amount)
	if room.Sign() <= 0 {
		return nil, ErrCapReached
	}
	deposit = common.MinBig(deposit, room)

	if !existed || !record.Infused {
		if e.collector != nil {
			if err := e.collector.Charge(fees.OpInfusionEntry, owner); err != nil {
				return nil, err
			}
		}
		record.InfusedAt = e.now()
		record.LastHarvestAt = record.InfusedAt
	}

	prev := record.Clone()
	record.Amount = new(big.Int).Add(record.Amount, deposit)
	record.Owner = owner
	record.Variant = variant
	record.Infused = true
	if err := e.state.InfusionPut(record); err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, errNilState
	}
	if err := e.token.Transfer(owner, e.vault, deposit); err != nil {
		// Deposit never arrived; put the record back the way it was.
		if existed {
			_ = e.state.InfusionPut(prev)
		} else {
			_ = e.state.InfusionDelete(key)
		}
		return nil, fmt.Errorf("%w: %v", ErrDepositFailed, err)
	}
	level, err := e.syncTier(key, record.Amount, variant)
	if err != nil {
		return nil, err
	}
	e.emit(events.Infused{Key: key, Owner: owner, Amount: deposit, Total: common.CloneBig(record.Amount), Level: level})
	return record.Clone(), nil
}

// grossFor computes the accrued reward since the last harvest: amount × APR ×
// elapsed over a year, optionally scaled by the stake-balance curve and
// capped at the per-harvest maximum.
func (e *Engine) grossFor(record *InfusionPosition, owner [20]byte, variant uint8) *big.Int {
	if record == nil || !record.Infused || record.Amount == nil || record.Amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	elapsed := e.now() - record.LastHarvestAt
	if elapsed <= 0 {
		return big.NewInt(0)
	}
	tier := e.config.Tier(record.Amount, e.config.VariantCap(variant))
	apr := e.config.APR(variant, tier)
	gross := new(big.Int).Mul(record.Amount, new(big.Int).SetUint64(apr))
	gross.Mul(gross, big.NewInt(elapsed))
	gross.Quo(gross, big.NewInt(100*SecondsPerYear))
	if e.config.BalanceCurve && e.balance != nil {
		gross = common.MulPct(gross, e.balance.BalanceMultiplierFor(owner))
	}
	return common.CapBig(gross, e.config.HarvestCap())
}

// harvestFee computes max(flat, tiered) for a gross harvest, with the payer
// always retaining at least 1% of the gross.
func (e *Engine) harvestFee(gross *big.Int) (*big.Int, fees.Config) {
	var cfg fees.Config
	if e.collector != nil {
		cfg, _ = e.collector.Resolve(fees.OpInfusionHarvest)
	}
	fee := fees.MaxFee(gross, cfg.Amount, fees.TieredInput{
		Amount:     gross,
		Thresholds: e.config.HarvestFeeTiers,
		Bps:        e.config.HarvestFeeBps,
	})
	return fee, cfg
}

// harvestLocked settles the pending reward on a loaded record. The harvest
// timestamp moves forward and persists before any payout so a re-entrant call
// cannot double-harvest. Returns gross, fee and net.
func (e *Engine) harvestLocked(record *InfusionPosition, owner [20]byte, variant uint8) (*big.Int, *big.Int, *big.Int, error) {
	zero := big.NewInt(0)
	gross := e.grossFor(record, owner, variant)
	if gross.Sign() <= 0 {
		return zero, zero, zero, nil
	}
	prevHarvest := record.LastHarvestAt
	record.LastHarvestAt = e.now()
	if err := e.state.InfusionPut(record); err != nil {
		return nil, nil, nil, err
	}
	restore := func() {
		record.LastHarvestAt = prevHarvest
		_ = e.state.InfusionPut(record)
	}
	if e.issuer == nil {
		restore()
		return nil, nil, nil, errNilState
	}
	if err := e.issuer.Consume(owner, gross); err != nil {
		restore()
		return nil, nil, nil, err
	}
	fee, feeCfg := e.harvestFee(gross)
	net := common.SaturatingSub(gross, fee)
	if _, _, err := e.issuer.Distribute(owner, net); err != nil {
		_ = e.issuer.Refund(owner, gross)
		restore()
		return nil, nil, nil, err
	}
	// The fee share is issued straight to the beneficiary; burn-on-collect
	// fees are simply never issued.
	if fee.Sign() > 0 && !feeCfg.BurnOnCollect && feeCfg.Beneficiary != ([20]byte{}) {
		if _, _, err := e.issuer.Distribute(feeCfg.Beneficiary, fee); err != nil {
			e.emit(events.CollaboratorSkipped{Collaborator: "issuer", Operation: "harvestFee", Reason: err.Error()})
		}
	}
	e.emit(events.InfusionHarvested{Key: record.Key, Owner: owner, Gross: gross, Fee: fee, Net: net})
	return gross, fee, net, nil
}

// Harvest pays out the reward accrued on a position's deposit.
func (e *Engine) Harvest(key types.TokenKey, caller [20]byte) (*big.Int, error) {
	if err := e.begin("harvest"); err != nil {
		return nil, err
	}
	defer e.guard.Exit("harvest")

	owner, variant, err := e.view(key, caller)
	if err != nil {
		return nil, err
	}
	record, existed, err := e.load(key)
	if err != nil {
		return nil, err
	}
	if !existed || !record.Infused {
		return nil, ErrNotInfused
	}
	_, _, net, err := e.harvestLocked(record, owner, variant)
	if err != nil {
		return nil, err
	}
	return net, nil
}

// Reinvest compounds the pending reward back into the deposit instead of
// paying it out, clamped to the remaining room under the variant cap. The
// compounded amount is issued into the vault so it stays withdrawable.
func (e *Engine) Reinvest(key types.TokenKey, caller [20]byte) (*InfusionPosition, error) {
	if err := e.begin("reinvest"); err != nil {
		return nil, err
	}
	defer e.guard.Exit("reinvest")

	owner, variant, err := e.view(key, caller)
	if err != nil {
		return nil, err
	}
	record, existed, err := e.load(key)
	if err != nil {
		return nil, err
	}
	if !existed || !record.Infused {
		return nil, ErrNotInfused
	}
	gross := e.grossFor(record, owner, variant)
	if gross.Sign() <= 0 {
		return nil, ErrNothingToHarvest
	}
	if e.collector != nil {
		if err := e.collector.Charge(fees.OpInfusionReinvest, owner); err != nil {
			return nil, err
		}
	}
	room := common.SaturatingSub(e.config.VariantCap(variant), record.Amount)
	added := common.MinBig(gross, room)

	prevHarvest := record.LastHarvestAt
	prevAmount := common.CloneBig(record.Amount)
	record.LastHarvestAt = e.now()
	record.Amount = new(big.Int).Add(record.Amount, added)
	if err := e.state.InfusionPut(record); err != nil {
		return nil, err
	}
	restore := func() {
		record.LastHarvestAt = prevHarvest
		record.Amount = prevAmount
		_ = e.state.InfusionPut(record)
	}
	if e.issuer == nil {
		restore()
		return nil, errNilState
	}
	if added.Sign() > 0 {
		if err := e.issuer.Consume(owner, added); err != nil {
			restore()
			return nil, err
		}
		if _, _, err := e.issuer.Distribute(e.vault, added); err != nil {
			_ = e.issuer.Refund(owner, added)
			restore()
			return nil, err
		}
	}
	level, err := e.syncTier(key, record.Amount, variant)
	if err != nil {
		return nil, err
	}
	e.emit(events.InfusionReinvested{Key: key, Owner: owner, Amount: added, Total: common.CloneBig(record.Amount), Level: level})
	return record.Clone(), nil
}

// Withdraw returns part or all of the deposit after harvesting the pending
// reward. A full withdrawal clears the record and resets the tier to zero.
func (e *Engine) Withdraw(key types.TokenKey, caller [20]byte, amount *big.Int) (*InfusionPosition, error) {
	if err := e.begin("withdraw"); err != nil {
		return nil, err
	}
	defer e.guard.Exit("withdraw")

	record, existed, err := e.load(key)
	if err != nil {
		return nil, err
	}
	if !existed || !record.Infused {
		return nil, ErrNotInfused
	}
	value := common.CloneBig(amount)
	if value.Sign() <= 0 || value.Cmp(record.Amount) > 0 {
		return nil, ErrInsufficientDeposit
	}
	owner, variant, err := e.view(key, caller)
	switch {
	case err == nil:
		// Accruing position: settle the pending reward before principal moves.
		if _, _, _, err := e.harvestLocked(record, owner, variant); err != nil {
			return nil, err
		}
	case errors.Is(err, ErrNotStaked) && record.Owner == caller:
		// The position unstaked with the deposit still in the vault; the
		// principal stays withdrawable but accrual stopped at unstake.
		owner, variant = record.Owner, record.Variant
	default:
		return nil, err
	}
	if e.collector != nil {
		if err := e.collector.Charge(fees.OpInfusionWithdraw, owner); err != nil {
			return nil, err
		}
	}

	prev := record.Clone()
	record.Amount = common.SaturatingSub(record.Amount, value)
	full := record.Amount.Sign() == 0
	if full {
		record.Infused = false
		if err := e.state.InfusionDelete(key); err != nil {
			return nil, err
		}
	} else {
		if err := e.state.InfusionPut(record); err != nil {
			return nil, err
		}
	}
	if e.token == nil {
		return nil, errNilState
	}
	if err := e.token.Transfer(e.vault, owner, value); err != nil {
		_ = e.state.InfusionPut(prev)
		return nil, err
	}
	level, err := e.syncTier(key, record.Amount, variant)
	if err != nil {
		return nil, err
	}
	e.emit(events.InfusionWithdrawn{Key: key, Owner: owner, Amount: value, Remaining: common.CloneBig(record.Amount), Level: level})
	return record.Clone(), nil
}

// PendingHarvest reports the reward currently accrued on a position without
// mutating anything.
func (e *Engine) PendingHarvest(key types.TokenKey) (*big.Int, error) {
	if e == nil || e.state == nil || e.positions == nil {
		return nil, errNilState
	}
	owner, variant, staked, err := e.positions.PositionView(key)
	if err != nil {
		return nil, err
	}
	if !staked {
		return big.NewInt(0), nil
	}
	record, existed, err := e.load(key)
	if err != nil {
		return nil, err
	}
	if !existed || !record.Infused {
		return big.NewInt(0), nil
	}
	return e.grossFor(record, owner, variant), nil
}

// StatsFor reports the read-only infusion projection for a position.
func (e *Engine) StatsFor(key types.TokenKey) (*Stats, error) {
	if e == nil || e.state == nil || e.positions == nil {
		return nil, errNilState
	}
	owner, variant, staked, err := e.positions.PositionView(key)
	if err != nil {
		return nil, err
	}
	record, _, err := e.load(key)
	if err != nil {
		return nil, err
	}
	cap := e.config.VariantCap(variant)
	tier := e.config.Tier(record.Amount, cap)
	stats := &Stats{
		Key:           key,
		Amount:        common.CloneBig(record.Amount),
		Cap:           cap,
		Level:         tier,
		APR:           e.config.APR(variant, tier),
		Pending:       big.NewInt(0),
		LastHarvestAt: record.LastHarvestAt,
	}
	if staked && record.Infused {
		stats.Pending = e.grossFor(record, owner, variant)
	}
	return stats, nil
}
