package stake

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"hivestake/core/events"
	"hivestake/core/types"
	"hivestake/native/common"
)

// ModuleName identifies this engine for pause toggles.
const ModuleName = "staking"

var (
	errNilState = errors.New("stake engine: state not configured")

	ErrNotEnabled            = errors.New("stake: program not enabled")
	ErrInvalidCollection     = errors.New("stake: collection not allowed")
	ErrAlreadyStaked         = errors.New("stake: already staked")
	ErrCooldownActive        = errors.New("stake: cooldown active")
	ErrNotOwner              = errors.New("stake: caller is not the owner")
	ErrPrerequisiteNotMet    = errors.New("stake: prerequisite not met")
	ErrNotStaked             = errors.New("stake: position not staked")
	ErrReceiptActive         = errors.New("stake: position wrapped by receipt")
	ErrCustodyTransferFailed = errors.New("stake: custody transfer failed")
)

// State is the persistence surface the position ledger requires.
type State interface {
	PositionGet(key types.TokenKey) (*Position, bool, error)
	PositionPut(p *Position) error
	PositionDelete(key types.TokenKey) error
	OwnerPositions(addr [20]byte) ([]types.TokenKey, error)
	OwnerIndexAdd(addr [20]byte, key types.TokenKey) error
	OwnerIndexRemove(addr [20]byte, key types.TokenKey) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	TotalStaked() (uint64, error)
	SetTotalStaked(total uint64) error
	CooldownUntil(key types.TokenKey) (int64, error)
	SetCooldown(key types.TokenKey, until int64) error
}

// Custodian is the asset custody collaborator: ownership checks, transfers
// into and out of custody, and a privileged forced-transfer fallback.
type Custodian interface {
	OwnerOf(key types.TokenKey) ([20]byte, error)
	Transfer(key types.TokenKey, from, to [20]byte) error
	ForceTransfer(key types.TokenKey, to [20]byte) error
}

// VariantOracle resolves the asset variant for a token.
type VariantOracle interface {
	Variant(key types.TokenKey) (uint8, error)
}

// WearOracle reports the external wear/condition level for a token.
type WearOracle interface {
	WearLevel(key types.TokenKey) (uint8, error)
}

// AccessoryRegistry reports the combined bonus of equipped accessories.
type AccessoryRegistry interface {
	AccessoryBonus(key types.TokenKey) (uint64, error)
}

// SpecializationRegistry reports the specialization assigned to a token.
type SpecializationRegistry interface {
	Specialization(key types.TokenKey) (uint8, error)
}

// ExperienceSink receives fire-and-forget experience grants after claims.
type ExperienceSink interface {
	GrantExperience(key types.TokenKey, amount uint64) error
}

// AchievementSink receives fire-and-forget claim notifications.
type AchievementSink interface {
	RecordClaim(owner [20]byte, amount *big.Int) error
}

// ActivationPolicy gates staking behind an external prerequisite, with a
// bypass for privileged owners.
type ActivationPolicy interface {
	Satisfied(owner [20]byte, key types.TokenKey) (bool, error)
	Bypass(owner [20]byte) bool
}

// ColonyHook lets the ledger keep colony membership consistent across
// stake/unstake without owning the registry.
type ColonyHook interface {
	// OnStake applies a pending assignment or an externally reported
	// membership and returns the resulting colony id, zero for none.
	OnStake(key types.TokenKey, owner [20]byte) (uint64, error)
	// OnUnstake removes the key from its colony's member list.
	OnUnstake(key types.TokenKey, colonyID uint64) error
	// RestoreMembership re-adds a membership removed by OnUnstake; used on
	// rollback paths.
	RestoreMembership(key types.TokenKey, colonyID uint64) error
	// Bonus reports the active bonus for a colony, zero when inactive.
	Bonus(colonyID uint64) uint64
}

// FeeCharger resolves and applies operation fees.
type FeeCharger interface {
	Charge(operation string, payer [20]byte) error
}

// Issuer is the daily-quota and payout collaborator.
type Issuer interface {
	Consume(addr [20]byte, amount *big.Int) error
	ConsumeUpTo(addr [20]byte, amount *big.Int) (*big.Int, error)
	Refund(addr [20]byte, amount *big.Int) error
	Remaining(addr [20]byte) (*big.Int, string, error)
	Distribute(addr [20]byte, amount *big.Int) (*big.Int, *big.Int, error)
}

// Engine wires the position ledger, the reward formula and the collaborators
// into the staking lifecycle.
type Engine struct {
	state   State
	config  *Config
	emitter events.Emitter
	guard   *common.ReentrancyGuard
	pauses  common.PauseView
	nowFn   func() int64

	custody      [20]byte
	custodian    Custodian
	variants     VariantOracle
	wear         WearOracle
	accessories  AccessoryRegistry
	specs        SpecializationRegistry
	experience   ExperienceSink
	achievements AchievementSink
	activation   ActivationPolicy
	colonies     ColonyHook
	fees         FeeCharger
	issuer       Issuer
	receipts     ReceiptToken

	privileged map[[20]byte]bool

	// Fee operation names; claim fees also settle batch sweeps.
	feeOpClaim   string
	feeOpUnstake string
}

// NewEngine creates a staking engine with defaults suitable for tests:
// no-op emitter, empty config, wall-clock time.
func NewEngine() *Engine {
	return &Engine{
		config:       &Config{Enabled: true},
		emitter:      events.NoopEmitter{},
		guard:        common.NewReentrancyGuard(),
		nowFn:        func() int64 { return time.Now().Unix() },
		privileged:   make(map[[20]byte]bool),
		feeOpClaim:   "claim",
		feeOpUnstake: "unstake",
	}
}

// SetState configures the persistence backend.
func (e *Engine) SetState(state State) { e.state = state }

// SetConfig installs the staking configuration.
func (e *Engine) SetConfig(cfg *Config) {
	if cfg == nil {
		e.config = &Config{}
		return
	}
	e.config = cfg.Clone()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() *Config { return e.config.Clone() }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauseView wires the module pause toggle.
func (e *Engine) SetPauseView(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetCustody configures the custody vault address holding staked assets.
func (e *Engine) SetCustody(addr [20]byte) { e.custody = addr }

// SetCustodian configures the asset custody collaborator.
func (e *Engine) SetCustodian(c Custodian) { e.custodian = c }

// SetVariantOracle configures the variant resolver.
func (e *Engine) SetVariantOracle(v VariantOracle) { e.variants = v }

// SetWearOracle configures the wear/condition oracle.
func (e *Engine) SetWearOracle(w WearOracle) { e.wear = w }

// SetAccessoryRegistry configures the accessory bonus source.
func (e *Engine) SetAccessoryRegistry(a AccessoryRegistry) { e.accessories = a }

// SetSpecializationRegistry configures the specialization source.
func (e *Engine) SetSpecializationRegistry(s SpecializationRegistry) { e.specs = s }

// SetExperienceSink configures the fire-and-forget experience collaborator.
func (e *Engine) SetExperienceSink(x ExperienceSink) { e.experience = x }

// SetAchievementSink configures the fire-and-forget achievement collaborator.
func (e *Engine) SetAchievementSink(a AchievementSink) { e.achievements = a }

// SetActivationPolicy configures the prerequisite gate for staking.
func (e *Engine) SetActivationPolicy(p ActivationPolicy) { e.activation = p }

// SetColonyHook wires the colony registry.
func (e *Engine) SetColonyHook(h ColonyHook) { e.colonies = h }

// SetFeeCharger wires the fee collector.
func (e *Engine) SetFeeCharger(f FeeCharger) { e.fees = f }

// SetIssuer wires the issuance limiter.
func (e *Engine) SetIssuer(i Issuer) { e.issuer = i }

// SetPrivileged grants or revokes the privileged-caller role used by
// unstake-on-behalf and admin flows.
func (e *Engine) SetPrivileged(addr [20]byte, ok bool) {
	if e.privileged == nil {
		e.privileged = make(map[[20]byte]bool)
	}
	if ok {
		e.privileged[addr] = true
		return
	}
	delete(e.privileged, addr)
}

func (e *Engine) isPrivileged(addr [20]byte) bool {
	return e.privileged != nil && e.privileged[addr]
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

func (e *Engine) emitSkip(collaborator, operation string, out common.Outcome) {
	if out.OK {
		return
	}
	e.emit(events.CollaboratorSkipped{
		Collaborator: collaborator,
		Operation:    operation,
		Reason:       out.Reason,
	})
}

// Position returns a copy of the ledger entry for a key.
func (e *Engine) Position(key types.TokenKey) (*Position, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	p, ok, err := e.state.PositionGet(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return p.Clone().Normalize(), true, nil
}

func (e *Engine) account(addr [20]byte) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	return acc.Normalize(), nil
}

// resolveVariant consults the oracle, falling back to the first variant when
// the collaborator is unavailable or misbehaves.
func (e *Engine) resolveVariant(key types.TokenKey) uint8 {
	if e.variants == nil {
		return MinVariant
	}
	variant := MinVariant
	out := common.TryCollaborator("variantOracle", "variant", func() error {
		v, err := e.variants.Variant(key)
		if err != nil {
			return err
		}
		variant = v
		return nil
	})
	e.emitSkip("variantOracle", "variant", out)
	if variant < MinVariant || variant > MaxVariant {
		return MinVariant
	}
	return variant
}

// Stake places the asset into custody and opens a fresh position. Internal
// bookkeeping is finalized before the custody transfer fires; a failed
// transfer unwinds every internal step.
func (e *Engine) Stake(key types.TokenKey, caller [20]byte) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard.Enter("stake"); err != nil {
		return nil, err
	}
	defer e.guard.Exit("stake")
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if e.config == nil || !e.config.Enabled {
		return nil, ErrNotEnabled
	}
	if !e.config.CollectionValid(key.Collection()) {
		return nil, ErrInvalidCollection
	}
	if existing, ok, err := e.state.PositionGet(key); err != nil {
		return nil, err
	} else if ok && existing.Staked {
		return nil, ErrAlreadyStaked
	}
	now := e.now()
	until, err := e.state.CooldownUntil(key)
	if err != nil {
		return nil, err
	}
	if until > now {
		return nil, ErrCooldownActive
	}
	if e.custodian == nil {
		return nil, fmt.Errorf("stake: custodian not configured")
	}
	holder, err := e.custodian.OwnerOf(key)
	if err != nil {
		return nil, fmt.Errorf("stake: ownership check: %w", err)
	}
	if holder != caller {
		return nil, ErrNotOwner
	}
	if e.activation != nil && !e.activation.Bypass(caller) && !e.isPrivileged(caller) {
		ok, err := e.activation.Satisfied(caller, key)
		if err != nil {
			return nil, fmt.Errorf("stake: activation policy: %w", err)
		}
		if !ok {
			return nil, ErrPrerequisiteNotMet
		}
	}

	variant := e.resolveVariant(key)
	position := (&Position{
		Key:           key,
		Owner:         caller,
		CustodySource: caller,
		StakedAt:      now,
		LastClaimAt:   now,
		LastSyncAt:    now,
		Variant:       variant,
		Level:         1,
		ChargeLevel:   100,
		Staked:        true,
	}).Normalize()

	// Colony membership: pending assignment first, external authority next.
	if e.colonies != nil {
		colonyID := uint64(0)
		out := common.TryCollaborator("colonyRegistry", "onStake", func() error {
			id, err := e.colonies.OnStake(key, caller)
			if err != nil {
				return err
			}
			colonyID = id
			return nil
		})
		e.emitSkip("colonyRegistry", "onStake", out)
		position.ColonyID = colonyID
	}

	if err := e.state.PositionPut(position); err != nil {
		return nil, err
	}
	if err := e.state.OwnerIndexAdd(caller, key); err != nil {
		return nil, err
	}
	acc, err := e.account(caller)
	if err != nil {
		return nil, err
	}
	acc.PositionCount++
	if acc.JoinedAt == 0 {
		acc.JoinedAt = now
	}
	if err := e.state.PutAccount(caller, acc); err != nil {
		return nil, err
	}
	total, err := e.state.TotalStaked()
	if err != nil {
		return nil, err
	}
	if err := e.state.SetTotalStaked(total + 1); err != nil {
		return nil, err
	}

	// Custody transfer is the last, externally observable step.
	if err := e.custodian.Transfer(key, caller, e.custody); err != nil {
		e.rollbackStake(key, caller, position.ColonyID, acc.JoinedAt == now)
		return nil, fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}

	e.emit(events.Staked{
		Key:      key,
		Owner:    caller,
		Variant:  variant,
		ColonyID: position.ColonyID,
		StakedAt: now,
	})
	return position.Clone(), nil
}

// rollbackStake undoes every internal effect of a stake whose custody
// transfer failed. Errors on the rollback path are swallowed deliberately:
// partial restoration plus a failed operation beats a crash loop, and repair
// reconciles colony state later.
func (e *Engine) rollbackStake(key types.TokenKey, caller [20]byte, colonyID uint64, firstStake bool) {
	_ = e.state.PositionDelete(key)
	_ = e.state.OwnerIndexRemove(caller, key)
	if acc, err := e.account(caller); err == nil {
		if acc.PositionCount > 0 {
			acc.PositionCount--
		}
		if firstStake {
			acc.JoinedAt = 0
		}
		_ = e.state.PutAccount(caller, acc)
	}
	if total, err := e.state.TotalStaked(); err == nil && total > 0 {
		_ = e.state.SetTotalStaked(total - 1)
	}
	if e.colonies != nil && colonyID != 0 {
		_ = e.colonies.OnUnstake(key, colonyID)
	}
}

// Unstake removes the position, starts the re-stake cooldown and returns the
// asset to its owner. Pending rewards are processed best-effort first and
// never block the release.
func (e *Engine) Unstake(key types.TokenKey, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard.Enter("unstake"); err != nil {
		return err
	}
	defer e.guard.Exit("unstake")
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	position, ok, err := e.state.PositionGet(key)
	if err != nil {
		return err
	}
	if !ok || !position.Staked {
		return ErrNotStaked
	}
	position = position.Clone().Normalize()
	if position.Wrapped() {
		return ErrReceiptActive
	}
	if caller != position.Owner && !e.isPrivileged(caller) {
		return ErrNotOwner
	}
	owner := position.Owner
	now := e.now()

	// Best-effort pending-reward payout; failure must not block the unstake.
	out := common.TryCollaborator("issuance", "unstakePayout", func() error {
		return e.payoutPendingPermissive(position, now)
	})
	e.emitSkip("issuance", "unstakePayout", out)

	if e.fees != nil {
		if err := e.fees.Charge(e.feeOpUnstake, owner); err != nil {
			return err
		}
	}

	snapshot := position.Clone()
	acc, err := e.account(owner)
	if err != nil {
		return err
	}
	accSnapshot := acc.Clone()
	total, err := e.state.TotalStaked()
	if err != nil {
		return err
	}

	if err := e.state.PositionDelete(key); err != nil {
		return err
	}
	if err := e.state.OwnerIndexRemove(owner, key); err != nil {
		return err
	}
	if acc.PositionCount > 0 {
		acc.PositionCount--
	}
	if err := e.state.PutAccount(owner, acc); err != nil {
		return err
	}
	if total > 0 {
		if err := e.state.SetTotalStaked(total - 1); err != nil {
			return err
		}
	}
	cooldownEnds := now + e.config.Cooldown()
	if err := e.state.SetCooldown(key, cooldownEnds); err != nil {
		return err
	}
	if e.colonies != nil && position.ColonyID != 0 {
		if err := e.colonies.OnUnstake(key, position.ColonyID); err != nil {
			e.emit(events.CollaboratorSkipped{Collaborator: "colonyRegistry", Operation: "onUnstake", Reason: err.Error()})
		}
	}

	// Custody return, with the privileged forced-transfer fallback.
	if err := e.returnCustody(key, owner); err != nil {
		e.restoreUnstake(key, snapshot, accSnapshot, total)
		return fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}

	e.emit(events.Unstaked{
		Key:          key,
		Owner:        owner,
		TotalClaimed: snapshot.TotalClaimed,
		CooldownEnds: cooldownEnds,
	})
	return nil
}

func (e *Engine) returnCustody(key types.TokenKey, owner [20]byte) error {
	if e.custodian == nil {
		return fmt.Errorf("custodian not configured")
	}
	if err := e.custodian.ForceTransfer(key, owner); err == nil {
		return nil
	}
	return e.custodian.Transfer(key, e.custody, owner)
}

// restoreUnstake reinstates the position after a failed custody return.
func (e *Engine) restoreUnstake(key types.TokenKey, position *Position, acc *types.Account, total uint64) {
	_ = e.state.PositionPut(position)
	_ = e.state.OwnerIndexAdd(position.Owner, key)
	_ = e.state.PutAccount(position.Owner, acc)
	_ = e.state.SetTotalStaked(total)
	_ = e.state.SetCooldown(key, 0)
	if e.colonies != nil && position.ColonyID != 0 {
		_ = e.colonies.RestoreMembership(key, position.ColonyID)
	}
}

// payoutPendingPermissive settles accrued rewards during unstake, truncating
// to the remaining daily quota instead of failing.
func (e *Engine) payoutPendingPermissive(position *Position, now int64) error {
	if e.issuer == nil {
		return nil
	}
	breakdown := e.breakdownFor(position, now)
	if breakdown.Amount.Sign() <= 0 {
		return nil
	}
	granted, err := e.issuer.ConsumeUpTo(position.Owner, breakdown.Amount)
	if err != nil {
		return err
	}
	if granted.Sign() <= 0 {
		return nil
	}
	position.LastClaimAt = now
	position.TotalClaimed = new(big.Int).Add(position.TotalClaimed, granted)
	if err := e.state.PositionPut(position); err != nil {
		return err
	}
	if _, _, err := e.issuer.Distribute(position.Owner, granted); err != nil {
		return err
	}
	e.emit(events.RewardsClaimed{Key: position.Key, Owner: position.Owner, Amount: granted})
	return nil
}
