package issuance

import (
	"errors"
	"math/big"
	"time"

	"hivestake/core/events"
	"hivestake/native/common"
)

var (
	errNilState      = errors.New("issuance: state not configured")
	errNilToken      = errors.New("issuance: token not configured")
	ErrQuotaExceeded = common.ErrQuotaExceeded
)

// State is the persistence surface for per-account daily usage counters. One
// quota is shared by every issuance pathway.
type State interface {
	DailyUsage(addr [20]byte) (common.QuotaNow, error)
	SetDailyUsage(addr [20]byte, usage common.QuotaNow) error
}

// Token is the fungible reward token collaborator.
type Token interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Allowance(owner, spender [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// Minter is the privileged mint pathway, including the daily-mint exemption
// list maintained by the token.
type Minter interface {
	Mint(to [20]byte, amount *big.Int) error
	MintExempt(addr [20]byte) bool
}

// Limiter enforces the shared daily issuance quota and settles payouts from
// the treasury first, minting any shortfall.
type Limiter struct {
	state    State
	token    Token
	minter   Minter
	treasury [20]byte
	operator [20]byte
	dailyCap *big.Int
	emitter  events.Emitter
	nowFn    func() int64
}

// NewLimiter constructs a limiter with a no-op emitter.
func NewLimiter() *Limiter {
	return &Limiter{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the persistence backend.
func (l *Limiter) SetState(state State) { l.state = state }

// SetToken configures the reward token collaborator.
func (l *Limiter) SetToken(token Token) { l.token = token }

// SetMinter configures the privileged mint pathway.
func (l *Limiter) SetMinter(minter Minter) { l.minter = minter }

// SetTreasury configures the treasury account drained before minting.
func (l *Limiter) SetTreasury(addr [20]byte) { l.treasury = addr }

// SetOperator configures the address spending the treasury allowance.
func (l *Limiter) SetOperator(addr [20]byte) { l.operator = addr }

// SetDailyCap configures the shared per-account quota. A nil or non-positive
// cap disables the quota.
func (l *Limiter) SetDailyCap(cap *big.Int) { l.dailyCap = common.CloneBig(cap) }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Limiter) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (l *Limiter) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *Limiter) now() int64 {
	if l == nil || l.nowFn == nil {
		return time.Now().Unix()
	}
	return l.nowFn()
}

func (l *Limiter) day() string { return common.DayKey(l.now()) }

func (l *Limiter) exempt(addr [20]byte) bool {
	return l.minter != nil && l.minter.MintExempt(addr)
}

// Remaining reports the issuance still available today for the account. A
// nil result means the quota is disabled or the account is exempt.
func (l *Limiter) Remaining(addr [20]byte) (*big.Int, string, error) {
	day := l.day()
	if l.state == nil {
		return nil, day, errNilState
	}
	if l.exempt(addr) {
		return nil, day, nil
	}
	usage, err := l.state.DailyUsage(addr)
	if err != nil {
		return nil, day, err
	}
	return common.QuotaRemaining(l.dailyCap, day, usage), day, nil
}

// Consume books the amount against today's quota, failing when it would be
// exceeded. Strict call sites (claims) use this path.
func (l *Limiter) Consume(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	value := common.CloneBig(amount)
	if value.Sign() <= 0 {
		return nil
	}
	if l.exempt(addr) {
		return nil
	}
	day := l.day()
	usage, err := l.state.DailyUsage(addr)
	if err != nil {
		return err
	}
	next, err := common.CheckQuota(l.dailyCap, day, usage, value)
	if err != nil {
		l.emit(events.IssuanceQuotaHit{
			Account:   addr,
			Day:       day,
			Requested: value,
			Remaining: common.QuotaRemaining(l.dailyCap, day, usage),
		})
		return err
	}
	return l.state.SetDailyUsage(addr, next)
}

// ConsumeUpTo books as much of the amount as today's quota allows and returns
// the granted portion. Permissive call sites (unstake-triggered payouts)
// truncate instead of failing.
func (l *Limiter) ConsumeUpTo(addr [20]byte, amount *big.Int) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	value := common.CloneBig(amount)
	if value.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if l.exempt(addr) {
		return value, nil
	}
	day := l.day()
	usage, err := l.state.DailyUsage(addr)
	if err != nil {
		return nil, err
	}
	remaining := common.QuotaRemaining(l.dailyCap, day, usage)
	granted := value
	if remaining != nil && granted.Cmp(remaining) > 0 {
		granted = remaining
		l.emit(events.IssuanceQuotaHit{
			Account:   addr,
			Day:       day,
			Requested: value,
			Remaining: common.CloneBig(remaining),
			Truncated: true,
		})
	}
	if granted.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	next, err := common.CheckQuota(l.dailyCap, day, usage, granted)
	if err != nil {
		return nil, err
	}
	if err := l.state.SetDailyUsage(addr, next); err != nil {
		return nil, err
	}
	return common.CloneBig(granted), nil
}

// Refund releases previously consumed quota after a failed payout so the
// compensating rollback also restores the daily meter. Saturates at zero.
func (l *Limiter) Refund(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	value := common.CloneBig(amount)
	if value.Sign() <= 0 {
		return nil
	}
	if l.exempt(addr) {
		return nil
	}
	day := l.day()
	usage, err := l.state.DailyUsage(addr)
	if err != nil {
		return err
	}
	if usage.Day != day {
		return nil
	}
	usage.Used = common.SaturatingSub(usage.Used, value)
	return l.state.SetDailyUsage(addr, usage)
}

// Distribute pays the amount to the account, draining the treasury balance
// and allowance first and minting whatever remains. It returns the
// treasury/mint split.
func (l *Limiter) Distribute(addr [20]byte, amount *big.Int) (*big.Int, *big.Int, error) {
	fromTreasury := big.NewInt(0)
	minted := big.NewInt(0)
	value := common.CloneBig(amount)
	if value.Sign() <= 0 {
		return fromTreasury, minted, nil
	}
	if l == nil || l.token == nil {
		return nil, nil, errNilToken
	}
	available, err := l.treasuryAvailable()
	if err != nil {
		return nil, nil, err
	}
	fromTreasury = common.MinBig(value, available)
	if fromTreasury.Sign() > 0 {
		if err := l.token.Transfer(l.treasury, addr, fromTreasury); err != nil {
			return nil, nil, err
		}
	}
	shortfall := common.SaturatingSub(value, fromTreasury)
	if shortfall.Sign() > 0 {
		if l.minter == nil {
			return nil, nil, errNilToken
		}
		if err := l.minter.Mint(addr, shortfall); err != nil {
			return nil, nil, err
		}
		minted = shortfall
	}
	l.emit(events.IssuanceDistributed{Account: addr, FromTreasury: fromTreasury, Minted: minted})
	return fromTreasury, minted, nil
}

// treasuryAvailable is the spendable treasury amount: the lesser of balance
// and the allowance granted to the operator.
func (l *Limiter) treasuryAvailable() (*big.Int, error) {
	if l.treasury == ([20]byte{}) {
		return big.NewInt(0), nil
	}
	balance, err := l.token.BalanceOf(l.treasury)
	if err != nil {
		return nil, err
	}
	allowance, err := l.token.Allowance(l.treasury, l.operator)
	if err != nil {
		return nil, err
	}
	return common.MinBig(balance, allowance), nil
}

func (l *Limiter) emit(evt events.Event) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(evt)
}
