package fees

import (
	"errors"
	"math/big"
	"strings"

	"hivestake/core/events"
	"hivestake/native/common"
)

// Operation identifiers resolved against the fee table. Legacy aliases map
// older configuration names onto their modern counterparts.
const (
	OpClaim            = "claim"
	OpUnstake          = "unstake"
	OpInfusionEntry    = "infusion.entry"
	OpInfusionHarvest  = "infusion.harvest"
	OpInfusionReinvest = "infusion.reinvest"
	OpInfusionWithdraw = "infusion.withdraw"
)

// BpsDenominator is the fixed denominator for basis-point fee rates.
const BpsDenominator = 10_000

var (
	ErrInsufficientBalance = errors.New("fees: insufficient payer balance")
	ErrNotAuthorized       = errors.New("fees: transfer not authorized")
	ErrTokenNotConfigured  = errors.New("fees: token not configured")
)

// legacyAliases maps unconfigured operations onto the name consulted as a
// fallback. An unconfigured harvest fee falls back to the claim fee.
var legacyAliases = map[string]string{
	OpInfusionHarvest:  OpClaim,
	OpInfusionReinvest: OpInfusionHarvest,
}

// Config describes the fee charged for one operation type.
type Config struct {
	Amount        *big.Int
	Beneficiary   [20]byte
	Currency      string
	BurnOnCollect bool
}

// Clone returns a deep copy of the fee configuration.
func (c Config) Clone() Config {
	clone := c
	clone.Amount = common.CloneBig(c.Amount)
	return clone
}

// Enabled reports whether applying this fee moves any value.
func (c Config) Enabled() bool {
	return c.Amount != nil && c.Amount.Sign() > 0
}

// Token is the fungible-token collaborator used to settle fees.
type Token interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Allowance(owner, spender [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
	Burn(from [20]byte, amount *big.Int) error
}

// Collector resolves and applies operation fees.
type Collector struct {
	token    Token
	operator [20]byte
	configs  map[string]Config
	emitter  events.Emitter
}

// NewCollector constructs a collector with a no-op emitter.
func NewCollector() *Collector {
	return &Collector{
		configs: make(map[string]Config),
		emitter: events.NoopEmitter{},
	}
}

// SetToken configures the token collaborator settling fee transfers.
func (c *Collector) SetToken(token Token) { c.token = token }

// SetOperator configures the address whose allowance authorizes fee pulls.
func (c *Collector) SetOperator(addr [20]byte) { c.operator = addr }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (c *Collector) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// SetConfig installs or replaces the fee for an operation type.
func (c *Collector) SetConfig(operation string, cfg Config) {
	if c.configs == nil {
		c.configs = make(map[string]Config)
	}
	c.configs[normalizeOperation(operation)] = cfg.Clone()
}

func normalizeOperation(operation string) string {
	return strings.ToLower(strings.TrimSpace(operation))
}

// Resolve looks up the fee for an operation, walking the legacy alias chain
// when the operation itself is unconfigured.
func (c *Collector) Resolve(operation string) (Config, bool) {
	if c == nil || len(c.configs) == 0 {
		return Config{}, false
	}
	name := normalizeOperation(operation)
	for i := 0; i < len(legacyAliases)+1; i++ {
		if cfg, ok := c.configs[name]; ok {
			return cfg.Clone(), true
		}
		alias, ok := legacyAliases[name]
		if !ok {
			return Config{}, false
		}
		name = alias
	}
	return Config{}, false
}

// Charge resolves and applies the fee for an operation. Unconfigured or
// zero-amount fees are a no-op.
func (c *Collector) Charge(operation string, payer [20]byte) error {
	cfg, ok := c.Resolve(operation)
	if !ok {
		return nil
	}
	return c.Apply(operation, cfg, payer)
}

// Apply settles a resolved fee against the payer. Zero amounts and fees with
// neither beneficiary nor burn flag are skipped. The payer must hold the fee
// amount and must have authorized the operator before any transfer fires.
func (c *Collector) Apply(operation string, cfg Config, payer [20]byte) error {
	if !cfg.Enabled() {
		return nil
	}
	if !cfg.BurnOnCollect && cfg.Beneficiary == ([20]byte{}) {
		return nil
	}
	if c == nil || c.token == nil {
		return ErrTokenNotConfigured
	}
	amount := common.CloneBig(cfg.Amount)
	balance, err := c.token.BalanceOf(payer)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	allowance, err := c.token.Allowance(payer, c.operator)
	if err != nil {
		return err
	}
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrNotAuthorized
	}
	if cfg.BurnOnCollect {
		if err := c.token.Burn(payer, amount); err != nil {
			return err
		}
	} else {
		if err := c.token.Transfer(payer, cfg.Beneficiary, amount); err != nil {
			return err
		}
	}
	c.emit(events.FeeApplied{
		Operation:   operation,
		Payer:       payer,
		Beneficiary: cfg.Beneficiary,
		Amount:      amount,
		Burned:      cfg.BurnOnCollect,
	})
	return nil
}

func (c *Collector) emit(evt events.Event) {
	if c == nil || c.emitter == nil {
		return
	}
	c.emitter.Emit(evt)
}
