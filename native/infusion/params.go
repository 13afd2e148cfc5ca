package infusion

import (
	"fmt"
	"math/big"

	"hivestake/native/common"
)

const (
	// SecondsPerYear is the APR accrual denominator.
	SecondsPerYear = 365 * 24 * 60 * 60

	// MinVariant and MaxVariant bound the asset variant range.
	MinVariant uint8 = 1
	MaxVariant uint8 = 4

	// MaxLevel bounds the infusion tier.
	MaxLevel uint8 = 5
)

// Fallback constants consulted whenever a parameter is unconfigured. Tier is a
// pure function of the deposit's share of the variant cap.
var (
	// fallbackVariantCaps bounds the deposit per variant, in base token
	// units (10^18 scale).
	fallbackVariantCaps = map[uint8]*big.Int{
		1: mustUnits(1_000),
		2: mustUnits(2_000),
		3: mustUnits(3_000),
		4: mustUnits(5_000),
	}

	fallbackMinimumDeposit = mustUnits(1)
	fallbackMaxHarvest     = mustUnits(10_000)

	// fallbackTierThresholds maps descending cap-share percentages onto
	// tiers: >=80/60/40/20 percent of cap yields tier 5/4/3/2, any smaller
	// non-zero deposit tier 1.
	fallbackTierThresholds = []TierThreshold{
		{SharePct: 80, Level: 5},
		{SharePct: 60, Level: 4},
		{SharePct: 40, Level: 3},
		{SharePct: 20, Level: 2},
	}
)

const (
	fallbackBaseAPR        = 20
	fallbackVariantAPRStep = 2
	fallbackTierAPRStep    = 2
	fallbackAPRCeiling     = 50
)

func mustUnits(n int64) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return new(big.Int).Mul(big.NewInt(n), unit)
}

// TierThreshold maps a cap-share percentage onto an infusion tier.
type TierThreshold struct {
	SharePct uint64
	Level    uint8
}

// Config controls the infusion sub-ledger. Zero values fall back to the named
// constant tables; the resolver functions are the only place the fallback
// decision is made.
type Config struct {
	Enabled        bool
	MinimumDeposit *big.Int
	VariantCaps    map[uint8]*big.Int
	TierThresholds []TierThreshold
	BaseAPR        uint64
	VariantAPRStep uint64
	TierAPRStep    uint64
	APRCeiling     uint64
	MaxHarvest     *big.Int
	// HarvestFeeTiers and HarvestFeeBps parameterise the tiered percentage
	// fee evaluated against a harvest's gross amount.
	HarvestFeeTiers []*big.Int
	HarvestFeeBps   []uint64
	// BalanceCurve reduces harvests by the stake-balance multiplier when set.
	BalanceCurve bool
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.MinimumDeposit = common.CloneBig(c.MinimumDeposit)
	clone.MaxHarvest = common.CloneBig(c.MaxHarvest)
	if len(c.VariantCaps) > 0 {
		clone.VariantCaps = make(map[uint8]*big.Int, len(c.VariantCaps))
		for variant, cap := range c.VariantCaps {
			clone.VariantCaps[variant] = common.CloneBig(cap)
		}
	}
	if len(c.TierThresholds) > 0 {
		clone.TierThresholds = append([]TierThreshold(nil), c.TierThresholds...)
	}
	if len(c.HarvestFeeTiers) > 0 {
		clone.HarvestFeeTiers = make([]*big.Int, len(c.HarvestFeeTiers))
		for i, tier := range c.HarvestFeeTiers {
			clone.HarvestFeeTiers[i] = common.CloneBig(tier)
		}
	}
	if len(c.HarvestFeeBps) > 0 {
		clone.HarvestFeeBps = append([]uint64(nil), c.HarvestFeeBps...)
	}
	return &clone
}

// Validate performs static validation of the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil infusion config")
	}
	if c.MinimumDeposit != nil && c.MinimumDeposit.Sign() < 0 {
		return fmt.Errorf("minimum deposit must not be negative")
	}
	for variant, cap := range c.VariantCaps {
		if variant < MinVariant || variant > MaxVariant {
			return fmt.Errorf("variant cap %d out of range", variant)
		}
		if cap != nil && cap.Sign() < 0 {
			return fmt.Errorf("variant cap for variant %d must not be negative", variant)
		}
	}
	for i := 1; i < len(c.TierThresholds); i++ {
		if c.TierThresholds[i].SharePct >= c.TierThresholds[i-1].SharePct {
			return fmt.Errorf("tier thresholds must be strictly descending")
		}
	}
	if len(c.HarvestFeeBps) > 0 && len(c.HarvestFeeBps) != len(c.HarvestFeeTiers)+1 {
		return fmt.Errorf("harvest fee bps must be one longer than its thresholds")
	}
	return nil
}

// MinDeposit resolves the smallest accepted deposit.
func (c *Config) MinDeposit() *big.Int {
	if c != nil && c.MinimumDeposit != nil && c.MinimumDeposit.Sign() > 0 {
		return common.CloneBig(c.MinimumDeposit)
	}
	return common.CloneBig(fallbackMinimumDeposit)
}

// VariantCap resolves the deposit ceiling for a variant.
func (c *Config) VariantCap(variant uint8) *big.Int {
	if c != nil {
		if cap, ok := c.VariantCaps[variant]; ok && cap != nil && cap.Sign() > 0 {
			return common.CloneBig(cap)
		}
	}
	if cap, ok := fallbackVariantCaps[variant]; ok {
		return common.CloneBig(cap)
	}
	return common.CloneBig(fallbackVariantCaps[MinVariant])
}

// Tier derives the infusion tier from the deposit's share of the variant cap.
// Zero deposits carry tier 0; any smaller non-zero deposit tier 1.
func (c *Config) Tier(amount, cap *big.Int) uint8 {
	if amount == nil || amount.Sign() <= 0 || cap == nil || cap.Sign() <= 0 {
		return 0
	}
	thresholds := fallbackTierThresholds
	if c != nil && len(c.TierThresholds) > 0 {
		thresholds = c.TierThresholds
	}
	sharePct := new(big.Int).Mul(amount, big.NewInt(100))
	sharePct.Quo(sharePct, cap)
	for _, threshold := range thresholds {
		if sharePct.Cmp(new(big.Int).SetUint64(threshold.SharePct)) >= 0 {
			return threshold.Level
		}
	}
	return 1
}

// APR resolves the annual percentage rate for a variant and tier, capped at
// the configured ceiling.
func (c *Config) APR(variant uint8, tier uint8) uint64 {
	base := uint64(fallbackBaseAPR)
	variantStep := uint64(fallbackVariantAPRStep)
	tierStep := uint64(fallbackTierAPRStep)
	ceiling := uint64(fallbackAPRCeiling)
	if c != nil {
		if c.BaseAPR > 0 {
			base = c.BaseAPR
		}
		if c.VariantAPRStep > 0 {
			variantStep = c.VariantAPRStep
		}
		if c.TierAPRStep > 0 {
			tierStep = c.TierAPRStep
		}
		if c.APRCeiling > 0 {
			ceiling = c.APRCeiling
		}
	}
	apr := base
	if variant > MinVariant {
		apr += variantStep * uint64(variant-MinVariant)
	}
	apr += tierStep * uint64(tier)
	if apr > ceiling {
		apr = ceiling
	}
	return apr
}

// HarvestCap resolves the maximum payout per harvest. Nil disables the cap.
func (c *Config) HarvestCap() *big.Int {
	if c != nil && c.MaxHarvest != nil && c.MaxHarvest.Sign() > 0 {
		return common.CloneBig(c.MaxHarvest)
	}
	return common.CloneBig(fallbackMaxHarvest)
}
