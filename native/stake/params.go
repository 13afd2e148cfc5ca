package stake

import (
	"fmt"
	"math/big"

	"hivestake/native/common"
)

const (
	// SecondsPerDay converts elapsed seconds into accrual days.
	SecondsPerDay = 24 * 60 * 60

	// MinVariant and MaxVariant bound the asset variant range.
	MinVariant uint8 = 1
	MaxVariant uint8 = 4

	// MaxInfusionLevel bounds the infusion tier.
	MaxInfusionLevel uint8 = 5
)

// Fallback constants consulted whenever a bonus category is unconfigured.
// Every category resolves through exactly one pure function below so each
// configured-vs-fallback path can be unit tested in isolation.
var (
	// fallbackDailyRates is the per-variant accrual rate per day, in base
	// token units (10^18 scale).
	fallbackDailyRates = map[uint8]*big.Int{
		1: mustUnits(10),
		2: mustUnits(15),
		3: mustUnits(20),
		4: mustUnits(30),
	}

	// fallbackInfusionBonuses indexes tier 1..5.
	fallbackInfusionBonuses = [5]uint64{8, 12, 16, 20, 28}

	// fallbackChargeTiers grants a multiplier bonus by charge level.
	fallbackChargeTiers = []ChargeTier{
		{Threshold: 40, Bonus: 3},
		{Threshold: 60, Bonus: 6},
		{Threshold: 80, Bonus: 10},
	}

	// fallbackSpecializationBonuses indexes specialization 1 and 2; other
	// specializations carry no multiplier of their own.
	fallbackSpecializationBonuses = map[uint8]uint64{1: 4, 2: 6}

	// fallbackLoyaltyTiers grants a context bonus by staking duration.
	fallbackLoyaltyTiers = []LoyaltyTier{
		{MinSeconds: 7 * SecondsPerDay, Bonus: 1},
		{MinSeconds: 30 * SecondsPerDay, Bonus: 2},
		{MinSeconds: 90 * SecondsPerDay, Bonus: 3},
		{MinSeconds: 180 * SecondsPerDay, Bonus: 4},
		{MinSeconds: 365 * SecondsPerDay, Bonus: 5},
	}

	// fallbackWearPenalties maps ascending wear thresholds onto percentage
	// reductions.
	fallbackWearPenalties = []WearTier{
		{Threshold: 25, PenaltyPct: 5},
		{Threshold: 50, PenaltyPct: 10},
		{Threshold: 75, PenaltyPct: 20},
		{Threshold: 90, PenaltyPct: 40},
	}
)

const (
	fallbackLevelBonusTenths  = 4 // 0.4% per level
	fallbackVariantBonusStep  = 4 // 4% per variant above the first
	fallbackSeasonMultiplier  = 100
	fallbackContextBonusCapV1 = 50
	fallbackContextBonusCapV2 = 75
	fallbackColonyBonusCap    = 25
	fallbackAccessoryBonusCap = 20
	fallbackMaxRewardPeriod   = 30 * SecondsPerDay
	fallbackCooldownSeconds   = 24 * 60 * 60
	fallbackBatchMaxPositions = 20
	fallbackBatchScanBudget   = 100

	// Balance-curve defaults: decay grows to 30 across the share
	// breakpoints, the multiplier never drops below 70, and the
	// time-in-program bonus ramps to 10 over 180 days.
	fallbackBalanceDecayCap      = 30
	fallbackBalanceDecayRatePct  = 100
	fallbackBalanceMinMultiplier = 70
	fallbackTimeBonusMax         = 10
	fallbackTimeBonusRampSeconds = 180 * SecondsPerDay
)

func mustUnits(n int64) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return new(big.Int).Mul(big.NewInt(n), unit)
}

// LoyaltyTier grants a context bonus once a position has been staked for the
// tier's minimum duration.
type LoyaltyTier struct {
	MinSeconds int64
	Bonus      uint64
}

// WearTier selects a percentage reduction once wear reaches the threshold.
type WearTier struct {
	Threshold  uint8
	PenaltyPct uint64
}

// ChargeTier grants a multiplier bonus once charge reaches the threshold.
type ChargeTier struct {
	Threshold uint8
	Bonus     uint64
}

// BalanceCurve parameterises the stake-balance adjustment applied after the
// main formula.
type BalanceCurve struct {
	DecayRatePct    uint64
	MinMultiplier   uint64
	TimeBonusMax    uint64
	TimeBonusRampSc int64
}

// Config controls the staking program and the reward formula. Zero values
// fall back to the named constant tables; the resolver functions are the only
// place the fallback decision is made.
type Config struct {
	Enabled bool
	// FormulaVersion selects the context-bonus combination mode: versions
	// below 2 combine additively, later versions compound multiplicatively.
	// Both paths are permanent, version-selected behaviour.
	FormulaVersion   uint32
	SeasonMultiplier uint64
	DailyRates       map[uint8]*big.Int
	LevelBonusTenths uint64
	VariantBonusStep uint64
	InfusionBonuses  map[uint8]uint64
	SpecBonuses      map[uint8]uint64
	ChargeTiers      []ChargeTier
	LoyaltyTiers     []LoyaltyTier
	WearPenalties    []WearTier
	ColonyBonusCap   uint64
	AccessoryCap     uint64
	ContextBonusCap  uint64
	MaxRewardPeriod  int64
	MaxRewardPerClm  *big.Int
	Balance          BalanceCurve
	CooldownSeconds  int64
	BatchMax         uint64
	BatchScanBudget  uint64
	// ValidCollections restricts stakeable collections; empty admits all.
	ValidCollections map[uint32]bool
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.MaxRewardPerClm = nil
	if c.MaxRewardPerClm != nil {
		clone.MaxRewardPerClm = new(big.Int).Set(c.MaxRewardPerClm)
	}
	if len(c.DailyRates) > 0 {
		clone.DailyRates = make(map[uint8]*big.Int, len(c.DailyRates))
		for variant, rate := range c.DailyRates {
			clone.DailyRates[variant] = common.CloneBig(rate)
		}
	}
	if len(c.InfusionBonuses) > 0 {
		clone.InfusionBonuses = make(map[uint8]uint64, len(c.InfusionBonuses))
		for level, bonus := range c.InfusionBonuses {
			clone.InfusionBonuses[level] = bonus
		}
	}
	if len(c.SpecBonuses) > 0 {
		clone.SpecBonuses = make(map[uint8]uint64, len(c.SpecBonuses))
		for spec, bonus := range c.SpecBonuses {
			clone.SpecBonuses[spec] = bonus
		}
	}
	if len(c.ChargeTiers) > 0 {
		clone.ChargeTiers = append([]ChargeTier(nil), c.ChargeTiers...)
	}
	if len(c.LoyaltyTiers) > 0 {
		clone.LoyaltyTiers = append([]LoyaltyTier(nil), c.LoyaltyTiers...)
	}
	if len(c.WearPenalties) > 0 {
		clone.WearPenalties = append([]WearTier(nil), c.WearPenalties...)
	}
	if len(c.ValidCollections) > 0 {
		clone.ValidCollections = make(map[uint32]bool, len(c.ValidCollections))
		for id, ok := range c.ValidCollections {
			clone.ValidCollections[id] = ok
		}
	}
	return &clone
}

// Validate performs static validation of the configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("nil staking config")
	}
	for variant, rate := range c.DailyRates {
		if variant < MinVariant || variant > MaxVariant {
			return fmt.Errorf("daily rate variant %d out of range", variant)
		}
		if rate != nil && rate.Sign() < 0 {
			return fmt.Errorf("daily rate for variant %d must not be negative", variant)
		}
	}
	if c.MaxRewardPerClm != nil && c.MaxRewardPerClm.Sign() < 0 {
		return fmt.Errorf("max reward per claim must not be negative")
	}
	if c.MaxRewardPeriod < 0 {
		return fmt.Errorf("max reward period must not be negative")
	}
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	for i := 1; i < len(c.ChargeTiers); i++ {
		if c.ChargeTiers[i].Threshold <= c.ChargeTiers[i-1].Threshold {
			return fmt.Errorf("charge tier thresholds must be strictly ascending")
		}
	}
	for i := 1; i < len(c.WearPenalties); i++ {
		if c.WearPenalties[i].Threshold <= c.WearPenalties[i-1].Threshold {
			return fmt.Errorf("wear penalty thresholds must be strictly ascending")
		}
	}
	for i := 1; i < len(c.LoyaltyTiers); i++ {
		if c.LoyaltyTiers[i].MinSeconds <= c.LoyaltyTiers[i-1].MinSeconds {
			return fmt.Errorf("loyalty tier durations must be strictly ascending")
		}
	}
	return nil
}

// CollectionValid reports whether assets from the collection may be staked.
func (c *Config) CollectionValid(collection uint32) bool {
	if c == nil || len(c.ValidCollections) == 0 {
		return true
	}
	return c.ValidCollections[collection]
}

// DailyRate resolves the per-day accrual rate for a variant.
func (c *Config) DailyRate(variant uint8) *big.Int {
	if c != nil {
		if rate, ok := c.DailyRates[variant]; ok && rate != nil && rate.Sign() > 0 {
			return common.CloneBig(rate)
		}
	}
	if rate, ok := fallbackDailyRates[variant]; ok {
		return common.CloneBig(rate)
	}
	return common.CloneBig(fallbackDailyRates[MinVariant])
}

// LevelBonus resolves the per-level multiplier term, roughly 0.4% per level.
func (c *Config) LevelBonus(level uint8) uint64 {
	tenths := uint64(fallbackLevelBonusTenths)
	if c != nil && c.LevelBonusTenths > 0 {
		tenths = c.LevelBonusTenths
	}
	return uint64(level) * tenths / 10
}

// VariantBonus resolves the variant multiplier term: step% per variant above
// the first.
func (c *Config) VariantBonus(variant uint8) uint64 {
	if variant <= MinVariant {
		return 0
	}
	step := uint64(fallbackVariantBonusStep)
	if c != nil && c.VariantBonusStep > 0 {
		step = c.VariantBonusStep
	}
	return step * uint64(variant-MinVariant)
}

// ChargeBonus resolves the charge multiplier term by ascending-threshold
// scan, 10/6/3/0 at >=80/>=60/>=40 when unconfigured.
func (c *Config) ChargeBonus(charge uint8) uint64 {
	tiers := fallbackChargeTiers
	if c != nil && len(c.ChargeTiers) > 0 {
		tiers = c.ChargeTiers
	}
	bonus := uint64(0)
	for _, tier := range tiers {
		if charge >= tier.Threshold {
			bonus = tier.Bonus
		}
	}
	return bonus
}

// InfusionBonus resolves the infusion-tier multiplier term.
func (c *Config) InfusionBonus(level uint8) uint64 {
	if level == 0 {
		return 0
	}
	if level > MaxInfusionLevel {
		level = MaxInfusionLevel
	}
	if c != nil {
		if bonus, ok := c.InfusionBonuses[level]; ok {
			return bonus
		}
	}
	return fallbackInfusionBonuses[level-1]
}

// SpecializationBonus resolves the specialization multiplier term.
func (c *Config) SpecializationBonus(spec uint8) uint64 {
	if c != nil {
		if bonus, ok := c.SpecBonuses[spec]; ok {
			return bonus
		}
	}
	return fallbackSpecializationBonuses[spec]
}

// LoyaltyBonus resolves the duration-tiered context bonus.
func (c *Config) LoyaltyBonus(stakedSeconds int64) uint64 {
	tiers := fallbackLoyaltyTiers
	if c != nil && len(c.LoyaltyTiers) > 0 {
		tiers = c.LoyaltyTiers
	}
	bonus := uint64(0)
	for _, tier := range tiers {
		if stakedSeconds >= tier.MinSeconds {
			bonus = tier.Bonus
		}
	}
	return bonus
}

// WearPenaltyPct resolves the percentage reduction for a wear level by
// ascending-threshold scan.
func (c *Config) WearPenaltyPct(wear uint8) uint64 {
	tiers := fallbackWearPenalties
	if c != nil && len(c.WearPenalties) > 0 {
		tiers = c.WearPenalties
	}
	penalty := uint64(0)
	for _, tier := range tiers {
		if wear >= tier.Threshold {
			penalty = tier.PenaltyPct
		}
	}
	if penalty > 100 {
		penalty = 100
	}
	return penalty
}

// Season resolves the season multiplier, 100 meaning 1x.
func (c *Config) Season() uint64 {
	if c != nil && c.SeasonMultiplier > 0 {
		return c.SeasonMultiplier
	}
	return fallbackSeasonMultiplier
}

// ColonyCap resolves the cap on the colony contribution to the context bonus.
func (c *Config) ColonyCap() uint64 {
	if c != nil && c.ColonyBonusCap > 0 {
		return c.ColonyBonusCap
	}
	return fallbackColonyBonusCap
}

// AccessoryBonusCap resolves the cap on the accessory contribution.
func (c *Config) AccessoryBonusCap() uint64 {
	if c != nil && c.AccessoryCap > 0 {
		return c.AccessoryCap
	}
	return fallbackAccessoryBonusCap
}

// ContextCap resolves the combined context-bonus ceiling, which widened with
// the second formula version.
func (c *Config) ContextCap() uint64 {
	if c != nil && c.ContextBonusCap > 0 {
		return c.ContextBonusCap
	}
	if c.Multiplicative() {
		return fallbackContextBonusCapV2
	}
	return fallbackContextBonusCapV1
}

// Multiplicative reports whether the context bonus compounds instead of
// combining additively.
func (c *Config) Multiplicative() bool {
	return c != nil && c.FormulaVersion >= 2
}

// RewardPeriod resolves the maximum accrual window per claim.
func (c *Config) RewardPeriod() int64 {
	if c != nil && c.MaxRewardPeriod > 0 {
		return c.MaxRewardPeriod
	}
	return fallbackMaxRewardPeriod
}

// MaxReward resolves the maximum-safe payout per claim. Nil disables the cap.
func (c *Config) MaxReward() *big.Int {
	if c != nil && c.MaxRewardPerClm != nil && c.MaxRewardPerClm.Sign() > 0 {
		return common.CloneBig(c.MaxRewardPerClm)
	}
	return nil
}

// Cooldown resolves the re-stake cooldown window.
func (c *Config) Cooldown() int64 {
	if c != nil && c.CooldownSeconds > 0 {
		return c.CooldownSeconds
	}
	return fallbackCooldownSeconds
}

// BatchLimits resolves the batch-claim item cap and scan budget.
func (c *Config) BatchLimits() (uint64, uint64) {
	maxItems := uint64(fallbackBatchMaxPositions)
	budget := uint64(fallbackBatchScanBudget)
	if c != nil && c.BatchMax > 0 {
		maxItems = c.BatchMax
	}
	if c != nil && c.BatchScanBudget > 0 {
		budget = c.BatchScanBudget
	}
	return maxItems, budget
}

// balanceShareDecay interpolates the decay curve across the 1/5/10/20% share
// breakpoints, growing from 0 toward the cap of 30.
func balanceShareDecay(shareBps uint64) uint64 {
	type point struct {
		bps   uint64
		decay uint64
	}
	curve := []point{{100, 0}, {500, 10}, {1000, 18}, {2000, 26}}
	if shareBps <= curve[0].bps {
		return 0
	}
	for i := 1; i < len(curve); i++ {
		if shareBps <= curve[i].bps {
			lo, hi := curve[i-1], curve[i]
			span := hi.bps - lo.bps
			return lo.decay + (hi.decay-lo.decay)*(shareBps-lo.bps)/span
		}
	}
	return fallbackBalanceDecayCap
}

// BalanceMultiplier derives the stake-balance adjustment (100 meaning 1x)
// from the account's share of all staked positions and its time in the
// program.
func (c *Config) BalanceMultiplier(accountPositions, totalPositions uint64, memberSeconds int64) uint64 {
	curve := BalanceCurve{
		DecayRatePct:    fallbackBalanceDecayRatePct,
		MinMultiplier:   fallbackBalanceMinMultiplier,
		TimeBonusMax:    fallbackTimeBonusMax,
		TimeBonusRampSc: fallbackTimeBonusRampSeconds,
	}
	if c != nil {
		if c.Balance.DecayRatePct > 0 {
			curve.DecayRatePct = c.Balance.DecayRatePct
		}
		if c.Balance.MinMultiplier > 0 {
			curve.MinMultiplier = c.Balance.MinMultiplier
		}
		if c.Balance.TimeBonusMax > 0 {
			curve.TimeBonusMax = c.Balance.TimeBonusMax
		}
		if c.Balance.TimeBonusRampSc > 0 {
			curve.TimeBonusRampSc = c.Balance.TimeBonusRampSc
		}
	}
	multiplier := uint64(100)
	if totalPositions > 0 && accountPositions > 0 {
		shareBps := accountPositions * 10_000 / totalPositions
		decay := balanceShareDecay(shareBps) * curve.DecayRatePct / 100
		if decay > 100 {
			decay = 100
		}
		multiplier = 100 - decay
	}
	if multiplier < curve.MinMultiplier {
		multiplier = curve.MinMultiplier
	}
	if memberSeconds > 0 && curve.TimeBonusRampSc > 0 {
		bonus := curve.TimeBonusMax * uint64(memberSeconds) / uint64(curve.TimeBonusRampSc)
		if bonus > curve.TimeBonusMax {
			bonus = curve.TimeBonusMax
		}
		multiplier += bonus
	}
	if multiplier < curve.MinMultiplier {
		multiplier = curve.MinMultiplier
	}
	return multiplier
}
