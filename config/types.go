package config

// Staking holds the position ledger and reward formula knobs. The tiered
// tables override the engine fallbacks wholesale; an absent table keeps the
// built-in one.
type Staking struct {
	Enabled             bool     `toml:"Enabled"`
	FormulaVersion      uint32   `toml:"FormulaVersion"`
	SeasonMultiplier    uint64   `toml:"SeasonMultiplier"`
	LevelBonusTenths    uint64   `toml:"LevelBonusTenths"`
	VariantBonusStep    uint64   `toml:"VariantBonusStep"`
	ColonyBonusCap      uint64   `toml:"ColonyBonusCap"`
	AccessoryBonusCap   uint64   `toml:"AccessoryBonusCap"`
	ContextBonusCap     uint64   `toml:"ContextBonusCap"`
	CooldownSeconds     int64    `toml:"CooldownSeconds"`
	BatchMax            uint64   `toml:"BatchMax"`
	BatchScanBudget     uint64   `toml:"BatchScanBudget"`
	ValidCollections    []uint32 `toml:"ValidCollections"`
	MaxRewardWei        string   `toml:"MaxRewardWei"`
	MaxRewardPeriodSecs int64    `toml:"MaxRewardPeriodSecs"`

	DailyRates     []VariantRate `toml:"rate"`
	ChargeTiers    []BonusTier   `toml:"charge"`
	InfusionBonus  []LevelBonus  `toml:"infusionBonus"`
	Specialization []SpecBonus   `toml:"specialization"`
	LoyaltyTiers   []LoyaltyTier `toml:"loyalty"`
	WearPenalties  []WearPenalty `toml:"wear"`
	Balance        BalanceKnobs  `toml:"balance"`
}

// VariantRate overrides the per-day accrual rate for one variant. The amount
// is a decimal wei string.
type VariantRate struct {
	Variant   uint8  `toml:"Variant"`
	PerDayWei string `toml:"PerDayWei"`
}

// BonusTier grants a multiplier bonus once an attribute reaches the
// threshold. Entries must be listed with strictly ascending thresholds.
type BonusTier struct {
	Threshold uint8  `toml:"Threshold"`
	Bonus     uint64 `toml:"Bonus"`
}

// LevelBonus overrides the multiplier bonus for one infusion tier.
type LevelBonus struct {
	Level uint8  `toml:"Level"`
	Bonus uint64 `toml:"Bonus"`
}

// SpecBonus overrides the multiplier bonus for one specialization.
type SpecBonus struct {
	Specialization uint8  `toml:"Specialization"`
	Bonus          uint64 `toml:"Bonus"`
}

// LoyaltyTier grants a context bonus once a position has been staked for the
// minimum duration. Entries must be listed with strictly ascending durations.
type LoyaltyTier struct {
	MinStakedSecs int64  `toml:"MinStakedSecs"`
	Bonus         uint64 `toml:"Bonus"`
}

// WearPenalty selects a percentage reduction once wear reaches the threshold.
// Entries must be listed with strictly ascending thresholds.
type WearPenalty struct {
	Threshold  uint8  `toml:"Threshold"`
	PenaltyPct uint64 `toml:"PenaltyPct"`
}

// BalanceKnobs parameterises the stake-balance adjustment. Zero values keep
// the engine defaults.
type BalanceKnobs struct {
	DecayRatePct      uint64 `toml:"DecayRatePct"`
	MinMultiplier     uint64 `toml:"MinMultiplier"`
	TimeBonusMax      uint64 `toml:"TimeBonusMax"`
	TimeBonusRampSecs int64  `toml:"TimeBonusRampSecs"`
}

// Infusion holds the deposit ledger knobs. Amounts are decimal wei strings;
// empty strings fall back to the engine defaults. HarvestFeeBps must carry
// one more entry than HarvestFeeTiersWei: the last rate covers everything
// above the final threshold.
type Infusion struct {
	Enabled            bool     `toml:"Enabled"`
	MinimumDepositWei  string   `toml:"MinimumDepositWei"`
	MaxHarvestWei      string   `toml:"MaxHarvestWei"`
	BaseAPR            uint64   `toml:"BaseAPR"`
	VariantAPRStep     uint64   `toml:"VariantAPRStep"`
	TierAPRStep        uint64   `toml:"TierAPRStep"`
	APRCeiling         uint64   `toml:"APRCeiling"`
	BalanceCurve       bool     `toml:"BalanceCurve"`
	HarvestFeeTiersWei []string `toml:"HarvestFeeTiersWei"`
	HarvestFeeBps      []uint64 `toml:"HarvestFeeBps"`

	VariantCaps    []VariantCap   `toml:"cap"`
	TierThresholds []InfusionTier `toml:"tier"`
}

// VariantCap overrides the deposit ceiling for one variant. The amount is a
// decimal wei string.
type VariantCap struct {
	Variant uint8  `toml:"Variant"`
	CapWei  string `toml:"CapWei"`
}

// InfusionTier maps a cap-share percentage onto an infusion tier. Entries
// must be listed with strictly descending share percentages.
type InfusionTier struct {
	SharePct uint64 `toml:"SharePct"`
	Level    uint8  `toml:"Level"`
}

// FlatFee configures the flat fee charged for one operation.
type FlatFee struct {
	Op          string `toml:"Op"`
	AmountWei   string `toml:"AmountWei"`
	Beneficiary string `toml:"Beneficiary"`
	Burn        bool   `toml:"Burn"`
}

// Fees groups the collector operator and the per-operation flat fees.
type Fees struct {
	Operator string    `toml:"Operator"`
	Flat     []FlatFee `toml:"flat"`
}

// Issuance configures the shared daily quota and the treasury settlement
// source.
type Issuance struct {
	DailyCapWei string `toml:"DailyCapWei"`
	Treasury    string `toml:"Treasury"`
}

// Colony configures registry reconciliation behaviour.
type Colony struct {
	RepairBudget  uint64 `toml:"RepairBudget"`
	ForceOverride bool   `toml:"ForceOverride"`
}

// Pauses seeds the persisted per-module pause toggles at startup.
type Pauses struct {
	Staking  bool `toml:"Staking"`
	Infusion bool `toml:"Infusion"`
	Colony   bool `toml:"Colony"`
}
