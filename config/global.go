package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"hivestake/native/fees"
	"hivestake/native/infusion"
	"hivestake/native/stake"
)

// parseUintAmount parses a decimal wei string. Empty strings disable the
// value and report nil.
func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("not a non-negative decimal amount: %q", raw)
	}
	return amount, nil
}

// parseAddress parses a 20-byte hex address with an optional 0x prefix. An
// empty string reports the zero address.
func parseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if trimmed == "" {
		return addr, nil
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 20 {
		return addr, fmt.Errorf("not a 20-byte hex address: %q", raw)
	}
	copy(addr[:], decoded)
	return addr, nil
}

// StakeConfig maps the staking section onto the engine configuration.
// Unset amounts leave the engine fallbacks in force.
func (c *Config) StakeConfig() (*stake.Config, error) {
	maxReward, err := parseUintAmount(c.Staking.MaxRewardWei)
	if err != nil {
		return nil, fmt.Errorf("invalid staking.MaxRewardWei: %w", err)
	}
	cfg := &stake.Config{
		Enabled:          c.Staking.Enabled,
		FormulaVersion:   c.Staking.FormulaVersion,
		SeasonMultiplier: c.Staking.SeasonMultiplier,
		LevelBonusTenths: c.Staking.LevelBonusTenths,
		VariantBonusStep: c.Staking.VariantBonusStep,
		ColonyBonusCap:   c.Staking.ColonyBonusCap,
		AccessoryCap:     c.Staking.AccessoryBonusCap,
		ContextBonusCap:  c.Staking.ContextBonusCap,
		CooldownSeconds:  c.Staking.CooldownSeconds,
		BatchMax:         c.Staking.BatchMax,
		BatchScanBudget:  c.Staking.BatchScanBudget,
		MaxRewardPeriod:  c.Staking.MaxRewardPeriodSecs,
		MaxRewardPerClm:  maxReward,
		Balance: stake.BalanceCurve{
			DecayRatePct:    c.Staking.Balance.DecayRatePct,
			MinMultiplier:   c.Staking.Balance.MinMultiplier,
			TimeBonusMax:    c.Staking.Balance.TimeBonusMax,
			TimeBonusRampSc: c.Staking.Balance.TimeBonusRampSecs,
		},
	}
	if len(c.Staking.DailyRates) > 0 {
		cfg.DailyRates = make(map[uint8]*big.Int, len(c.Staking.DailyRates))
		for _, rate := range c.Staking.DailyRates {
			amount, err := parseUintAmount(rate.PerDayWei)
			if err != nil || amount == nil {
				return nil, fmt.Errorf("invalid staking.rate variant %d PerDayWei: %q", rate.Variant, rate.PerDayWei)
			}
			cfg.DailyRates[rate.Variant] = amount
		}
	}
	for _, tier := range c.Staking.ChargeTiers {
		cfg.ChargeTiers = append(cfg.ChargeTiers, stake.ChargeTier{Threshold: tier.Threshold, Bonus: tier.Bonus})
	}
	if len(c.Staking.InfusionBonus) > 0 {
		cfg.InfusionBonuses = make(map[uint8]uint64, len(c.Staking.InfusionBonus))
		for _, bonus := range c.Staking.InfusionBonus {
			cfg.InfusionBonuses[bonus.Level] = bonus.Bonus
		}
	}
	if len(c.Staking.Specialization) > 0 {
		cfg.SpecBonuses = make(map[uint8]uint64, len(c.Staking.Specialization))
		for _, bonus := range c.Staking.Specialization {
			cfg.SpecBonuses[bonus.Specialization] = bonus.Bonus
		}
	}
	for _, tier := range c.Staking.LoyaltyTiers {
		cfg.LoyaltyTiers = append(cfg.LoyaltyTiers, stake.LoyaltyTier{MinSeconds: tier.MinStakedSecs, Bonus: tier.Bonus})
	}
	for _, tier := range c.Staking.WearPenalties {
		cfg.WearPenalties = append(cfg.WearPenalties, stake.WearTier{Threshold: tier.Threshold, PenaltyPct: tier.PenaltyPct})
	}
	if len(c.Staking.ValidCollections) > 0 {
		cfg.ValidCollections = make(map[uint32]bool, len(c.Staking.ValidCollections))
		for _, collection := range c.Staking.ValidCollections {
			cfg.ValidCollections[collection] = true
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("staking: %w", err)
	}
	return cfg, nil
}

// InfusionConfig maps the infusion section onto the engine configuration.
func (c *Config) InfusionConfig() (*infusion.Config, error) {
	minimum, err := parseUintAmount(c.Infusion.MinimumDepositWei)
	if err != nil {
		return nil, fmt.Errorf("invalid infusion.MinimumDepositWei: %w", err)
	}
	maxHarvest, err := parseUintAmount(c.Infusion.MaxHarvestWei)
	if err != nil {
		return nil, fmt.Errorf("invalid infusion.MaxHarvestWei: %w", err)
	}
	cfg := &infusion.Config{
		Enabled:        c.Infusion.Enabled,
		MinimumDeposit: minimum,
		MaxHarvest:     maxHarvest,
		BaseAPR:        c.Infusion.BaseAPR,
		VariantAPRStep: c.Infusion.VariantAPRStep,
		TierAPRStep:    c.Infusion.TierAPRStep,
		APRCeiling:     c.Infusion.APRCeiling,
		BalanceCurve:   c.Infusion.BalanceCurve,
	}
	if len(c.Infusion.VariantCaps) > 0 {
		cfg.VariantCaps = make(map[uint8]*big.Int, len(c.Infusion.VariantCaps))
		for _, cap := range c.Infusion.VariantCaps {
			amount, err := parseUintAmount(cap.CapWei)
			if err != nil || amount == nil {
				return nil, fmt.Errorf("invalid infusion.cap variant %d CapWei: %q", cap.Variant, cap.CapWei)
			}
			cfg.VariantCaps[cap.Variant] = amount
		}
	}
	for _, tier := range c.Infusion.TierThresholds {
		cfg.TierThresholds = append(cfg.TierThresholds, infusion.TierThreshold{SharePct: tier.SharePct, Level: tier.Level})
	}
	for i, raw := range c.Infusion.HarvestFeeTiersWei {
		amount, err := parseUintAmount(raw)
		if err != nil || amount == nil {
			return nil, fmt.Errorf("invalid infusion.HarvestFeeTiersWei[%d]: %q", i, raw)
		}
		cfg.HarvestFeeTiers = append(cfg.HarvestFeeTiers, amount)
	}
	if len(c.Infusion.HarvestFeeBps) > 0 {
		cfg.HarvestFeeBps = append([]uint64(nil), c.Infusion.HarvestFeeBps...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("infusion: %w", err)
	}
	return cfg, nil
}

// FeeOperator parses the configured fee collector operator address.
func (c *Config) FeeOperator() ([20]byte, error) {
	operator, err := parseAddress(c.Fees.Operator)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid fees.Operator: %w", err)
	}
	return operator, nil
}

// FeeConfigs parses the per-operation flat fee table.
func (c *Config) FeeConfigs() (map[string]fees.Config, error) {
	configs := make(map[string]fees.Config, len(c.Fees.Flat))
	for _, flat := range c.Fees.Flat {
		op := strings.TrimSpace(flat.Op)
		if op == "" {
			return nil, fmt.Errorf("fees.flat entry missing Op")
		}
		amount, err := parseUintAmount(flat.AmountWei)
		if err != nil {
			return nil, fmt.Errorf("invalid fees.flat %s AmountWei: %w", op, err)
		}
		beneficiary, err := parseAddress(flat.Beneficiary)
		if err != nil {
			return nil, fmt.Errorf("invalid fees.flat %s Beneficiary: %w", op, err)
		}
		configs[op] = fees.Config{
			Amount:        amount,
			Beneficiary:   beneficiary,
			BurnOnCollect: flat.Burn,
		}
	}
	return configs, nil
}

// IssuanceLimits parses the shared daily cap and treasury address.
func (c *Config) IssuanceLimits() (*big.Int, [20]byte, error) {
	cap, err := parseUintAmount(c.Issuance.DailyCapWei)
	if err != nil {
		return nil, [20]byte{}, fmt.Errorf("invalid issuance.DailyCapWei: %w", err)
	}
	treasury, err := parseAddress(c.Issuance.Treasury)
	if err != nil {
		return nil, [20]byte{}, fmt.Errorf("invalid issuance.Treasury: %w", err)
	}
	return cap, treasury, nil
}
