package stake

import (
	"math/big"

	"hivestake/native/common"
)

// RewardContext carries the external bonus signals and account-level inputs
// the formula needs beyond the position itself.
type RewardContext struct {
	Now              int64
	ColonyBonus      uint64
	AccessoryBonus   uint64
	AccountPositions uint64
	TotalPositions   uint64
	// AccountJoinedAt anchors the time-in-program bonus; zero disables it.
	AccountJoinedAt int64
}

// Breakdown decomposes one reward computation term by term. It backs the
// read-only reward-breakdown query and keeps the formula auditable.
type Breakdown struct {
	ElapsedSeconds int64    `json:"elapsedSeconds"`
	DailyRate      *big.Int `json:"dailyRate"`
	BaseReward     *big.Int `json:"baseReward"`

	LevelBonus      uint64 `json:"levelBonus"`
	VariantBonus    uint64 `json:"variantBonus"`
	ChargeBonus     uint64 `json:"chargeBonus"`
	InfusionBonus   uint64 `json:"infusionBonus"`
	SpecBonus       uint64 `json:"specializationBonus"`
	TokenMultiplier uint64 `json:"tokenMultiplier"`

	ColonyBonus    uint64 `json:"colonyBonus"`
	LoyaltyBonus   uint64 `json:"loyaltyBonus"`
	AccessoryBonus uint64 `json:"accessoryBonus"`
	ContextBonus   uint64 `json:"contextBonus"`

	SeasonMultiplier  uint64 `json:"seasonMultiplier"`
	Multiplicative    bool   `json:"multiplicative"`
	BalanceMultiplier uint64 `json:"balanceMultiplier"`
	WearPenaltyPct    uint64 `json:"wearPenaltyPct"`

	Amount *big.Int `json:"amount"`
}

func zeroBreakdown() *Breakdown {
	return &Breakdown{
		DailyRate:  big.NewInt(0),
		BaseReward: big.NewInt(0),
		Amount:     big.NewInt(0),
	}
}

// CalculateReward evaluates the full multi-factor formula for a position.
// The computation is pure: it reads only the position, the context and the
// configuration, making it reproducible for any historical input.
func (c *Config) CalculateReward(p *Position, ctx RewardContext) *Breakdown {
	if p == nil || !p.Active() {
		return zeroBreakdown()
	}
	elapsed := ctx.Now - p.LastClaimAt
	if elapsed <= 0 {
		return zeroBreakdown()
	}
	if period := c.RewardPeriod(); elapsed > period {
		elapsed = period
	}

	b := zeroBreakdown()
	b.ElapsedSeconds = elapsed

	// Step 2: linear accrual of the variant's daily rate.
	b.DailyRate = c.DailyRate(p.Variant)
	base := new(big.Int).Mul(b.DailyRate, big.NewInt(elapsed))
	base.Quo(base, big.NewInt(SecondsPerDay))
	b.BaseReward = common.CloneBig(base)

	// Step 3: per-position multiplier terms.
	b.LevelBonus = c.LevelBonus(p.Level)
	b.VariantBonus = c.VariantBonus(p.Variant)
	b.ChargeBonus = c.ChargeBonus(p.ChargeLevel)
	b.InfusionBonus = c.InfusionBonus(p.InfusionLevel)
	b.SpecBonus = c.SpecializationBonus(p.Specialization)
	b.TokenMultiplier = 100 + b.LevelBonus + b.VariantBonus + b.ChargeBonus + b.InfusionBonus + b.SpecBonus

	// Step 4: context bonus with per-source and combined caps.
	b.ColonyBonus = ctx.ColonyBonus
	if cap := c.ColonyCap(); b.ColonyBonus > cap {
		b.ColonyBonus = cap
	}
	b.LoyaltyBonus = c.LoyaltyBonus(ctx.Now - p.StakedAt)
	b.AccessoryBonus = ctx.AccessoryBonus
	if cap := c.AccessoryBonusCap(); b.AccessoryBonus > cap {
		b.AccessoryBonus = cap
	}
	b.ContextBonus = b.ColonyBonus + b.LoyaltyBonus + b.AccessoryBonus
	if cap := c.ContextCap(); b.ContextBonus > cap {
		b.ContextBonus = cap
	}

	// Step 5: combine per the versioned mode.
	b.SeasonMultiplier = c.Season()
	b.Multiplicative = c.Multiplicative()
	reward := common.MulPct(base, b.TokenMultiplier)
	if b.Multiplicative {
		reward = common.MulPct(reward, b.SeasonMultiplier)
		reward = common.MulPct(reward, 100+b.ContextBonus)
	} else {
		reward = new(big.Int).Mul(reward, new(big.Int).SetUint64(100+b.ContextBonus))
		reward.Mul(reward, new(big.Int).SetUint64(b.SeasonMultiplier))
		reward.Quo(reward, big.NewInt(10_000))
	}

	// Step 6: stake-balance adjustment.
	memberSeconds := int64(0)
	if ctx.AccountJoinedAt > 0 && ctx.Now > ctx.AccountJoinedAt {
		memberSeconds = ctx.Now - ctx.AccountJoinedAt
	}
	b.BalanceMultiplier = c.BalanceMultiplier(ctx.AccountPositions, ctx.TotalPositions, memberSeconds)
	reward = common.MulPct(reward, b.BalanceMultiplier)

	// Step 7: wear penalty.
	b.WearPenaltyPct = c.WearPenaltyPct(p.WearLevel)
	if b.WearPenaltyPct > 0 {
		reward = common.MulPct(reward, 100-b.WearPenaltyPct)
	}

	// Step 8: maximum-safe cap.
	if max := c.MaxReward(); max != nil {
		reward = common.CapBig(reward, max)
	}
	if reward.Sign() < 0 {
		reward = big.NewInt(0)
	}
	b.Amount = reward
	return b
}
