package fees

import (
	"math/big"

	"hivestake/native/common"
)

// TieredInput captures the context required to evaluate a percentage fee with
// tiered rates and a flat floor.
type TieredInput struct {
	Amount *big.Int
	// Thresholds is an ascending list of gross-amount boundaries. The first
	// threshold the amount does not exceed selects the tier; amounts beyond
	// every threshold fall into the last tier.
	Thresholds []*big.Int
	// Bps holds one basis-point rate per tier and must be one longer than
	// Thresholds.
	Bps []uint64
	// BaseFee is a flat minimum; the percentage fee is raised to it when
	// smaller.
	BaseFee *big.Int
}

// TieredFee selects a tier by ascending threshold scan and computes the fee,
// clamped so the payer always retains at least 1% of the gross amount.
func TieredFee(input TieredInput) *big.Int {
	amount := common.CloneBig(input.Amount)
	if amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	tier := len(input.Thresholds)
	for i, threshold := range input.Thresholds {
		if threshold == nil {
			continue
		}
		if amount.Cmp(threshold) <= 0 {
			tier = i
			break
		}
	}
	fee := big.NewInt(0)
	if tier < len(input.Bps) {
		fee = common.MulBps(amount, input.Bps[tier])
	}
	if input.BaseFee != nil && fee.Cmp(input.BaseFee) < 0 {
		fee = common.CloneBig(input.BaseFee)
	}
	return clampRetainer(amount, fee)
}

// clampRetainer caps the fee so at least 1% of the gross amount stays with
// the payer.
func clampRetainer(gross, fee *big.Int) *big.Int {
	maxFee := common.MulPct(gross, 99)
	if fee.Cmp(maxFee) > 0 {
		return maxFee
	}
	return common.CloneBig(fee)
}

// MaxFee returns the larger of a flat fee and a tiered percentage fee, still
// honouring the 1% retainer clamp. Harvest-style operations charge
// max(flat, tiered) rather than their sum.
func MaxFee(gross, flat *big.Int, tiered TieredInput) *big.Int {
	pct := TieredFee(tiered)
	flatFee := common.CloneBig(flat)
	if flatFee.Cmp(pct) > 0 {
		return clampRetainer(common.CloneBig(gross), flatFee)
	}
	return pct
}
