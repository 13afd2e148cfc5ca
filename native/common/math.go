package common

import "math/big"

// CloneBig returns a defensive copy of v, treating nil as zero.
func CloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// SaturatingSub returns a-b floored at zero. Reward arithmetic never raises
// on underflow.
func SaturatingSub(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(CloneBig(a), CloneBig(b))
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}

// MinBig returns the smaller of a and b as a fresh value.
func MinBig(a, b *big.Int) *big.Int {
	if CloneBig(a).Cmp(CloneBig(b)) <= 0 {
		return CloneBig(a)
	}
	return CloneBig(b)
}

// CapBig clamps v to max when max is positive; a non-positive max disables
// the cap.
func CapBig(v, max *big.Int) *big.Int {
	value := CloneBig(v)
	if max == nil || max.Sign() <= 0 {
		return value
	}
	if value.Cmp(max) > 0 {
		return new(big.Int).Set(max)
	}
	return value
}

// MulPct scales v by pct where 100 means 100%.
func MulPct(v *big.Int, pct uint64) *big.Int {
	out := new(big.Int).Mul(CloneBig(v), new(big.Int).SetUint64(pct))
	return out.Quo(out, big.NewInt(100))
}

// MulBps scales v by bps where 10_000 means 100%.
func MulBps(v *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(CloneBig(v), new(big.Int).SetUint64(bps))
	return out.Quo(out, big.NewInt(10_000))
}
