package common

import (
	"errors"
	"math/big"
)

var ErrQuotaExceeded = errors.New("daily quota exceeded")

// QuotaNow captures the cumulative issuance for an account within one UTC
// day bucket.
type QuotaNow struct {
	Day  string
	Used *big.Int
}

// Clone returns a defensive copy of the usage counters.
func (q QuotaNow) Clone() QuotaNow {
	return QuotaNow{Day: q.Day, Used: CloneBig(q.Used)}
}

// CheckQuota verifies whether the additional issuance fits within the daily
// cap. A day rollover resets the counters. The returned QuotaNow reflects the
// updated usage when the quota is not exceeded; on failure the previous
// counters are returned untouched.
func CheckQuota(cap *big.Int, day string, prev QuotaNow, add *big.Int) (QuotaNow, error) {
	next := prev.Clone()
	if prev.Day != day {
		next = QuotaNow{Day: day, Used: big.NewInt(0)}
	}
	if next.Used == nil {
		next.Used = big.NewInt(0)
	}
	amount := CloneBig(add)
	if amount.Sign() <= 0 {
		return next, nil
	}
	next.Used = new(big.Int).Add(next.Used, amount)
	if cap != nil && cap.Sign() > 0 && next.Used.Cmp(cap) > 0 {
		return prev.Clone(), ErrQuotaExceeded
	}
	return next, nil
}

// QuotaRemaining reports the issuance still available for the day. A nil or
// non-positive cap disables the quota, reported as nil.
func QuotaRemaining(cap *big.Int, day string, now QuotaNow) *big.Int {
	if cap == nil || cap.Sign() <= 0 {
		return nil
	}
	used := big.NewInt(0)
	if now.Day == day && now.Used != nil {
		used = now.Used
	}
	return SaturatingSub(cap, used)
}
