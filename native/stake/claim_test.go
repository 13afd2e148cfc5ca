package stake

import (
	"errors"
	"math/big"
	"testing"

	"hivestake/core/types"
	"hivestake/native/common"
)

// stakeMany opens n positions for the fixture owner and returns their keys.
func stakeMany(t *testing.T, f *stakeFixture, n int) []types.TokenKey {
	t.Helper()
	keys := make([]types.TokenKey, 0, n)
	for i := 0; i < n; i++ {
		key := types.NewTokenKey(1, uint32(100+i))
		f.custodian.owners[key] = f.owner
		if _, err := f.engine.Stake(key, f.owner); err != nil {
			t.Fatalf("stake %d: %v", i, err)
		}
		keys = append(keys, key)
	}
	return keys
}

func TestClaimPaysAndUpdatesTotals(t *testing.T) {
	f := newStakeFixture(t)
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.now += SecondsPerDay

	amount, err := f.engine.Claim(f.key, f.owner)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if amount.Sign() <= 0 {
		t.Fatalf("expected positive claim, got %s", amount)
	}
	if f.issuer.paid[f.owner].Cmp(amount) != 0 {
		t.Fatalf("expected payout %s, got %s", amount, f.issuer.paid[f.owner])
	}
	position := f.state.positions[f.key]
	if position.LastClaimAt != f.now {
		t.Fatalf("expected last claim timestamp advanced")
	}
	if position.TotalClaimed.Cmp(amount) != 0 {
		t.Fatalf("expected position totals updated")
	}
	if f.state.accounts[f.owner].TotalClaimed.Cmp(amount) != 0 {
		t.Fatalf("expected account totals updated")
	}
	found := false
	for _, op := range f.feeTaker.charged {
		if op == "claim" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected claim fee charged")
	}

	// An immediate second claim accrues nothing.
	again, err := f.engine.Claim(f.key, f.owner)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again.Sign() != 0 {
		t.Fatalf("expected zero follow-up claim, got %s", again)
	}
}

func TestClaimFailsStrictlyOverQuota(t *testing.T) {
	f := newStakeFixture(t)
	f.issuer.cap = mustUnits(1)
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.now += SecondsPerDay

	if _, err := f.engine.Claim(f.key, f.owner); !errors.Is(err, common.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	// A failed claim leaves the position untouched.
	if f.state.positions[f.key].TotalClaimed.Sign() != 0 {
		t.Fatalf("expected no totals after failed claim")
	}
	if f.state.positions[f.key].LastClaimAt == f.now {
		t.Fatalf("expected last claim timestamp untouched")
	}
}

func TestClaimRollsBackOnPayoutFailure(t *testing.T) {
	f := newStakeFixture(t)
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.now += SecondsPerDay
	f.issuer.distributeErr = errors.New("mint pathway down")

	if _, err := f.engine.Claim(f.key, f.owner); err == nil {
		t.Fatalf("expected claim failure")
	}
	position := f.state.positions[f.key]
	if position.TotalClaimed.Sign() != 0 || position.LastClaimAt == f.now {
		t.Fatalf("expected position restored, got %+v", position)
	}
	if f.issuer.used.Sign() != 0 {
		t.Fatalf("expected quota refunded, got %s", f.issuer.used)
	}
}

func TestBatchClaimSweepsFromCursor(t *testing.T) {
	f := newStakeFixture(t)
	keys := stakeMany(t, f, 5)
	f.now += SecondsPerDay

	result, err := f.engine.BatchClaim(f.owner, 3)
	if err != nil {
		t.Fatalf("batch claim: %v", err)
	}
	if result.Claimed != 3 {
		t.Fatalf("expected 3 claims, got %d", result.Claimed)
	}
	if result.Cursor != 3 {
		t.Fatalf("expected cursor 3, got %d", result.Cursor)
	}
	if f.issuer.paid[f.owner].Cmp(result.Amount) != 0 {
		t.Fatalf("expected one settlement for the whole batch")
	}
	// The next sweep continues where the last stopped.
	result, err = f.engine.BatchClaim(f.owner, 3)
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if result.Claimed != 2 {
		t.Fatalf("expected the 2 remaining positions, got %d", result.Claimed)
	}
	for _, key := range keys {
		if f.state.positions[key].LastClaimAt != f.now {
			t.Fatalf("expected every position claimed once")
		}
	}
}

func TestBatchClaimEmptySweepStillAdvancesCursor(t *testing.T) {
	f := newStakeFixture(t)
	f.engine.SetConfig(&Config{Enabled: true, BatchScanBudget: 2})
	stakeMany(t, f, 5)
	// No time elapses: every position is zero-reward.

	cursors := make(map[uint64]bool)
	for i := 0; i < 5; i++ {
		result, err := f.engine.BatchClaim(f.owner, 0)
		if err != nil {
			t.Fatalf("batch claim %d: %v", i, err)
		}
		if result.Claimed != 0 || result.Amount.Sign() != 0 {
			t.Fatalf("expected empty sweep, got %+v", result)
		}
		cursors[result.Cursor] = true
		if f.state.accounts[f.owner].BatchCursor != result.Cursor {
			t.Fatalf("expected cursor persisted")
		}
	}
	// With a scan budget of 2 the cursor walks the list instead of
	// re-scanning the same prefix forever.
	if len(cursors) < 2 {
		t.Fatalf("expected the cursor to move across empty sweeps, got %v", cursors)
	}
}

func TestBatchClaimStopsBeforeQuota(t *testing.T) {
	f := newStakeFixture(t)
	stakeMany(t, f, 4)
	f.now += SecondsPerDay

	// Find the per-position reward, then allow only two of them.
	perPosition, err := f.engine.PendingReward(types.NewTokenKey(1, 100))
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	f.issuer.cap = new(big.Int).Mul(perPosition, big.NewInt(2))

	result, err := f.engine.BatchClaim(f.owner, 0)
	if err != nil {
		t.Fatalf("batch claim must not fail at the quota edge: %v", err)
	}
	if result.Claimed != 2 {
		t.Fatalf("expected 2 claims within quota, got %d", result.Claimed)
	}
	if f.issuer.used.Cmp(f.issuer.cap) != 0 {
		t.Fatalf("expected quota exactly consumed")
	}
	// The cursor parks on the first unclaimed position.
	if result.Cursor != 2 {
		t.Fatalf("expected cursor 2, got %d", result.Cursor)
	}
}

func TestBatchClaimRollsBackOnAccountFailure(t *testing.T) {
	f := newStakeFixture(t)
	keys := stakeMany(t, f, 3)
	f.now += SecondsPerDay
	f.state.putAccountErr = errors.New("account store offline")

	if _, err := f.engine.BatchClaim(f.owner, 0); err == nil {
		t.Fatalf("expected batch failure when the account write fails")
	}
	for _, key := range keys {
		position := f.state.positions[key]
		if position.TotalClaimed.Sign() != 0 || position.LastClaimAt == f.now {
			t.Fatalf("expected position %s restored, got %+v", key, position)
		}
	}
	if paid := f.issuer.paid[f.owner]; paid != nil && paid.Sign() != 0 {
		t.Fatalf("expected no payout after rollback, got %s", paid)
	}
	if f.issuer.used.Sign() != 0 {
		t.Fatalf("expected no quota booked, got %s", f.issuer.used)
	}
}

func TestQuotaStatusFor(t *testing.T) {
	f := newStakeFixture(t)
	status, err := f.engine.QuotaStatusFor(f.owner)
	if err != nil {
		t.Fatalf("quota status: %v", err)
	}
	if !status.Unlimited {
		t.Fatalf("expected unlimited with no cap, got %+v", status)
	}
	f.issuer.cap = mustUnits(20_000)
	status, err = f.engine.QuotaStatusFor(f.owner)
	if err != nil {
		t.Fatalf("quota status: %v", err)
	}
	if status.Unlimited || status.Remaining.Cmp(mustUnits(20_000)) != 0 {
		t.Fatalf("expected 20000 units remaining, got %+v", status)
	}
}
