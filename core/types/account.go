package types

import "math/big"

// Account aggregates the per-owner bookkeeping the staking engines maintain.
// Token balances live with the external fungible-token collaborator; only
// counters that feed the reward formula and batch continuation state are
// persisted here.
type Account struct {
	PositionCount uint64   `json:"positionCount"`
	TotalClaimed  *big.Int `json:"totalClaimed"`
	// JoinedAt records the first stake timestamp and anchors the
	// time-in-program bonus ramp. Zero until the first stake.
	JoinedAt int64 `json:"joinedAt,omitempty"`
	// BatchCursor is the rotation offset into the owner's position list used
	// by batch claims. Persisted so repeated empty scans keep advancing.
	BatchCursor uint64 `json:"batchCursor,omitempty"`
}

// Clone returns a deep copy of the account record.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{TotalClaimed: big.NewInt(0)}
	}
	clone := &Account{
		PositionCount: a.PositionCount,
		JoinedAt:      a.JoinedAt,
		BatchCursor:   a.BatchCursor,
		TotalClaimed:  big.NewInt(0),
	}
	if a.TotalClaimed != nil {
		clone.TotalClaimed = new(big.Int).Set(a.TotalClaimed)
	}
	return clone
}

// Normalize ensures pointer fields are non-nil and returns the receiver.
func (a *Account) Normalize() *Account {
	if a == nil {
		return nil
	}
	if a.TotalClaimed == nil {
		a.TotalClaimed = big.NewInt(0)
	}
	return a
}
