package stake

import (
	"math/big"

	"hivestake/core/types"
	"hivestake/native/common"
)

// Position is the authoritative record of one staked asset.
type Position struct {
	Key            types.TokenKey `json:"key"`
	Owner          [20]byte       `json:"owner"`
	CustodySource  [20]byte       `json:"custodySource"`
	StakedAt       int64          `json:"stakedAt"`
	LastClaimAt    int64          `json:"lastClaimAt"`
	LastSyncAt     int64          `json:"lastSyncAt"`
	Variant        uint8          `json:"variant"`
	Level          uint8          `json:"level"`
	Experience     uint64         `json:"experience"`
	ChargeLevel    uint8          `json:"chargeLevel"`
	InfusionLevel  uint8          `json:"infusionLevel"`
	Specialization uint8          `json:"specialization"`
	WearLevel      uint8          `json:"wearLevel"`
	WearPenalty    uint64         `json:"wearPenalty"`
	ColonyID       uint64         `json:"colonyId,omitempty"`
	TotalClaimed   *big.Int       `json:"totalClaimed"`
	Staked         bool           `json:"staked"`
	// ReceiptID is non-zero while a transferable receipt wraps this position.
	ReceiptID [32]byte `json:"receiptId,omitempty"`
}

// Active reports whether the position is currently staked with a known owner.
func (p *Position) Active() bool {
	return p != nil && p.Staked && p.Owner != [20]byte{}
}

// Wrapped reports whether a receipt token currently represents this position.
func (p *Position) Wrapped() bool {
	return p != nil && p.ReceiptID != [32]byte{}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalClaimed = common.CloneBig(p.TotalClaimed)
	return &clone
}

// Normalize ensures pointer fields are non-nil and returns the receiver.
func (p *Position) Normalize() *Position {
	if p == nil {
		return nil
	}
	if p.TotalClaimed == nil {
		p.TotalClaimed = big.NewInt(0)
	}
	return p
}

// BatchResult summarises one batch-claim sweep.
type BatchResult struct {
	Claimed uint64   `json:"claimed"`
	Scanned uint64   `json:"scanned"`
	Amount  *big.Int `json:"amount"`
	Cursor  uint64   `json:"cursor"`
}

// QuotaStatus reports the shared daily issuance quota for an account.
type QuotaStatus struct {
	Day       string   `json:"day"`
	Remaining *big.Int `json:"remaining,omitempty"`
	Unlimited bool     `json:"unlimited,omitempty"`
}
