package infusion

import (
	"math/big"

	"hivestake/core/types"
	"hivestake/native/common"
)

// InfusionPosition tracks the secondary deposit attached to one staked asset.
// Created on the first deposit, cleared again on full withdrawal.
type InfusionPosition struct {
	Key    types.TokenKey `json:"key"`
	Amount *big.Int       `json:"amount"`
	// Owner and Variant are captured at deposit time so the principal stays
	// withdrawable after the underlying position unstakes.
	Owner         [20]byte `json:"owner"`
	Variant       uint8    `json:"variant"`
	InfusedAt     int64    `json:"infusedAt"`
	LastHarvestAt int64    `json:"lastHarvestAt"`
	Infused       bool     `json:"infused"`
}

// Clone returns a deep copy of the infusion position.
func (p *InfusionPosition) Clone() *InfusionPosition {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Amount = common.CloneBig(p.Amount)
	return &clone
}

// Normalize ensures pointer fields are non-nil and returns the receiver.
func (p *InfusionPosition) Normalize() *InfusionPosition {
	if p == nil {
		return nil
	}
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	return p
}

// Stats is the read-only infusion projection served by queries.
type Stats struct {
	Key           types.TokenKey `json:"key"`
	Amount        *big.Int       `json:"amount"`
	Cap           *big.Int       `json:"cap"`
	Level         uint8          `json:"level"`
	APR           uint64         `json:"apr"`
	Pending       *big.Int       `json:"pending"`
	LastHarvestAt int64          `json:"lastHarvestAt"`
}
