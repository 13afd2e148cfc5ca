package events

import (
	"math/big"

	"hivestake/core/types"
)

const (
	// TypeIssuanceDistributed captures a payout split across treasury and mint.
	TypeIssuanceDistributed = "issuance.distributed"
	// TypeIssuanceQuotaHit signals a payout truncated or rejected by the daily quota.
	TypeIssuanceQuotaHit = "issuance.quotaHit"
)

// IssuanceDistributed captures the treasury/mint split for a payout.
type IssuanceDistributed struct {
	Account      [20]byte
	FromTreasury *big.Int
	Minted       *big.Int
}

// EventType satisfies the Event interface.
func (IssuanceDistributed) EventType() string { return TypeIssuanceDistributed }

// Event converts the payload into a broadcastable event.
func (e IssuanceDistributed) Event() *types.Event {
	return &types.Event{Type: TypeIssuanceDistributed, Attributes: map[string]string{
		"account":      formatAddress(e.Account),
		"fromTreasury": formatAmount(e.FromTreasury),
		"minted":       formatAmount(e.Minted),
	}}
}

// IssuanceQuotaHit captures a payout constrained by the shared daily quota.
type IssuanceQuotaHit struct {
	Account   [20]byte
	Day       string
	Requested *big.Int
	Remaining *big.Int
	Truncated bool
}

// EventType satisfies the Event interface.
func (IssuanceQuotaHit) EventType() string { return TypeIssuanceQuotaHit }

// Event converts the payload into a broadcastable event.
func (e IssuanceQuotaHit) Event() *types.Event {
	attrs := map[string]string{
		"account":   formatAddress(e.Account),
		"day":       e.Day,
		"requested": formatAmount(e.Requested),
		"remaining": formatAmount(e.Remaining),
	}
	if e.Truncated {
		attrs["truncated"] = "true"
	}
	return &types.Event{Type: TypeIssuanceQuotaHit, Attributes: attrs}
}
