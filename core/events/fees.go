package events

import (
	"math/big"

	"hivestake/core/types"
)

const (
	// TypeFeeApplied captures a fee transfer or burn.
	TypeFeeApplied = "fees.applied"
)

// FeeApplied captures a resolved fee charged against a payer.
type FeeApplied struct {
	Operation   string
	Payer       [20]byte
	Beneficiary [20]byte
	Amount      *big.Int
	Burned      bool
}

// EventType satisfies the Event interface.
func (FeeApplied) EventType() string { return TypeFeeApplied }

// Event converts the payload into a broadcastable event.
func (e FeeApplied) Event() *types.Event {
	attrs := map[string]string{
		"operation": e.Operation,
		"payer":     formatAddress(e.Payer),
		"amount":    formatAmount(e.Amount),
	}
	if e.Burned {
		attrs["burned"] = "true"
	} else if !zeroAddress(e.Beneficiary) {
		attrs["beneficiary"] = formatAddress(e.Beneficiary)
	}
	return &types.Event{Type: TypeFeeApplied, Attributes: attrs}
}
