package events

import (
	"math/big"
	"strconv"

	"hivestake/core/types"
)

const (
	// TypeInfused captures a deposit into the infusion sub-ledger.
	TypeInfused = "infusion.infused"
	// TypeInfusionHarvested captures an infusion reward payout.
	TypeInfusionHarvested = "infusion.harvested"
	// TypeInfusionReinvested captures a harvest compounded back into the deposit.
	TypeInfusionReinvested = "infusion.reinvested"
	// TypeInfusionWithdrawn captures a partial or full withdrawal.
	TypeInfusionWithdrawn = "infusion.withdrawn"
)

// Infused captures a deposit and the resulting tier.
type Infused struct {
	Key    types.TokenKey
	Owner  [20]byte
	Amount *big.Int
	Total  *big.Int
	Level  uint8
}

// EventType satisfies the Event interface.
func (Infused) EventType() string { return TypeInfused }

// Event converts the payload into a broadcastable event.
func (e Infused) Event() *types.Event {
	return &types.Event{Type: TypeInfused, Attributes: map[string]string{
		"key":    e.Key.String(),
		"owner":  formatAddress(e.Owner),
		"amount": formatAmount(e.Amount),
		"total":  formatAmount(e.Total),
		"level":  strconv.FormatUint(uint64(e.Level), 10),
	}}
}

// InfusionHarvested captures a harvest payout net of fees.
type InfusionHarvested struct {
	Key   types.TokenKey
	Owner [20]byte
	Gross *big.Int
	Fee   *big.Int
	Net   *big.Int
}

// EventType satisfies the Event interface.
func (InfusionHarvested) EventType() string { return TypeInfusionHarvested }

// Event converts the payload into a broadcastable event.
func (e InfusionHarvested) Event() *types.Event {
	return &types.Event{Type: TypeInfusionHarvested, Attributes: map[string]string{
		"key":   e.Key.String(),
		"owner": formatAddress(e.Owner),
		"gross": formatAmount(e.Gross),
		"fee":   formatAmount(e.Fee),
		"net":   formatAmount(e.Net),
	}}
}

// InfusionReinvested captures a harvest compounded back into the deposit.
type InfusionReinvested struct {
	Key    types.TokenKey
	Owner  [20]byte
	Amount *big.Int
	Total  *big.Int
	Level  uint8
}

// EventType satisfies the Event interface.
func (InfusionReinvested) EventType() string { return TypeInfusionReinvested }

// Event converts the payload into a broadcastable event.
func (e InfusionReinvested) Event() *types.Event {
	return &types.Event{Type: TypeInfusionReinvested, Attributes: map[string]string{
		"key":    e.Key.String(),
		"owner":  formatAddress(e.Owner),
		"amount": formatAmount(e.Amount),
		"total":  formatAmount(e.Total),
		"level":  strconv.FormatUint(uint64(e.Level), 10),
	}}
}

// InfusionWithdrawn captures a withdrawal and the remaining deposit.
type InfusionWithdrawn struct {
	Key       types.TokenKey
	Owner     [20]byte
	Amount    *big.Int
	Remaining *big.Int
	Level     uint8
}

// EventType satisfies the Event interface.
func (InfusionWithdrawn) EventType() string { return TypeInfusionWithdrawn }

// Event converts the payload into a broadcastable event.
func (e InfusionWithdrawn) Event() *types.Event {
	return &types.Event{Type: TypeInfusionWithdrawn, Attributes: map[string]string{
		"key":       e.Key.String(),
		"owner":     formatAddress(e.Owner),
		"amount":    formatAmount(e.Amount),
		"remaining": formatAmount(e.Remaining),
		"level":     strconv.FormatUint(uint64(e.Level), 10),
	}}
}
