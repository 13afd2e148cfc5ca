package events

import (
	"strconv"

	"hivestake/core/types"
)

const (
	// TypeColonyCreated captures first registration of a colony.
	TypeColonyCreated = "colony.created"
	// TypeColonyJoined captures a position joining a colony.
	TypeColonyJoined = "colony.joined"
	// TypeColonyLeft captures a position leaving a colony.
	TypeColonyLeft = "colony.left"
	// TypeColonyBonusUpdated captures a bonus change on a colony.
	TypeColonyBonusUpdated = "colony.bonusUpdated"
	// TypeColonyDissolved captures a colony being soft-deleted.
	TypeColonyDissolved = "colony.dissolved"
	// TypeColonyRepaired captures one sub-action of a repair reconciliation.
	TypeColonyRepaired = "colony.repaired"
)

// ColonyCreated captures first registration of a colony.
type ColonyCreated struct {
	ColonyID uint64
	Name     string
	Creator  [20]byte
}

// EventType satisfies the Event interface.
func (ColonyCreated) EventType() string { return TypeColonyCreated }

// Event converts the payload into a broadcastable event.
func (e ColonyCreated) Event() *types.Event {
	return &types.Event{Type: TypeColonyCreated, Attributes: map[string]string{
		"colonyId": strconv.FormatUint(e.ColonyID, 10),
		"name":     e.Name,
		"creator":  formatAddress(e.Creator),
	}}
}

// ColonyMembership captures a join or leave transition, including deferred
// assignments applied at the next stake.
type ColonyMembership struct {
	ColonyID uint64
	Key      types.TokenKey
	Joined   bool
	Pending  bool
}

// EventType satisfies the Event interface.
func (e ColonyMembership) EventType() string {
	if e.Joined {
		return TypeColonyJoined
	}
	return TypeColonyLeft
}

// Event converts the payload into a broadcastable event.
func (e ColonyMembership) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"colonyId": strconv.FormatUint(e.ColonyID, 10),
		"key":      e.Key.String(),
		"pending":  strconv.FormatBool(e.Pending),
	}}
}

// ColonyBonusUpdated captures a bonus change together with the applied cap.
type ColonyBonusUpdated struct {
	ColonyID uint64
	Bonus    uint64
	Caller   [20]byte
	Synced   bool
}

// EventType satisfies the Event interface.
func (ColonyBonusUpdated) EventType() string { return TypeColonyBonusUpdated }

// Event converts the payload into a broadcastable event.
func (e ColonyBonusUpdated) Event() *types.Event {
	return &types.Event{Type: TypeColonyBonusUpdated, Attributes: map[string]string{
		"colonyId": strconv.FormatUint(e.ColonyID, 10),
		"bonus":    strconv.FormatUint(e.Bonus, 10),
		"caller":   formatAddress(e.Caller),
		"synced":   strconv.FormatBool(e.Synced),
	}}
}

// ColonyDissolved captures a colony being marked inactive.
type ColonyDissolved struct {
	ColonyID uint64
	Members  uint64
}

// EventType satisfies the Event interface.
func (ColonyDissolved) EventType() string { return TypeColonyDissolved }

// Event converts the payload into a broadcastable event.
func (e ColonyDissolved) Event() *types.Event {
	return &types.Event{Type: TypeColonyDissolved, Attributes: map[string]string{
		"colonyId": strconv.FormatUint(e.ColonyID, 10),
		"members":  strconv.FormatUint(e.Members, 10),
	}}
}

// ColonyRepaired records one sub-action taken while reconciling membership
// against the external authority.
type ColonyRepaired struct {
	ColonyID uint64
	Key      types.TokenKey
	Action   string
	Detail   string
}

// EventType satisfies the Event interface.
func (ColonyRepaired) EventType() string { return TypeColonyRepaired }

// Event converts the payload into a broadcastable event.
func (e ColonyRepaired) Event() *types.Event {
	attrs := map[string]string{
		"colonyId": strconv.FormatUint(e.ColonyID, 10),
		"action":   e.Action,
	}
	if e.Key != 0 {
		attrs["key"] = e.Key.String()
	}
	if e.Detail != "" {
		attrs["detail"] = e.Detail
	}
	return &types.Event{Type: TypeColonyRepaired, Attributes: attrs}
}
