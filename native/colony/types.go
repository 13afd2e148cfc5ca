package colony

import "hivestake/core/types"

// Colony groups positions under a shared reward bonus. Dissolution is a soft
// delete: the record stays, inactive, with its name and creator preserved.
type Colony struct {
	ID      uint64           `json:"id"`
	Name    string           `json:"name"`
	Creator [20]byte         `json:"creator"`
	Active  bool             `json:"active"`
	Bonus   uint64           `json:"bonus"`
	Members []types.TokenKey `json:"members"`
}

// Clone returns a deep copy of the colony.
func (c *Colony) Clone() *Colony {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Members = append([]types.TokenKey(nil), c.Members...)
	return &clone
}

// MemberCount reports the current membership size.
func (c *Colony) MemberCount() uint64 {
	if c == nil {
		return 0
	}
	return uint64(len(c.Members))
}

// hasMember reports whether the key is in the membership list.
func (c *Colony) hasMember(key types.TokenKey) bool {
	for _, member := range c.Members {
		if member == key {
			return true
		}
	}
	return false
}

// addMember appends the key if absent.
func (c *Colony) addMember(key types.TokenKey) {
	if !c.hasMember(key) {
		c.Members = append(c.Members, key)
	}
}

// removeMember drops the key via swap-with-last for O(1) amortized removal.
func (c *Colony) removeMember(key types.TokenKey) bool {
	for i, member := range c.Members {
		if member == key {
			last := len(c.Members) - 1
			c.Members[i] = c.Members[last]
			c.Members = c.Members[:last]
			return true
		}
	}
	return false
}

// Info is the read-only colony projection served by queries.
type Info struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	Creator     [20]byte `json:"creator"`
	Active      bool     `json:"active"`
	Bonus       uint64   `json:"bonus"`
	MemberCount uint64   `json:"memberCount"`
}

// RepairAction records one sub-action taken during reconciliation.
type RepairAction struct {
	ColonyID uint64         `json:"colonyId"`
	Key      types.TokenKey `json:"key,omitempty"`
	Action   string         `json:"action"`
	Detail   string         `json:"detail,omitempty"`
}

// Repair sub-action identifiers.
const (
	RepairMemberAdded        = "memberAdded"
	RepairMemberRemoved      = "memberRemoved"
	RepairConflictFlagged    = "conflictFlagged"
	RepairConflictOverridden = "conflictOverridden"
	RepairAuthoritySkipped   = "authoritySkipped"
)
