package colony

import (
	"fmt"

	"hivestake/core/events"
	"hivestake/core/types"
)

// fallbackRepairBudget bounds the number of member records touched in one
// RepairAll invocation.
const fallbackRepairBudget = 500

// SetRepairBudget overrides the per-call reconciliation budget.
func (r *Registry) SetRepairBudget(budget int) {
	if budget > 0 {
		r.repairBudget = budget
	}
}

func (r *Registry) budget() int {
	if r != nil && r.repairBudget > 0 {
		return r.repairBudget
	}
	return fallbackRepairBudget
}

// Repair reconciles one colony's membership against the external authority:
// missing members are added, conflicting assignments flagged (or overridden
// when the force-override policy is set) and stale memberships removed. One
// structured outcome signal is emitted per sub-action.
//
// Invariant restored: every staked position with a non-zero colony id
// appears in that colony's membership list.
func (r *Registry) Repair(colonyID uint64) ([]RepairAction, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := r.guard.Enter("repair"); err != nil {
		return nil, err
	}
	defer r.guard.Exit("repair")
	return r.repairColony(colonyID, r.budget())
}

// RepairAll reconciles every known colony, skipping colonies whose authority
// lookup fails and continuing with the rest.
func (r *Registry) RepairAll() ([]RepairAction, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := r.guard.Enter("repair"); err != nil {
		return nil, err
	}
	defer r.guard.Exit("repair")
	ids, err := r.state.ColonyIDs()
	if err != nil {
		return nil, err
	}
	budget := r.budget()
	var actions []RepairAction
	for _, id := range ids {
		if budget <= 0 {
			break
		}
		colonyActions, err := r.repairColony(id, budget)
		if err != nil {
			// Authority trouble on one colony must not abort the sweep.
			actions = append(actions, r.record(RepairAction{
				ColonyID: id,
				Action:   RepairAuthoritySkipped,
				Detail:   err.Error(),
			}))
			continue
		}
		actions = append(actions, colonyActions...)
		budget -= len(colonyActions)
	}
	return actions, nil
}

func (r *Registry) record(action RepairAction) RepairAction {
	r.emit(events.ColonyRepaired{
		ColonyID: action.ColonyID,
		Key:      action.Key,
		Action:   action.Action,
		Detail:   action.Detail,
	})
	return action
}

func (r *Registry) repairColony(colonyID uint64, budget int) ([]RepairAction, error) {
	colony, err := r.loadColony(colonyID)
	if err != nil {
		return nil, err
	}
	if !colony.Active {
		return nil, nil
	}
	if r.authority == nil {
		return nil, fmt.Errorf("colony: authority not configured")
	}
	external, err := r.authority.Members(colonyID)
	if err != nil {
		return nil, fmt.Errorf("colony: authority members: %w", err)
	}
	externalSet := make(map[types.TokenKey]bool, len(external))
	for _, key := range external {
		externalSet[key] = true
	}

	var actions []RepairAction
	changed := false

	// Pass 1: adopt externally reported members that are staked locally.
	for _, key := range external {
		if len(actions) >= budget {
			break
		}
		_, current, staked, err := r.state.PositionColony(key)
		if err != nil || !staked {
			continue
		}
		switch {
		case current == colonyID:
			if !colony.hasMember(key) {
				colony.addMember(key)
				changed = true
				actions = append(actions, r.record(RepairAction{ColonyID: colonyID, Key: key, Action: RepairMemberAdded}))
			}
		case current == 0:
			colony.addMember(key)
			changed = true
			if err := r.state.SetPositionColony(key, colonyID); err != nil {
				return actions, err
			}
			actions = append(actions, r.record(RepairAction{ColonyID: colonyID, Key: key, Action: RepairMemberAdded}))
		default:
			// Position claims a different colony than the authority.
			if !r.forceOverride {
				actions = append(actions, r.record(RepairAction{
					ColonyID: colonyID,
					Key:      key,
					Action:   RepairConflictFlagged,
					Detail:   fmt.Sprintf("locally assigned to colony %d", current),
				}))
				continue
			}
			if err := r.detach(key, current); err != nil {
				return actions, err
			}
			colony.addMember(key)
			changed = true
			if err := r.state.SetPositionColony(key, colonyID); err != nil {
				return actions, err
			}
			actions = append(actions, r.record(RepairAction{
				ColonyID: colonyID,
				Key:      key,
				Action:   RepairConflictOverridden,
				Detail:   fmt.Sprintf("moved from colony %d", current),
			}))
		}
	}

	// Pass 2: drop local memberships the authority no longer reports, and
	// members that are no longer staked.
	for _, key := range append([]types.TokenKey(nil), colony.Members...) {
		if len(actions) >= budget {
			break
		}
		_, current, staked, err := r.state.PositionColony(key)
		stale := err != nil || !staked || !externalSet[key] || current != colonyID
		if !stale {
			continue
		}
		if colony.removeMember(key) {
			changed = true
		}
		if staked && current == colonyID {
			if err := r.state.SetPositionColony(key, 0); err != nil {
				return actions, err
			}
		}
		actions = append(actions, r.record(RepairAction{ColonyID: colonyID, Key: key, Action: RepairMemberRemoved}))
	}

	if changed {
		if err := r.state.ColonyPut(colony); err != nil {
			return actions, err
		}
	}
	return actions, nil
}
