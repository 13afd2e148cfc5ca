package colony

import (
	"errors"
	"fmt"
	"strings"

	"hivestake/core/events"
	"hivestake/core/types"
	"hivestake/native/common"
)

// ModuleName identifies this engine for pause toggles.
const ModuleName = "colony"

// fallbackAdminBonusCeiling caps admin-set bonuses when unconfigured.
const fallbackAdminBonusCeiling = 50

var (
	errNilState = errors.New("colony registry: state not configured")

	ErrColonyNotFound = errors.New("colony: not found")
	ErrColonyInactive = errors.New("colony: inactive")
	ErrNotAuthorized  = errors.New("colony: caller not authorized")
	ErrBonusTooHigh   = errors.New("colony: bonus exceeds ceiling")
	ErrEmptyName      = errors.New("colony: name must not be empty")
	ErrPositionGone   = errors.New("colony: position not found")
)

// State is the persistence surface the colony registry requires. Position
// colony assignments live with the position ledger; the registry mutates
// them through the narrow accessors below.
type State interface {
	ColonyGet(id uint64) (*Colony, bool, error)
	ColonyPut(c *Colony) error
	ColonyIDs() ([]uint64, error)
	NextColonyID() (uint64, error)

	PendingAssignment(key types.TokenKey) (uint64, bool, error)
	SetPendingAssignment(key types.TokenKey, colonyID uint64) error
	DeletePendingAssignment(key types.TokenKey) error

	PositionColony(key types.TokenKey) (owner [20]byte, colonyID uint64, staked bool, err error)
	SetPositionColony(key types.TokenKey, colonyID uint64) error
}

// Authority is the external colony registry of record. Local state is
// reconciled against it by Repair.
type Authority interface {
	MembershipOf(key types.TokenKey) (uint64, bool, error)
	Members(colonyID uint64) ([]types.TokenKey, error)
	CreatorBonusCeiling(colonyID uint64) (uint64, error)
	SetBonus(colonyID uint64, bonus uint64) error
}

// Custodian resolves the current holder of a token. The registry uses it to
// authorize pending assignments for positions the ledger has not seen yet.
type Custodian interface {
	OwnerOf(key types.TokenKey) ([20]byte, error)
}

// Registry maintains colony membership and bonuses.
type Registry struct {
	state     State
	authority Authority
	custodian Custodian
	emitter   events.Emitter
	guard     *common.ReentrancyGuard
	pauses    common.PauseView

	admins        map[[20]byte]bool
	adminCeiling  uint64
	forceOverride bool
	repairBudget  int
}

// NewRegistry creates a colony registry with a no-op emitter.
func NewRegistry() *Registry {
	return &Registry{
		emitter:      events.NoopEmitter{},
		guard:        common.NewReentrancyGuard(),
		admins:       make(map[[20]byte]bool),
		adminCeiling: fallbackAdminBonusCeiling,
	}
}

// SetState configures the persistence backend.
func (r *Registry) SetState(state State) { r.state = state }

// SetAuthority configures the external authority collaborator.
func (r *Registry) SetAuthority(a Authority) { r.authority = a }

// SetCustodian configures the token custody collaborator. Without one,
// pending assignments for unstaked positions are open to any caller.
func (r *Registry) SetCustodian(c Custodian) { r.custodian = c }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetPauseView wires the module pause toggle.
func (r *Registry) SetPauseView(p common.PauseView) { r.pauses = p }

// SetAdmin grants or revokes colony administration rights.
func (r *Registry) SetAdmin(addr [20]byte, ok bool) {
	if r.admins == nil {
		r.admins = make(map[[20]byte]bool)
	}
	if ok {
		r.admins[addr] = true
		return
	}
	delete(r.admins, addr)
}

// SetAdminCeiling overrides the system-wide bonus ceiling for admin callers.
func (r *Registry) SetAdminCeiling(ceiling uint64) {
	if ceiling > 0 {
		r.adminCeiling = ceiling
	}
}

// SetForceOverride controls whether repair reassigns conflicting
// memberships instead of only flagging them.
func (r *Registry) SetForceOverride(force bool) { r.forceOverride = force }

func (r *Registry) isAdmin(addr [20]byte) bool {
	return r.admins != nil && r.admins[addr]
}

func (r *Registry) emit(evt events.Event) {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(evt)
}

func (r *Registry) loadColony(id uint64) (*Colony, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	colony, ok, err := r.state.ColonyGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrColonyNotFound
	}
	return colony.Clone(), nil
}

// Create registers a new colony with the caller as creator.
func (r *Registry) Create(name string, caller [20]byte) (*Colony, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(r.pauses, ModuleName); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	id, err := r.state.NextColonyID()
	if err != nil {
		return nil, err
	}
	colony := &Colony{ID: id, Name: name, Creator: caller, Active: true}
	if err := r.state.ColonyPut(colony); err != nil {
		return nil, err
	}
	r.emit(events.ColonyCreated{ColonyID: id, Name: name, Creator: caller})
	return colony.Clone(), nil
}

// Info returns the read-only projection of a colony.
func (r *Registry) Info(id uint64) (*Info, error) {
	colony, err := r.loadColony(id)
	if err != nil {
		return nil, err
	}
	return &Info{
		ID:          colony.ID,
		Name:        colony.Name,
		Creator:     colony.Creator,
		Active:      colony.Active,
		Bonus:       colony.Bonus,
		MemberCount: colony.MemberCount(),
	}, nil
}

// Join assigns a position to a colony. Staked positions move immediately;
// unstaked ones record a pending assignment applied at the next stake.
func (r *Registry) Join(key types.TokenKey, colonyID uint64, caller [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := common.Guard(r.pauses, ModuleName); err != nil {
		return err
	}
	colony, err := r.loadColony(colonyID)
	if err != nil {
		return err
	}
	if !colony.Active {
		return ErrColonyInactive
	}
	owner, current, staked, err := r.state.PositionColony(key)
	if err != nil {
		return err
	}
	if !staked {
		if r.custodian != nil && !r.isAdmin(caller) {
			holder, err := r.custodian.OwnerOf(key)
			if err != nil {
				return fmt.Errorf("colony: custody lookup: %w", err)
			}
			if holder != caller {
				return ErrNotAuthorized
			}
		}
		if err := r.state.SetPendingAssignment(key, colonyID); err != nil {
			return err
		}
		r.emit(events.ColonyMembership{ColonyID: colonyID, Key: key, Joined: true, Pending: true})
		return nil
	}
	if owner != caller && !r.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if current == colonyID {
		return nil
	}
	if current != 0 {
		if err := r.detach(key, current); err != nil {
			return err
		}
	}
	colony.addMember(key)
	if err := r.state.ColonyPut(colony); err != nil {
		return err
	}
	if err := r.state.SetPositionColony(key, colonyID); err != nil {
		return err
	}
	r.emit(events.ColonyMembership{ColonyID: colonyID, Key: key, Joined: true})
	return nil
}

// Leave removes a position from its colony, or clears a pending assignment
// for unstaked positions.
func (r *Registry) Leave(key types.TokenKey, caller [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := common.Guard(r.pauses, ModuleName); err != nil {
		return err
	}
	owner, current, staked, err := r.state.PositionColony(key)
	if err != nil {
		return err
	}
	if !staked {
		pending, ok, err := r.state.PendingAssignment(key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if r.custodian != nil && !r.isAdmin(caller) {
			holder, err := r.custodian.OwnerOf(key)
			if err != nil {
				return fmt.Errorf("colony: custody lookup: %w", err)
			}
			if holder != caller {
				return ErrNotAuthorized
			}
		}
		if err := r.state.DeletePendingAssignment(key); err != nil {
			return err
		}
		r.emit(events.ColonyMembership{ColonyID: pending, Key: key, Joined: false, Pending: true})
		return nil
	}
	if owner != caller && !r.isAdmin(caller) {
		return ErrNotAuthorized
	}
	if current == 0 {
		return nil
	}
	if err := r.detach(key, current); err != nil {
		return err
	}
	if err := r.state.SetPositionColony(key, 0); err != nil {
		return err
	}
	r.emit(events.ColonyMembership{ColonyID: current, Key: key, Joined: false})
	return nil
}

// detach removes the key from a colony's member list if present.
func (r *Registry) detach(key types.TokenKey, colonyID uint64) error {
	colony, ok, err := r.state.ColonyGet(colonyID)
	if err != nil || !ok {
		return err
	}
	colony = colony.Clone()
	if colony.removeMember(key) {
		return r.state.ColonyPut(colony)
	}
	return nil
}

// SetBonus updates a colony's bonus. Admin callers are capped at the
// system-wide ceiling; the creator is capped at the ceiling the external
// authority reports for the colony. A successful local update propagates to
// the authority best-effort.
func (r *Registry) SetBonus(colonyID uint64, bonus uint64, caller [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := common.Guard(r.pauses, ModuleName); err != nil {
		return err
	}
	colony, err := r.loadColony(colonyID)
	if err != nil {
		return err
	}
	if !colony.Active {
		return ErrColonyInactive
	}
	switch {
	case r.isAdmin(caller):
		if bonus > r.adminCeiling {
			return ErrBonusTooHigh
		}
	case caller == colony.Creator:
		ceiling := uint64(0)
		if r.authority != nil {
			reported, err := r.authority.CreatorBonusCeiling(colonyID)
			if err != nil {
				return fmt.Errorf("colony: creator ceiling: %w", err)
			}
			ceiling = reported
		}
		if bonus > ceiling {
			return ErrBonusTooHigh
		}
	default:
		return ErrNotAuthorized
	}
	colony.Bonus = bonus
	if err := r.state.ColonyPut(colony); err != nil {
		return err
	}
	synced := false
	if r.authority != nil {
		out := common.TryCollaborator("colonyAuthority", "setBonus", func() error {
			return r.authority.SetBonus(colonyID, bonus)
		})
		synced = out.OK
		if !out.OK {
			r.emit(events.CollaboratorSkipped{Collaborator: "colonyAuthority", Operation: "setBonus", Reason: out.Reason})
		}
	}
	r.emit(events.ColonyBonusUpdated{ColonyID: colonyID, Bonus: bonus, Caller: caller, Synced: synced})
	return nil
}

// Dissolve soft-deletes a colony: every member position is detached, the
// member list emptied and the colony marked inactive with its name and
// creator preserved.
func (r *Registry) Dissolve(colonyID uint64, caller [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := common.Guard(r.pauses, ModuleName); err != nil {
		return err
	}
	colony, err := r.loadColony(colonyID)
	if err != nil {
		return err
	}
	if !colony.Active {
		return nil
	}
	if caller != colony.Creator && !r.isAdmin(caller) {
		return ErrNotAuthorized
	}
	members := colony.MemberCount()
	for _, key := range colony.Members {
		if err := r.state.SetPositionColony(key, 0); err != nil {
			return err
		}
	}
	colony.Members = nil
	colony.Active = false
	if err := r.state.ColonyPut(colony); err != nil {
		return err
	}
	r.emit(events.ColonyDissolved{ColonyID: colonyID, Members: members})
	return nil
}

// --- ColonyHook implementation for the position ledger ---

// OnStake applies a pending assignment if present, otherwise adopts an
// externally reported membership. Returns the resulting colony id.
func (r *Registry) OnStake(key types.TokenKey, owner [20]byte) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	colonyID, ok, err := r.state.PendingAssignment(key)
	if err != nil {
		return 0, err
	}
	if ok {
		if err := r.state.DeletePendingAssignment(key); err != nil {
			return 0, err
		}
	} else if r.authority != nil {
		reported, member, err := r.authority.MembershipOf(key)
		if err != nil {
			// Authority unavailability never blocks a stake.
			return 0, nil
		}
		if !member {
			return 0, nil
		}
		colonyID = reported
	}
	if colonyID == 0 {
		return 0, nil
	}
	colony, found, err := r.state.ColonyGet(colonyID)
	if err != nil || !found || !colony.Active {
		return 0, err
	}
	colony = colony.Clone()
	colony.addMember(key)
	if err := r.state.ColonyPut(colony); err != nil {
		return 0, err
	}
	r.emit(events.ColonyMembership{ColonyID: colonyID, Key: key, Joined: true})
	return colonyID, nil
}

// OnUnstake removes the key from its colony's member list.
func (r *Registry) OnUnstake(key types.TokenKey, colonyID uint64) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if colonyID == 0 {
		return nil
	}
	return r.detach(key, colonyID)
}

// RestoreMembership re-adds a membership removed on a rolled-back unstake.
func (r *Registry) RestoreMembership(key types.TokenKey, colonyID uint64) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if colonyID == 0 {
		return nil
	}
	colony, ok, err := r.state.ColonyGet(colonyID)
	if err != nil || !ok {
		return err
	}
	colony = colony.Clone()
	colony.addMember(key)
	return r.state.ColonyPut(colony)
}

// Bonus reports the active bonus for a colony, zero when missing or
// inactive.
func (r *Registry) Bonus(colonyID uint64) uint64 {
	if r == nil || r.state == nil || colonyID == 0 {
		return 0
	}
	colony, ok, err := r.state.ColonyGet(colonyID)
	if err != nil || !ok || !colony.Active {
		return 0
	}
	return colony.Bonus
}
