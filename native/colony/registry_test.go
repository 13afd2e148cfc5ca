package colony

import (
	"errors"
	"sort"
	"testing"

	"hivestake/core/events"
	"hivestake/core/types"
)

type trackedPosition struct {
	owner    [20]byte
	colonyID uint64
	staked   bool
}

type mockState struct {
	colonies  map[uint64]*Colony
	nextID    uint64
	pending   map[types.TokenKey]uint64
	positions map[types.TokenKey]*trackedPosition
}

func newMockState() *mockState {
	return &mockState{
		colonies:  make(map[uint64]*Colony),
		pending:   make(map[types.TokenKey]uint64),
		positions: make(map[types.TokenKey]*trackedPosition),
	}
}

func (m *mockState) ColonyGet(id uint64) (*Colony, bool, error) {
	c, ok := m.colonies[id]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *mockState) ColonyPut(c *Colony) error {
	m.colonies[c.ID] = c.Clone()
	return nil
}

func (m *mockState) ColonyIDs() ([]uint64, error) {
	ids := make([]uint64, 0, len(m.colonies))
	for id := range m.colonies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockState) NextColonyID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) PendingAssignment(key types.TokenKey) (uint64, bool, error) {
	id, ok := m.pending[key]
	return id, ok, nil
}

func (m *mockState) SetPendingAssignment(key types.TokenKey, colonyID uint64) error {
	m.pending[key] = colonyID
	return nil
}

func (m *mockState) DeletePendingAssignment(key types.TokenKey) error {
	delete(m.pending, key)
	return nil
}

func (m *mockState) PositionColony(key types.TokenKey) ([20]byte, uint64, bool, error) {
	p, ok := m.positions[key]
	if !ok {
		return [20]byte{}, 0, false, nil
	}
	return p.owner, p.colonyID, p.staked, nil
}

func (m *mockState) SetPositionColony(key types.TokenKey, colonyID uint64) error {
	p, ok := m.positions[key]
	if !ok {
		return ErrPositionGone
	}
	p.colonyID = colonyID
	return nil
}

func (m *mockState) stake(key types.TokenKey, owner [20]byte) {
	m.positions[key] = &trackedPosition{owner: owner, staked: true}
}

type mockAuthority struct {
	memberships   map[types.TokenKey]uint64
	members       map[uint64][]types.TokenKey
	ceilings      map[uint64]uint64
	membersErr    map[uint64]error
	membershipErr error
	setBonusErr   error
	setBonusCalls int
}

func newMockAuthority() *mockAuthority {
	return &mockAuthority{
		memberships: make(map[types.TokenKey]uint64),
		members:     make(map[uint64][]types.TokenKey),
		ceilings:    make(map[uint64]uint64),
		membersErr:  make(map[uint64]error),
	}
}

func (m *mockAuthority) MembershipOf(key types.TokenKey) (uint64, bool, error) {
	if m.membershipErr != nil {
		return 0, false, m.membershipErr
	}
	id, ok := m.memberships[key]
	return id, ok, nil
}

func (m *mockAuthority) Members(colonyID uint64) ([]types.TokenKey, error) {
	if err := m.membersErr[colonyID]; err != nil {
		return nil, err
	}
	return append([]types.TokenKey(nil), m.members[colonyID]...), nil
}

func (m *mockAuthority) CreatorBonusCeiling(colonyID uint64) (uint64, error) {
	return m.ceilings[colonyID], nil
}

func (m *mockAuthority) SetBonus(colonyID uint64, bonus uint64) error {
	m.setBonusCalls++
	return m.setBonusErr
}

type mockCustodian struct {
	owners map[types.TokenKey][20]byte
	err    error
}

func (m *mockCustodian) OwnerOf(key types.TokenKey) ([20]byte, error) {
	if m.err != nil {
		return [20]byte{}, m.err
	}
	owner, ok := m.owners[key]
	if !ok {
		return [20]byte{}, errors.New("unknown token")
	}
	return owner, nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *captureEmitter) ofType(eventType string) []events.Event {
	var out []events.Event
	for _, evt := range c.events {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func testAddr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestRegistry(state *mockState) *Registry {
	r := NewRegistry()
	r.SetState(state)
	return r
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	creator := testAddr(1)

	first, err := registry.Create("alpha", creator)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := registry.Create("beta", creator)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if !first.Active || first.Creator != creator {
		t.Fatalf("unexpected colony: %+v", first)
	}
}

func TestCreateRejectsEmptyName(t *testing.T) {
	registry := newTestRegistry(newMockState())
	if _, err := registry.Create("   ", testAddr(1)); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestJoinStakedMovesImmediately(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	owner := testAddr(1)
	key := types.NewTokenKey(1, 7)
	state.stake(key, owner)

	colonyA, _ := registry.Create("alpha", owner)
	colonyB, _ := registry.Create("beta", owner)

	if err := registry.Join(key, colonyA.ID, owner); err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := state.positions[key].colonyID; got != colonyA.ID {
		t.Fatalf("expected assignment %d, got %d", colonyA.ID, got)
	}
	if !state.colonies[colonyA.ID].hasMember(key) {
		t.Fatalf("expected membership in colony %d", colonyA.ID)
	}

	// Moving to another colony detaches from the first.
	if err := registry.Join(key, colonyB.ID, owner); err != nil {
		t.Fatalf("join: %v", err)
	}
	if state.colonies[colonyA.ID].hasMember(key) {
		t.Fatalf("expected detach from colony %d", colonyA.ID)
	}
	if !state.colonies[colonyB.ID].hasMember(key) {
		t.Fatalf("expected membership in colony %d", colonyB.ID)
	}
}

func TestJoinUnstakedRecordsPending(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	owner := testAddr(1)
	key := types.NewTokenKey(1, 7)

	colony, _ := registry.Create("alpha", owner)
	if err := registry.Join(key, colony.ID, owner); err != nil {
		t.Fatalf("join: %v", err)
	}
	if pending, ok := state.pending[key]; !ok || pending != colony.ID {
		t.Fatalf("expected pending assignment to %d, got %d (%v)", colony.ID, pending, ok)
	}
	if state.colonies[colony.ID].hasMember(key) {
		t.Fatalf("pending assignment must not create a membership")
	}
}

func TestJoinUnstakedChecksCustodyHolder(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	holder := testAddr(1)
	key := types.NewTokenKey(1, 7)
	custodian := &mockCustodian{owners: map[types.TokenKey][20]byte{key: holder}}
	registry.SetCustodian(custodian)

	colony, _ := registry.Create("alpha", holder)
	if err := registry.Join(key, colony.ID, testAddr(9)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, ok := state.pending[key]; ok {
		t.Fatalf("stranger must not record a pending assignment")
	}

	if err := registry.Join(key, colony.ID, holder); err != nil {
		t.Fatalf("holder join: %v", err)
	}
	if pending := state.pending[key]; pending != colony.ID {
		t.Fatalf("expected pending assignment to %d, got %d", colony.ID, pending)
	}

	// A stranger cannot clear the holder's pending assignment either.
	if err := registry.Leave(key, testAddr(9)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	// Admins bypass the custody check.
	admin := testAddr(9)
	registry.SetAdmin(admin, true)
	if err := registry.Leave(key, admin); err != nil {
		t.Fatalf("admin leave: %v", err)
	}
	if _, ok := state.pending[key]; ok {
		t.Fatalf("expected pending assignment cleared")
	}

	// A failed custody lookup blocks the join.
	custodian.err = errors.New("custody offline")
	registry.SetAdmin(admin, false)
	if err := registry.Join(key, colony.ID, holder); err == nil {
		t.Fatalf("expected failure when custody lookup fails")
	}
}

func TestJoinRejectsNonOwner(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	owner := testAddr(1)
	key := types.NewTokenKey(1, 7)
	state.stake(key, owner)

	colony, _ := registry.Create("alpha", owner)
	if err := registry.Join(key, colony.ID, testAddr(9)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	// An admin can move any position.
	registry.SetAdmin(testAddr(9), true)
	if err := registry.Join(key, colony.ID, testAddr(9)); err != nil {
		t.Fatalf("admin join: %v", err)
	}
}

func TestJoinInactiveColonyFails(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	owner := testAddr(1)
	colony, _ := registry.Create("alpha", owner)
	if err := registry.Dissolve(colony.ID, owner); err != nil {
		t.Fatalf("dissolve: %v", err)
	}
	key := types.NewTokenKey(1, 7)
	state.stake(key, owner)
	if err := registry.Join(key, colony.ID, owner); !errors.Is(err, ErrColonyInactive) {
		t.Fatalf("expected ErrColonyInactive, got %v", err)
	}
}

func TestLeaveClearsPending(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	owner := testAddr(1)
	key := types.NewTokenKey(1, 7)
	colony, _ := registry.Create("alpha", owner)

	if err := registry.Join(key, colony.ID, owner); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := registry.Leave(key, owner); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, ok := state.pending[key]; ok {
		t.Fatalf("expected pending assignment cleared")
	}
}

func TestLeaveDetachesStaked(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	owner := testAddr(1)
	key := types.NewTokenKey(1, 7)
	state.stake(key, owner)
	colony, _ := registry.Create("alpha", owner)
	if err := registry.Join(key, colony.ID, owner); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := registry.Leave(key, owner); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if got := state.positions[key].colonyID; got != 0 {
		t.Fatalf("expected cleared assignment, got %d", got)
	}
	if state.colonies[colony.ID].hasMember(key) {
		t.Fatalf("expected membership removed")
	}
}

func TestSetBonusAdminCeiling(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	admin := testAddr(9)
	registry.SetAdmin(admin, true)
	colony, _ := registry.Create("alpha", testAddr(1))

	if err := registry.SetBonus(colony.ID, 51, admin); !errors.Is(err, ErrBonusTooHigh) {
		t.Fatalf("expected ErrBonusTooHigh, got %v", err)
	}
	if err := registry.SetBonus(colony.ID, 50, admin); err != nil {
		t.Fatalf("set bonus: %v", err)
	}
	if got := registry.Bonus(colony.ID); got != 50 {
		t.Fatalf("expected bonus 50, got %d", got)
	}
}

func TestSetBonusCreatorUsesAuthorityCeiling(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	authority := newMockAuthority()
	registry.SetAuthority(authority)
	creator := testAddr(1)
	colony, _ := registry.Create("alpha", creator)
	authority.ceilings[colony.ID] = 10

	if err := registry.SetBonus(colony.ID, 11, creator); !errors.Is(err, ErrBonusTooHigh) {
		t.Fatalf("expected ErrBonusTooHigh, got %v", err)
	}
	if err := registry.SetBonus(colony.ID, 10, creator); err != nil {
		t.Fatalf("set bonus: %v", err)
	}
	if err := registry.SetBonus(colony.ID, 5, testAddr(2)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestSetBonusAuthoritySyncBestEffort(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	authority := newMockAuthority()
	authority.setBonusErr = errors.New("authority offline")
	registry.SetAuthority(authority)
	emitter := &captureEmitter{}
	registry.SetEmitter(emitter)
	admin := testAddr(9)
	registry.SetAdmin(admin, true)
	colony, _ := registry.Create("alpha", testAddr(1))

	if err := registry.SetBonus(colony.ID, 20, admin); err != nil {
		t.Fatalf("set bonus: %v", err)
	}
	// Local state updates even when the authority push fails.
	if got := registry.Bonus(colony.ID); got != 20 {
		t.Fatalf("expected bonus 20, got %d", got)
	}
	updates := emitter.ofType(events.TypeColonyBonusUpdated)
	if len(updates) != 1 {
		t.Fatalf("expected one bonus event, got %d", len(updates))
	}
	if updates[0].(events.ColonyBonusUpdated).Synced {
		t.Fatalf("expected Synced=false after authority failure")
	}
	if len(emitter.ofType(events.TypeCollaboratorSkipped)) != 1 {
		t.Fatalf("expected a collaborator-skipped event")
	}
}

func TestDissolveDetachesMembers(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	owner := testAddr(1)
	colony, _ := registry.Create("alpha", owner)
	keys := []types.TokenKey{types.NewTokenKey(1, 1), types.NewTokenKey(1, 2)}
	for _, key := range keys {
		state.stake(key, owner)
		if err := registry.Join(key, colony.ID, owner); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	if err := registry.Dissolve(colony.ID, owner); err != nil {
		t.Fatalf("dissolve: %v", err)
	}
	stored := state.colonies[colony.ID]
	if stored.Active || len(stored.Members) != 0 {
		t.Fatalf("expected inactive empty colony, got %+v", stored)
	}
	if stored.Name != "alpha" || stored.Creator != owner {
		t.Fatalf("dissolution must preserve name and creator")
	}
	for _, key := range keys {
		if state.positions[key].colonyID != 0 {
			t.Fatalf("expected position %s detached", key)
		}
	}
	if got := registry.Bonus(colony.ID); got != 0 {
		t.Fatalf("inactive colony must report zero bonus, got %d", got)
	}
}

func TestOnStakeAppliesPendingFirst(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	authority := newMockAuthority()
	registry.SetAuthority(authority)
	owner := testAddr(1)
	key := types.NewTokenKey(1, 7)
	colonyA, _ := registry.Create("alpha", owner)
	colonyB, _ := registry.Create("beta", owner)

	// Pending assignment wins over the authority's view.
	state.pending[key] = colonyA.ID
	authority.memberships[key] = colonyB.ID
	state.stake(key, owner)

	got, err := registry.OnStake(key, owner)
	if err != nil {
		t.Fatalf("on stake: %v", err)
	}
	if got != colonyA.ID {
		t.Fatalf("expected colony %d, got %d", colonyA.ID, got)
	}
	if _, ok := state.pending[key]; ok {
		t.Fatalf("expected pending assignment consumed")
	}
	if !state.colonies[colonyA.ID].hasMember(key) {
		t.Fatalf("expected membership recorded")
	}
}

func TestOnStakeAdoptsAuthorityMembership(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	authority := newMockAuthority()
	registry.SetAuthority(authority)
	owner := testAddr(1)
	key := types.NewTokenKey(1, 7)
	colony, _ := registry.Create("alpha", owner)
	authority.memberships[key] = colony.ID
	state.stake(key, owner)

	got, err := registry.OnStake(key, owner)
	if err != nil {
		t.Fatalf("on stake: %v", err)
	}
	if got != colony.ID {
		t.Fatalf("expected colony %d, got %d", colony.ID, got)
	}
}

func TestOnStakeAuthorityFailureIgnored(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	authority := newMockAuthority()
	authority.membershipErr = errors.New("authority offline")
	registry.SetAuthority(authority)
	key := types.NewTokenKey(1, 7)
	state.stake(key, testAddr(1))

	got, err := registry.OnStake(key, testAddr(1))
	if err != nil {
		t.Fatalf("on stake must tolerate authority failure: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected no colony, got %d", got)
	}
}

func TestRestoreMembership(t *testing.T) {
	state := newMockState()
	registry := newTestRegistry(state)
	owner := testAddr(1)
	key := types.NewTokenKey(1, 7)
	state.stake(key, owner)
	colony, _ := registry.Create("alpha", owner)
	if err := registry.Join(key, colony.ID, owner); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := registry.OnUnstake(key, colony.ID); err != nil {
		t.Fatalf("on unstake: %v", err)
	}
	if state.colonies[colony.ID].hasMember(key) {
		t.Fatalf("expected membership removed")
	}
	if err := registry.RestoreMembership(key, colony.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !state.colonies[colony.ID].hasMember(key) {
		t.Fatalf("expected membership restored")
	}
}
