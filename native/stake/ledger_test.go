package stake

import (
	"errors"
	"math/big"
	"testing"

	"hivestake/core/types"
	"hivestake/native/common"
)

type mockState struct {
	positions     map[types.TokenKey]*Position
	index         map[[20]byte][]types.TokenKey
	accounts      map[[20]byte]*types.Account
	cooldowns     map[types.TokenKey]int64
	total         uint64
	putAccountErr error
}

func newMockState() *mockState {
	return &mockState{
		positions: make(map[types.TokenKey]*Position),
		index:     make(map[[20]byte][]types.TokenKey),
		accounts:  make(map[[20]byte]*types.Account),
		cooldowns: make(map[types.TokenKey]int64),
	}
}

func (m *mockState) PositionGet(key types.TokenKey) (*Position, bool, error) {
	p, ok := m.positions[key]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockState) PositionPut(p *Position) error {
	m.positions[p.Key] = p.Clone()
	return nil
}

func (m *mockState) PositionDelete(key types.TokenKey) error {
	delete(m.positions, key)
	return nil
}

func (m *mockState) OwnerPositions(addr [20]byte) ([]types.TokenKey, error) {
	return append([]types.TokenKey(nil), m.index[addr]...), nil
}

func (m *mockState) OwnerIndexAdd(addr [20]byte, key types.TokenKey) error {
	m.index[addr] = append(m.index[addr], key)
	return nil
}

func (m *mockState) OwnerIndexRemove(addr [20]byte, key types.TokenKey) error {
	keys := m.index[addr]
	for i, k := range keys {
		if k == key {
			m.index[addr] = append(keys[:i], keys[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	acc, ok := m.accounts[addr]
	if !ok {
		return &types.Account{}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	if m.putAccountErr != nil {
		return m.putAccountErr
	}
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) TotalStaked() (uint64, error) { return m.total, nil }

func (m *mockState) SetTotalStaked(total uint64) error {
	m.total = total
	return nil
}

func (m *mockState) CooldownUntil(key types.TokenKey) (int64, error) {
	return m.cooldowns[key], nil
}

func (m *mockState) SetCooldown(key types.TokenKey, until int64) error {
	m.cooldowns[key] = until
	return nil
}

type mockCustodian struct {
	owners      map[types.TokenKey][20]byte
	transferErr error
	forceErr    error
}

func newMockCustodian() *mockCustodian {
	return &mockCustodian{owners: make(map[types.TokenKey][20]byte), forceErr: errors.New("force transfer unsupported")}
}

func (m *mockCustodian) OwnerOf(key types.TokenKey) ([20]byte, error) {
	return m.owners[key], nil
}

func (m *mockCustodian) Transfer(key types.TokenKey, from, to [20]byte) error {
	if m.transferErr != nil {
		return m.transferErr
	}
	m.owners[key] = to
	return nil
}

func (m *mockCustodian) ForceTransfer(key types.TokenKey, to [20]byte) error {
	if m.forceErr != nil {
		return m.forceErr
	}
	m.owners[key] = to
	return nil
}

type mockQuotaIssuer struct {
	cap           *big.Int
	used          *big.Int
	paid          map[[20]byte]*big.Int
	day           string
	distributeErr error
}

func newMockQuotaIssuer(cap *big.Int) *mockQuotaIssuer {
	return &mockQuotaIssuer{
		cap:  cap,
		used: big.NewInt(0),
		paid: make(map[[20]byte]*big.Int),
		day:  "2026-08-30",
	}
}

func (m *mockQuotaIssuer) remaining() *big.Int {
	if m.cap == nil {
		return nil
	}
	return common.SaturatingSub(m.cap, m.used)
}

func (m *mockQuotaIssuer) Consume(addr [20]byte, amount *big.Int) error {
	if r := m.remaining(); r != nil && amount.Cmp(r) > 0 {
		return common.ErrQuotaExceeded
	}
	m.used = new(big.Int).Add(m.used, amount)
	return nil
}

func (m *mockQuotaIssuer) ConsumeUpTo(addr [20]byte, amount *big.Int) (*big.Int, error) {
	granted := common.CloneBig(amount)
	if r := m.remaining(); r != nil {
		granted = common.MinBig(granted, r)
	}
	m.used = new(big.Int).Add(m.used, granted)
	return granted, nil
}

func (m *mockQuotaIssuer) Refund(addr [20]byte, amount *big.Int) error {
	m.used = common.SaturatingSub(m.used, amount)
	return nil
}

func (m *mockQuotaIssuer) Remaining(addr [20]byte) (*big.Int, string, error) {
	return m.remaining(), m.day, nil
}

func (m *mockQuotaIssuer) Distribute(addr [20]byte, amount *big.Int) (*big.Int, *big.Int, error) {
	if m.distributeErr != nil {
		return nil, nil, m.distributeErr
	}
	prev := m.paid[addr]
	if prev == nil {
		prev = big.NewInt(0)
	}
	m.paid[addr] = new(big.Int).Add(prev, amount)
	return new(big.Int).Set(amount), big.NewInt(0), nil
}

type mockColonyHook struct {
	onStakeID uint64
	bonuses   map[uint64]uint64
	members   map[types.TokenKey]uint64
	restored  []types.TokenKey
}

func newMockColonyHook() *mockColonyHook {
	return &mockColonyHook{
		bonuses: make(map[uint64]uint64),
		members: make(map[types.TokenKey]uint64),
	}
}

func (m *mockColonyHook) OnStake(key types.TokenKey, owner [20]byte) (uint64, error) {
	if m.onStakeID != 0 {
		m.members[key] = m.onStakeID
	}
	return m.onStakeID, nil
}

func (m *mockColonyHook) OnUnstake(key types.TokenKey, colonyID uint64) error {
	delete(m.members, key)
	return nil
}

func (m *mockColonyHook) RestoreMembership(key types.TokenKey, colonyID uint64) error {
	m.members[key] = colonyID
	m.restored = append(m.restored, key)
	return nil
}

func (m *mockColonyHook) Bonus(colonyID uint64) uint64 { return m.bonuses[colonyID] }

type mockFeeCharger struct {
	charged   []string
	chargeErr error
}

func (m *mockFeeCharger) Charge(operation string, payer [20]byte) error {
	if m.chargeErr != nil {
		return m.chargeErr
	}
	m.charged = append(m.charged, operation)
	return nil
}

type stakeFixture struct {
	engine    *Engine
	state     *mockState
	custodian *mockCustodian
	issuer    *mockQuotaIssuer
	colonies  *mockColonyHook
	feeTaker  *mockFeeCharger
	now       int64
	owner     [20]byte
	custody   [20]byte
	key       types.TokenKey
}

func newStakeFixture(t *testing.T) *stakeFixture {
	t.Helper()
	f := &stakeFixture{
		state:     newMockState(),
		custodian: newMockCustodian(),
		issuer:    newMockQuotaIssuer(nil),
		colonies:  newMockColonyHook(),
		feeTaker:  &mockFeeCharger{},
		now:       1_700_000_000,
		key:       types.NewTokenKey(1, 42),
	}
	f.owner[19] = 1
	f.custody[19] = 9
	f.custodian.owners[f.key] = f.owner
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetConfig(&Config{Enabled: true})
	f.engine.SetCustody(f.custody)
	f.engine.SetCustodian(f.custodian)
	f.engine.SetIssuer(f.issuer)
	f.engine.SetColonyHook(f.colonies)
	f.engine.SetFeeCharger(f.feeTaker)
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func TestStakeCreatesFreshPosition(t *testing.T) {
	f := newStakeFixture(t)
	position, err := f.engine.Stake(f.key, f.owner)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if position.StakedAt != f.now || position.LastClaimAt != f.now {
		t.Fatalf("fresh position timestamps must equal now: %+v", position)
	}
	if position.Level != 1 || position.ChargeLevel != 100 || position.Variant != 1 {
		t.Fatalf("unexpected fresh position defaults: %+v", position)
	}
	if f.custodian.owners[f.key] != f.custody {
		t.Fatalf("expected asset in custody")
	}
	if f.state.total != 1 {
		t.Fatalf("expected total staked 1, got %d", f.state.total)
	}
	acc := f.state.accounts[f.owner]
	if acc.PositionCount != 1 || acc.JoinedAt != f.now {
		t.Fatalf("unexpected account: %+v", acc)
	}
	// A freshly staked position has zero pending reward.
	pending, err := f.engine.PendingReward(f.key)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending.Sign() != 0 {
		t.Fatalf("expected zero pending reward, got %s", pending)
	}
}

func TestStakePreconditions(t *testing.T) {
	f := newStakeFixture(t)
	stranger := [20]byte{19: 7}

	if _, err := f.engine.Stake(f.key, stranger); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := f.engine.Stake(f.key, f.owner); !errors.Is(err, ErrAlreadyStaked) {
		t.Fatalf("expected ErrAlreadyStaked, got %v", err)
	}

	f.engine.SetConfig(&Config{Enabled: false})
	other := types.NewTokenKey(1, 43)
	f.custodian.owners[other] = f.owner
	if _, err := f.engine.Stake(other, f.owner); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("expected ErrNotEnabled, got %v", err)
	}

	f.engine.SetConfig(&Config{Enabled: true, ValidCollections: map[uint32]bool{2: true}})
	if _, err := f.engine.Stake(other, f.owner); !errors.Is(err, ErrInvalidCollection) {
		t.Fatalf("expected ErrInvalidCollection, got %v", err)
	}
}

func TestStakeCooldownBlocksRestake(t *testing.T) {
	f := newStakeFixture(t)
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := f.engine.Unstake(f.key, f.owner); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if _, err := f.engine.Stake(f.key, f.owner); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected ErrCooldownActive, got %v", err)
	}
	// After the cooldown window the key stakes again.
	f.now += fallbackCooldownSeconds + 1
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("restake after cooldown: %v", err)
	}
}

func TestStakeRollsBackOnCustodyFailure(t *testing.T) {
	f := newStakeFixture(t)
	f.colonies.onStakeID = 3
	f.custodian.transferErr = errors.New("custody offline")

	if _, err := f.engine.Stake(f.key, f.owner); !errors.Is(err, ErrCustodyTransferFailed) {
		t.Fatalf("expected ErrCustodyTransferFailed, got %v", err)
	}
	if _, ok := f.state.positions[f.key]; ok {
		t.Fatalf("expected position removed")
	}
	if len(f.state.index[f.owner]) != 0 {
		t.Fatalf("expected owner index cleaned")
	}
	if f.state.total != 0 {
		t.Fatalf("expected total restored to 0, got %d", f.state.total)
	}
	if acc := f.state.accounts[f.owner]; acc != nil && acc.PositionCount != 0 {
		t.Fatalf("expected account count restored, got %+v", acc)
	}
	if _, ok := f.colonies.members[f.key]; ok {
		t.Fatalf("expected colony membership rolled back")
	}
}

func TestUnstakeRequiresOwnerOrPrivileged(t *testing.T) {
	f := newStakeFixture(t)
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	stranger := [20]byte{19: 7}
	if err := f.engine.Unstake(f.key, stranger); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	f.engine.SetPrivileged(stranger, true)
	if err := f.engine.Unstake(f.key, stranger); err != nil {
		t.Fatalf("privileged unstake: %v", err)
	}
	if f.custodian.owners[f.key] != f.owner {
		t.Fatalf("asset must return to the position owner, not the caller")
	}
}

func TestUnstakePaysPendingPermissively(t *testing.T) {
	f := newStakeFixture(t)
	f.issuer.cap = mustUnits(4) // far below one day of accrual
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.now += SecondsPerDay

	if err := f.engine.Unstake(f.key, f.owner); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	// Payout truncated to the remaining quota instead of failing the unstake.
	if paid := f.issuer.paid[f.owner]; paid == nil || paid.Cmp(mustUnits(4)) != 0 {
		t.Fatalf("expected truncated payout of 4 units, got %v", paid)
	}
	if _, ok := f.state.positions[f.key]; ok {
		t.Fatalf("expected position removed")
	}
	if f.state.cooldowns[f.key] != f.now+fallbackCooldownSeconds {
		t.Fatalf("expected cooldown set")
	}
	found := false
	for _, op := range f.feeTaker.charged {
		if op == "unstake" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unstake fee charged")
	}
}

func TestUnstakeRestoresOnCustodyFailure(t *testing.T) {
	f := newStakeFixture(t)
	f.colonies.onStakeID = 3
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	f.custodian.transferErr = errors.New("custody offline")

	if err := f.engine.Unstake(f.key, f.owner); !errors.Is(err, ErrCustodyTransferFailed) {
		t.Fatalf("expected ErrCustodyTransferFailed, got %v", err)
	}
	position, ok := f.state.positions[f.key]
	if !ok || !position.Staked {
		t.Fatalf("expected position restored")
	}
	if f.state.total != 1 {
		t.Fatalf("expected total restored to 1, got %d", f.state.total)
	}
	if f.state.cooldowns[f.key] != 0 {
		t.Fatalf("expected cooldown cleared on restore")
	}
	if f.colonies.members[f.key] != 3 {
		t.Fatalf("expected colony membership restored")
	}
}

func TestUnstakeRejectsWrappedPosition(t *testing.T) {
	f := newStakeFixture(t)
	if _, err := f.engine.Stake(f.key, f.owner); err != nil {
		t.Fatalf("stake: %v", err)
	}
	position := f.state.positions[f.key]
	position.ReceiptID = [32]byte{1}
	f.state.positions[f.key] = position

	if err := f.engine.Unstake(f.key, f.owner); !errors.Is(err, ErrReceiptActive) {
		t.Fatalf("expected ErrReceiptActive, got %v", err)
	}
}
