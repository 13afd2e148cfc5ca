package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"hivestake/core/types"
	"hivestake/native/colony"
	"hivestake/native/common"
	"hivestake/native/infusion"
	"hivestake/native/stake"
	"hivestake/storage"
)

// Key prefixes. Every record lives under one flat composite key; list-valued
// indices are stored whole under a single key because the backend exposes no
// iteration.
const (
	prefixPosition = "stake/position/"
	prefixOwnerIdx = "stake/owner/"
	prefixAccount  = "stake/account/"
	prefixCooldown = "stake/cooldown/"
	keyTotalStaked = "stake/total"

	prefixColony  = "colony/record/"
	prefixPending = "colony/pending/"
	keyColonyIDs  = "colony/ids"
	keyColonySeq  = "colony/seq"

	prefixInfusion = "infusion/record/"
	prefixUsage    = "issuance/usage/"
	prefixPause    = "pause/"
)

// Manager persists every engine's state through one key-value database. It
// satisfies the narrow State interface of each native engine plus the shared
// pause view.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager wraps a database in a state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func tokenKeyBytes(key types.TokenKey) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(key))
	return fmt.Sprintf("%x", buf)
}

func addrBytes(addr [20]byte) string {
	return fmt.Sprintf("%x", addr)
}

func (m *Manager) getJSON(key string, out interface{}) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

// --- stake.State ---

func (m *Manager) PositionGet(key types.TokenKey) (*stake.Position, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var position stake.Position
	ok, err := m.getJSON(prefixPosition+tokenKeyBytes(key), &position)
	if err != nil || !ok {
		return nil, false, err
	}
	return position.Normalize(), true, nil
}

func (m *Manager) PositionPut(p *stake.Position) error {
	if p == nil {
		return fmt.Errorf("state: nil position")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixPosition+tokenKeyBytes(p.Key), p.Normalize())
}

func (m *Manager) PositionDelete(key types.TokenKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Delete([]byte(prefixPosition + tokenKeyBytes(key)))
}

func (m *Manager) OwnerPositions(addr [20]byte) ([]types.TokenKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ownerIndex(addr)
}

func (m *Manager) ownerIndex(addr [20]byte) ([]types.TokenKey, error) {
	var keys []types.TokenKey
	if _, err := m.getJSON(prefixOwnerIdx+addrBytes(addr), &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (m *Manager) OwnerIndexAdd(addr [20]byte, key types.TokenKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys, err := m.ownerIndex(addr)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return m.putJSON(prefixOwnerIdx+addrBytes(addr), append(keys, key))
}

func (m *Manager) OwnerIndexRemove(addr [20]byte, key types.TokenKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys, err := m.ownerIndex(addr)
	if err != nil {
		return err
	}
	for i, k := range keys {
		if k == key {
			// Swap with the last entry; ordering is the batch cursor's
			// problem, not the index's.
			keys[i] = keys[len(keys)-1]
			return m.putJSON(prefixOwnerIdx+addrBytes(addr), keys[:len(keys)-1])
		}
	}
	return nil
}

func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var account types.Account
	ok, err := m.getJSON(prefixAccount+addrBytes(addr), &account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{}).Normalize(), nil
	}
	return account.Normalize(), nil
}

func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixAccount+addrBytes(addr), account.Normalize())
}

func (m *Manager) TotalStaked() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total uint64
	if _, err := m.getJSON(keyTotalStaked, &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (m *Manager) SetTotalStaked(total uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(keyTotalStaked, total)
}

func (m *Manager) CooldownUntil(key types.TokenKey) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var until int64
	if _, err := m.getJSON(prefixCooldown+tokenKeyBytes(key), &until); err != nil {
		return 0, err
	}
	return until, nil
}

func (m *Manager) SetCooldown(key types.TokenKey, until int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixCooldown+tokenKeyBytes(key), until)
}

// --- colony.State ---

func (m *Manager) ColonyGet(id uint64) (*colony.Colony, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var record colony.Colony
	ok, err := m.getJSON(fmt.Sprintf("%s%d", prefixColony, id), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return &record, true, nil
}

func (m *Manager) ColonyPut(c *colony.Colony) error {
	if c == nil {
		return fmt.Errorf("state: nil colony")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putJSON(fmt.Sprintf("%s%d", prefixColony, c.ID), c); err != nil {
		return err
	}
	ids, err := m.colonyIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == c.ID {
			return nil
		}
	}
	return m.putJSON(keyColonyIDs, append(ids, c.ID))
}

func (m *Manager) colonyIDs() ([]uint64, error) {
	var ids []uint64
	if _, err := m.getJSON(keyColonyIDs, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) ColonyIDs() ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.colonyIDs()
}

func (m *Manager) NextColonyID() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var seq uint64
	if _, err := m.getJSON(keyColonySeq, &seq); err != nil {
		return 0, err
	}
	seq++
	if err := m.putJSON(keyColonySeq, seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (m *Manager) PendingAssignment(key types.TokenKey) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var colonyID uint64
	ok, err := m.getJSON(prefixPending+tokenKeyBytes(key), &colonyID)
	return colonyID, ok, err
}

func (m *Manager) SetPendingAssignment(key types.TokenKey, colonyID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixPending+tokenKeyBytes(key), colonyID)
}

func (m *Manager) DeletePendingAssignment(key types.TokenKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Delete([]byte(prefixPending + tokenKeyBytes(key)))
}

// PositionColony projects the colony assignment out of the position record so
// the registry never needs the full ledger surface.
func (m *Manager) PositionColony(key types.TokenKey) ([20]byte, uint64, bool, error) {
	position, ok, err := m.PositionGet(key)
	if err != nil || !ok || !position.Staked {
		return [20]byte{}, 0, false, err
	}
	return position.Owner, position.ColonyID, true, nil
}

func (m *Manager) SetPositionColony(key types.TokenKey, colonyID uint64) error {
	position, ok, err := m.PositionGet(key)
	if err != nil {
		return err
	}
	if !ok {
		return colony.ErrPositionGone
	}
	position.ColonyID = colonyID
	return m.PositionPut(position)
}

// --- infusion.State ---

func (m *Manager) InfusionGet(key types.TokenKey) (*infusion.InfusionPosition, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var record infusion.InfusionPosition
	ok, err := m.getJSON(prefixInfusion+tokenKeyBytes(key), &record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record.Normalize(), true, nil
}

func (m *Manager) InfusionPut(p *infusion.InfusionPosition) error {
	if p == nil {
		return fmt.Errorf("state: nil infusion record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixInfusion+tokenKeyBytes(p.Key), p.Normalize())
}

func (m *Manager) InfusionDelete(key types.TokenKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Delete([]byte(prefixInfusion + tokenKeyBytes(key)))
}

// --- issuance.State ---

func (m *Manager) DailyUsage(addr [20]byte) (common.QuotaNow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var usage common.QuotaNow
	if _, err := m.getJSON(prefixUsage+addrBytes(addr), &usage); err != nil {
		return common.QuotaNow{}, err
	}
	return usage, nil
}

func (m *Manager) SetDailyUsage(addr [20]byte, usage common.QuotaNow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixUsage+addrBytes(addr), usage)
}

// --- common.PauseView ---

// IsPaused reports the persisted pause toggle for a module. Missing or
// unreadable toggles count as unpaused.
func (m *Manager) IsPaused(module string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var paused bool
	if _, err := m.getJSON(prefixPause+module, &paused); err != nil {
		return false
	}
	return paused
}

// SetPaused persists the pause toggle for a module.
func (m *Manager) SetPaused(module string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixPause+module, paused)
}
