package state

import (
	"errors"
	"sync"

	"hivestake/core/types"
	"hivestake/storage"
)

const prefixCustody = "custody/owner/"

var (
	// ErrUnknownToken reports a custody lookup for a token the registry
	// has never seen.
	ErrUnknownToken = errors.New("state: unknown token")
	// ErrCustodyMismatch reports a transfer whose claimed sender does not
	// hold the token.
	ErrCustodyMismatch = errors.New("state: custody mismatch")
)

// Custody tracks which address holds each token. The staking ledger moves
// tokens through it when positions open and close; registration is the
// node operator's admission step for a token.
type Custody struct {
	mu sync.Mutex
	db storage.Database
}

// NewCustody wraps a database in a custody registry.
func NewCustody(db storage.Database) *Custody {
	return &Custody{db: db}
}

func (c *Custody) ownerAt(key types.TokenKey) ([20]byte, error) {
	raw, err := c.db.Get([]byte(prefixCustody + tokenKeyBytes(key)))
	if errors.Is(err, storage.ErrNotFound) {
		return [20]byte{}, ErrUnknownToken
	}
	if err != nil {
		return [20]byte{}, err
	}
	if len(raw) != 20 {
		return [20]byte{}, errors.New("state: corrupt custody record")
	}
	var owner [20]byte
	copy(owner[:], raw)
	return owner, nil
}

func (c *Custody) setOwner(key types.TokenKey, owner [20]byte) error {
	return c.db.Put([]byte(prefixCustody+tokenKeyBytes(key)), owner[:])
}

// Register records the initial holder of a token.
func (c *Custody) Register(key types.TokenKey, owner [20]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setOwner(key, owner)
}

// OwnerOf returns the current holder of a token.
func (c *Custody) OwnerOf(key types.TokenKey) ([20]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownerAt(key)
}

// Transfer moves a token between holders. The claimed sender must match the
// recorded holder.
func (c *Custody) Transfer(key types.TokenKey, from, to [20]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, err := c.ownerAt(key)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrCustodyMismatch
	}
	return c.setOwner(key, to)
}

// ForceTransfer reassigns a token regardless of the current holder. Receipt
// redemption uses it to release custody to the receipt bearer.
func (c *Custody) ForceTransfer(key types.TokenKey, to [20]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.ownerAt(key); err != nil {
		return err
	}
	return c.setOwner(key, to)
}
