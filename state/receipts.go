package state

import (
	"errors"
	"fmt"
	"sync"

	"hivestake/storage"
)

const prefixReceipt = "receipt/owner/"

var (
	// ErrUnknownReceipt reports a lookup for a receipt that was never
	// minted or has been burned.
	ErrUnknownReceipt = errors.New("state: unknown receipt")
	// ErrReceiptExists reports a mint reusing a live receipt id.
	ErrReceiptExists = errors.New("state: receipt already exists")
)

// Receipts is the transferable-receipt registry backing wrapped positions.
// Each live receipt id maps to its current bearer.
type Receipts struct {
	mu sync.Mutex
	db storage.Database
}

// NewReceipts wraps a database in a receipt registry.
func NewReceipts(db storage.Database) *Receipts {
	return &Receipts{db: db}
}

func receiptKey(id [32]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", prefixReceipt, id))
}

// Mint records a new receipt for a bearer.
func (r *Receipts) Mint(to [20]byte, id [32]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.db.Has(receiptKey(id))
	if err != nil {
		return err
	}
	if ok {
		return ErrReceiptExists
	}
	return r.db.Put(receiptKey(id), to[:])
}

// Burn retires a receipt.
func (r *Receipts) Burn(id [32]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok, err := r.db.Has(receiptKey(id))
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownReceipt
	}
	return r.db.Delete(receiptKey(id))
}

// OwnerOf returns the current bearer of a receipt.
func (r *Receipts) OwnerOf(id [32]byte) ([20]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := r.db.Get(receiptKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return [20]byte{}, ErrUnknownReceipt
	}
	if err != nil {
		return [20]byte{}, err
	}
	if len(raw) != 20 {
		return [20]byte{}, errors.New("state: corrupt receipt record")
	}
	var owner [20]byte
	copy(owner[:], raw)
	return owner, nil
}

// Transfer hands a receipt to a new bearer. The claimed sender must match
// the recorded bearer.
func (r *Receipts) Transfer(id [32]byte, from, to [20]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := r.db.Get(receiptKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUnknownReceipt
	}
	if err != nil {
		return err
	}
	if len(raw) != 20 {
		return errors.New("state: corrupt receipt record")
	}
	var owner [20]byte
	copy(owner[:], raw)
	if owner != from {
		return ErrCustodyMismatch
	}
	return r.db.Put(receiptKey(id), to[:])
}
