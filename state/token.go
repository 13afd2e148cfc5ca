package state

import (
	"errors"
	"math/big"
	"sync"

	"hivestake/native/common"
	"hivestake/storage"
)

const (
	prefixBalance   = "token/balance/"
	prefixAllowance = "token/allowance/"
	prefixExempt    = "token/exempt/"
	keySupply       = "token/supply"
)

var (
	// ErrInsufficientBalance reports a transfer or burn exceeding the
	// sender's balance.
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	// ErrInsufficientAllowance reports a pull exceeding the approval
	// granted to the spender.
	ErrInsufficientAllowance = errors.New("state: insufficient allowance")
)

// TokenLedger is the node-local fungible reward token. It settles fee pulls,
// treasury payouts and infusion deposits, and exposes the privileged mint
// pathway with its per-address daily-mint exemption list.
type TokenLedger struct {
	mu sync.Mutex
	db storage.Database
}

// NewTokenLedger wraps a database in a token ledger.
func NewTokenLedger(db storage.Database) *TokenLedger {
	return &TokenLedger{db: db}
}

func (t *TokenLedger) amountAt(key string) (*big.Int, error) {
	raw, err := t.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	value, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, errors.New("state: corrupt amount record")
	}
	return value, nil
}

func (t *TokenLedger) setAmount(key string, value *big.Int) error {
	return t.db.Put([]byte(key), []byte(value.String()))
}

func allowanceKey(owner, spender [20]byte) string {
	return prefixAllowance + addrBytes(owner) + "/" + addrBytes(spender)
}

// BalanceOf returns the spendable balance of an address.
func (t *TokenLedger) BalanceOf(addr [20]byte) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.amountAt(prefixBalance + addrBytes(addr))
}

// Allowance returns the amount the spender may pull from the owner.
func (t *TokenLedger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.amountAt(allowanceKey(owner, spender))
}

// Approve sets the spender's allowance on the owner's balance.
func (t *TokenLedger) Approve(owner, spender [20]byte, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setAmount(allowanceKey(owner, spender), common.CloneBig(amount))
}

// Transfer moves tokens between two addresses. A zero or negative amount is
// a no-op.
func (t *TokenLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fromBalance, err := t.amountAt(prefixBalance + addrBytes(from))
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := t.amountAt(prefixBalance + addrBytes(to))
	if err != nil {
		return err
	}
	if err := t.setAmount(prefixBalance+addrBytes(from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return t.setAmount(prefixBalance+addrBytes(to), new(big.Int).Add(toBalance, amount))
}

// Burn destroys tokens from an address and shrinks the supply.
func (t *TokenLedger) Burn(from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	balance, err := t.amountAt(prefixBalance + addrBytes(from))
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	supply, err := t.amountAt(keySupply)
	if err != nil {
		return err
	}
	if err := t.setAmount(prefixBalance+addrBytes(from), new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	return t.setAmount(keySupply, common.SaturatingSub(supply, amount))
}

// Mint creates tokens for an address and grows the supply.
func (t *TokenLedger) Mint(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	balance, err := t.amountAt(prefixBalance + addrBytes(to))
	if err != nil {
		return err
	}
	supply, err := t.amountAt(keySupply)
	if err != nil {
		return err
	}
	if err := t.setAmount(prefixBalance+addrBytes(to), new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	return t.setAmount(keySupply, new(big.Int).Add(supply, amount))
}

// TotalSupply returns the minted-minus-burned supply.
func (t *TokenLedger) TotalSupply() (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.amountAt(keySupply)
}

// MintExempt reports whether an address bypasses the daily issuance quota.
func (t *TokenLedger) MintExempt(addr [20]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ok, err := t.db.Has([]byte(prefixExempt + addrBytes(addr)))
	if err != nil {
		return false
	}
	return ok
}

// SetMintExempt adds or removes an address from the quota exemption list.
func (t *TokenLedger) SetMintExempt(addr [20]byte, exempt bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := []byte(prefixExempt + addrBytes(addr))
	if exempt {
		return t.db.Put(key, []byte{1})
	}
	return t.db.Delete(key)
}
