package stake

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"hivestake/core/events"
	"hivestake/core/types"
	"hivestake/native/common"
)

var (
	ErrNotWrapped       = errors.New("stake: position not wrapped")
	ErrNotReceiptHolder = errors.New("stake: caller does not hold the receipt")
)

// ReceiptToken is the transferable-receipt collaborator. The receipt ledger
// lives with the token; this engine only tracks which receipt wraps which
// position.
type ReceiptToken interface {
	Mint(to [20]byte, id [32]byte) error
	Burn(id [32]byte) error
	OwnerOf(id [32]byte) ([20]byte, error)
}

// SetReceiptToken wires the receipt token collaborator.
func (e *Engine) SetReceiptToken(t ReceiptToken) { e.receipts = t }

// receiptID derives a deterministic receipt identifier from the position's
// key, owner and stake time.
func receiptID(key types.TokenKey, owner [20]byte, stakedAt int64) [32]byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(key))
	binary.BigEndian.PutUint64(buf[8:], uint64(stakedAt))
	return ethcrypto.Keccak256Hash(buf[:8], owner[:], buf[8:])
}

// WrapReceipt mints a transferable receipt for an active position. While
// wrapped, the position can only be released through the receipt path.
func (e *Engine) WrapReceipt(key types.TokenKey, caller [20]byte) ([32]byte, error) {
	var zero [32]byte
	if e == nil || e.state == nil {
		return zero, errNilState
	}
	if err := e.guard.Enter("wrapReceipt"); err != nil {
		return zero, err
	}
	defer e.guard.Exit("wrapReceipt")
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return zero, err
	}
	if e.receipts == nil {
		return zero, fmt.Errorf("stake: receipt token not configured")
	}
	position, ok, err := e.state.PositionGet(key)
	if err != nil {
		return zero, err
	}
	if !ok || !position.Staked {
		return zero, ErrNotStaked
	}
	position = position.Clone().Normalize()
	if position.Wrapped() {
		return zero, ErrReceiptActive
	}
	if caller != position.Owner {
		return zero, ErrNotOwner
	}

	id := receiptID(key, position.Owner, position.StakedAt)
	position.ReceiptID = id
	if err := e.state.PositionPut(position); err != nil {
		return zero, err
	}
	if err := e.receipts.Mint(caller, id); err != nil {
		position.ReceiptID = [32]byte{}
		_ = e.state.PositionPut(position)
		return zero, fmt.Errorf("stake: receipt mint: %w", err)
	}
	e.emit(events.ReceiptMinted{Key: key, Owner: caller, ReceiptID: id})
	return id, nil
}

// ReleaseWithReceipt redeems a receipt: the current receipt holder burns it
// and receives the underlying asset via the regular unstake flow. Ownership
// of the position follows the receipt.
func (e *Engine) ReleaseWithReceipt(key types.TokenKey, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard.Enter("releaseReceipt"); err != nil {
		return err
	}
	defer e.guard.Exit("releaseReceipt")
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.unwrap(key, caller); err != nil {
		return err
	}
	return e.Unstake(key, caller)
}

// UnwrapReceipt burns the receipt and hands position ownership to the
// holder without releasing custody.
func (e *Engine) UnwrapReceipt(key types.TokenKey, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard.Enter("unwrapReceipt"); err != nil {
		return err
	}
	defer e.guard.Exit("unwrapReceipt")
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	return e.unwrap(key, caller)
}

// unwrap validates the holder, burns the receipt and reassigns the position
// to the holder. The burn is the receipt token's own ledger entry and fires
// before local ownership moves; a failed burn leaves everything untouched.
func (e *Engine) unwrap(key types.TokenKey, caller [20]byte) error {
	if e.receipts == nil {
		return fmt.Errorf("stake: receipt token not configured")
	}
	position, ok, err := e.state.PositionGet(key)
	if err != nil {
		return err
	}
	if !ok || !position.Staked {
		return ErrNotStaked
	}
	position = position.Clone().Normalize()
	if !position.Wrapped() {
		return ErrNotWrapped
	}
	holder, err := e.receipts.OwnerOf(position.ReceiptID)
	if err != nil {
		return fmt.Errorf("stake: receipt lookup: %w", err)
	}
	if holder != caller {
		return ErrNotReceiptHolder
	}
	id := position.ReceiptID
	if err := e.receipts.Burn(id); err != nil {
		return fmt.Errorf("stake: receipt burn: %w", err)
	}

	previous := position.Owner
	position.ReceiptID = [32]byte{}
	if holder != previous {
		if err := e.state.OwnerIndexRemove(previous, key); err != nil {
			return err
		}
		if err := e.state.OwnerIndexAdd(holder, key); err != nil {
			return err
		}
		if acc, err := e.account(previous); err == nil {
			if acc.PositionCount > 0 {
				acc.PositionCount--
			}
			_ = e.state.PutAccount(previous, acc)
		}
		if acc, err := e.account(holder); err == nil {
			acc.PositionCount++
			if acc.JoinedAt == 0 {
				acc.JoinedAt = e.now()
			}
			_ = e.state.PutAccount(holder, acc)
		}
		position.Owner = holder
	}
	if err := e.state.PositionPut(position); err != nil {
		return err
	}
	e.emit(events.ReceiptReleased{Key: key, Holder: holder, ReceiptID: id})
	return nil
}
