package state

import (
	"errors"
	"math/big"
	"testing"

	"hivestake/core/types"
	"hivestake/storage"
)

func TestTokenTransferAndBalances(t *testing.T) {
	ledger := NewTokenLedger(storage.NewMemDB())
	alice := [20]byte{19: 1}
	bob := [20]byte{19: 2}

	if err := ledger.Mint(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	balance, err := ledger.BalanceOf(alice)
	if err != nil || balance.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("alice balance = %v err=%v", balance, err)
	}
	balance, err = ledger.BalanceOf(bob)
	if err != nil || balance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("bob balance = %v err=%v", balance, err)
	}

	if err := ledger.Transfer(bob, alice, big.NewInt(401)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Zero amounts settle silently.
	if err := ledger.Transfer(bob, alice, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
}

func TestTokenBurnAndSupply(t *testing.T) {
	ledger := NewTokenLedger(storage.NewMemDB())
	addr := [20]byte{19: 3}

	if err := ledger.Mint(addr, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Burn(addr, big.NewInt(200)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	supply, err := ledger.TotalSupply()
	if err != nil || supply.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("supply = %v err=%v", supply, err)
	}
	if err := ledger.Burn(addr, big.NewInt(400)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTokenAllowance(t *testing.T) {
	ledger := NewTokenLedger(storage.NewMemDB())
	treasury := [20]byte{19: 4}
	operator := [20]byte{19: 5}

	allowance, err := ledger.Allowance(treasury, operator)
	if err != nil || allowance.Sign() != 0 {
		t.Fatalf("default allowance = %v err=%v", allowance, err)
	}
	if err := ledger.Approve(treasury, operator, big.NewInt(250)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	allowance, err = ledger.Allowance(treasury, operator)
	if err != nil || allowance.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("allowance = %v err=%v", allowance, err)
	}
}

func TestTokenMintExemption(t *testing.T) {
	ledger := NewTokenLedger(storage.NewMemDB())
	addr := [20]byte{19: 6}

	if ledger.MintExempt(addr) {
		t.Fatalf("fresh address should not be exempt")
	}
	if err := ledger.SetMintExempt(addr, true); err != nil {
		t.Fatalf("set exempt: %v", err)
	}
	if !ledger.MintExempt(addr) {
		t.Fatalf("expected exemption after set")
	}
	if err := ledger.SetMintExempt(addr, false); err != nil {
		t.Fatalf("clear exempt: %v", err)
	}
	if ledger.MintExempt(addr) {
		t.Fatalf("expected exemption cleared")
	}
}

func TestCustodyTransferChecksHolder(t *testing.T) {
	custody := NewCustody(storage.NewMemDB())
	key := types.NewTokenKey(1, 9)
	alice := [20]byte{19: 1}
	bob := [20]byte{19: 2}

	if _, err := custody.OwnerOf(key); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if err := custody.Register(key, alice); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := custody.Transfer(key, bob, alice); !errors.Is(err, ErrCustodyMismatch) {
		t.Fatalf("expected ErrCustodyMismatch, got %v", err)
	}
	if err := custody.Transfer(key, alice, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := custody.OwnerOf(key)
	if err != nil || owner != bob {
		t.Fatalf("owner = %x err=%v", owner, err)
	}
	if err := custody.ForceTransfer(key, alice); err != nil {
		t.Fatalf("force transfer: %v", err)
	}
	owner, _ = custody.OwnerOf(key)
	if owner != alice {
		t.Fatalf("force transfer not applied")
	}
}

func TestReceiptLifecycle(t *testing.T) {
	receipts := NewReceipts(storage.NewMemDB())
	id := [32]byte{31: 7}
	alice := [20]byte{19: 1}
	bob := [20]byte{19: 2}

	if _, err := receipts.OwnerOf(id); !errors.Is(err, ErrUnknownReceipt) {
		t.Fatalf("expected ErrUnknownReceipt, got %v", err)
	}
	if err := receipts.Mint(alice, id); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := receipts.Mint(bob, id); !errors.Is(err, ErrReceiptExists) {
		t.Fatalf("expected ErrReceiptExists, got %v", err)
	}
	if err := receipts.Transfer(id, bob, alice); !errors.Is(err, ErrCustodyMismatch) {
		t.Fatalf("expected ErrCustodyMismatch, got %v", err)
	}
	if err := receipts.Transfer(id, alice, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := receipts.OwnerOf(id)
	if err != nil || owner != bob {
		t.Fatalf("owner = %x err=%v", owner, err)
	}
	if err := receipts.Burn(id); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := receipts.Burn(id); !errors.Is(err, ErrUnknownReceipt) {
		t.Fatalf("expected ErrUnknownReceipt after burn, got %v", err)
	}
}
