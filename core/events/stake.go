package events

import (
	"math/big"
	"strconv"

	"hivestake/core/types"
)

const (
	// TypeStaked captures a new position entering custody.
	TypeStaked = "stake.staked"
	// TypeUnstaked captures a position leaving custody.
	TypeUnstaked = "stake.unstaked"
	// TypeRewardsClaimed is emitted when accrued rewards are paid out.
	TypeRewardsClaimed = "stake.rewardsClaimed"
	// TypeBatchClaimed summarises one batch-claim sweep.
	TypeBatchClaimed = "stake.batchClaimed"
	// TypeReceiptMinted is emitted when a transferable receipt wraps a position.
	TypeReceiptMinted = "stake.receiptMinted"
	// TypeReceiptReleased is emitted when a wrapped position is redeemed.
	TypeReceiptReleased = "stake.receiptReleased"
)

// Staked captures the initial state written for a freshly staked position.
type Staked struct {
	Key      types.TokenKey
	Owner    [20]byte
	Variant  uint8
	ColonyID uint64
	StakedAt int64
}

// EventType satisfies the Event interface.
func (Staked) EventType() string { return TypeStaked }

// Event converts the payload into a broadcastable event.
func (e Staked) Event() *types.Event {
	attrs := map[string]string{
		"key":      e.Key.String(),
		"owner":    formatAddress(e.Owner),
		"variant":  strconv.FormatUint(uint64(e.Variant), 10),
		"stakedAt": strconv.FormatInt(e.StakedAt, 10),
	}
	if e.ColonyID != 0 {
		attrs["colonyId"] = strconv.FormatUint(e.ColonyID, 10)
	}
	return &types.Event{Type: TypeStaked, Attributes: attrs}
}

// Unstaked captures a position leaving custody together with its final totals.
type Unstaked struct {
	Key          types.TokenKey
	Owner        [20]byte
	TotalClaimed *big.Int
	CooldownEnds int64
}

// EventType satisfies the Event interface.
func (Unstaked) EventType() string { return TypeUnstaked }

// Event converts the payload into a broadcastable event.
func (e Unstaked) Event() *types.Event {
	return &types.Event{Type: TypeUnstaked, Attributes: map[string]string{
		"key":          e.Key.String(),
		"owner":        formatAddress(e.Owner),
		"totalClaimed": formatAmount(e.TotalClaimed),
		"cooldownEnds": strconv.FormatInt(e.CooldownEnds, 10),
	}}
}

// RewardsClaimed captures a single reward payout split across its sources.
type RewardsClaimed struct {
	Key          types.TokenKey
	Owner        [20]byte
	Amount       *big.Int
	FromTreasury *big.Int
	Minted       *big.Int
}

// EventType satisfies the Event interface.
func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

// Event converts the payload into a broadcastable event.
func (e RewardsClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardsClaimed, Attributes: map[string]string{
		"key":          e.Key.String(),
		"owner":        formatAddress(e.Owner),
		"amount":       formatAmount(e.Amount),
		"fromTreasury": formatAmount(e.FromTreasury),
		"minted":       formatAmount(e.Minted),
	}}
}

// BatchClaimed summarises a batch-claim sweep over an owner's positions.
type BatchClaimed struct {
	Owner   [20]byte
	Claimed uint64
	Scanned uint64
	Amount  *big.Int
	Cursor  uint64
}

// EventType satisfies the Event interface.
func (BatchClaimed) EventType() string { return TypeBatchClaimed }

// Event converts the payload into a broadcastable event.
func (e BatchClaimed) Event() *types.Event {
	return &types.Event{Type: TypeBatchClaimed, Attributes: map[string]string{
		"owner":   formatAddress(e.Owner),
		"claimed": strconv.FormatUint(e.Claimed, 10),
		"scanned": strconv.FormatUint(e.Scanned, 10),
		"amount":  formatAmount(e.Amount),
		"cursor":  strconv.FormatUint(e.Cursor, 10),
	}}
}

// ReceiptMinted captures a receipt token wrapping a staked position.
type ReceiptMinted struct {
	Key       types.TokenKey
	Owner     [20]byte
	ReceiptID [32]byte
}

// EventType satisfies the Event interface.
func (ReceiptMinted) EventType() string { return TypeReceiptMinted }

// Event converts the payload into a broadcastable event.
func (e ReceiptMinted) Event() *types.Event {
	return &types.Event{Type: TypeReceiptMinted, Attributes: map[string]string{
		"key":       e.Key.String(),
		"owner":     formatAddress(e.Owner),
		"receiptId": formatHash(e.ReceiptID),
	}}
}

// ReceiptReleased captures redemption of a wrapped position.
type ReceiptReleased struct {
	Key       types.TokenKey
	Holder    [20]byte
	ReceiptID [32]byte
}

// EventType satisfies the Event interface.
func (ReceiptReleased) EventType() string { return TypeReceiptReleased }

// Event converts the payload into a broadcastable event.
func (e ReceiptReleased) Event() *types.Event {
	return &types.Event{Type: TypeReceiptReleased, Attributes: map[string]string{
		"key":       e.Key.String(),
		"holder":    formatAddress(e.Holder),
		"receiptId": formatHash(e.ReceiptID),
	}}
}
