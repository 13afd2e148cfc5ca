package stake

import (
	"fmt"
	"math/big"

	"hivestake/core/events"
	"hivestake/core/types"
	"hivestake/native/common"
)

// contextFor assembles the reward context for a position: colony bonus from
// the registry hook, accessory bonus best-effort from the external registry,
// and the account/global counters feeding the balance curve.
func (e *Engine) contextFor(position *Position, now int64) RewardContext {
	ctx := RewardContext{Now: now}
	if e.colonies != nil && position.ColonyID != 0 {
		ctx.ColonyBonus = e.colonies.Bonus(position.ColonyID)
	}
	if e.accessories != nil {
		out := common.TryCollaborator("accessoryRegistry", "accessoryBonus", func() error {
			bonus, err := e.accessories.AccessoryBonus(position.Key)
			if err != nil {
				return err
			}
			ctx.AccessoryBonus = bonus
			return nil
		})
		e.emitSkip("accessoryRegistry", "accessoryBonus", out)
	}
	if acc, err := e.account(position.Owner); err == nil {
		ctx.AccountPositions = acc.PositionCount
		ctx.AccountJoinedAt = acc.JoinedAt
	}
	if total, err := e.state.TotalStaked(); err == nil {
		ctx.TotalPositions = total
	}
	return ctx
}

// syncPosition refreshes externally owned attributes (wear, specialization)
// best-effort before a reward computation. Oracle failures keep the stored
// values.
func (e *Engine) syncPosition(position *Position, now int64) {
	changed := false
	if e.wear != nil {
		out := common.TryCollaborator("wearOracle", "wearLevel", func() error {
			wear, err := e.wear.WearLevel(position.Key)
			if err != nil {
				return err
			}
			if wear > 100 {
				wear = 100
			}
			if wear != position.WearLevel {
				position.WearLevel = wear
				position.WearPenalty = e.config.WearPenaltyPct(wear)
				changed = true
			}
			return nil
		})
		e.emitSkip("wearOracle", "wearLevel", out)
	}
	if e.specs != nil {
		out := common.TryCollaborator("specializationRegistry", "specialization", func() error {
			spec, err := e.specs.Specialization(position.Key)
			if err != nil {
				return err
			}
			if spec != position.Specialization {
				position.Specialization = spec
				changed = true
			}
			return nil
		})
		e.emitSkip("specializationRegistry", "specialization", out)
	}
	if changed {
		position.LastSyncAt = now
	}
}

func (e *Engine) breakdownFor(position *Position, now int64) *Breakdown {
	e.syncPosition(position, now)
	return e.config.CalculateReward(position, e.contextFor(position, now))
}

// PendingReward reports the reward that would be paid if the position were
// claimed now. Read-only.
func (e *Engine) PendingReward(key types.TokenKey) (*big.Int, error) {
	breakdown, err := e.RewardBreakdown(key)
	if err != nil {
		return nil, err
	}
	return breakdown.Amount, nil
}

// RewardBreakdown reports the full per-term decomposition of the pending
// reward. Read-only.
func (e *Engine) RewardBreakdown(key types.TokenKey) (*Breakdown, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, ok, err := e.state.PositionGet(key)
	if err != nil {
		return nil, err
	}
	if !ok || !position.Staked {
		return nil, ErrNotStaked
	}
	position = position.Clone().Normalize()
	now := e.now()
	e.syncPosition(position, now)
	return e.config.CalculateReward(position, e.contextFor(position, now)), nil
}

// QuotaStatusFor reports today's remaining shared issuance quota for an
// account. Read-only.
func (e *Engine) QuotaStatusFor(addr [20]byte) (*QuotaStatus, error) {
	if e.issuer == nil {
		return &QuotaStatus{Unlimited: true}, nil
	}
	remaining, day, err := e.issuer.Remaining(addr)
	if err != nil {
		return nil, err
	}
	status := &QuotaStatus{Day: day}
	if remaining == nil {
		status.Unlimited = true
	} else {
		status.Remaining = remaining
	}
	return status, nil
}

// experiencePerClaim is the flat grant pushed to the experience sink after a
// successful claim.
const experiencePerClaim = 10

// Claim pays out the accrued reward for one position. The daily quota is
// enforced strictly: a claim that would exceed it fails whole.
func (e *Engine) Claim(key types.TokenKey, caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard.Enter("claim"); err != nil {
		return nil, err
	}
	defer e.guard.Exit("claim")
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	position, ok, err := e.state.PositionGet(key)
	if err != nil {
		return nil, err
	}
	if !ok || !position.Staked {
		return nil, ErrNotStaked
	}
	position = position.Clone().Normalize()
	if caller != position.Owner && !e.isPrivileged(caller) {
		return nil, ErrNotOwner
	}
	now := e.now()
	breakdown := e.breakdownFor(position, now)
	amount := breakdown.Amount
	if amount.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	owner := position.Owner
	if e.issuer != nil {
		if err := e.issuer.Consume(owner, amount); err != nil {
			return nil, err
		}
	}
	if e.fees != nil {
		if err := e.fees.Charge(e.feeOpClaim, owner); err != nil {
			e.refundQuota(owner, amount)
			return nil, err
		}
	}

	snapshot := position.Clone()
	acc, err := e.account(owner)
	if err != nil {
		e.refundQuota(owner, amount)
		return nil, err
	}
	accSnapshot := acc.Clone()

	position.LastClaimAt = now
	position.TotalClaimed = new(big.Int).Add(position.TotalClaimed, amount)
	if err := e.state.PositionPut(position); err != nil {
		e.refundQuota(owner, amount)
		return nil, err
	}
	acc.TotalClaimed = new(big.Int).Add(acc.TotalClaimed, amount)
	if err := e.state.PutAccount(owner, acc); err != nil {
		_ = e.state.PositionPut(snapshot)
		e.refundQuota(owner, amount)
		return nil, err
	}

	var fromTreasury, minted *big.Int
	if e.issuer != nil {
		fromTreasury, minted, err = e.issuer.Distribute(owner, amount)
		if err != nil {
			_ = e.state.PositionPut(snapshot)
			_ = e.state.PutAccount(owner, accSnapshot)
			e.refundQuota(owner, amount)
			return nil, fmt.Errorf("stake: reward payout: %w", err)
		}
	}

	e.notifySecondary(position, owner, amount)
	e.emit(events.RewardsClaimed{
		Key:          key,
		Owner:        owner,
		Amount:       amount,
		FromTreasury: fromTreasury,
		Minted:       minted,
	})
	return common.CloneBig(amount), nil
}

func (e *Engine) refundQuota(owner [20]byte, amount *big.Int) {
	if e.issuer == nil {
		return
	}
	_ = e.issuer.Refund(owner, amount)
}

// notifySecondary fires the experience and achievement hooks; failures are
// swallowed and surfaced only as skip signals.
func (e *Engine) notifySecondary(position *Position, owner [20]byte, amount *big.Int) {
	if e.experience != nil {
		out := common.TryCollaborator("experienceSink", "grantExperience", func() error {
			return e.experience.GrantExperience(position.Key, experiencePerClaim)
		})
		e.emitSkip("experienceSink", "grantExperience", out)
	}
	if e.achievements != nil {
		out := common.TryCollaborator("achievementSink", "recordClaim", func() error {
			return e.achievements.RecordClaim(owner, common.CloneBig(amount))
		})
		e.emitSkip("achievementSink", "recordClaim", out)
	}
}

// BatchClaim sweeps the caller's positions from a persisted rotation cursor,
// accumulating rewards until the item cap, the scan budget or the remaining
// daily quota stops it. A sweep that finds nothing still advances the cursor
// so repeated empty calls never re-scan the same subset forever.
func (e *Engine) BatchClaim(caller [20]byte, maxCount uint64) (*BatchResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard.Enter("batchClaim"); err != nil {
		return nil, err
	}
	defer e.guard.Exit("batchClaim")
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	keys, err := e.state.OwnerPositions(caller)
	if err != nil {
		return nil, err
	}
	result := &BatchResult{Amount: big.NewInt(0)}
	acc, err := e.account(caller)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		result.Cursor = 0
		return result, nil
	}

	maxItems, budget := e.config.BatchLimits()
	if maxCount > 0 && maxCount < maxItems {
		maxItems = maxCount
	}
	var remaining *big.Int
	if e.issuer != nil {
		if r, _, err := e.issuer.Remaining(caller); err == nil {
			remaining = r
		}
	}

	now := e.now()
	n := uint64(len(keys))
	cursor := acc.BatchCursor % n
	accSnapshot := acc.Clone()

	type claimed struct {
		before *Position
		after  *Position
		amount *big.Int
	}
	var settled []claimed

	for scanned := uint64(0); scanned < n && scanned < budget; scanned++ {
		idx := (cursor + scanned) % n
		result.Scanned++
		result.Cursor = (idx + 1) % n

		position, ok, err := e.state.PositionGet(keys[idx])
		if err != nil || !ok || !position.Staked || position.Owner != caller {
			continue
		}
		position = position.Clone().Normalize()
		breakdown := e.breakdownFor(position, now)
		amount := breakdown.Amount
		if amount.Sign() <= 0 {
			continue
		}
		// Stop before exceeding the quota rather than failing the batch.
		if remaining != nil && amount.Cmp(remaining) > 0 {
			result.Cursor = idx % n
			break
		}
		before := position.Clone()
		position.LastClaimAt = now
		position.TotalClaimed = new(big.Int).Add(position.TotalClaimed, amount)
		if err := e.state.PositionPut(position); err != nil {
			continue
		}
		settled = append(settled, claimed{before: before, after: position, amount: amount})
		result.Claimed++
		result.Amount = new(big.Int).Add(result.Amount, amount)
		if remaining != nil {
			remaining = common.SaturatingSub(remaining, amount)
		}
		if result.Claimed >= maxItems {
			result.Cursor = (idx + 1) % n
			break
		}
	}

	rollback := func() {
		for _, entry := range settled {
			_ = e.state.PositionPut(entry.before)
		}
		accSnapshot.BatchCursor = result.Cursor
		_ = e.state.PutAccount(caller, accSnapshot)
	}

	// Persist the cursor even when the sweep found nothing (starvation-free).
	acc.BatchCursor = result.Cursor
	if result.Amount.Sign() > 0 {
		acc.TotalClaimed = new(big.Int).Add(acc.TotalClaimed, result.Amount)
	}
	if err := e.state.PutAccount(caller, acc); err != nil {
		rollback()
		return nil, err
	}
	if result.Amount.Sign() == 0 {
		return result, nil
	}

	if e.issuer != nil {
		if err := e.issuer.Consume(caller, result.Amount); err != nil {
			rollback()
			return nil, err
		}
	}
	if e.fees != nil {
		if err := e.fees.Charge(e.feeOpClaim, caller); err != nil {
			rollback()
			e.refundQuota(caller, result.Amount)
			return nil, err
		}
	}
	if e.issuer != nil {
		if _, _, err := e.issuer.Distribute(caller, result.Amount); err != nil {
			rollback()
			e.refundQuota(caller, result.Amount)
			return nil, fmt.Errorf("stake: batch payout: %w", err)
		}
	}
	for _, entry := range settled {
		e.notifySecondary(entry.after, caller, entry.amount)
	}
	e.emit(events.BatchClaimed{
		Owner:   caller,
		Claimed: result.Claimed,
		Scanned: result.Scanned,
		Amount:  result.Amount,
		Cursor:  result.Cursor,
	})
	return result, nil
}

// AccountInfo returns the per-owner aggregates for the rpc surface.
func (e *Engine) AccountInfo(addr [20]byte) (*types.Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.account(addr)
}
