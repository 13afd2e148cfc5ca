package stake

import (
	"hivestake/core/types"
)

// PositionView reports the owner, variant and staked flag for a key. It is
// the narrow projection the infusion ledger depends on.
func (e *Engine) PositionView(key types.TokenKey) ([20]byte, uint8, bool, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, 0, false, errNilState
	}
	position, ok, err := e.state.PositionGet(key)
	if err != nil {
		return [20]byte{}, 0, false, err
	}
	if !ok || !position.Staked {
		return [20]byte{}, 0, false, nil
	}
	return position.Owner, position.Variant, true, nil
}

// SetInfusionLevel records the infusion tier on a position so the reward
// multiplier picks it up. A missing or unstaked position is a no-op; the tier
// only matters while the position accrues.
func (e *Engine) SetInfusionLevel(key types.TokenKey, level uint8) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	position, ok, err := e.state.PositionGet(key)
	if err != nil {
		return err
	}
	if !ok || !position.Staked {
		return nil
	}
	if level > MaxInfusionLevel {
		level = MaxInfusionLevel
	}
	if position.InfusionLevel == level {
		return nil
	}
	position = position.Clone().Normalize()
	position.InfusionLevel = level
	return e.state.PositionPut(position)
}

// BalanceMultiplierFor evaluates the stake-balance curve for an account, 100
// meaning neutral. Shared with the infusion ledger's harvest reduction.
func (e *Engine) BalanceMultiplierFor(owner [20]byte) uint64 {
	if e == nil || e.state == nil {
		return 100
	}
	acc, err := e.account(owner)
	if err != nil {
		return 100
	}
	total, err := e.state.TotalStaked()
	if err != nil {
		return 100
	}
	memberSeconds := int64(0)
	if acc.JoinedAt > 0 {
		memberSeconds = e.now() - acc.JoinedAt
	}
	return e.config.BalanceMultiplier(acc.PositionCount, total, memberSeconds)
}
