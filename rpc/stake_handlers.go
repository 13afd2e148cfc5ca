package rpc

import (
	"encoding/hex"
	"net/http"

	"hivestake/native/stake"
)

type stakeActionParams struct {
	Caller string     `json:"caller"`
	Token  tokenParam `json:"token"`
}

type batchClaimParams struct {
	Caller   string `json:"caller"`
	MaxCount uint64 `json:"maxCount,omitempty"`
}

type addressParams struct {
	Address string `json:"address"`
}

type positionResult struct {
	Token          tokenParam `json:"token"`
	Owner          string     `json:"owner"`
	Staked         bool       `json:"staked"`
	StakedAt       int64      `json:"stakedAt"`
	LastClaimAt    int64      `json:"lastClaimAt"`
	Variant        uint8      `json:"variant"`
	Level          uint8      `json:"level"`
	ChargeLevel    uint8      `json:"chargeLevel"`
	InfusionLevel  uint8      `json:"infusionLevel"`
	Specialization uint8      `json:"specialization"`
	ColonyID       uint64     `json:"colonyId,omitempty"`
	TotalClaimed   string     `json:"totalClaimed"`
	Wrapped        bool       `json:"wrapped"`
}

func positionResultOf(p *stake.Position) positionResult {
	return positionResult{
		Token:          tokenOf(p.Key),
		Owner:          encodeAddress(p.Owner),
		Staked:         p.Staked,
		StakedAt:       p.StakedAt,
		LastClaimAt:    p.LastClaimAt,
		Variant:        p.Variant,
		Level:          p.Level,
		ChargeLevel:    p.ChargeLevel,
		InfusionLevel:  p.InfusionLevel,
		Specialization: p.Specialization,
		ColonyID:       p.ColonyID,
		TotalClaimed:   bigString(p.TotalClaimed),
		Wrapped:        p.Wrapped(),
	}
}

type claimResult struct {
	Token  tokenParam `json:"token"`
	Amount string     `json:"amount"`
}

type batchClaimResult struct {
	Claimed uint64 `json:"claimed"`
	Scanned uint64 `json:"scanned"`
	Amount  string `json:"amount"`
	Cursor  uint64 `json:"cursor"`
}

type receiptResult struct {
	Token     tokenParam `json:"token"`
	ReceiptID string     `json:"receiptId"`
}

type accountResult struct {
	Address       string `json:"address"`
	PositionCount uint64 `json:"positionCount"`
	TotalClaimed  string `json:"totalClaimed"`
	JoinedAt      int64  `json:"joinedAt,omitempty"`
	BatchCursor   uint64 `json:"batchCursor,omitempty"`
}

type quotaStatusResult struct {
	Day       string `json:"day"`
	Remaining string `json:"remaining,omitempty"`
	Unlimited bool   `json:"unlimited,omitempty"`
}

// parseActionParams decodes the common caller+token parameter object.
func parseActionParams(w http.ResponseWriter, req *RPCRequest) (stakeActionParams, [20]byte, bool) {
	var params stakeActionParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return params, [20]byte{}, false
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return params, [20]byte{}, false
	}
	return params, caller, true
}

func (s *Server) handleStake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, ok := parseActionParams(w, req)
	if !ok {
		return
	}
	position, err := s.staking.Stake(params.Token.key(), caller)
	if err != nil {
		writeEngineError(w, req.ID, "stake", err)
		return
	}
	writeResult(w, req.ID, positionResultOf(position))
}

func (s *Server) handleUnstake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, ok := parseActionParams(w, req)
	if !ok {
		return
	}
	if err := s.staking.Unstake(params.Token.key(), caller); err != nil {
		writeEngineError(w, req.ID, "unstake", err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"unstaked": true})
}

func (s *Server) handleClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, ok := parseActionParams(w, req)
	if !ok {
		return
	}
	amount, err := s.staking.Claim(params.Token.key(), caller)
	if err != nil {
		writeEngineError(w, req.ID, "claim", err)
		return
	}
	writeResult(w, req.ID, claimResult{Token: params.Token, Amount: bigString(amount)})
}

func (s *Server) handleBatchClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params batchClaimParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	result, err := s.staking.BatchClaim(caller, params.MaxCount)
	if err != nil {
		writeEngineError(w, req.ID, "batch claim", err)
		return
	}
	writeResult(w, req.ID, batchClaimResult{
		Claimed: result.Claimed,
		Scanned: result.Scanned,
		Amount:  bigString(result.Amount),
		Cursor:  result.Cursor,
	})
}

func (s *Server) handleWrapReceipt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, ok := parseActionParams(w, req)
	if !ok {
		return
	}
	id, err := s.staking.WrapReceipt(params.Token.key(), caller)
	if err != nil {
		writeEngineError(w, req.ID, "wrap receipt", err)
		return
	}
	writeResult(w, req.ID, receiptResult{Token: params.Token, ReceiptID: "0x" + hex.EncodeToString(id[:])})
}

func (s *Server) handleUnwrapReceipt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, ok := parseActionParams(w, req)
	if !ok {
		return
	}
	if err := s.staking.UnwrapReceipt(params.Token.key(), caller); err != nil {
		writeEngineError(w, req.ID, "unwrap receipt", err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"unwrapped": true})
}

func (s *Server) handleReleaseWithReceipt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params, caller, ok := parseActionParams(w, req)
	if !ok {
		return
	}
	if err := s.staking.ReleaseWithReceipt(params.Token.key(), caller); err != nil {
		writeEngineError(w, req.ID, "release with receipt", err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"released": true})
}

func (s *Server) handlePosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenParam
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	position, ok, err := s.staking.Position(params.key())
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load position", err.Error())
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	writeResult(w, req.ID, positionResultOf(position))
}

func (s *Server) handlePendingReward(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenParam
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pending, err := s.staking.PendingReward(params.key())
	if err != nil {
		writeEngineError(w, req.ID, "compute pending reward", err)
		return
	}
	writeResult(w, req.ID, claimResult{Token: params, Amount: bigString(pending)})
}

func (s *Server) handleRewardBreakdown(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenParam
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	breakdown, err := s.staking.RewardBreakdown(params.key())
	if err != nil {
		writeEngineError(w, req.ID, "compute reward breakdown", err)
		return
	}
	writeResult(w, req.ID, breakdown)
}

func (s *Server) handleAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := decodeAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	account, err := s.staking.AccountInfo(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	writeResult(w, req.ID, accountResult{
		Address:       params.Address,
		PositionCount: account.PositionCount,
		TotalClaimed:  bigString(account.TotalClaimed),
		JoinedAt:      account.JoinedAt,
		BatchCursor:   account.BatchCursor,
	})
}

func (s *Server) handleQuotaStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	addr, err := decodeAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	status, err := s.staking.QuotaStatusFor(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load quota status", err.Error())
		return
	}
	result := quotaStatusResult{Day: status.Day, Unlimited: status.Unlimited}
	if status.Remaining != nil {
		result.Remaining = status.Remaining.String()
	}
	writeResult(w, req.ID, result)
}
