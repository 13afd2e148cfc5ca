package rpc

import (
	"net/http"

	"hivestake/native/infusion"
)

type infuseParams struct {
	Caller string     `json:"caller"`
	Token  tokenParam `json:"token"`
	Amount string     `json:"amount"`
}

type infusionActionParams struct {
	Caller string     `json:"caller"`
	Token  tokenParam `json:"token"`
}

type infusionRecordResult struct {
	Token         tokenParam `json:"token"`
	Amount        string     `json:"amount"`
	Owner         string     `json:"owner"`
	Variant       uint8      `json:"variant"`
	InfusedAt     int64      `json:"infusedAt"`
	LastHarvestAt int64      `json:"lastHarvestAt"`
	Infused       bool       `json:"infused"`
}

type infusionStatsResult struct {
	Token         tokenParam `json:"token"`
	Amount        string     `json:"amount"`
	Cap           string     `json:"cap"`
	Level         uint8      `json:"level"`
	APR           uint64     `json:"apr"`
	Pending       string     `json:"pending"`
	LastHarvestAt int64      `json:"lastHarvestAt"`
}

func infusionRecordOf(record *infusion.InfusionPosition) infusionRecordResult {
	return infusionRecordResult{
		Token:         tokenOf(record.Key),
		Amount:        bigString(record.Amount),
		Owner:         encodeAddress(record.Owner),
		Variant:       record.Variant,
		InfusedAt:     record.InfusedAt,
		LastHarvestAt: record.LastHarvestAt,
		Infused:       record.Infused,
	}
}

func (s *Server) handleInfuse(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params infuseParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.infusion.Infuse(params.Token.key(), caller, amount)
	if err != nil {
		writeEngineError(w, req.ID, "infuse", err)
		return
	}
	writeResult(w, req.ID, infusionRecordOf(record))
}

func (s *Server) handleHarvest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params infusionActionParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	net, err := s.infusion.Harvest(params.Token.key(), caller)
	if err != nil {
		writeEngineError(w, req.ID, "harvest", err)
		return
	}
	writeResult(w, req.ID, claimResult{Token: params.Token, Amount: bigString(net)})
}

func (s *Server) handleReinvest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params infusionActionParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	record, err := s.infusion.Reinvest(params.Token.key(), caller)
	if err != nil {
		writeEngineError(w, req.ID, "reinvest", err)
		return
	}
	writeResult(w, req.ID, infusionRecordOf(record))
}

func (s *Server) handleInfusionWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params infuseParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.infusion.Withdraw(params.Token.key(), caller, amount)
	if err != nil {
		writeEngineError(w, req.ID, "withdraw", err)
		return
	}
	writeResult(w, req.ID, infusionRecordOf(record))
}

func (s *Server) handleInfusionPending(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenParam
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	pending, err := s.infusion.PendingHarvest(params.key())
	if err != nil {
		writeEngineError(w, req.ID, "compute pending harvest", err)
		return
	}
	writeResult(w, req.ID, claimResult{Token: params, Amount: bigString(pending)})
}

func (s *Server) handleInfusionStats(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params tokenParam
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	stats, err := s.infusion.StatsFor(params.key())
	if err != nil {
		writeEngineError(w, req.ID, "load infusion stats", err)
		return
	}
	writeResult(w, req.ID, infusionStatsResult{
		Token:         tokenOf(stats.Key),
		Amount:        bigString(stats.Amount),
		Cap:           bigString(stats.Cap),
		Level:         stats.Level,
		APR:           stats.APR,
		Pending:       bigString(stats.Pending),
		LastHarvestAt: stats.LastHarvestAt,
	})
}
