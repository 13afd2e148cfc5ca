package rpc

import (
	"net/http"

	"hivestake/native/colony"
)

type colonyCreateParams struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
}

type colonyJoinParams struct {
	Caller   string     `json:"caller"`
	Token    tokenParam `json:"token"`
	ColonyID uint64     `json:"colonyId"`
}

type colonyLeaveParams struct {
	Caller string     `json:"caller"`
	Token  tokenParam `json:"token"`
}

type colonyBonusParams struct {
	Caller   string `json:"caller"`
	ColonyID uint64 `json:"colonyId"`
	Bonus    uint64 `json:"bonus"`
}

type colonyIDParams struct {
	Caller   string `json:"caller,omitempty"`
	ColonyID uint64 `json:"colonyId"`
}

type colonyInfoResult struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Creator     string `json:"creator"`
	Active      bool   `json:"active"`
	Bonus       uint64 `json:"bonus"`
	MemberCount uint64 `json:"memberCount"`
}

type repairActionResult struct {
	ColonyID uint64     `json:"colonyId"`
	Token    tokenParam `json:"token,omitempty"`
	Action   string     `json:"action"`
	Detail   string     `json:"detail,omitempty"`
}

type repairResult struct {
	Actions []repairActionResult `json:"actions"`
}

func infoResultOf(info *colony.Info) colonyInfoResult {
	return colonyInfoResult{
		ID:          info.ID,
		Name:        info.Name,
		Creator:     encodeAddress(info.Creator),
		Active:      info.Active,
		Bonus:       info.Bonus,
		MemberCount: info.MemberCount,
	}
}

func repairResultOf(actions []colony.RepairAction) repairResult {
	result := repairResult{Actions: make([]repairActionResult, 0, len(actions))}
	for _, action := range actions {
		result.Actions = append(result.Actions, repairActionResult{
			ColonyID: action.ColonyID,
			Token:    tokenOf(action.Key),
			Action:   action.Action,
			Detail:   action.Detail,
		})
	}
	return result
}

func (s *Server) handleColonyCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params colonyCreateParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	created, err := s.colonies.Create(params.Name, caller)
	if err != nil {
		writeEngineError(w, req.ID, "create colony", err)
		return
	}
	writeResult(w, req.ID, colonyInfoResult{
		ID:      created.ID,
		Name:    created.Name,
		Creator: encodeAddress(created.Creator),
		Active:  created.Active,
		Bonus:   created.Bonus,
	})
}

func (s *Server) handleColonyJoin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params colonyJoinParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.colonies.Join(params.Token.key(), params.ColonyID, caller); err != nil {
		writeEngineError(w, req.ID, "join colony", err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"joined": true})
}

func (s *Server) handleColonyLeave(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params colonyLeaveParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.colonies.Leave(params.Token.key(), caller); err != nil {
		writeEngineError(w, req.ID, "leave colony", err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"left": true})
}

func (s *Server) handleColonySetBonus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params colonyBonusParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.colonies.SetBonus(params.ColonyID, params.Bonus, caller); err != nil {
		writeEngineError(w, req.ID, "set colony bonus", err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleColonyDissolve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params colonyIDParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := decodeAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	if err := s.colonies.Dissolve(params.ColonyID, caller); err != nil {
		writeEngineError(w, req.ID, "dissolve colony", err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"dissolved": true})
}

func (s *Server) handleColonyRepair(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params colonyIDParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	actions, err := s.colonies.Repair(params.ColonyID)
	if err != nil {
		writeEngineError(w, req.ID, "repair colony", err)
		return
	}
	writeResult(w, req.ID, repairResultOf(actions))
}

func (s *Server) handleColonyRepairAll(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	actions, err := s.colonies.RepairAll()
	if err != nil {
		writeEngineError(w, req.ID, "repair colonies", err)
		return
	}
	writeResult(w, req.ID, repairResultOf(actions))
}

func (s *Server) handleColonyInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params colonyIDParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	info, err := s.colonies.Info(params.ColonyID)
	if err != nil {
		writeEngineError(w, req.ID, "load colony", err)
		return
	}
	writeResult(w, req.ID, infoResultOf(info))
}
