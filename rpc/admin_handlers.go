package rpc

import (
	"net/http"
	"strings"
)

var pausableModules = map[string]bool{
	"staking":  true,
	"colony":   true,
	"infusion": true,
}

type pauseParams struct {
	Module string `json:"module"`
}

func (s *Server) setPaused(w http.ResponseWriter, req *RPCRequest, paused bool) {
	var params pauseParams
	if err := unmarshalSingle(req.Params, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	module := strings.ToLower(strings.TrimSpace(params.Module))
	if !pausableModules[module] {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "unknown module", params.Module)
		return
	}
	if s.pauses == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "pause state unavailable", nil)
		return
	}
	if err := s.pauses.SetPaused(module, paused); err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to update pause state", err.Error())
		return
	}
	s.logger.Info("module pause state changed", "module", module, "paused", paused)
	writeResult(w, req.ID, map[string]interface{}{"module": module, "paused": paused})
}

func (s *Server) handleAdminPause(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.setPaused(w, req, true)
}

func (s *Server) handleAdminResume(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.setPaused(w, req, false)
}
