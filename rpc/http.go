package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"hivestake/native/colony"
	"hivestake/native/common"
	"hivestake/native/infusion"
	"hivestake/native/stake"
	"hivestake/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeModulePaused   = -32003
	codeRateLimited    = -32020
	codeQuotaExceeded  = -32030
)

// Pauser is the administrative pause surface exposed over RPC.
type Pauser interface {
	IsPaused(module string) bool
	SetPaused(module string, paused bool) error
}

// Deps bundles the engines and policy the server routes to.
type Deps struct {
	Staking         *stake.Engine
	Colonies        *colony.Registry
	Infusion        *infusion.Engine
	Pauses          Pauser
	Logger          *slog.Logger
	AuthToken       string
	RateLimitPerMin uint64
}

type Server struct {
	staking  *stake.Engine
	colonies *colony.Registry
	infusion *infusion.Engine
	pauses   Pauser

	logger    *slog.Logger
	authToken string
	limiter   *rate.Limiter
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	perMinute := deps.RateLimitPerMin
	if perMinute == 0 {
		perMinute = 600
	}
	limit := rate.Every(time.Minute / time.Duration(perMinute))
	return &Server{
		staking:   deps.Staking,
		colonies:  deps.Colonies,
		infusion:  deps.Infusion,
		pauses:    deps.Pauses,
		logger:    logger,
		authToken: strings.TrimSpace(deps.AuthToken),
		limiter:   rate.NewLimiter(limit, int(perMinute)),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus health.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Post("/", s.handle)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// statusWriter captures the status code written by a handler so the request
// can be observed with the right outcome.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return &RPCError{Code: codeUnauthorized, Message: "bearer token required"}
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid token"}
	}
	return nil
}

func moduleOf(method string) string {
	if module, _, ok := strings.Cut(method, "_"); ok {
		return module
	}
	return "unknown"
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(sw, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(sw, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(sw, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(sw, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(sw, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	module := moduleOf(req.Method)
	if !s.limiter.Allow() {
		observability.ModuleMetrics().RecordThrottle(module, "rate_limit")
		writeError(sw, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	s.dispatch(sw, r, req)
	observability.ModuleMetrics().Observe(module, req.Method, sw.status, time.Since(started))
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "stake_stake":
		s.authed(w, r, req, s.handleStake)
	case "stake_unstake":
		s.authed(w, r, req, s.handleUnstake)
	case "stake_claim":
		s.authed(w, r, req, s.handleClaim)
	case "stake_batchClaim":
		s.authed(w, r, req, s.handleBatchClaim)
	case "stake_wrapReceipt":
		s.authed(w, r, req, s.handleWrapReceipt)
	case "stake_unwrapReceipt":
		s.authed(w, r, req, s.handleUnwrapReceipt)
	case "stake_releaseWithReceipt":
		s.authed(w, r, req, s.handleReleaseWithReceipt)
	case "stake_position":
		s.handlePosition(w, r, req)
	case "stake_pendingReward":
		s.handlePendingReward(w, r, req)
	case "stake_rewardBreakdown":
		s.handleRewardBreakdown(w, r, req)
	case "stake_account":
		s.handleAccount(w, r, req)
	case "stake_quotaStatus":
		s.handleQuotaStatus(w, r, req)
	case "colony_create":
		s.authed(w, r, req, s.handleColonyCreate)
	case "colony_join":
		s.authed(w, r, req, s.handleColonyJoin)
	case "colony_leave":
		s.authed(w, r, req, s.handleColonyLeave)
	case "colony_setBonus":
		s.authed(w, r, req, s.handleColonySetBonus)
	case "colony_dissolve":
		s.authed(w, r, req, s.handleColonyDissolve)
	case "colony_repair":
		s.authed(w, r, req, s.handleColonyRepair)
	case "colony_repairAll":
		s.authed(w, r, req, s.handleColonyRepairAll)
	case "colony_info":
		s.handleColonyInfo(w, r, req)
	case "infusion_infuse":
		s.authed(w, r, req, s.handleInfuse)
	case "infusion_harvest":
		s.authed(w, r, req, s.handleHarvest)
	case "infusion_reinvest":
		s.authed(w, r, req, s.handleReinvest)
	case "infusion_withdraw":
		s.authed(w, r, req, s.handleInfusionWithdraw)
	case "infusion_pending":
		s.handleInfusionPending(w, r, req)
	case "infusion_stats":
		s.handleInfusionStats(w, r, req)
	case "admin_pause":
		s.authed(w, r, req, s.handleAdminPause)
	case "admin_resume":
		s.authed(w, r, req, s.handleAdminResume)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

func (s *Server) authed(w http.ResponseWriter, r *http.Request, req *RPCRequest, next handlerFunc) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	next(w, r, req)
}

// writeEngineError maps engine failures onto JSON-RPC error envelopes.
func writeEngineError(w http.ResponseWriter, id interface{}, action string, err error) {
	switch {
	case errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, id, codeModulePaused, "module paused", nil)
	case errors.Is(err, common.ErrQuotaExceeded):
		writeError(w, http.StatusConflict, id, codeQuotaExceeded, "daily issuance quota exceeded", nil)
	default:
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, "failed to "+action, err.Error())
	}
}
