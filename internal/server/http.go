package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"LevVault/internal/collateral"
	"LevVault/internal/engine"
	"LevVault/internal/observability"
	"LevVault/internal/oracle"
	"LevVault/internal/query"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Deps carries everything the HTTP API serves from.
type Deps struct {
	Ledger  *engine.Ledger
	Scanner *engine.Scanner
	Pool    *engine.Pool
	Query   *query.Service // nil disables history endpoints
	Health  *observability.HealthChecker
	Metrics *observability.Metrics
}

// HTTPServer is the JSON API over the ledger: mutating operations,
// the query surface, history reads and health probes.
type HTTPServer struct {
	addr string
	deps *Deps
	log  zerolog.Logger
}

func NewHTTPServer(addr string, deps *Deps) *HTTPServer {
	return &HTTPServer{
		addr: addr,
		deps: deps,
		log:  observability.NewLogger("http"),
	}
}

// Start runs the server until ctx is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("HTTP API listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the route table. Split out so tests can drive the
// mux without a listener.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/positions/open", s.instrument("open", s.handleOpen))
	mux.HandleFunc("POST /v1/positions/close", s.instrument("close", s.handleClose))
	mux.HandleFunc("POST /v1/liquidations", s.instrument("liquidate", s.handleLiquidate))
	mux.HandleFunc("POST /v1/liquidations/batch", s.instrument("batch_liquidate", s.handleBatchLiquidate))
	mux.HandleFunc("GET /v1/liquidations/scan", s.instrument("scan", s.handleScan))

	mux.HandleFunc("GET /v1/positions/next-id", s.instrument("next_id", s.handleNextID))
	mux.HandleFunc("GET /v1/positions/by-id/{id}", s.instrument("position_by_id", s.handlePositionByID))
	mux.HandleFunc("GET /v1/positions/{account}", s.instrument("position", s.handlePosition))
	mux.HandleFunc("GET /v1/positions/{account}/pnl", s.instrument("pnl", s.handlePnL))
	mux.HandleFunc("GET /v1/positions/{account}/liquidatable", s.instrument("liquidatable", s.handleIsLiquidatable))

	mux.HandleFunc("GET /v1/pool", s.instrument("pool", s.handlePoolBalance))
	mux.HandleFunc("POST /v1/pool/deposit", s.instrument("pool_deposit", s.handleDeposit))
	mux.HandleFunc("POST /v1/pool/withdraw", s.instrument("pool_withdraw", s.handleWithdraw))
	mux.HandleFunc("POST /v1/pool/emergency-withdraw", s.instrument("pool_emergency", s.handleEmergencyWithdraw))

	if s.deps.Query != nil {
		mux.HandleFunc("GET /v1/history/{account}", s.instrument("history", s.handleHistory))
		mux.HandleFunc("GET /v1/events", s.instrument("events", s.handleEvents))
	}

	if s.deps.Health != nil {
		mux.HandleFunc("GET /healthz", s.deps.Health.LivenessHandler)
		mux.HandleFunc("GET /readyz", s.deps.Health.ReadinessHandler)
	}

	return mux
}

// --- Mutating operations ---

type openRequest struct {
	Account    uuid.UUID `json:"account"`
	Collateral int64     `json:"collateral"`
	Size       int64     `json:"size"`
	IsLong     bool      `json:"is_long"`
}

func (s *HTTPServer) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !decode(w, r, &req) {
		return
	}

	id, err := s.deps.Ledger.Open(req.Account, req.Collateral, req.Size, req.IsLong)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"position_id": id})
}

type accountRequest struct {
	Account uuid.UUID `json:"account"`
}

func (s *HTTPServer) handleClose(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}

	pnl, payout, err := s.deps.Ledger.Close(req.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pnl": pnl, "payout": payout})
}

type liquidateRequest struct {
	Account uuid.UUID `json:"account"`
	Caller  uuid.UUID `json:"caller"`
}

func (s *HTTPServer) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	var req liquidateRequest
	if !decode(w, r, &req) {
		return
	}

	pnl, fee, refund, err := s.deps.Ledger.Liquidate(req.Account, req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pnl": pnl, "fee": fee, "refund": refund})
}

type batchRequest struct {
	Max    int       `json:"max"`
	Caller uuid.UUID `json:"caller"`
}

func (s *HTTPServer) handleBatchLiquidate(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}

	accounts, err := s.deps.Scanner.BatchLiquidate(req.Max, req.Caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts, "count": len(accounts)})
}

func (s *HTTPServer) handleScan(w http.ResponseWriter, r *http.Request) {
	max := engine.MaxScanLimit
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, engine.ErrInvalidLimit)
			return
		}
		max = n
	}

	accounts, err := s.deps.Scanner.ScanLiquidatable(max)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts, "count": len(accounts)})
}

// --- Query surface ---

func (s *HTTPServer) handlePosition(w http.ResponseWriter, r *http.Request) {
	account, ok := pathUUID(w, r, "account")
	if !ok {
		return
	}
	pos, found := s.deps.Ledger.Position(account)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "position not found"})
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *HTTPServer) handlePositionByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid position id"})
		return
	}
	pos, found := s.deps.Ledger.PositionByID(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "position not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"position": pos,
		"owner":    pos.Owner,
		"active":   pos.IsActive,
	})
}

func (s *HTTPServer) handleNextID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"next_position_id": s.deps.Ledger.NextPositionID()})
}

func (s *HTTPServer) handlePnL(w http.ResponseWriter, r *http.Request) {
	account, ok := pathUUID(w, r, "account")
	if !ok {
		return
	}
	pnl, err := s.deps.Ledger.PnL(account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pnl": pnl})
}

func (s *HTTPServer) handleIsLiquidatable(w http.ResponseWriter, r *http.Request) {
	account, ok := pathUUID(w, r, "account")
	if !ok {
		return
	}
	liquidatable, err := s.deps.Ledger.IsLiquidatable(account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"liquidatable": liquidatable})
}

// --- Pool ---

func (s *HTTPServer) handlePoolBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": s.deps.Pool.Balance()})
}

type poolRequest struct {
	Caller uuid.UUID `json:"caller"`
	Amount int64     `json:"amount"`
}

func (s *HTTPServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req poolRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Pool.Deposit(req.Caller, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": s.deps.Pool.Balance()})
}

func (s *HTTPServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req poolRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Pool.Withdraw(req.Caller, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"balance": s.deps.Pool.Balance()})
}

func (s *HTTPServer) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	amount, err := s.deps.Pool.EmergencyWithdraw(req.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"amount": amount})
}

// --- History ---

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	account, ok := pathUUID(w, r, "account")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.deps.Query.PositionHistory(r.Context(), account, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.deps.Query.Events(r.Context(), from, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}

// --- Helpers ---

func (s *HTTPServer) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		if s.deps.Metrics != nil {
			s.deps.Metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
			s.deps.Metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine sentinels onto HTTP status codes so clients
// can distinguish rejection kinds.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrCollateralOutOfRange),
		errors.Is(err, engine.ErrLeverageOutOfRange),
		errors.Is(err, engine.ErrInvalidLimit),
		errors.Is(err, engine.ErrInvalidBatchSize),
		errors.Is(err, collateral.ErrInvalidAmount):
		status = http.StatusBadRequest

	case errors.Is(err, engine.ErrNoActivePosition):
		status = http.StatusNotFound

	case errors.Is(err, engine.ErrPositionExists),
		errors.Is(err, engine.ErrNotLiquidatable):
		status = http.StatusConflict

	case errors.Is(err, engine.ErrNotOwner):
		status = http.StatusForbidden

	case errors.Is(err, engine.ErrInsufficientPoolBalance),
		errors.Is(err, collateral.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity

	case errors.Is(err, oracle.ErrPriceUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
