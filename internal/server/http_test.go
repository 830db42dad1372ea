package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"LevVault/internal/collateral"
	"LevVault/internal/engine"
	"LevVault/internal/event"
	"LevVault/internal/observability"
	"LevVault/internal/oracle"

	"github.com/google/uuid"
)

const unit = int64(1_000_000)

type apiEnv struct {
	bank    *collateral.Bank
	prices  *oracle.StaticSource
	pool    *engine.Pool
	ledger  *engine.Ledger
	handler http.Handler
	owner   uuid.UUID
	trader  uuid.UUID
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	bank := collateral.NewBank()
	owner := uuid.New()
	trader := uuid.New()
	poolAccount := uuid.New()
	bank.Mint(owner, 1_000_000*unit)
	bank.Mint(trader, 1_000*unit)
	bank.Mint(poolAccount, 500_000*unit)

	events := make(chan event.Envelope, 4096)
	emitter := event.NewEmitter(events)
	prices := oracle.NewStaticSource(70_000)
	pool := engine.NewPool(bank, poolAccount, owner, emitter, nil)
	ledger := engine.NewLedger(pool, prices, emitter, nil)
	scanner := engine.NewScanner(ledger, nil)

	health := observability.NewHealthChecker()
	health.SetReady(true)

	srv := NewHTTPServer(":0", &Deps{
		Ledger:  ledger,
		Scanner: scanner,
		Pool:    pool,
		Health:  health,
	})

	return &apiEnv{
		bank:    bank,
		prices:  prices,
		pool:    pool,
		ledger:  ledger,
		handler: srv.Handler(),
		owner:   owner,
		trader:  trader,
	}
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// ==== Test: position lifecycle over HTTP ====

func TestHTTPOpenCloseLifecycle(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, "POST", "/v1/positions/open", map[string]interface{}{
		"account":    env.trader,
		"collateral": 10 * unit,
		"size":       500 * unit,
		"is_long":    true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	var opened struct {
		PositionID uint64 `json:"position_id"`
	}
	decodeBody(t, rec, &opened)
	if opened.PositionID != 1 {
		t.Errorf("position_id = %d, want 1", opened.PositionID)
	}

	rec = env.do(t, "GET", "/v1/positions/"+env.trader.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("position status = %d, want 200", rec.Code)
	}
	var pos struct {
		Size       int64 `json:"size"`
		EntryPrice int64 `json:"entry_price"`
		IsLong     bool  `json:"is_long"`
	}
	decodeBody(t, rec, &pos)
	if pos.Size != 500*unit || pos.EntryPrice != 70_000 || !pos.IsLong {
		t.Errorf("position = %+v", pos)
	}

	env.prices.Set(84_000)
	rec = env.do(t, "POST", "/v1/positions/close", map[string]interface{}{
		"account": env.trader,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var closed struct {
		PnL    int64 `json:"pnl"`
		Payout int64 `json:"payout"`
	}
	decodeBody(t, rec, &closed)
	if closed.PnL != 100*unit {
		t.Errorf("pnl = %d, want %d", closed.PnL, 100*unit)
	}
	if closed.Payout != 110*unit {
		t.Errorf("payout = %d, want %d", closed.Payout, 110*unit)
	}
}

// ==== Test: error to status code mapping ====

func TestHTTPStatusMapping(t *testing.T) {
	env := newAPIEnv(t)

	// Leverage below minimum
	rec := env.do(t, "POST", "/v1/positions/open", map[string]interface{}{
		"account":    env.trader,
		"collateral": 10 * unit,
		"size":       50 * unit,
		"is_long":    true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("under-leveraged open status = %d, want 400", rec.Code)
	}

	// Close with no position
	rec = env.do(t, "POST", "/v1/positions/close", map[string]interface{}{
		"account": env.trader,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("close without position status = %d, want 404", rec.Code)
	}

	// Duplicate open
	open := map[string]interface{}{
		"account":    env.trader,
		"collateral": 10 * unit,
		"size":       500 * unit,
		"is_long":    true,
	}
	if rec = env.do(t, "POST", "/v1/positions/open", open); rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d: %s", rec.Code, rec.Body)
	}
	if rec = env.do(t, "POST", "/v1/positions/open", open); rec.Code != http.StatusConflict {
		t.Errorf("duplicate open status = %d, want 409", rec.Code)
	}

	// Healthy position is not liquidatable
	rec = env.do(t, "POST", "/v1/liquidations", map[string]interface{}{
		"account": env.trader,
		"caller":  uuid.New(),
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("liquidate healthy status = %d, want 409", rec.Code)
	}

	// Pool withdraw by non-owner
	rec = env.do(t, "POST", "/v1/pool/withdraw", map[string]interface{}{
		"caller": uuid.New(),
		"amount": unit,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-owner withdraw status = %d, want 403", rec.Code)
	}

	// Malformed body
	req := httptest.NewRequest("POST", "/v1/positions/open", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	env.handler.ServeHTTP(raw, req)
	if raw.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", raw.Code)
	}

	// Unknown account in path
	rec = env.do(t, "GET", "/v1/positions/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad uuid status = %d, want 400", rec.Code)
	}
}

// ==== Test: price outage surfaces as 503 ====

func TestHTTPPriceUnavailable(t *testing.T) {
	env := newAPIEnv(t)
	env.prices.Set(0)

	rec := env.do(t, "POST", "/v1/positions/open", map[string]interface{}{
		"account":    env.trader,
		"collateral": 10 * unit,
		"size":       500 * unit,
		"is_long":    true,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("open during outage status = %d, want 503: %s", rec.Code, rec.Body)
	}
}

// ==== Test: scan and batch liquidation endpoints ====

func TestHTTPScanAndBatch(t *testing.T) {
	env := newAPIEnv(t)

	traders := make([]uuid.UUID, 3)
	for i := range traders {
		traders[i] = uuid.New()
		env.bank.Mint(traders[i], 100*unit)
		rec := env.do(t, "POST", "/v1/positions/open", map[string]interface{}{
			"account":    traders[i],
			"collateral": 10 * unit,
			"size":       2000 * unit,
			"is_long":    true,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("open trader %d status = %d: %s", i, rec.Code, rec.Body)
		}
	}

	// 5% down at 200x leverage is far past the threshold
	env.prices.Set(66_500)

	rec := env.do(t, "GET", "/v1/liquidations/scan?max=100", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan status = %d: %s", rec.Code, rec.Body)
	}
	var scan struct {
		Accounts []uuid.UUID `json:"accounts"`
		Count    int         `json:"count"`
	}
	decodeBody(t, rec, &scan)
	if scan.Count != 3 {
		t.Errorf("scan count = %d, want 3", scan.Count)
	}

	rec = env.do(t, "GET", fmt.Sprintf("/v1/liquidations/scan?max=%d", engine.MaxScanLimit+1), nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("over-limit scan status = %d, want 400", rec.Code)
	}

	rec = env.do(t, "POST", "/v1/liquidations/batch", map[string]interface{}{
		"max":    50,
		"caller": env.owner,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch status = %d: %s", rec.Code, rec.Body)
	}
	var batch struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &batch)
	if batch.Count != 3 {
		t.Errorf("batch count = %d, want 3", batch.Count)
	}

	if n := env.ledger.ActivePositionCount(); n != 0 {
		t.Errorf("active positions after batch = %d, want 0", n)
	}
}

// ==== Test: pool endpoints ====

func TestHTTPPoolOperations(t *testing.T) {
	env := newAPIEnv(t)
	before := env.pool.Balance()

	rec := env.do(t, "POST", "/v1/pool/deposit", map[string]interface{}{
		"caller": env.owner,
		"amount": 100 * unit,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Balance int64 `json:"balance"`
	}
	decodeBody(t, rec, &resp)
	if resp.Balance != before+100*unit {
		t.Errorf("balance = %d, want %d", resp.Balance, before+100*unit)
	}

	rec = env.do(t, "GET", "/v1/pool", nil)
	decodeBody(t, rec, &resp)
	if resp.Balance != before+100*unit {
		t.Errorf("pool balance = %d, want %d", resp.Balance, before+100*unit)
	}

	rec = env.do(t, "POST", "/v1/pool/emergency-withdraw", map[string]interface{}{
		"account": env.owner,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("emergency withdraw status = %d: %s", rec.Code, rec.Body)
	}
	var swept struct {
		Amount int64 `json:"amount"`
	}
	decodeBody(t, rec, &swept)
	if swept.Amount != before+100*unit {
		t.Errorf("swept = %d, want %d", swept.Amount, before+100*unit)
	}
	if env.pool.Balance() != 0 {
		t.Errorf("pool balance after sweep = %d, want 0", env.pool.Balance())
	}
}

// ==== Test: health probes ====

func TestHTTPHealthProbes(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
	rec = env.do(t, "GET", "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", rec.Code)
	}
}
