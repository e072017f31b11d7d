package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthbot/internal/domain"
	"github.com/alanyoungcy/depthbot/internal/server/handler"
	"github.com/alanyoungcy/depthbot/internal/service"
)

type stubAnalyzer struct {
	err error
}

func (s stubAnalyzer) Analyze(_ context.Context, symbol, depth string) (domain.Report, error) {
	if s.err != nil {
		return domain.Report{}, s.err
	}
	p, _ := domain.ParseDepthPercent(depth, decimal.NewFromInt(50))
	return domain.Report{
		Result: domain.AnalysisResult{
			Symbol:         domain.Symbol(symbol),
			Depth:          p,
			ReferencePrice: decimal.NewFromInt(100),
			Bids:           []domain.AggregatedLevel{},
			Asks:           []domain.AggregatedLevel{},
		},
		ExpiresAt: time.Now().Add(30 * time.Second),
	}, nil
}

type stubRegistry struct{ n int }

func (r stubRegistry) Len() int             { return r.n }
func (r stubRegistry) UpdatedAt() time.Time { return time.Now() }

func newTestServer(cfg Config, an handler.DepthAnalyzer) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(cfg, Handlers{
		Health: handler.NewHealthHandler(stubRegistry{n: 3}, logger),
		Depth:  handler.NewDepthHandler(an, logger),
	}, logger)
	return s.Handler()
}

func do(h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(Config{APIKey: "k"}, stubAnalyzer{})
	rec := do(h, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["tradable_pairs"] != float64(3) {
		t.Errorf("body = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}

func TestDepthOK(t *testing.T) {
	h := newTestServer(Config{}, stubAnalyzer{})
	rec := do(h, http.MethodGet, "/api/depth?symbol=sol&depth=5%25", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var rep struct {
		Result struct {
			Symbol string `json:"symbol"`
			Depth  string `json:"depth"`
		} `json:"result"`
		Cached bool `json:"cached"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Result.Symbol != "sol" || rep.Result.Depth != "5" {
		t.Errorf("report = %+v", rep)
	}
	if cc := rec.Header().Get("Cache-Control"); cc == "" {
		t.Error("missing Cache-Control")
	}
}

func TestDepthQueryValidation(t *testing.T) {
	h := newTestServer(Config{}, stubAnalyzer{})
	for _, target := range []string{"/api/depth", "/api/depth?symbol=SOL", "/api/depth?symbol=SOL&depth=five"} {
		rec := do(h, http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestDepthErrorMapping(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{service.CodeInvalidDepth, http.StatusBadRequest},
		{service.CodeInvalidFormat, http.StatusBadRequest},
		{service.CodeUnsupportedAsset, http.StatusUnprocessableEntity},
		{service.CodeNotTradable, http.StatusUnprocessableEntity},
		{service.CodeRateLimited, http.StatusTooManyRequests},
		{service.CodeTimeout, http.StatusServiceUnavailable},
		{service.CodeExchangeUnavailable, http.StatusServiceUnavailable},
		{service.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			an := stubAnalyzer{err: &service.UserError{Code: tt.code, Message: "m"}}
			rec := do(newTestServer(Config{}, an), http.MethodGet, "/api/depth?symbol=SOL&depth=5", nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body["code"] != tt.code || body["error"] != "m" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestAuth(t *testing.T) {
	h := newTestServer(Config{APIKey: "secret"}, stubAnalyzer{})

	if rec := do(h, http.MethodGet, "/api/depth?symbol=SOL&depth=5", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/depth?symbol=SOL&depth=5", map[string]string{"X-API-Key": "nope"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/depth?symbol=SOL&depth=5", map[string]string{"Authorization": "Bearer secret"}); rec.Code != http.StatusOK {
		t.Errorf("bearer token: %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(Config{RateLimitRPS: 0.01, RateLimitBurst: 2}, stubAnalyzer{})
	hdr := map[string]string{"X-Forwarded-For": "203.0.113.9"}

	for i := 0; i < 2; i++ {
		if rec := do(h, http.MethodGet, "/api/depth?symbol=SOL&depth=5", hdr); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
	rec := do(h, http.MethodGet, "/api/depth?symbol=SOL&depth=5", hdr)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("third request: %d retry-after=%q", rec.Code, rec.Header().Get("Retry-After"))
	}

	other := map[string]string{"X-Forwarded-For": "198.51.100.1"}
	if rec := do(h, http.MethodGet, "/api/depth?symbol=SOL&depth=5", other); rec.Code != http.StatusOK {
		t.Errorf("other client throttled: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(Config{CORSOrigins: []string{"https://dash.example"}, APIKey: "secret"}, stubAnalyzer{})

	rec := do(h, http.MethodOptions, "/api/depth", map[string]string{"Origin": "https://dash.example"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example" {
		t.Errorf("allow origin = %q", got)
	}

	rec = do(h, http.MethodGet, "/api/health", map[string]string{"Origin": "https://evil.example"})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(Config{Port: 0}, Handlers{
		Health: handler.NewHealthHandler(nil, logger),
		Depth:  handler.NewDepthHandler(stubAnalyzer{}, logger),
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
