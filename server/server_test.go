package server

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tharunkd/attendbot/telemetry"
)

// openUnreachableDB returns a handle whose pings always fail. sql.Open does
// not dial, so construction succeeds.
func openUnreachableDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", "postgres://u:p@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMetricsEndpoint(t *testing.T) {
	telemetry.Init()
	mux := NewMux(openUnreachableDB(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", rec.Code)
	}
}

func TestHealthzReportsDatabaseFailure(t *testing.T) {
	mux := NewMux(openUnreachableDB(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /healthz = %d, want 503", rec.Code)
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	mux := NewMux(openUnreachableDB(t))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing generated correlation id header")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("correlation id = %q, want corr-123", got)
	}
}
