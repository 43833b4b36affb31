package httptransport

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS("http://localhost:5173", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/strava/status", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if called {
		t.Fatalf("preflight must not reach the handler")
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected origin header %q", got)
	}
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(log.New(&buf, "", 0), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if !strings.HasPrefix(buf.String(), "GET /healthz 418") {
		t.Fatalf("unexpected log line %q", buf.String())
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := DefaultServerConfig(":0")
	srv := NewServer(cfg, http.NotFoundHandler())
	if srv.Addr != ":0" || srv.ReadTimeout != 5*time.Second || srv.IdleTimeout != time.Minute {
		t.Fatalf("unexpected server config: %+v", srv)
	}
}
