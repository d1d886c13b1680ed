package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func TestLoggingMiddleware_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	mw := NewLoggingMiddleware(zerolog.New(&buf))

	var ctxLogger *zerolog.Logger
	h := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/groups/g1/ledger", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one json log line, got %q: %v", buf.String(), err)
	}
	if entry["status"] != float64(http.StatusAccepted) || entry["path"] != "/api/v1/groups/g1/ledger" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
	if entry["level"] != "info" {
		t.Fatalf("expected info level, got %v", entry["level"])
	}
	if ctxLogger == nil || ctxLogger.GetLevel() == zerolog.Disabled {
		t.Fatal("expected request logger in context")
	}
}

func TestLoggingMiddleware_AddsRouteAndGroup(t *testing.T) {
	var buf bytes.Buffer

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(zerolog.New(&buf)).Wrap)
	r.Post("/api/v1/groups/{groupID}/settlements/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("busy"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/groups/g7/settlements/", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one json log line, got %q: %v", buf.String(), err)
	}
	if entry["group_id"] != "g7" {
		t.Fatalf("expected group_id g7, got %v", entry["group_id"])
	}
	if entry["route"] != "/api/v1/groups/{groupID}/settlements/" {
		t.Fatalf("unexpected route: %v", entry["route"])
	}
	if entry["level"] != "warn" || entry["bytes"] != float64(4) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestRecovery_ReturnsJSONError(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if rr.Body.String() != `{"error":"internal server error"}` {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}
