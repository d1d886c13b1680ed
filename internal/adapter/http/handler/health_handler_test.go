package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthHandler_Readiness(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	healthyDB := pingerFunc(func(ctx context.Context) error { return nil })
	downDB := pingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	NewHealthHandler(healthyDB, client).Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(downDB, client).Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for postgres failure, got %d", rec.Code)
	}

	mr.Close()
	rec = httptest.NewRecorder()
	NewHealthHandler(healthyDB, client).Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for redis failure, got %d", rec.Code)
	}
}

type gatewayStatusFunc func() map[string]string

func (f gatewayStatusFunc) BreakerStates() map[string]string { return f() }

func TestHealthHandler_ReadinessReportsGatewayBreakers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	healthyDB := pingerFunc(func(ctx context.Context) error { return nil })
	gateway := gatewayStatusFunc(func() map[string]string {
		return map[string]string{"chain-balances": "closed", "chain-transfers": "open"}
	})

	rec := httptest.NewRecorder()
	NewHealthHandler(healthyDB, client).WithGateway(gateway).
		Readiness(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with an open breaker, got %d", rec.Code)
	}

	var body struct {
		Status       string            `json:"status"`
		ChainGateway map[string]string `json:"chain_gateway"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("expected degraded, got %q", body.Status)
	}
	if body.ChainGateway["chain-transfers"] != "open" {
		t.Fatalf("unexpected gateway states: %v", body.ChainGateway)
	}
}
