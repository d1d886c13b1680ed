package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GatewayStatus reports the circuit breaker states of the wallet gateway
// client, keyed by breaker name.
type GatewayStatus interface {
	BreakerStates() map[string]string
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db          Pinger
	redisClient *redis.Client
	gateway     GatewayStatus
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
	}
}

// WithGateway adds the wallet gateway breakers to readiness output.
func (h *HealthHandler) WithGateway(gateway GatewayStatus) *HealthHandler {
	h.gateway = gateway
	return h
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness returns 200 when Postgres and Redis answer. Settlements cannot
// run without Redis since the pair locks live there. An open gateway breaker
// only degrades readiness: ledger reads keep working.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "postgres unhealthy", err.Error())
		return
	}

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "redis unhealthy", err.Error())
		return
	}

	resp := map[string]any{
		"status":   "ready",
		"postgres": "ok",
		"redis":    "ok",
	}
	if h.gateway != nil {
		states := h.gateway.BreakerStates()
		resp["chain_gateway"] = states
		for _, state := range states {
			if state == "open" {
				resp["status"] = "degraded"
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
