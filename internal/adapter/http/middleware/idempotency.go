package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// TransactionHashHeader is set on every response after funds moved.
	TransactionHashHeader = "X-Transaction-Hash"
	// SettlementAttemptHeader carries the attempt id once a transfer was
	// submitted, whether or not its result is known.
	SettlementAttemptHeader = "X-Settlement-Attempt"
	processingMarker        = "processing"
)

// replayedHeaders are stored with the response and restored on replay.
var replayedHeaders = []string{"Content-Type", TransactionHashHeader, SettlementAttemptHeader}

// cachedResponse is the stored form of a final response.
type cachedResponse struct {
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body"`
	Status  int               `json:"status"`
}

// IdempotencyMiddleware replays responses of mutating requests that carry an
// Idempotency-Key. Keys are scoped to the request path.
type IdempotencyMiddleware struct {
	store  usecase.IdempotencyStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, logger zerolog.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{store: store, ttl: usecase.IdempotencyKeyTTL, logger: logger}
}

// WithTTL overrides how long responses are cached. Non-positive values are
// ignored.
func (m *IdempotencyMiddleware) WithTTL(ttl time.Duration) *IdempotencyMiddleware {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(IdempotencyKeyHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.URL.Path + ":" + header

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "idempotency check failed")
			return
		}

		if exists {
			if cached == nil || string(cached) == processingMarker {
				writeJSONError(w, http.StatusConflict, "request with this idempotency key is still processing")
				return
			}
			replay(w, cached)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		// The response is already written; store it even if the client left.
		ctx := context.WithoutCancel(r.Context())
		// Once a transfer was submitted the response is final even when it
		// reports a failure, so a retry replays it instead of paying twice.
		final := recorder.statusCode >= 200 && recorder.statusCode < 300 ||
			recorder.Header().Get(TransactionHashHeader) != "" ||
			recorder.Header().Get(SettlementAttemptHeader) != ""
		if final {
			data, err := json.Marshal(recorder.cached())
			if err == nil {
				err = m.store.Update(ctx, key, data, m.ttl)
			}
			if err != nil {
				m.logger.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
			}
			return
		}

		// Anything else may be retried with the same key.
		if err := m.store.Release(ctx, key); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
		}
	})
}

// replay writes a stored response back with its original status and headers.
func replay(w http.ResponseWriter, data []byte) {
	var resp cachedResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Status == 0 {
		// Entries written before statuses were kept hold only the body.
		resp = cachedResponse{Status: http.StatusOK, Body: data}
	}

	w.Header().Set("Content-Type", "application/json")
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("X-Idempotency-Replay", "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) cached() cachedResponse {
	resp := cachedResponse{Status: r.statusCode, Body: r.body.Bytes()}
	for _, name := range replayedHeaders {
		if value := r.Header().Get(name); value != "" {
			if resp.Headers == nil {
				resp.Headers = make(map[string]string, len(replayedHeaders))
			}
			resp.Headers[name] = value
		}
	}
	return resp
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
