package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// LoggingMiddleware writes one access log line per request and attaches a
// request-scoped logger to the context for handlers to pick up with
// zerolog.Ctx.
type LoggingMiddleware struct {
	logger zerolog.Logger
}

// NewLoggingMiddleware creates a new LoggingMiddleware.
func NewLoggingMiddleware(logger zerolog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Wrap wraps an http.Handler with access logging.
func (m *LoggingMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqLogger := m.logger.With().Str("request_id", chimiddleware.GetReqID(r.Context())).Logger()
		r = r.WithContext(reqLogger.WithContext(r.Context()))

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := statusOf(ww)
		event := levelFor(&reqLogger, status)

		// Route params are only populated once the router has matched.
		if groupID := chi.URLParam(r, "groupID"); groupID != "" {
			event = event.Str("group_id", groupID)
		}

		event.
			Str("method", r.Method).
			Str("route", routePattern(r)).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("request completed")
	})
}

func levelFor(logger *zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error()
	case status == http.StatusConflict, status == http.StatusTooManyRequests:
		return logger.Warn()
	default:
		return logger.Info()
	}
}
