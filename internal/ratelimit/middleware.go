package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/civicpulse/civicpulse/internal/platform/metrics"
	dErrors "github.com/civicpulse/civicpulse/pkg/domain-errors"
	"github.com/civicpulse/civicpulse/pkg/platform/httputil"
	"github.com/civicpulse/civicpulse/pkg/requestcontext"
)

// Middleware gates a route with the limiter. Requests without a client key
// pass through: a misconfigured middleware chain should degrade to open,
// not lock everyone out.
func Middleware(limiter *Limiter, logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestcontext.ClientKey(r.Context())
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result := limiter.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				if m != nil {
					m.RateLimitedTotal.Inc()
				}
				logger.InfoContext(r.Context(), "request rate limited",
					"client_key", key)
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited,
					"too many questions, retry after the window resets"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
