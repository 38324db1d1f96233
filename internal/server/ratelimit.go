package server

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/sells-group/zoomtier/internal/metrics"
)

// rateLimit rejects requests with 429 once the process-wide token bucket
// is empty. A nil limiter lets everything through.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				metrics.RateLimitedTotal.Inc()
				w.Header().Set("Retry-After", "1")
				respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// newLimiter builds the token bucket for rps requests per second. A
// non-positive rps disables limiting.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
