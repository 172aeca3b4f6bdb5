// Package requesttime provides middleware for request-scoped time.
// All operations within a single HTTP request use the same "now" timestamp,
// ensuring pause/resume arithmetic and audit timestamps never straddle two
// reads of the clock.
package requesttime

import (
	"net/http"

	"timekeep/pkg/clock"
	"timekeep/pkg/requestcontext"
)

// Middleware captures the current time from the injected clock at the start
// of the request and stores it in the context.
func Middleware(clk clock.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clk.Now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
