// Package requesttime pins a single "now" per HTTP request so audit events
// and domain timestamps produced while handling it agree with each other.
package requesttime

import (
	"net/http"
	"time"

	"certflow/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
