// Package requestid tags every request with a correlation ID. An incoming
// X-Request-ID is honored so IDs survive proxy hops; otherwise one is minted.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"certflow/pkg/requestcontext"
)

const headerName = "X-Request-ID"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerName)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(headerName, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
