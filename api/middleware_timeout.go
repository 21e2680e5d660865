package api

import (
	"context"
	"net/http"
	"time"
)

const timeoutBody = `{"response":{"message":"request timeout","error":"the request took too long to process"}}`

// TimeoutMiddleware bounds the request context and answers 503 when the handler
// does not finish in time. Websocket routes must not be wrapped: the buffered
// writer cannot be hijacked.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		bounded := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			bounded.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
