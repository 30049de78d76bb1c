// Package httpmw carries the notifier's own management-surface middleware,
// reused verbatim in shape from the teacher's transport/http/middleware
// package: request-id, request metrics, structured access log, security
// headers. The recoverer and IP rate limiting in the router's chain come
// from chi's middleware package and httprate, not from here.
package httpmw

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/arc-self/eventcore/internal/pkgcontext"
)

const HeaderXRequestID = "X-Request-Id"

// RequestID assigns (or propagates) a request id and stores it in context
// for downstream logging and error bodies.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderXRequestID, reqID)

		ctx := pkgcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
