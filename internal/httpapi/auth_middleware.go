package httpapi

import (
	"net/http"

	"github.com/arc-self/eventcore/internal/apperr"
	"github.com/arc-self/eventcore/internal/auth"
)

// RequireOperator gates the DLQ/monitoring management surface behind a
// verified bearer token (§6.5: "all management endpoints require an
// authenticated principal"). It reuses the same Verifier as the stream/WS
// handshakes; management callers are operators, not end-user sessions, but
// the token shape and verification rule are identical.
func RequireOperator(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
			if _, err := verifier.Verify(token); err != nil {
				Err(w, r, apperr.AuthFailed(err.Error()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
