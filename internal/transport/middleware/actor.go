package middleware

import (
	"net/http"

	"github.com/soloviev-m/civicdesk-backend/pkg/ctxutil"
)

// Actor extracts the operator identifier from the X-Actor-Id header into
// the context. Requests without the header run as system operations;
// authenticating operators is the ingress proxy's job.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Actor-Id"); id != "" {
			r = r.WithContext(ctxutil.WithActorID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
