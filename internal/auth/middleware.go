package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type ctxKey string

const ownerIDKey ctxKey = "owner_id"

// Middleware rejects requests without a valid bearer token and stores the
// owner id in the request context.
type Middleware struct {
	tokens    *Tokens
	onFailure func(w http.ResponseWriter, r *http.Request, err error)
}

// New creates the middleware. onFailure writes the 401 response; nil uses
// a plain text error.
func New(tokens *Tokens, onFailure func(http.ResponseWriter, *http.Request, error)) Middleware {
	if onFailure == nil {
		onFailure = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return Middleware{tokens: tokens, onFailure: onFailure}
}

func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			m.onFailure(w, r, ErrMissingToken)
			return
		}

		ownerID, err := m.tokens.ParseToken(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			slog.DebugContext(r.Context(), "Rejected bearer token", "error", err)
			m.onFailure(w, r, ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
	})
}

// WithOwnerID returns a context carrying ownerID.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

func OwnerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerIDKey).(string)
	return id, ok && id != ""
}
