package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/akarpov91/vaultd/internal/common"
	"github.com/akarpov91/vaultd/internal/server/auth"
	"github.com/akarpov91/vaultd/internal/server/models"
)

type contextKey int

const identityContextKey contextKey = iota

// requireAuth validates the bearer token and loads the caller's identity
// into the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, common.ErrUnauthorized)
			return
		}

		claims, err := auth.ParseToken(token, h.jwtSecret)
		if err != nil {
			writeError(w, err)
			return
		}

		identity, err := h.auth.CurrentUser(r.Context(), claims.IdentityID)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identityFrom returns the identity placed in the context by requireAuth.
func identityFrom(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityContextKey).(*models.Identity)
	return identity
}
