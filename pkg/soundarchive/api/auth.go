package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFrom returns the caller resolved by Authenticator, or Anonymous.
func PrincipalFrom(ctx context.Context) soundarchive.Principal {
	if p, ok := ctx.Value(principalKey).(soundarchive.Principal); ok {
		return p
	}
	return soundarchive.Anonymous
}

// Authenticator resolves the bearer token on every request. Callers whose
// token is rejected continue as anonymous and are stopped by RequireRole.
func Authenticator(svc soundarchive.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := svc.ResolvePrincipal(r.Context(), jwtauth.TokenFromHeader(r))
			if err != nil {
				slog.Debug("bearer not accepted", "path", r.URL.Path, "err", err)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
		})
	}
}

// RequireRole rejects requests whose principal does not satisfy req.
func RequireRole(req soundarchive.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if err := soundarchive.Authorize(p, req); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminAvailable answers 503 on every route when admin features are disabled.
func AdminAvailable(svc soundarchive.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !svc.AdminEnabled() {
				writeError(w, r, soundarchive.ErrAdminUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MeResponse describes the current caller.
type MeResponse struct {
	ID            string            `json:"id,omitempty"`
	Email         string            `json:"email,omitempty"`
	Role          soundarchive.Role `json:"role"`
	IsAdmin       bool              `json:"is_admin"`
	Authenticated bool              `json:"authenticated"`
}

// Me reports the resolved principal. Bad tokens resolve to anonymous.
func Me(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	render.JSON(w, r, MeResponse{
		ID:            p.ID,
		Email:         p.Email,
		Role:          p.Role,
		IsAdmin:       p.IsAdmin(),
		Authenticated: p.Authenticated,
	})
}
