package soundarchive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrRoleCheckFailed is returned when a verified principal's role could not
// be determined. The principal is treated as unprivileged.
var ErrRoleCheckFailed = fmt.Errorf("%w: role check failed", ErrForbidden)

// Resolver turns a bearer credential into a Principal.
type Resolver struct {
	provider IdentityProvider
	roles    RoleChecker
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil provider resolves every caller as anonymous.
func NewResolver(provider IdentityProvider, roles RoleChecker, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, roles: roles, logger: logger}
}

// Resolve returns Anonymous for an empty bearer. An unverifiable credential
// yields Anonymous and ErrUnauthenticated. A role-check failure yields an
// authenticated principal with the anonymous role and ErrRoleCheckFailed.
func (r *Resolver) Resolve(ctx context.Context, bearer string) (Principal, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" || r.provider == nil {
		return Anonymous, nil
	}

	p, err := r.provider.VerifyToken(ctx, bearer)
	if err != nil {
		r.logger.Debug("credential rejected", "err", err)
		return Anonymous, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	p.Authenticated = true
	p.Role = RoleAnonymous

	if r.roles == nil {
		return p, nil
	}

	role, err := r.roles.RoleOf(ctx, p.ID)
	switch {
	case err == nil && role.IsValid():
		p.Role = role
	case errors.Is(err, ErrNotFound):
		// verified but no active archive account
	case err != nil:
		r.logger.Warn("role check failed", "principal_id", p.ID, "err", err)
		return p, fmt.Errorf("%w: %v", ErrRoleCheckFailed, err)
	}
	return p, nil
}
