package soundarchive

import "fmt"

// Requirement is the minimum access class an operation needs.
type Requirement int

const (
	RequireAny Requirement = iota
	RequireUserOrAdmin
	RequireAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireAny:
		return "any"
	case RequireUserOrAdmin:
		return "user-or-admin"
	case RequireAdmin:
		return "admin"
	}
	return fmt.Sprintf("requirement(%d)", int(r))
}

// Authorize is the single role gate used by every operation. It returns nil
// when p satisfies req, and an *AuthError wrapping ErrUnauthenticated or
// ErrForbidden otherwise.
func Authorize(p Principal, req Requirement) error {
	if req == RequireAny {
		return nil
	}
	if !p.Authenticated {
		return &AuthError{Principal: p, Required: req, Err: ErrUnauthenticated}
	}
	switch req {
	case RequireUserOrAdmin:
		if p.Role == RoleUser || p.Role == RoleAdmin {
			return nil
		}
	case RequireAdmin:
		if p.Role == RoleAdmin {
			return nil
		}
	}
	return &AuthError{Principal: p, Required: req, Err: ErrForbidden}
}

// CheckNotSelf refuses actions an admin may not apply to their own account.
func CheckNotSelf(actor Principal, targetUserID, action string) error {
	if actor.ID != "" && actor.ID == targetUserID {
		return NewValidationError("user_id", fmt.Sprintf("cannot %s own account", action))
	}
	return nil
}
