package soundarchive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	admin := Principal{ID: "a", Role: RoleAdmin, Authenticated: true}
	user := Principal{ID: "u", Role: RoleUser, Authenticated: true}
	roleless := Principal{ID: "r", Role: RoleAnonymous, Authenticated: true}
	forged := Principal{ID: "f", Role: RoleAdmin}

	tests := []struct {
		name      string
		principal Principal
		req       Requirement
		want      error
	}{
		{"anyone may read", Anonymous, RequireAny, nil},
		{"anonymous needs credentials", Anonymous, RequireUserOrAdmin, ErrUnauthenticated},
		{"user reaches user routes", user, RequireUserOrAdmin, nil},
		{"admin reaches user routes", admin, RequireUserOrAdmin, nil},
		{"roleless is forbidden", roleless, RequireUserOrAdmin, ErrForbidden},
		{"user is not admin", user, RequireAdmin, ErrForbidden},
		{"admin is admin", admin, RequireAdmin, nil},
		{"unauthenticated admin role is ignored", forged, RequireAdmin, ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.principal, tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			var authErr *AuthError
			assert.True(t, errors.As(err, &authErr))
		})
	}
}

func TestCheckNotSelf(t *testing.T) {
	p := Principal{ID: "a", Role: RoleAdmin, Authenticated: true}
	assert.ErrorIs(t, CheckNotSelf(p, "a", "delete"), ErrInvalidInput)
	assert.NoError(t, CheckNotSelf(p, "b", "delete"))
}

type stubProvider map[string]Principal

func (s stubProvider) VerifyToken(ctx context.Context, bearer string) (Principal, error) {
	p, ok := s[bearer]
	if !ok {
		return Principal{}, errors.New("signature invalid")
	}
	return p, nil
}

type stubRoles struct {
	roles map[string]Role
	err   error
}

func (s stubRoles) RoleOf(ctx context.Context, id string) (Role, error) {
	if s.err != nil {
		return "", s.err
	}
	r, ok := s.roles[id]
	if !ok {
		return "", ErrNotFound
	}
	return r, nil
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	provider := stubProvider{
		"admin-token": {ID: "a", Email: "a@example.org"},
		"plain-token": {ID: "p", Email: "p@example.org"},
	}
	roles := stubRoles{roles: map[string]Role{"a": RoleAdmin}}
	r := NewResolver(provider, roles, nil)

	p, err := r.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, p)

	p, err = r.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, p.Authenticated)

	p, err = r.Resolve(ctx, "admin-token")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	p, err = r.Resolve(ctx, "plain-token")
	require.NoError(t, err)
	assert.True(t, p.Authenticated)
	assert.Equal(t, RoleAnonymous, p.Role)

	failing := NewResolver(provider, stubRoles{err: errors.New("rpc timeout")}, nil)
	p, err = failing.Resolve(ctx, "admin-token")
	assert.ErrorIs(t, err, ErrRoleCheckFailed)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.True(t, p.Authenticated)
	assert.False(t, p.IsAdmin(), "role check failures never grant admin")

	p, err = NewResolver(nil, nil, nil).Resolve(ctx, "admin-token")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, p)
}
