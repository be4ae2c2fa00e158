// Package identity contains IdentityProvider and RoleChecker implementations
// for the archive: local JWT verification, a GoTrue-compatible remote
// backend, a role cache and a static provider for development.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-chi/jwtauth"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// JWTVerifier verifies HS256 access tokens issued by the identity backend
// with the shared JWT secret.
type JWTVerifier struct {
	auth     *jwtauth.JWTAuth
	audience string
}

// NewJWTVerifier creates a verifier. When audience is non-empty tokens must
// carry it in their aud claim.
func NewJWTVerifier(secret, audience string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{
		auth:     jwtauth.New("HS256", []byte(secret), nil),
		audience: audience,
	}, nil
}

// Auth exposes the underlying JWTAuth for token issuance in tooling and tests.
func (v *JWTVerifier) Auth() *jwtauth.JWTAuth {
	return v.auth
}

// VerifyToken implements soundarchive.IdentityProvider.
func (v *JWTVerifier) VerifyToken(ctx context.Context, bearer string) (soundarchive.Principal, error) {
	token, err := jwtauth.VerifyToken(v.auth, bearer)
	if err != nil {
		return soundarchive.Principal{}, fmt.Errorf("verify token: %w", err)
	}

	sub := token.Subject()
	if sub == "" {
		return soundarchive.Principal{}, errors.New("verify token: missing sub claim")
	}
	if v.audience != "" && !containsString(token.Audience(), v.audience) {
		return soundarchive.Principal{}, fmt.Errorf("verify token: audience %v not accepted", token.Audience())
	}

	p := soundarchive.Principal{ID: sub}
	if email, ok := token.PrivateClaims()["email"].(string); ok {
		p.Email = strings.ToLower(email)
	}
	return p, nil
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
