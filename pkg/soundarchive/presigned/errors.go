package presigned

import (
	"errors"
	"net/http"
)

var (
	ErrNoSecretKey       = errors.New("presigned: no secret key configured")
	ErrMissingSignature  = errors.New("presigned: missing signature parameter")
	ErrMissingExpiration = errors.New("presigned: missing expires parameter")
	ErrInvalidExpiration = errors.New("presigned: invalid expires parameter")
	ErrExpired           = errors.New("presigned: link has expired")
	ErrInvalidSignature  = errors.New("presigned: invalid signature")
	ErrInvalidKey        = errors.New("presigned: path does not address an object")
)

// rejection is how a download request that fails validation is answered.
type rejection struct {
	err    error
	status int
	text   string
}

var rejections = []rejection{
	{ErrMissingSignature, http.StatusUnauthorized, "Missing signature parameter"},
	{ErrMissingExpiration, http.StatusUnauthorized, "Missing expires parameter"},
	{ErrInvalidExpiration, http.StatusBadRequest, "Invalid expires parameter"},
	{ErrExpired, http.StatusForbidden, "Signed URL has expired"},
	{ErrInvalidSignature, http.StatusForbidden, "Invalid signature"},
	{ErrInvalidKey, http.StatusBadRequest, "Invalid object path"},
}

// IsAuthError reports whether err rejects the caller's link, as opposed to a
// server misconfiguration such as a missing secret.
func IsAuthError(err error) bool {
	_, ok := rejectionFor(err)
	return ok && !errors.Is(err, ErrInvalidKey)
}

func rejectionFor(err error) (rejection, bool) {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r, true
		}
	}
	return rejection{}, false
}
