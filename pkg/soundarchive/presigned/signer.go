// Package presigned signs and validates time-limited read URLs for object
// stores that cannot presign on their own (filesystem and in-memory).
package presigned

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Signer generates and validates HMAC-SHA256 signed URLs.
type Signer struct {
	secretKey []byte
	baseURL   string
	pathRoot  string
	now       func() time.Time
}

// Option is a functional option for configuring a Signer
type Option func(*Signer)

// WithSecretKey sets the secret key used for HMAC signing
func WithSecretKey(key string) Option {
	return func(s *Signer) {
		s.secretKey = []byte(key)
	}
}

// WithBaseURL sets the scheme and host prepended to signed paths
func WithBaseURL(base string) Option {
	return func(s *Signer) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

// WithPathRoot sets the route under which objects are served (default "/files")
func WithPathRoot(root string) Option {
	return func(s *Signer) {
		s.pathRoot = "/" + strings.Trim(root, "/")
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// New creates a new Signer with the given options
func New(opts ...Option) *Signer {
	s := &Signer{
		pathRoot: "/files",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PathRoot returns the route prefix objects are served under.
func (s *Signer) PathRoot() string {
	return s.pathRoot
}

// SignKey returns a GET URL for key valid for ttl.
//
//	/files/audios/01j9z3.mp3?signature=abc123...&expires=1696789012
func (s *Signer) SignKey(key string, ttl time.Duration) (string, time.Time, error) {
	if len(s.secretKey) == 0 {
		return "", time.Time{}, ErrNoSecretKey
	}
	if ttl <= 0 {
		return "", time.Time{}, ErrInvalidExpiration
	}

	expiresAt := s.now().Add(ttl)
	p := s.objectPath(key)
	signature := s.generateSignature(s.createPayload(http.MethodGet, p, expiresAt.Unix()))

	return fmt.Sprintf("%s%s?signature=%s&expires=%d", s.baseURL, p, signature, expiresAt.Unix()), expiresAt, nil
}

// ValidateRequest validates the signature and expiration of a request and
// returns the object key it grants access to.
func (s *Signer) ValidateRequest(r *http.Request) (string, error) {
	query := r.URL.Query()
	signature := query.Get("signature")
	expiresStr := query.Get("expires")

	if signature == "" {
		return "", ErrMissingSignature
	}
	if expiresStr == "" {
		return "", ErrMissingExpiration
	}

	expiresAt, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidExpiration, err)
	}

	method := r.Method
	if method == http.MethodHead {
		method = http.MethodGet
	}
	if err := s.Validate(method, r.URL.Path, signature, expiresAt); err != nil {
		return "", err
	}
	return s.ExtractObjectKey(r.URL.Path)
}

// Validate validates the signature and expiration for a given method and path
func (s *Signer) Validate(method, path, signature string, expiresAt int64) error {
	if len(s.secretKey) == 0 {
		return ErrNoSecretKey
	}
	if s.now().Unix() > expiresAt {
		return ErrExpired
	}

	expected := s.generateSignature(s.createPayload(method, path, expiresAt))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// ExtractObjectKey returns the object key addressed by a served path.
func (s *Signer) ExtractObjectKey(p string) (string, error) {
	prefix := s.pathRoot + "/"
	if !strings.HasPrefix(p, prefix) {
		return "", fmt.Errorf("%w: %q is outside %s", ErrInvalidKey, p, s.pathRoot)
	}
	key, err := url.PathUnescape(strings.TrimPrefix(p, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key, nil
}

func (s *Signer) objectPath(key string) string {
	return s.pathRoot + "/" + strings.TrimLeft(key, "/")
}

// createPayload creates the signature payload: METHOD|PATH|EXPIRES
func (s *Signer) createPayload(method, path string, expiresAt int64) string {
	return fmt.Sprintf("%s|%s|%d", method, path, expiresAt)
}

func (s *Signer) generateSignature(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
