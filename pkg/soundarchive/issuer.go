package soundarchive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// URLPolicy bounds access URL lifetimes and batch sizes.
type URLPolicy struct {
	Default      time.Duration
	Min          time.Duration
	Max          time.Duration
	AnonymousMax time.Duration

	// MaxKeys is the largest accepted batch of distinct keys.
	MaxKeys int

	// ProviderTimeout bounds the lookup and signing of each key.
	ProviderTimeout time.Duration

	// Concurrency caps in-flight keys; zero runs one goroutine per key.
	Concurrency int
}

// DefaultURLPolicy returns a 5 minute default clamped to [30s, 24h], or 1h
// for anonymous callers, with batches of up to 50 keys.
func DefaultURLPolicy() URLPolicy {
	return URLPolicy{
		Default:         300 * time.Second,
		Min:             30 * time.Second,
		Max:             24 * time.Hour,
		AnonymousMax:    time.Hour,
		MaxKeys:         50,
		ProviderTimeout: 5 * time.Second,
	}
}

// Validate checks the policy is internally consistent.
func (p URLPolicy) Validate() error {
	switch {
	case p.Min <= 0:
		return errors.New("url policy: minimum expiry must be positive")
	case p.Max < p.Min:
		return errors.New("url policy: maximum expiry is below minimum")
	case p.AnonymousMax < p.Min || p.AnonymousMax > p.Max:
		return errors.New("url policy: anonymous maximum must lie within [min, max]")
	case p.Default < p.Min || p.Default > p.Max:
		return errors.New("url policy: default expiry must lie within [min, max]")
	case p.MaxKeys <= 0:
		return errors.New("url policy: max keys must be positive")
	case p.ProviderTimeout <= 0:
		return errors.New("url policy: provider timeout must be positive")
	case p.Concurrency < 0:
		return errors.New("url policy: concurrency cannot be negative")
	}
	return nil
}

// Clamp returns the lifetime to grant for a requested expiry. Zero or
// negative requests get the default. Callers without a role get AnonymousMax.
func (p URLPolicy) Clamp(hasRole bool, requested time.Duration) time.Duration {
	ttl := requested
	if ttl <= 0 {
		ttl = p.Default
	}
	max := p.Max
	if !hasRole {
		max = p.AnonymousMax
	}
	if ttl < p.Min {
		ttl = p.Min
	}
	if ttl > max {
		ttl = max
	}
	return ttl
}

// Grant is an access URL issued for one key.
type Grant struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Public    bool      `json:"public"`
}

// IssueResult holds exactly one entry per distinct requested key. Keys that
// could not be served map to nil.
type IssueResult struct {
	Grants map[string]*Grant
	TTL    time.Duration
}

// URLs flattens the result into key to URL, nil where no URL was issued.
func (r *IssueResult) URLs() map[string]*string {
	out := make(map[string]*string, len(r.Grants))
	for key, g := range r.Grants {
		if g == nil {
			out[key] = nil
			continue
		}
		u := g.URL
		out[key] = &u
	}
	return out
}

// IssueURLs resolves an access URL for every key concurrently. A failure for
// one key never affects another; only malformed input fails the batch.
func (s *service) IssueURLs(ctx context.Context, p Principal, req IssueRequest) (*IssueResult, error) {
	keys, err := s.normalizeKeys(req.Keys)
	if err != nil {
		return nil, err
	}
	ttl := s.urls.Clamp(p.Authenticated && p.Role != RoleAnonymous, req.Expires)
	result := &IssueResult{Grants: make(map[string]*Grant, len(keys)), TTL: ttl}
	if len(keys) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if s.urls.Concurrency > 0 {
		g.SetLimit(s.urls.Concurrency)
	}
	for _, key := range keys {
		g.Go(func() error {
			grant, err := s.grantFor(gctx, p, key, ttl)
			if err != nil {
				s.logger.Debug("no url issued", "key", key, "err", err)
			}
			s.emit("url_issued", s.sink.URLIssued(gctx, key, grant != nil && grant.Public, err))

			mu.Lock()
			result.Grants[key] = grant
			mu.Unlock()
			// per-key failures never cancel siblings
			return nil
		})
	}
	_ = g.Wait()
	return result, nil
}

// grantFor returns nil and a reason when key cannot be served to p.
func (s *service) grantFor(ctx context.Context, p Principal, key string, ttl time.Duration) (*Grant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.urls.ProviderTimeout)
	defer cancel()

	record, err := s.repo.FindByMediaKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	if !CanView(p.Role, record) {
		return nil, ErrNotFound
	}
	if record.PubliclyVisible {
		if u, ok := s.store.PublicURL(key); ok {
			return &Grant{URL: u, Public: true}, nil
		}
	}

	u, err := s.store.SignedURL(ctx, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return &Grant{URL: u, ExpiresAt: s.now().Add(ttl).UTC()}, nil
}

func (s *service) normalizeKeys(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	keys := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if len(keys) > s.urls.MaxKeys {
		return nil, NewValidationError("keys", fmt.Sprintf("at most %d keys per request", s.urls.MaxKeys))
	}
	return keys, nil
}
