package soundarchive

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tendant/sound-archive/pkg/soundarchive/objectkey"
)

// BackendClients groups every client the service talks to. It is built once
// at startup and passed in whole.
type BackendClients struct {
	Identity IdentityProvider
	Roles    RoleChecker
	Store    ObjectStore
	Content  Repository
	Users    UserStore
	Accounts AccountProvider

	// Privileged is set when a privileged backend key is configured. Without
	// it every admin operation fails with ErrAdminUnavailable.
	Privileged bool
}

type service struct {
	resolver *Resolver
	roles    RoleChecker
	identity IdentityProvider
	store    ObjectStore
	repo     Repository
	users    UserStore
	accounts AccountProvider
	sink     EventSink
	keys     *objectkey.Allocator
	logger   *slog.Logger

	limits       Limits
	urls         URLPolicy
	writeTimeout time.Duration
	adminEnabled bool
	now          func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithBackendClients sets every backend client at once
func WithBackendClients(c BackendClients) Option {
	return func(s *service) {
		s.identity = c.Identity
		s.roles = c.Roles
		s.store = c.Store
		s.repo = c.Content
		s.users = c.Users
		s.accounts = c.Accounts
		s.adminEnabled = c.Privileged
	}
}

// WithRepository sets the content table
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repo = repo
	}
}

// WithObjectStore sets the media bucket
func WithObjectStore(store ObjectStore) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithIdentity sets the identity provider and role checker
func WithIdentity(provider IdentityProvider, roles RoleChecker) Option {
	return func(s *service) {
		s.identity = provider
		s.roles = roles
	}
}

// WithUserAdmin sets the user store and account provider used for user administration
func WithUserAdmin(users UserStore, accounts AccountProvider) Option {
	return func(s *service) {
		s.users = users
		s.accounts = accounts
	}
}

// WithAdminEnabled marks the privileged key as present
func WithAdminEnabled(enabled bool) Option {
	return func(s *service) {
		s.adminEnabled = enabled
	}
}

// WithEventSink sets the event sink
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.sink = sink
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithLimits sets upload limits
func WithLimits(limits Limits) Option {
	return func(s *service) {
		s.limits = limits
	}
}

// WithURLPolicy sets access URL lifetimes and batching limits
func WithURLPolicy(policy URLPolicy) Option {
	return func(s *service) {
		s.urls = policy
	}
}

// WithKeyAllocator sets the storage key allocator
func WithKeyAllocator(keys *objectkey.Allocator) Option {
	return func(s *service) {
		s.keys = keys
	}
}

// WithWriteTimeout bounds each object-store write
func WithWriteTimeout(d time.Duration) Option {
	return func(s *service) {
		s.writeTimeout = d
	}
}

// WithClock sets the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// New creates a new archive service with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		limits:       DefaultLimits(),
		urls:         DefaultURLPolicy(),
		writeTimeout: 2 * time.Minute,
		now:          time.Now,
	}
	for _, option := range options {
		option(s)
	}

	if s.repo == nil {
		return nil, errors.New("repository is required")
	}
	if s.store == nil {
		return nil, errors.New("object store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.sink == nil {
		s.sink = NewNoopEventSink()
	}
	if s.keys == nil {
		s.keys = objectkey.New(objectkey.WithClock(s.now))
	}
	if err := s.urls.Validate(); err != nil {
		return nil, err
	}
	s.resolver = NewResolver(s.identity, s.roles, s.logger)
	return s, nil
}

func (s *service) AdminEnabled() bool {
	return s.adminEnabled
}

// ResolvePrincipal resolves a bearer credential through the identity resolver.
func (s *service) ResolvePrincipal(ctx context.Context, bearer string) (Principal, error) {
	return s.resolver.Resolve(ctx, bearer)
}

// requireAdmin gates admin operations: privileged clients first, then role.
func (s *service) requireAdmin(p Principal) error {
	if !s.adminEnabled {
		return ErrAdminUnavailable
	}
	return Authorize(p, RequireAdmin)
}

func (s *service) emit(name string, err error) {
	if err != nil {
		s.logger.Warn("event sink failed", "event", name, "err", err)
	}
}
