package soundarchive

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// IdentityProvider verifies bearer credentials issued by the identity backend.
type IdentityProvider interface {
	// VerifyToken returns the principal behind a bearer token. The returned
	// principal carries no role; roles come from a RoleChecker.
	VerifyToken(ctx context.Context, bearer string) (Principal, error)
}

// RoleChecker resolves the stored role of a verified principal.
type RoleChecker interface {
	// RoleOf returns ErrNotFound when the principal has no active role.
	RoleOf(ctx context.Context, principalID string) (Role, error)
}

// ObjectStore is the bucket holding media bytes.
type ObjectStore interface {
	// Put writes size bytes from r under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// SignedURL returns a time-limited read URL. A missing object is ErrNotFound.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// PublicURL returns a non-expiring URL and true when the store serves
	// objects publicly.
	PublicURL(key string) (string, bool)

	// List returns the objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// EnsureBucket creates the bucket when it does not exist.
	EnsureBucket(ctx context.Context) error

	// Ping verifies the bucket is reachable.
	Ping(ctx context.Context) error
}

// Repository is the content table.
type Repository interface {
	CreateContent(ctx context.Context, record *ContentRecord) error
	GetContent(ctx context.Context, id uuid.UUID) (*ContentRecord, error)
	UpdateContent(ctx context.Context, record *ContentRecord) error
	DeleteContent(ctx context.Context, id uuid.UUID) error

	// ListContent returns matching records, newest first.
	ListContent(ctx context.Context, query ContentQuery) ([]*ContentRecord, error)

	// FindByMediaKey returns the record referencing key in any media slot.
	FindByMediaKey(ctx context.Context, key string) (*ContentRecord, error)

	// ListMediaKeys returns every media key referenced by any record.
	ListMediaKeys(ctx context.Context) ([]string, error)

	Ping(ctx context.Context) error
}

// UserStore holds archive accounts and their audit trail.
type UserStore interface {
	UpsertUser(ctx context.Context, user *UserRecord) error
	GetUser(ctx context.Context, userID string) (*UserRecord, error)
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, limit, offset int) ([]*UserRecord, error)
	AppendStatusLog(ctx context.Context, entry *UserStatusLog) error
}

// AccountProvider performs privileged account operations at the identity backend.
type AccountProvider interface {
	CreateAccount(ctx context.Context, req NewAccount) (*Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// EventSink receives notifications about service activity.
type EventSink interface {
	// ContentCreated is fired after a record is inserted
	ContentCreated(ctx context.Context, record *ContentRecord) error

	// ContentUpdated is fired after a record is updated
	ContentUpdated(ctx context.Context, record *ContentRecord) error

	// ContentDeleted is fired after a record is deleted
	ContentDeleted(ctx context.Context, id uuid.UUID) error

	// ObjectWritten is fired after media bytes are stored
	ObjectWritten(ctx context.Context, kind MediaKind, key string, size int64) error

	// ObjectOrphaned is fired when bytes are left without a referencing record
	ObjectOrphaned(ctx context.Context, key string, reason string) error

	// URLIssued is fired once per key handled by the issuer; err is nil on success
	URLIssued(ctx context.Context, key string, public bool, err error) error
}

// Service is the archive's access-control surface.
type Service interface {
	// Identity
	ResolvePrincipal(ctx context.Context, bearer string) (Principal, error)

	// Content
	CreateContent(ctx context.Context, p Principal, req UploadRequest) (*ContentRecord, error)
	UpdateContent(ctx context.Context, p Principal, id uuid.UUID, req UpdateRequest) (*ContentRecord, error)
	ReplaceMedia(ctx context.Context, p Principal, req ReplaceRequest) (map[MediaKind]string, error)
	DeleteContent(ctx context.Context, p Principal, id uuid.UUID) error
	DeleteObject(ctx context.Context, p Principal, key string) error
	GetVisible(ctx context.Context, p Principal, id uuid.UUID) (*ContentView, error)
	ListVisible(ctx context.Context, p Principal, filters ListFilters) (*ContentPage, error)

	// Access URLs
	IssueURLs(ctx context.Context, p Principal, req IssueRequest) (*IssueResult, error)

	// Users
	CreateUser(ctx context.Context, p Principal, req NewUserRequest) (*UserRecord, error)
	UpdateUser(ctx context.Context, p Principal, userID string, patch UserPatch) (*UserRecord, error)
	DeleteUser(ctx context.Context, p Principal, userID string) error
	ListUsers(ctx context.Context, p Principal, page, limit int) ([]*UserRecord, error)

	// Operations
	EnsureBucket(ctx context.Context, p Principal) error
	Health(ctx context.Context) *HealthReport
	Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error)

	// AdminEnabled reports whether privileged clients are configured.
	AdminEnabled() bool
}
