package soundarchive

import (
	"bytes"
	"io"
	"time"

	"github.com/google/uuid"
)

// RawFile is one submitted file part. Open may be called more than once.
type RawFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// BytesFile wraps an in-memory payload as a RawFile.
func BytesFile(name, contentType string, data []byte) RawFile {
	return RawFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Fields are the editable metadata of a new record. Nil visibility flags
// take their defaults: visible to users, not public.
type Fields struct {
	Title           string
	Description     string
	Region          *string
	Status          Status
	VisibleToUser   *bool
	PubliclyVisible *bool
}

// UploadRequest creates a record with up to one file per media kind.
type UploadRequest struct {
	Fields Fields
	Files  map[MediaKind]RawFile
}

// UpdateRequest edits a record. Nil fields are left unchanged; an empty
// Region clears it.
type UpdateRequest struct {
	Title           *string
	Description     *string
	Region          *string
	Status          *Status
	VisibleToUser   *bool
	PubliclyVisible *bool

	// Files replace the media in their slots.
	Files map[MediaKind]RawFile

	// RemoveMedia empties slots and deletes their objects.
	RemoveMedia []MediaKind
}

// ReplaceRequest writes new media without touching the content table.
// Previous holds the keys to delete once the new objects are stored; each
// must be held by ContentID or by no record.
type ReplaceRequest struct {
	ContentID uuid.UUID
	Files     map[MediaKind]RawFile
	Previous  map[MediaKind]string
}

// IssueRequest asks for access URLs for a batch of keys. A zero Expires uses
// the default lifetime.
type IssueRequest struct {
	Keys    []string
	Expires time.Duration
}

// ListFilters selects a page of visible records.
type ListFilters struct {
	Query string
	Page  int
	Limit int

	// Status narrows the result for admins; ignored for other roles.
	Status Status

	// IncludeURLs resolves media URLs through the issuer.
	IncludeURLs bool
	URLExpiry   time.Duration
}

// NewUserRequest creates an archive account.
type NewUserRequest struct {
	Email    string
	Password string
	FullName string
	Role     Role
	Active   *bool
}

// UserPatch changes the role or active flag of an account.
type UserPatch struct {
	Role   *Role
	Active *bool
	Reason string
}

// ReconcileOptions controls an orphan sweep.
type ReconcileOptions struct {
	// MinAge skips objects younger than this, leaving in-flight uploads alone.
	MinAge time.Duration
	// Delete removes the orphans found; otherwise they are only reported.
	Delete bool
}
