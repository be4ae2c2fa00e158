package soundarchive

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access class of a caller.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAnonymous, RoleUser, RoleAdmin:
		return true
	}
	return false
}

// ParseRole parses an assignable role. Only user and admin can be stored
// against an account.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", NewValidationError("role", "must be 'user' or 'admin'")
}

// Principal is the resolved identity of a caller for the duration of one request.
type Principal struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email,omitempty"`
	Role          Role   `json:"role"`
	Authenticated bool   `json:"authenticated"`
}

// Anonymous is the principal used for requests without a usable credential.
var Anonymous = Principal{Role: RoleAnonymous}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Authenticated && p.Role == RoleAdmin
}

// MediaKind is a media category. Each record holds at most one object per kind.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaKinds lists every kind in write order.
var MediaKinds = []MediaKind{MediaAudio, MediaImage, MediaVideo}

// IsValid reports whether k is a known media kind.
func (k MediaKind) IsValid() bool {
	switch k {
	case MediaAudio, MediaImage, MediaVideo:
		return true
	}
	return false
}

// MIMEPrefix returns the MIME type prefix accepted for the kind.
func (k MediaKind) MIMEPrefix() string {
	return string(k) + "/"
}

// Status is the editorial status of a content record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// ContentRecord is one archived item and its media references.
type ContentRecord struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Region          *string   `json:"region"`
	Status          Status    `json:"status"`
	VisibleToUser   bool      `json:"visible_to_user"`
	PubliclyVisible bool      `json:"publicly_visible"`

	AudioKey       *string `json:"audio_key"`
	ImageKey       *string `json:"image_key"`
	VideoKey       *string `json:"video_key"`
	AudioPublicURL *string `json:"audio_public_url"`
	ImagePublicURL *string `json:"image_public_url"`
	VideoPublicURL *string `json:"video_public_url"`

	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MediaKey returns the stored key for the kind, or "" when the slot is empty.
func (c *ContentRecord) MediaKey(kind MediaKind) string {
	var p *string
	switch kind {
	case MediaAudio:
		p = c.AudioKey
	case MediaImage:
		p = c.ImageKey
	case MediaVideo:
		p = c.VideoKey
	}
	if p == nil {
		return ""
	}
	return *p
}

// SetMedia sets the key and public URL of a slot. Empty values clear the field.
func (c *ContentRecord) SetMedia(kind MediaKind, key, publicURL string) {
	k, u := optional(key), optional(publicURL)
	switch kind {
	case MediaAudio:
		c.AudioKey, c.AudioPublicURL = k, u
	case MediaImage:
		c.ImageKey, c.ImagePublicURL = k, u
	case MediaVideo:
		c.VideoKey, c.VideoPublicURL = k, u
	}
}

// MediaKeys returns the populated media keys by kind.
func (c *ContentRecord) MediaKeys() map[MediaKind]string {
	keys := make(map[MediaKind]string, len(MediaKinds))
	for _, kind := range MediaKinds {
		if key := c.MediaKey(kind); key != "" {
			keys[kind] = key
		}
	}
	return keys
}

// Clone returns a deep copy of the record.
func (c *ContentRecord) Clone() *ContentRecord {
	cp := *c
	cp.Region = clonePtr(c.Region)
	cp.AudioKey = clonePtr(c.AudioKey)
	cp.ImageKey = clonePtr(c.ImageKey)
	cp.VideoKey = clonePtr(c.VideoKey)
	cp.AudioPublicURL = clonePtr(c.AudioPublicURL)
	cp.ImagePublicURL = clonePtr(c.ImagePublicURL)
	cp.VideoPublicURL = clonePtr(c.VideoPublicURL)
	return &cp
}

// ContentQuery selects records from the content table.
type ContentQuery struct {
	Statuses        []Status
	VisibleToUser   *bool
	PubliclyVisible *bool
	Search          string
	Limit           int
	Offset          int
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// UserRecord is the archive-side account row consulted by role checks.
type UserRecord struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStatusLog records an administrative change to an account.
type UserStatusLog struct {
	ID           uuid.UUID `json:"id"`
	AdminID      string    `json:"admin_id"`
	TargetUserID string    `json:"target_user_id"`
	PrevRole     Role      `json:"prev_role,omitempty"`
	NewRole      Role      `json:"new_role,omitempty"`
	PrevActive   *bool     `json:"prev_active,omitempty"`
	NewActive    *bool     `json:"new_active,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account is an identity-provider account.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// NewAccount describes an account to create at the identity provider.
// An empty Password sends an invitation instead.
type NewAccount struct {
	Email    string
	Password string
	FullName string
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
