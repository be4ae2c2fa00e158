package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// Repository implements soundarchive.Repository, soundarchive.UserStore and
// soundarchive.RoleChecker using in-memory storage
type Repository struct {
	mu       sync.RWMutex
	contents map[uuid.UUID]*soundarchive.ContentRecord
	users    map[string]*soundarchive.UserRecord
	logs     []*soundarchive.UserStatusLog
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		contents: make(map[uuid.UUID]*soundarchive.ContentRecord),
		users:    make(map[string]*soundarchive.UserRecord),
	}
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, record *soundarchive.ContentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[record.ID]; exists {
		return &soundarchive.ContentError{ContentID: record.ID, Op: "create", Err: soundarchive.NewValidationError("id", "already exists")}
	}
	r.contents[record.ID] = record.Clone()
	return nil
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*soundarchive.ContentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.contents[id]
	if !exists {
		return nil, soundarchive.ErrNotFound
	}
	return record.Clone(), nil
}

func (r *Repository) UpdateContent(ctx context.Context, record *soundarchive.ContentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.contents[record.ID]
	if !exists {
		return soundarchive.ErrNotFound
	}
	updated := record.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	r.contents[record.ID] = updated
	return nil
}

func (r *Repository) DeleteContent(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contents[id]; !exists {
		return soundarchive.ErrNotFound
	}
	delete(r.contents, id)
	return nil
}

func (r *Repository) ListContent(ctx context.Context, query soundarchive.ContentQuery) ([]*soundarchive.ContentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(query.Search))
	var matched []*soundarchive.ContentRecord
	for _, record := range r.contents {
		if !matches(record, query, search) {
			continue
		}
		matched = append(matched, record)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() > matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if query.Offset >= len(matched) {
		return []*soundarchive.ContentRecord{}, nil
	}
	matched = matched[query.Offset:]
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}

	out := make([]*soundarchive.ContentRecord, len(matched))
	for i, record := range matched {
		out[i] = record.Clone()
	}
	return out, nil
}

func matches(record *soundarchive.ContentRecord, query soundarchive.ContentQuery, search string) bool {
	if len(query.Statuses) > 0 {
		found := false
		for _, s := range query.Statuses {
			if record.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if query.VisibleToUser != nil && record.VisibleToUser != *query.VisibleToUser {
		return false
	}
	if query.PubliclyVisible != nil && record.PubliclyVisible != *query.PubliclyVisible {
		return false
	}
	if search != "" &&
		!strings.Contains(strings.ToLower(record.Title), search) &&
		!strings.Contains(strings.ToLower(record.Description), search) {
		return false
	}
	return true
}

func (r *Repository) FindByMediaKey(ctx context.Context, key string) (*soundarchive.ContentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.contents {
		for _, k := range record.MediaKeys() {
			if k == key {
				return record.Clone(), nil
			}
		}
	}
	return nil, soundarchive.ErrNotFound
}

func (r *Repository) ListMediaKeys(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []string
	for _, record := range r.contents {
		for _, k := range record.MediaKeys() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return nil
}

// User operations

func (r *Repository) UpsertUser(ctx context.Context, user *soundarchive.UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	cp := *user
	if existing, ok := r.users[user.UserID]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	r.users[user.UserID] = &cp
	return nil
}

func (r *Repository) GetUser(ctx context.Context, userID string) (*soundarchive.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, soundarchive.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *Repository) DeleteUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return soundarchive.ErrNotFound
	}
	delete(r.users, userID)
	return nil
}

func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]*soundarchive.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*soundarchive.UserRecord, 0, len(r.users))
	for _, u := range r.users {
		cp := *u
		users = append(users, &cp)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })

	if offset >= len(users) {
		return []*soundarchive.UserRecord{}, nil
	}
	users = users[offset:]
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *Repository) AppendStatusLog(ctx context.Context, entry *soundarchive.UserStatusLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.logs = append(r.logs, &cp)
	return nil
}

// StatusLogs returns the audit entries recorded so far, oldest first.
func (r *Repository) StatusLogs() []*soundarchive.UserStatusLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*soundarchive.UserStatusLog, len(r.logs))
	copy(out, r.logs)
	return out
}

// RoleOf implements soundarchive.RoleChecker from the users table.
func (r *Repository) RoleOf(ctx context.Context, principalID string) (soundarchive.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[principalID]
	if !ok || !user.IsActive {
		return "", soundarchive.ErrNotFound
	}
	return user.Role, nil
}
