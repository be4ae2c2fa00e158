package soundarchive

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 10
	maxPageSize     = 50
)

// CanView reports whether a caller with role may see the record.
func CanView(role Role, rec *ContentRecord) bool {
	if rec == nil {
		return false
	}
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return rec.Status == StatusPublished && rec.VisibleToUser
	default:
		return rec.Status == StatusPublished && rec.PubliclyVisible
	}
}

// scopeQuery returns the base query limiting results to what role may see.
func scopeQuery(role Role) ContentQuery {
	yes := true
	switch role {
	case RoleAdmin:
		return ContentQuery{}
	case RoleUser:
		return ContentQuery{Statuses: []Status{StatusPublished}, VisibleToUser: &yes}
	default:
		return ContentQuery{Statuses: []Status{StatusPublished}, PubliclyVisible: &yes}
	}
}

// ContentView is a record as returned to a caller.
type ContentView struct {
	*ContentRecord

	// URLs holds resolved access URLs by kind when requested.
	URLs map[MediaKind]*string `json:"urls,omitempty"`
}

// Project copies rec for a caller of role. Audit fields are dropped for
// non-admins and public URLs are kept only for public records in a public store.
func Project(rec *ContentRecord, role Role, storePublic bool) *ContentView {
	cp := rec.Clone()
	if role != RoleAdmin {
		cp.CreatedBy = ""
		cp.UpdatedBy = ""
	}
	if !storePublic || !cp.PubliclyVisible {
		cp.AudioPublicURL = nil
		cp.ImagePublicURL = nil
		cp.VideoPublicURL = nil
	}
	return &ContentView{ContentRecord: cp}
}

// ContentPage is one page of visible records.
type ContentPage struct {
	Items   []*ContentView `json:"contents"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"has_more"`
}

// GetVisible returns a record if the caller may see it. Records outside the
// caller's scope are reported as not found.
func (s *service) GetVisible(ctx context.Context, p Principal, id uuid.UUID) (*ContentView, error) {
	rec, err := s.repo.GetContent(ctx, id)
	if err != nil {
		return nil, &ContentError{ContentID: id, Op: "get", Err: upstream(err)}
	}
	if !CanView(p.Role, rec) {
		return nil, &ContentError{ContentID: id, Op: "get", Err: ErrNotFound}
	}
	return s.project(rec, p.Role), nil
}

// ListVisible returns a page of records in the caller's scope, newest first.
func (s *service) ListVisible(ctx context.Context, p Principal, f ListFilters) (*ContentPage, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	switch {
	case limit == 0:
		limit = defaultPageSize
	case limit < 1:
		limit = 1
	case limit > maxPageSize:
		limit = maxPageSize
	}

	q := scopeQuery(p.Role)
	if p.Role == RoleAdmin && f.Status != "" {
		if !f.Status.IsValid() {
			return nil, NewValidationError("status", "unknown status "+string(f.Status))
		}
		q.Statuses = []Status{f.Status}
	}
	q.Search = strings.TrimSpace(f.Query)
	q.Offset = (page - 1) * limit
	q.Limit = limit + 1

	records, err := s.repo.ListContent(ctx, q)
	if err != nil {
		return nil, upstream(err)
	}

	out := &ContentPage{Page: page, Limit: limit, Items: make([]*ContentView, 0, limit)}
	if len(records) > limit {
		out.HasMore = true
		records = records[:limit]
	}
	for _, rec := range records {
		if !CanView(p.Role, rec) {
			continue
		}
		out.Items = append(out.Items, s.project(rec, p.Role))
	}

	if f.IncludeURLs {
		if err := s.attachURLs(ctx, p, out.Items, f.URLExpiry); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *service) project(rec *ContentRecord, role Role) *ContentView {
	return Project(rec, role, s.storePublic())
}

// attachURLs resolves the media of every item through the issuer.
func (s *service) attachURLs(ctx context.Context, p Principal, items []*ContentView, expiry time.Duration) error {
	var keys []string
	for _, item := range items {
		for _, key := range item.MediaKeys() {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	urls := make(map[string]*string, len(keys))
	for start := 0; start < len(keys); start += s.urls.MaxKeys {
		end := min(start+s.urls.MaxKeys, len(keys))
		res, err := s.IssueURLs(ctx, p, IssueRequest{Keys: keys[start:end], Expires: expiry})
		if err != nil {
			return err
		}
		for k, u := range res.URLs() {
			urls[k] = u
		}
	}
	for _, item := range items {
		item.URLs = make(map[MediaKind]*string)
		for kind, key := range item.MediaKeys() {
			item.URLs[kind] = urls[key]
		}
	}
	return nil
}

func (s *service) storePublic() bool {
	_, ok := s.store.PublicURL("")
	return ok
}
