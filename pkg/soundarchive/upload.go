package soundarchive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateContent validates every part, writes them in audio, image, video
// order and inserts the record. No write happens unless the caller is an
// admin and every part is valid.
func (s *service) CreateContent(ctx context.Context, p Principal, req UploadRequest) (*ContentRecord, error) {
	if err := s.requireAdmin(p); err != nil {
		return nil, err
	}
	if err := s.validateFields(req.Fields); err != nil {
		return nil, err
	}
	types, err := s.validateFiles(req.Files)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	record := &ContentRecord{
		ID:              uuid.New(),
		Title:           strings.TrimSpace(req.Fields.Title),
		Description:     strings.TrimSpace(req.Fields.Description),
		Region:          normalizeRegion(req.Fields.Region),
		Status:          req.Fields.Status,
		VisibleToUser:   boolOr(req.Fields.VisibleToUser, true),
		PubliclyVisible: boolOr(req.Fields.PubliclyVisible, false),
		CreatedBy:       p.ID,
		UpdatedBy:       p.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if record.Status == "" {
		record.Status = StatusDraft
	}

	written, err := s.writeParts(ctx, req.Files, types)
	if err != nil {
		return nil, err
	}
	for kind, key := range written {
		record.SetMedia(kind, key, "")
	}
	s.applyPublicURLs(record)

	if err := s.commit(ctx, written, func() error { return s.repo.CreateContent(ctx, record) }); err != nil {
		return nil, err
	}

	s.logger.Info("content created", "content_id", record.ID, "parts", len(written), "by", p.ID)
	s.emit("content_created", s.sink.ContentCreated(ctx, record))
	return record, nil
}

// UpdateContent applies a partial metadata edit and replaces or removes media.
// Previous objects of replaced or removed slots are deleted best-effort once
// the record update is committed; a failed commit leaves them in place.
func (s *service) UpdateContent(ctx context.Context, p Principal, id uuid.UUID, req UpdateRequest) (*ContentRecord, error) {
	if err := s.requireAdmin(p); err != nil {
		return nil, err
	}
	if err := s.validateUpdate(req); err != nil {
		return nil, err
	}
	types, err := s.validateFiles(req.Files)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.GetContent(ctx, id)
	if err != nil {
		return nil, &ContentError{ContentID: id, Op: "update", Err: upstream(err)}
	}

	written, err := s.writeParts(ctx, req.Files, types)
	if err != nil {
		return nil, err
	}

	stale := make(map[string]string)
	for kind, key := range written {
		if old := record.MediaKey(kind); old != "" && old != key {
			stale[old] = "replaced"
		}
		record.SetMedia(kind, key, "")
	}
	for _, kind := range req.RemoveMedia {
		if old := record.MediaKey(kind); old != "" {
			stale[old] = "removed"
		}
		record.SetMedia(kind, "", "")
	}

	if req.Title != nil {
		record.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		record.Description = strings.TrimSpace(*req.Description)
	}
	if req.Region != nil {
		record.Region = normalizeRegion(req.Region)
	}
	if req.Status != nil {
		record.Status = *req.Status
	}
	if req.VisibleToUser != nil {
		record.VisibleToUser = *req.VisibleToUser
	}
	if req.PubliclyVisible != nil {
		record.PubliclyVisible = *req.PubliclyVisible
	}
	record.UpdatedBy = p.ID
	record.UpdatedAt = s.now().UTC()
	s.applyPublicURLs(record)

	if err := s.commit(ctx, written, func() error { return s.repo.UpdateContent(ctx, record) }); err != nil {
		return nil, err
	}
	for key, reason := range stale {
		s.deleteBestEffort(ctx, key, reason)
	}

	s.logger.Info("content updated", "content_id", record.ID, "replaced", len(written), "by", p.ID)
	s.emit("content_updated", s.sink.ContentUpdated(ctx, record))
	return record, nil
}

// ReplaceMedia writes new objects and deletes the previous keys best-effort.
// The content table is not touched; callers persist the returned keys. A
// previous key must belong to req.ContentID or to no record at all.
func (s *service) ReplaceMedia(ctx context.Context, p Principal, req ReplaceRequest) (map[MediaKind]string, error) {
	if err := s.requireAdmin(p); err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, NewValidationError("files", "at least one file is required")
	}
	types, err := s.validateFiles(req.Files)
	if err != nil {
		return nil, err
	}
	if err := s.checkPreviousKeys(ctx, req); err != nil {
		return nil, err
	}

	written, err := s.writeParts(ctx, req.Files, types)
	if err != nil {
		return nil, err
	}
	for kind, key := range written {
		if old := req.Previous[kind]; old != "" && old != key {
			s.deleteBestEffort(ctx, old, "replaced")
		}
	}
	return written, nil
}

func (s *service) checkPreviousKeys(ctx context.Context, req ReplaceRequest) error {
	for _, kind := range MediaKinds {
		old := req.Previous[kind]
		if old == "" {
			continue
		}
		if _, ok := req.Files[kind]; !ok {
			continue
		}
		owner, err := s.repo.FindByMediaKey(ctx, old)
		switch {
		case errors.Is(err, ErrNotFound):
			continue
		case err != nil:
			return upstream(err)
		case owner.ID != req.ContentID:
			return NewValidationError("previous_"+string(kind), fmt.Sprintf("is referenced by content %s", owner.ID))
		}
	}
	return nil
}

// DeleteContent removes the record, then its objects best-effort.
func (s *service) DeleteContent(ctx context.Context, p Principal, id uuid.UUID) error {
	if err := s.requireAdmin(p); err != nil {
		return err
	}
	record, err := s.repo.GetContent(ctx, id)
	if err != nil {
		return &ContentError{ContentID: id, Op: "delete", Err: upstream(err)}
	}
	if err := s.repo.DeleteContent(ctx, id); err != nil {
		return &ContentError{ContentID: id, Op: "delete", Err: upstream(err)}
	}
	for _, key := range record.MediaKeys() {
		s.deleteBestEffort(ctx, key, "record deleted")
	}

	s.logger.Info("content deleted", "content_id", id, "by", p.ID)
	s.emit("content_deleted", s.sink.ContentDeleted(ctx, id))
	return nil
}

// DeleteObject removes a single object that no record references.
func (s *service) DeleteObject(ctx context.Context, p Principal, key string) error {
	if err := s.requireAdmin(p); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return NewValidationError("key", "is not a valid object key")
	}
	owner, err := s.repo.FindByMediaKey(ctx, key)
	switch {
	case err == nil:
		return NewValidationError("key", fmt.Sprintf("is referenced by content %s", owner.ID))
	case !errors.Is(err, ErrNotFound):
		return upstream(err)
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return upstream(err)
	}
	s.logger.Info("object deleted", "key", key, "by", p.ID)
	return nil
}

// writeParts stores each file under a fresh key. Writes are detached from
// request cancellation and bounded by the write timeout. The first failure
// stops the remaining parts.
func (s *service) writeParts(ctx context.Context, files map[MediaKind]RawFile, types map[MediaKind]string) (map[MediaKind]string, error) {
	written := make(map[MediaKind]string, len(files))
	var keys []string

	for _, kind := range MediaKinds {
		f, ok := files[kind]
		if !ok {
			continue
		}
		key, err := s.keys.Allocate(f.Name, string(kind))
		if err != nil {
			return nil, s.abortUpload(ctx, string(kind), keys, err)
		}
		if err := s.putFile(ctx, key, f, types[kind]); err != nil {
			return nil, s.abortUpload(ctx, string(kind), keys, err)
		}
		written[kind] = key
		keys = append(keys, key)
		s.emit("object_written", s.sink.ObjectWritten(ctx, kind, key, f.Size))
	}
	return written, nil
}

func (s *service) putFile(ctx context.Context, key string, f RawFile, contentType string) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return s.store.Put(wctx, key, rc, f.Size, contentType)
}

// commit runs the table write unless the request is already gone. Any
// failure leaves the written objects as orphans.
func (s *service) commit(ctx context.Context, written map[MediaKind]string, write func() error) error {
	keys := make([]string, 0, len(written))
	for _, kind := range MediaKinds {
		if key, ok := written[kind]; ok {
			keys = append(keys, key)
		}
	}
	if err := ctx.Err(); err != nil {
		return s.abortUpload(ctx, "record", keys, fmt.Errorf("request ended before commit: %w", err))
	}
	if err := write(); err != nil {
		return s.abortUpload(ctx, "record", keys, err)
	}
	return nil
}

func (s *service) abortUpload(ctx context.Context, part string, orphans []string, err error) error {
	if len(orphans) > 0 {
		s.logger.Warn("upload aborted, objects left without a record", "part", part, "orphaned_keys", orphans, "err", err)
		for _, key := range orphans {
			s.emit("object_orphaned", s.sink.ObjectOrphaned(ctx, key, "upload aborted at "+part))
		}
	} else {
		s.logger.Error("upload aborted", "part", part, "err", err)
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		err = upstream(err)
	} else {
		err = fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return &UploadError{Part: part, OrphanedKeys: orphans, Err: err}
}

func (s *service) deleteBestEffort(ctx context.Context, key, reason string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()
	if err := s.store.Delete(dctx, key); err != nil {
		s.logger.Warn("failed to delete object", "key", key, "reason", reason, "err", err)
		s.emit("object_orphaned", s.sink.ObjectOrphaned(ctx, key, reason+": delete failed"))
	}
}

// applyPublicURLs sets public URLs only when the store serves objects
// publicly and the record is public; otherwise they are cleared.
func (s *service) applyPublicURLs(record *ContentRecord) {
	for _, kind := range MediaKinds {
		key := record.MediaKey(kind)
		public := ""
		if key != "" && record.PubliclyVisible {
			if u, ok := s.store.PublicURL(key); ok {
				public = u
			}
		}
		record.SetMedia(kind, key, public)
	}
}

func normalizeRegion(region *string) *string {
	if region == nil {
		return nil
	}
	return optional(strings.TrimSpace(*region))
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
