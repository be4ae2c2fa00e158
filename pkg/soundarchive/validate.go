package soundarchive

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const (
	defaultMaxAudioBytes = 50 << 20
	defaultMaxImageBytes = 5 << 20
	defaultMaxVideoBytes = 50 << 20
	defaultMaxTitle      = 300
)

// Limits bound accepted uploads.
type Limits struct {
	MaxAudioBytes  int64
	MaxImageBytes  int64
	MaxVideoBytes  int64
	MaxTitleLength int
}

// DefaultLimits returns audio and video at 50 MiB and images at 5 MiB.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes:  defaultMaxAudioBytes,
		MaxImageBytes:  defaultMaxImageBytes,
		MaxVideoBytes:  defaultMaxVideoBytes,
		MaxTitleLength: defaultMaxTitle,
	}
}

// MaxBytes returns the size limit for kind.
func (l Limits) MaxBytes(kind MediaKind) int64 {
	switch kind {
	case MediaAudio:
		return l.MaxAudioBytes
	case MediaImage:
		return l.MaxImageBytes
	case MediaVideo:
		return l.MaxVideoBytes
	}
	return 0
}

// BaseMIME lower-cases a MIME type and drops its parameters.
func BaseMIME(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// validateFiles checks every part before anything is written and returns the
// content type to store for each kind.
func (s *service) validateFiles(files map[MediaKind]RawFile) (map[MediaKind]string, error) {
	types := make(map[MediaKind]string, len(files))
	for kind, f := range files {
		if !kind.IsValid() {
			return nil, NewValidationError("file", fmt.Sprintf("unknown media kind %q", kind))
		}
		field := string(kind)
		if f.Open == nil || f.Size <= 0 {
			return nil, NewValidationError(field, "file is empty")
		}
		if limit := s.limits.MaxBytes(kind); f.Size > limit {
			return nil, NewValidationError(field, fmt.Sprintf("file is %d bytes, limit is %d", f.Size, limit))
		}

		ct := BaseMIME(f.ContentType)
		if ct == "" || ct == "application/octet-stream" {
			detected, err := sniff(f)
			if err != nil {
				return nil, NewValidationError(field, "cannot read file: "+err.Error())
			}
			ct = detected
		}
		if !strings.HasPrefix(ct, kind.MIMEPrefix()) {
			return nil, NewValidationError(field, fmt.Sprintf("content type %q is not %s*", ct, kind.MIMEPrefix()))
		}
		types[kind] = ct
	}
	return types, nil
}

func sniff(f RawFile) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	mt, err := mimetype.DetectReader(rc)
	if err != nil {
		return "", err
	}
	return BaseMIME(mt.String()), nil
}

func (s *service) validateFields(f Fields) error {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return NewValidationError("title", "is required")
	}
	if len([]rune(title)) > s.limits.MaxTitleLength {
		return NewValidationError("title", fmt.Sprintf("exceeds %d characters", s.limits.MaxTitleLength))
	}
	if f.Status != "" && !f.Status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", f.Status))
	}
	return nil
}

func (s *service) validateUpdate(req UpdateRequest) error {
	if req.Title != nil {
		if err := s.validateFields(Fields{Title: *req.Title}); err != nil {
			return err
		}
	}
	if req.Status != nil && !req.Status.IsValid() {
		return NewValidationError("status", fmt.Sprintf("unknown status %q", *req.Status))
	}
	for _, kind := range req.RemoveMedia {
		if !kind.IsValid() {
			return NewValidationError("remove_media", fmt.Sprintf("unknown media kind %q", kind))
		}
		if _, replaced := req.Files[kind]; replaced {
			return NewValidationError("remove_media", fmt.Sprintf("%s is both replaced and removed", kind))
		}
	}
	return nil
}

func validateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return NewValidationError("email", "is not a valid address")
	}
	return nil
}
