package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tendant/sound-archive/pkg/soundarchive"
	"github.com/tendant/sound-archive/pkg/soundarchive/presigned"
)

// Config options for the filesystem backend
type Config struct {
	BaseDir       string // Base directory for storing files
	Bucket        string // Subdirectory of BaseDir acting as the bucket
	PublicBaseURL string // Optional; when set the store is treated as public
}

// Backend is a filesystem implementation of soundarchive.ObjectStore
type Backend struct {
	root       string
	publicBase string
	signer     *presigned.Signer
}

// New creates a new filesystem storage backend. Signed URLs are produced by
// signer and served by presigned.Handler.
func New(config Config, signer *presigned.Signer) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	bucket := config.Bucket
	if bucket == "" {
		bucket = "default"
	}
	return &Backend{
		root:       filepath.Join(config.BaseDir, bucket),
		publicBase: strings.TrimRight(config.PublicBaseURL, "/"),
		signer:     signer,
	}, nil
}

func (b *Backend) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(b.root, clean), nil
}

// Put writes the object through a temporary file and renames it into place
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	target, err := b.path(key)
	if err != nil {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: fmt.Errorf("failed to create file: %w", err)}
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if size >= 0 && n != size {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: fmt.Errorf("short write: %d of %d bytes", n, size)}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: err}
	}
	return nil
}

// Delete removes the file; a missing file is not an error
func (b *Backend) Delete(ctx context.Context, key string) error {
	target, err := b.path(key)
	if err != nil {
		return &soundarchive.StorageError{Key: key, Op: "delete", Err: err}
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return &soundarchive.StorageError{Key: key, Op: "delete", Err: err}
	}
	return nil
}

// SignedURL returns an HMAC-signed URL for an existing file
func (b *Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	target, err := b.path(key)
	if err != nil {
		return "", &soundarchive.StorageError{Key: key, Op: "sign", Err: err}
	}
	if _, err := os.Stat(target); err != nil {
		if os.IsNotExist(err) {
			return "", &soundarchive.StorageError{Key: key, Op: "sign", Err: soundarchive.ErrNotFound}
		}
		return "", &soundarchive.StorageError{Key: key, Op: "sign", Err: err}
	}
	u, _, err := b.signer.SignKey(key, ttl)
	if err != nil {
		return "", &soundarchive.StorageError{Key: key, Op: "sign", Err: err}
	}
	return u, nil
}

// PublicURL returns the public URL when a public base is configured
func (b *Backend) PublicURL(key string) (string, bool) {
	if b.publicBase == "" {
		return "", false
	}
	return b.publicBase + "/" + key, true
}

// List walks the bucket directory under prefix
func (b *Backend) List(ctx context.Context, prefix string) ([]soundarchive.ObjectInfo, error) {
	var out []soundarchive.ObjectInfo
	err := filepath.WalkDir(b.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, soundarchive.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, &soundarchive.StorageError{Key: prefix, Op: "list", Err: err}
	}
	return out, nil
}

// EnsureBucket creates the bucket directory
func (b *Backend) EnsureBucket(ctx context.Context) error {
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return &soundarchive.StorageError{Op: "ensure_bucket", Err: err}
	}
	return nil
}

// Ping checks the bucket directory exists
func (b *Backend) Ping(ctx context.Context) error {
	info, err := os.Stat(b.root)
	if err != nil {
		return &soundarchive.StorageError{Op: "ping", Err: err}
	}
	if !info.IsDir() {
		return &soundarchive.StorageError{Op: "ping", Err: fmt.Errorf("%s is not a directory", b.root)}
	}
	return nil
}

// Open implements presigned.Source; the content type is detected from the file
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	target, err := b.path(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, "", err
	}
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", err
	}
	return f, mt.String(), nil
}
