package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/sound-archive/pkg/soundarchive"
	"github.com/tendant/sound-archive/pkg/soundarchive/presigned"
)

type object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Backend is an in-memory implementation of soundarchive.ObjectStore
type Backend struct {
	mu         sync.RWMutex
	objects    map[string]object
	signer     *presigned.Signer
	publicBase string
}

// Option configures a Backend.
type Option func(*Backend)

// WithSigner sets the signer used for SignedURL.
func WithSigner(signer *presigned.Signer) Option {
	return func(b *Backend) {
		b.signer = signer
	}
}

// WithPublicBaseURL marks the store as publicly served under base.
func WithPublicBaseURL(base string) Option {
	return func(b *Backend) {
		b.publicBase = strings.TrimRight(base, "/")
	}
}

// New creates a new in-memory storage backend
func New(opts ...Option) *Backend {
	b := &Backend{objects: make(map[string]object)}
	for _, opt := range opts {
		opt(b)
	}
	if b.signer == nil {
		b.signer = presigned.New(presigned.WithSecretKey("memory-store"))
	}
	return b
}

// Put stores the object
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: err}
	}
	if size >= 0 && int64(len(data)) != size {
		return &soundarchive.StorageError{Key: key, Op: "put", Err: fmt.Errorf("short write: %d of %d bytes", len(data), size)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: data, contentType: contentType, modified: time.Now()}
	return nil
}

// Delete removes the object
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// SignedURL returns an HMAC-signed URL served by presigned.Handler
func (b *Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !b.Exists(key) {
		return "", &soundarchive.StorageError{Key: key, Op: "sign", Err: soundarchive.ErrNotFound}
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

// List returns objects under prefix sorted by key
func (b *Backend) List(ctx context.Context, prefix string) ([]soundarchive.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []soundarchive.ObjectInfo
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, soundarchive.ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				ContentType:  obj.contentType,
				LastModified: obj.modified,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// EnsureBucket is a no-op for the memory backend
func (b *Backend) EnsureBucket(ctx context.Context) error {
	return nil
}

// Ping always succeeds for the memory backend
func (b *Backend) Ping(ctx context.Context) error {
	return nil
}

// Open implements presigned.Source
func (b *Backend) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, "", fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

// Exists reports whether key is stored
func (b *Backend) Exists(key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.objects[key]
	return ok
}

// Signer returns the signer used for SignedURL
func (b *Backend) Signer() *presigned.Signer {
	return b.signer
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// SetModified overrides the modification time of key.
func (b *Backend) SetModified(key string, t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if obj, ok := b.objects[key]; ok {
		obj.modified = t
		b.objects[key] = obj
	}
}
