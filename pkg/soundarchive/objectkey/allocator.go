// Package objectkey allocates collision-resistant, category-namespaced keys
// for media objects.
//
// Keys have the form {prefix}/{ulid}.{ext}, for example
// audios/01j9z3k6w4t2x8q7c5n0m1b2v3.mp3. The ULID embeds the allocation time
// and a random suffix, so keys from concurrent uploads do not collide and
// sort by allocation time within a prefix.
package objectkey

import (
	"fmt"
	"io"
	"math/rand"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Category prefixes. Stored keys depend on these values.
const (
	PrefixAudio = "audios"
	PrefixImage = "imagenes"
	PrefixVideo = "videos"
)

var prefixes = map[string]string{
	"audio": PrefixAudio,
	"image": PrefixImage,
	"video": PrefixVideo,
}

// Prefixes returns every category prefix.
func Prefixes() []string {
	return []string{PrefixAudio, PrefixImage, PrefixVideo}
}

// Allocator allocates object keys. It is safe for concurrent use.
type Allocator struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Allocator) {
		a.now = now
	}
}

// WithEntropy sets the random source used for the ULID suffix.
func WithEntropy(r io.Reader) Option {
	return func(a *Allocator) {
		a.entropy = r
	}
}

// New creates an Allocator with monotonic ULID entropy.
func New(opts ...Option) *Allocator {
	a := &Allocator{now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.entropy == nil {
		a.entropy = ulid.Monotonic(rand.New(rand.NewSource(a.now().UnixNano())), 0)
	}
	return a
}

// Allocate returns a new key for a file of the given category
// ("audio", "image" or "video").
func (a *Allocator) Allocate(fileName, category string) (string, error) {
	prefix, ok := prefixes[category]
	if !ok {
		return "", fmt.Errorf("objectkey: unknown category %q", category)
	}

	a.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(a.now()), a.entropy)
	a.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("objectkey: generate id: %w", err)
	}

	name := strings.ToLower(id.String())
	if ext := Extension(fileName); ext != "" {
		name += "." + ext
	}
	return prefix + "/" + name, nil
}

// CategoryOf returns the category of a key, or "" when the key is outside
// every category prefix.
func CategoryOf(key string) string {
	head, _, found := strings.Cut(key, "/")
	if !found {
		return ""
	}
	for category, prefix := range prefixes {
		if head == prefix {
			return category
		}
	}
	return ""
}

// Extension returns the lower-cased extension of fileName without the dot,
// keeping only letters and digits. It returns "" when there is none.
func Extension(fileName string) string {
	ext := strings.TrimPrefix(path.Ext(sanitizeFilename(fileName)), ".")
	ext = strings.ToLower(ext)
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}
