package soundarchive_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sound-archive/pkg/soundarchive"
	"github.com/tendant/sound-archive/pkg/soundarchive/identity"
	"github.com/tendant/sound-archive/pkg/soundarchive/repo/memory"
	memorystorage "github.com/tendant/sound-archive/pkg/soundarchive/storage/memory"
)

var (
	admin = soundarchive.Principal{ID: "admin-1", Email: "admin@example.org", Role: soundarchive.RoleAdmin, Authenticated: true}
	user  = soundarchive.Principal{ID: "user-1", Email: "user@example.org", Role: soundarchive.RoleUser, Authenticated: true}
	anon  = soundarchive.Anonymous
)

// flakyStore fails Put or SignedURL for selected keys or categories.
type flakyStore struct {
	*memorystorage.Backend
	failPutPrefix string
	failSign      map[string]bool
	slowSign      map[string]bool
}

func (f *flakyStore) Put(ctx context.Context, key string, r io.Reader, size int64, ct string) error {
	if f.failPutPrefix != "" && strings.HasPrefix(key, f.failPutPrefix) {
		return errors.New("bucket write refused")
	}
	return f.Backend.Put(ctx, key, r, size, ct)
}

func (f *flakyStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.failSign[key] {
		return "", errors.New("provider exploded")
	}
	if f.slowSign[key] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.Backend.SignedURL(ctx, key, ttl)
}

// failingRepo refuses inserts.
type failingRepo struct {
	*memory.Repository
}

func (failingRepo) CreateContent(ctx context.Context, record *soundarchive.ContentRecord) error {
	return errors.New("connection reset")
}

// frozenRepo refuses record updates.
type frozenRepo struct {
	*memory.Repository
}

func (frozenRepo) UpdateContent(ctx context.Context, record *soundarchive.ContentRecord) error {
	return errors.New("connection reset")
}

type testEnv struct {
	svc   soundarchive.Service
	repo  *memory.Repository
	store *flakyStore
}

func setupTestService(t *testing.T, opts ...soundarchive.Option) *testEnv {
	t.Helper()
	return setupTestServiceWithStore(t, memorystorage.New(), opts...)
}

func setupTestServiceWithStore(t *testing.T, backend *memorystorage.Backend, opts ...soundarchive.Option) *testEnv {
	t.Helper()
	repo := memory.New()
	store := &flakyStore{Backend: backend, failSign: map[string]bool{}, slowSign: map[string]bool{}}
	accounts := identity.NewStaticProvider()

	base := []soundarchive.Option{
		soundarchive.WithBackendClients(soundarchive.BackendClients{
			Identity:   accounts,
			Roles:      repo,
			Store:      store,
			Content:    repo,
			Users:      repo,
			Accounts:   accounts,
			Privileged: true,
		}),
	}
	svc, err := soundarchive.New(append(base, opts...)...)
	require.NoError(t, err)
	return &testEnv{svc: svc, repo: repo, store: store}
}

func audioFile(n int) soundarchive.RawFile {
	return soundarchive.BytesFile("canto.mp3", "audio/mpeg", make([]byte, n))
}

func imageFile(n int) soundarchive.RawFile {
	return soundarchive.BytesFile("portada.jpg", "image/jpeg", make([]byte, n))
}

func videoFile(n int) soundarchive.RawFile {
	return soundarchive.BytesFile("danza.mp4", "video/mp4", make([]byte, n))
}

func newUpload(title string, files map[soundarchive.MediaKind]soundarchive.RawFile) soundarchive.UploadRequest {
	return soundarchive.UploadRequest{
		Fields: soundarchive.Fields{Title: title, Status: soundarchive.StatusPublished},
		Files:  files,
	}
}

func boolPtr(b bool) *bool { return &b }

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []soundarchive.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []soundarchive.Option{},
			expectError: true,
		},
		{
			name:        "repository without store should fail",
			options:     []soundarchive.Option{soundarchive.WithRepository(memory.New())},
			expectError: true,
		},
		{
			name: "repository and store should succeed",
			options: []soundarchive.Option{
				soundarchive.WithRepository(memory.New()),
				soundarchive.WithObjectStore(memorystorage.New()),
			},
		},
		{
			name: "inverted url policy should fail",
			options: []soundarchive.Option{
				soundarchive.WithRepository(memory.New()),
				soundarchive.WithObjectStore(memorystorage.New()),
				soundarchive.WithURLPolicy(soundarchive.URLPolicy{Min: time.Hour, Max: time.Minute}),
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := soundarchive.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreateContent_Gate(t *testing.T) {
	ctx := context.Background()
	files := map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(10)}

	t.Run("user is forbidden", func(t *testing.T) {
		env := setupTestService(t)
		_, err := env.svc.CreateContent(ctx, user, newUpload("Canto", files))
		assert.ErrorIs(t, err, soundarchive.ErrForbidden)
		assert.Equal(t, 0, env.store.Len())
	})

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		env := setupTestService(t)
		_, err := env.svc.CreateContent(ctx, anon, newUpload("Canto", files))
		assert.ErrorIs(t, err, soundarchive.ErrUnauthenticated)
		assert.Equal(t, 0, env.store.Len())
	})

	t.Run("admin features disabled", func(t *testing.T) {
		env := setupTestService(t, soundarchive.WithAdminEnabled(false))
		assert.False(t, env.svc.AdminEnabled())
		_, err := env.svc.CreateContent(ctx, admin, newUpload("Canto", files))
		assert.ErrorIs(t, err, soundarchive.ErrAdminUnavailable)
		assert.Equal(t, 0, env.store.Len())
	})
}

func TestCreateContent_WritesOneObjectPerPart(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	rec, err := env.svc.CreateContent(ctx, admin, newUpload("Cantos de la selva", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(1024),
		soundarchive.MediaImage: imageFile(512),
		soundarchive.MediaVideo: videoFile(2048),
	}))
	require.NoError(t, err)

	assert.Equal(t, 3, env.store.Len())
	assert.True(t, strings.HasPrefix(soundarchive.StringValue(rec.AudioKey), "audios/"))
	assert.True(t, strings.HasPrefix(soundarchive.StringValue(rec.ImageKey), "imagenes/"))
	assert.True(t, strings.HasPrefix(soundarchive.StringValue(rec.VideoKey), "videos/"))
	assert.True(t, strings.HasSuffix(soundarchive.StringValue(rec.AudioKey), ".mp3"))
	for _, key := range rec.MediaKeys() {
		assert.True(t, env.store.Exists(key), key)
	}

	stored, err := env.repo.GetContent(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", stored.CreatedBy)
	assert.True(t, stored.VisibleToUser)
	assert.False(t, stored.PubliclyVisible)
	assert.Nil(t, stored.AudioPublicURL)
}

func TestCreateContent_Validation(t *testing.T) {
	ctx := context.Background()
	limits := soundarchive.DefaultLimits()

	tests := []struct {
		name  string
		title string
		files map[soundarchive.MediaKind]soundarchive.RawFile
	}{
		{
			name:  "missing title",
			title: "  ",
			files: map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(10)},
		},
		{
			name:  "title too long",
			title: strings.Repeat("a", 301),
			files: map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(10)},
		},
		{
			name:  "oversize image next to a valid audio",
			title: "Canto",
			files: map[soundarchive.MediaKind]soundarchive.RawFile{
				soundarchive.MediaAudio: audioFile(10),
				soundarchive.MediaImage: imageFile(int(limits.MaxImageBytes) + 1),
			},
		},
		{
			name:  "audio slot holding an image",
			title: "Canto",
			files: map[soundarchive.MediaKind]soundarchive.RawFile{
				soundarchive.MediaAudio: soundarchive.BytesFile("x.jpg", "image/jpeg", []byte("abc")),
			},
		},
		{
			name:  "empty file",
			title: "Canto",
			files: map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaVideo: videoFile(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestService(t)
			_, err := env.svc.CreateContent(ctx, admin, newUpload(tt.title, tt.files))
			assert.ErrorIs(t, err, soundarchive.ErrInvalidInput)
			assert.Equal(t, 0, env.store.Len())
		})
	}
}

func TestCreateContent_SniffsUndeclaredType(t *testing.T) {
	env := setupTestService(t)
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

	rec, err := env.svc.CreateContent(context.Background(), admin, newUpload("Portada", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaImage: soundarchive.BytesFile("portada", "application/octet-stream", png),
	}))
	require.NoError(t, err)
	assert.NotNil(t, rec.ImageKey)
}

func TestCreateContent_PartialFailure(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	env.store.failPutPrefix = "imagenes/"

	_, err := env.svc.CreateContent(ctx, admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
		soundarchive.MediaImage: imageFile(10),
		soundarchive.MediaVideo: videoFile(10),
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, soundarchive.ErrPartialFailure)
	assert.ErrorIs(t, err, soundarchive.ErrUpstreamUnavailable)

	var uploadErr *soundarchive.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "image", uploadErr.Part)
	require.Len(t, uploadErr.OrphanedKeys, 1)
	assert.True(t, strings.HasPrefix(uploadErr.OrphanedKeys[0], "audios/"))

	// video never attempted, no record written
	assert.Equal(t, 1, env.store.Len())
	page, err := env.svc.ListVisible(ctx, admin, soundarchive.ListFilters{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestCreateContent_FirstPartFailureIsNotPartial(t *testing.T) {
	env := setupTestService(t)
	env.store.failPutPrefix = "audios/"

	_, err := env.svc.CreateContent(context.Background(), admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
	}))
	assert.ErrorIs(t, err, soundarchive.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, soundarchive.ErrPartialFailure)
}

func TestCreateContent_RecordFailureReportsOrphans(t *testing.T) {
	backend := memorystorage.New()
	repo := failingRepo{memory.New()}
	svc, err := soundarchive.New(
		soundarchive.WithRepository(repo),
		soundarchive.WithObjectStore(backend),
		soundarchive.WithAdminEnabled(true),
	)
	require.NoError(t, err)

	_, err = svc.CreateContent(context.Background(), admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
		soundarchive.MediaImage: imageFile(10),
	}))
	var uploadErr *soundarchive.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "record", uploadErr.Part)
	assert.Len(t, uploadErr.OrphanedKeys, 2)
	assert.Equal(t, 2, backend.Len())
}

func TestCreateContent_CanceledRequestSkipsRecord(t *testing.T) {
	env := setupTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.svc.CreateContent(ctx, admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
	}))
	var uploadErr *soundarchive.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "record", uploadErr.Part)
	// the write itself is detached from the request
	assert.Equal(t, 1, env.store.Len())

	keys, err := env.repo.ListMediaKeys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestUpdateContent(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	rec, err := env.svc.CreateContent(ctx, admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
		soundarchive.MediaImage: imageFile(10),
	}))
	require.NoError(t, err)
	oldAudio := soundarchive.StringValue(rec.AudioKey)
	oldImage := soundarchive.StringValue(rec.ImageKey)

	title := "Canto nuevo"
	status := soundarchive.StatusArchived
	updated, err := env.svc.UpdateContent(ctx, admin, rec.ID, soundarchive.UpdateRequest{
		Title:       &title,
		Status:      &status,
		Files:       map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(20)},
		RemoveMedia: []soundarchive.MediaKind{soundarchive.MediaImage},
	})
	require.NoError(t, err)

	assert.Equal(t, "Canto nuevo", updated.Title)
	assert.Equal(t, soundarchive.StatusArchived, updated.Status)
	assert.NotEqual(t, oldAudio, soundarchive.StringValue(updated.AudioKey))
	assert.Nil(t, updated.ImageKey)
	assert.False(t, env.store.Exists(oldAudio))
	assert.False(t, env.store.Exists(oldImage))
	assert.Equal(t, 1, env.store.Len())

	t.Run("missing record", func(t *testing.T) {
		_, err := env.svc.UpdateContent(ctx, admin, uuid.New(), soundarchive.UpdateRequest{Title: &title})
		assert.ErrorIs(t, err, soundarchive.ErrNotFound)
	})

	t.Run("replace and remove same slot", func(t *testing.T) {
		_, err := env.svc.UpdateContent(ctx, admin, rec.ID, soundarchive.UpdateRequest{
			Files:       map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(5)},
			RemoveMedia: []soundarchive.MediaKind{soundarchive.MediaAudio},
		})
		assert.ErrorIs(t, err, soundarchive.ErrInvalidInput)
	})
}

func TestUpdateContent_FailedCommitKeepsMedia(t *testing.T) {
	backend := memorystorage.New()
	repo := memory.New()

	t.Run("table update fails", func(t *testing.T) {
		svc, err := soundarchive.New(
			soundarchive.WithRepository(frozenRepo{repo}),
			soundarchive.WithObjectStore(backend),
			soundarchive.WithAdminEnabled(true),
		)
		require.NoError(t, err)
		ctx := context.Background()

		rec, err := svc.CreateContent(ctx, admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
			soundarchive.MediaAudio: audioFile(10),
			soundarchive.MediaImage: imageFile(10),
		}))
		require.NoError(t, err)
		oldAudio := soundarchive.StringValue(rec.AudioKey)
		oldImage := soundarchive.StringValue(rec.ImageKey)

		_, err = svc.UpdateContent(ctx, admin, rec.ID, soundarchive.UpdateRequest{
			Files:       map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(20)},
			RemoveMedia: []soundarchive.MediaKind{soundarchive.MediaImage},
		})
		var uploadErr *soundarchive.UploadError
		require.True(t, errors.As(err, &uploadErr))
		assert.Equal(t, "record", uploadErr.Part)
		require.Len(t, uploadErr.OrphanedKeys, 1)
		assert.NotEqual(t, oldAudio, uploadErr.OrphanedKeys[0])

		stored, err := repo.GetContent(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, oldAudio, soundarchive.StringValue(stored.AudioKey))
		assert.True(t, backend.Exists(oldAudio))
		assert.True(t, backend.Exists(oldImage))
	})

	t.Run("request canceled", func(t *testing.T) {
		env := setupTestService(t)
		rec, err := env.svc.CreateContent(context.Background(), admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
			soundarchive.MediaAudio: audioFile(10),
		}))
		require.NoError(t, err)
		oldAudio := soundarchive.StringValue(rec.AudioKey)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = env.svc.UpdateContent(ctx, admin, rec.ID, soundarchive.UpdateRequest{
			Files: map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(20)},
		})
		assert.ErrorIs(t, err, soundarchive.ErrUpstreamUnavailable)

		stored, err := env.repo.GetContent(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, oldAudio, soundarchive.StringValue(stored.AudioKey))
		assert.True(t, env.store.Exists(oldAudio))
	})
}

func TestReplaceMedia_OtherRecordsKeys(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	a, err := env.svc.CreateContent(ctx, admin, newUpload("A", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
	}))
	require.NoError(t, err)
	b, err := env.svc.CreateContent(ctx, admin, newUpload("B", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
	}))
	require.NoError(t, err)
	keyA := soundarchive.StringValue(a.AudioKey)
	keyB := soundarchive.StringValue(b.AudioKey)

	_, err = env.svc.ReplaceMedia(ctx, admin, soundarchive.ReplaceRequest{
		ContentID: a.ID,
		Files:     map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(20)},
		Previous:  map[soundarchive.MediaKind]string{soundarchive.MediaAudio: keyB},
	})
	assert.ErrorIs(t, err, soundarchive.ErrInvalidInput)
	assert.True(t, env.store.Exists(keyB))
	assert.Equal(t, 2, env.store.Len(), "a rejected replace writes nothing")

	keys, err := env.svc.ReplaceMedia(ctx, admin, soundarchive.ReplaceRequest{
		ContentID: a.ID,
		Files:     map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(20)},
		Previous:  map[soundarchive.MediaKind]string{soundarchive.MediaAudio: keyA},
	})
	require.NoError(t, err)
	assert.True(t, env.store.Exists(keys[soundarchive.MediaAudio]))
	assert.False(t, env.store.Exists(keyA))
	assert.True(t, env.store.Exists(keyB))
}

func TestReplaceMedia(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	require.NoError(t, env.store.Put(ctx, "audios/old.mp3", strings.NewReader("x"), 1, "audio/mpeg"))

	keys, err := env.svc.ReplaceMedia(ctx, admin, soundarchive.ReplaceRequest{
		Files:    map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(10)},
		Previous: map[soundarchive.MediaKind]string{soundarchive.MediaAudio: "audios/old.mp3"},
	})
	require.NoError(t, err)
	assert.True(t, env.store.Exists(keys[soundarchive.MediaAudio]))
	assert.False(t, env.store.Exists("audios/old.mp3"))

	_, err = env.svc.ReplaceMedia(ctx, admin, soundarchive.ReplaceRequest{})
	assert.ErrorIs(t, err, soundarchive.ErrInvalidInput)
}

func TestDeleteContentAndObject(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	rec, err := env.svc.CreateContent(ctx, admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
	}))
	require.NoError(t, err)
	key := soundarchive.StringValue(rec.AudioKey)

	err = env.svc.DeleteObject(ctx, admin, key)
	assert.ErrorIs(t, err, soundarchive.ErrInvalidInput, "referenced objects cannot be removed directly")

	assert.ErrorIs(t, env.svc.DeleteContent(ctx, user, rec.ID), soundarchive.ErrForbidden)
	require.NoError(t, env.svc.DeleteContent(ctx, admin, rec.ID))
	assert.Equal(t, 0, env.store.Len())
	assert.ErrorIs(t, env.svc.DeleteContent(ctx, admin, rec.ID), soundarchive.ErrNotFound)

	require.NoError(t, env.store.Put(ctx, "audios/stray.mp3", strings.NewReader("x"), 1, "audio/mpeg"))
	require.NoError(t, env.svc.DeleteObject(ctx, admin, "audios/stray.mp3"))
	assert.False(t, env.store.Exists("audios/stray.mp3"))
	assert.ErrorIs(t, env.svc.DeleteObject(ctx, admin, "../etc/passwd"), soundarchive.ErrInvalidInput)
}

func TestHealthAndReconcile(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	report := env.svc.Health(ctx)
	assert.True(t, report.Healthy())
	assert.Equal(t, soundarchive.CheckOK, report.Checks["upload"].Status)
	assert.Equal(t, 0, env.store.Len(), "probe object is removed")

	env.store.failPutPrefix = "health-check/"
	report = env.svc.Health(ctx)
	assert.Equal(t, soundarchive.HealthIssuesDetected, report.Overall)
	assert.Equal(t, soundarchive.CheckError, report.Checks["upload"].Status)
	env.store.failPutPrefix = ""

	rec, err := env.svc.CreateContent(ctx, admin, newUpload("Canto", map[soundarchive.MediaKind]soundarchive.RawFile{
		soundarchive.MediaAudio: audioFile(10),
	}))
	require.NoError(t, err)
	require.NoError(t, env.store.Put(ctx, "videos/old.mp4", strings.NewReader("x"), 1, "video/mp4"))
	require.NoError(t, env.store.Put(ctx, "videos/fresh.mp4", strings.NewReader("x"), 1, "video/mp4"))
	env.store.SetModified("videos/old.mp4", time.Now().Add(-48*time.Hour))

	res, err := env.svc.Reconcile(ctx, soundarchive.ReconcileOptions{MinAge: 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, []string{"videos/old.mp4"}, res.Orphans)
	assert.Equal(t, 1, res.Skipped)
	assert.True(t, env.store.Exists("videos/old.mp4"))

	res, err = env.svc.Reconcile(ctx, soundarchive.ReconcileOptions{Delete: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"videos/old.mp4", "videos/fresh.mp4"}, res.Deleted)
	assert.True(t, env.store.Exists(soundarchive.StringValue(rec.AudioKey)))
	assert.Equal(t, 1, env.store.Len())
}

func TestEnsureBucket(t *testing.T) {
	env := setupTestService(t)
	assert.NoError(t, env.svc.EnsureBucket(context.Background(), admin))
	assert.ErrorIs(t, env.svc.EnsureBucket(context.Background(), user), soundarchive.ErrForbidden)
}
