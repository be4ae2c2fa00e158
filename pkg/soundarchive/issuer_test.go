package soundarchive_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sound-archive/pkg/soundarchive"
	memorystorage "github.com/tendant/sound-archive/pkg/soundarchive/storage/memory"
)

func createWithFlags(t *testing.T, env *testEnv, title string, status soundarchive.Status, visibleToUser, public bool) *soundarchive.ContentRecord {
	t.Helper()
	rec, err := env.svc.CreateContent(context.Background(), admin, soundarchive.UploadRequest{
		Fields: soundarchive.Fields{
			Title:           title,
			Status:          status,
			VisibleToUser:   boolPtr(visibleToUser),
			PubliclyVisible: boolPtr(public),
		},
		Files: map[soundarchive.MediaKind]soundarchive.RawFile{soundarchive.MediaAudio: audioFile(16)},
	})
	require.NoError(t, err)
	return rec
}

func TestURLPolicy_Clamp(t *testing.T) {
	p := soundarchive.DefaultURLPolicy()

	tests := []struct {
		name      string
		hasRole   bool
		requested time.Duration
		want      time.Duration
	}{
		{"default", true, 0, 300 * time.Second},
		{"below minimum", true, 5 * time.Second, 30 * time.Second},
		{"within range", true, 10 * time.Minute, 10 * time.Minute},
		{"authenticated maximum", true, 48 * time.Hour, 24 * time.Hour},
		{"anonymous maximum", false, 48 * time.Hour, time.Hour},
		{"anonymous default", false, 0, 300 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Clamp(tt.hasRole, tt.requested))
		})
	}
}

func TestIssueURLs_RolelessCallerGetsAnonymousLifetime(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)
	roleless := soundarchive.Principal{ID: "r-1", Authenticated: true, Role: soundarchive.RoleAnonymous}

	res, err := env.svc.IssueURLs(ctx, roleless, soundarchive.IssueRequest{Expires: 48 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, res.TTL)

	res, err = env.svc.IssueURLs(ctx, user, soundarchive.IssueRequest{Expires: 48 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, res.TTL)
}

func TestIssueURLs_OneEntryPerKey(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	ok1 := createWithFlags(t, env, "Uno", soundarchive.StatusPublished, true, false)
	ok2 := createWithFlags(t, env, "Dos", soundarchive.StatusPublished, true, false)
	broken := createWithFlags(t, env, "Tres", soundarchive.StatusPublished, true, false)
	slow := createWithFlags(t, env, "Cuatro", soundarchive.StatusPublished, true, false)
	env.store.failSign[soundarchive.StringValue(broken.AudioKey)] = true
	env.store.slowSign[soundarchive.StringValue(slow.AudioKey)] = true

	keys := []string{
		soundarchive.StringValue(ok1.AudioKey),
		soundarchive.StringValue(broken.AudioKey),
		soundarchive.StringValue(ok2.AudioKey),
		soundarchive.StringValue(slow.AudioKey),
		"audios/never-uploaded.mp3",
		soundarchive.StringValue(ok1.AudioKey),
	}

	svc, err := soundarchive.New(
		soundarchive.WithRepository(env.repo),
		soundarchive.WithObjectStore(env.store),
		soundarchive.WithURLPolicy(func() soundarchive.URLPolicy {
			p := soundarchive.DefaultURLPolicy()
			p.ProviderTimeout = 50 * time.Millisecond
			return p
		}()),
	)
	require.NoError(t, err)

	res, err := svc.IssueURLs(ctx, user, soundarchive.IssueRequest{Keys: keys})
	require.NoError(t, err)
	require.Len(t, res.Grants, 5)

	assert.NotNil(t, res.Grants[soundarchive.StringValue(ok1.AudioKey)])
	assert.NotNil(t, res.Grants[soundarchive.StringValue(ok2.AudioKey)])
	assert.Nil(t, res.Grants[soundarchive.StringValue(broken.AudioKey)])
	assert.Nil(t, res.Grants[soundarchive.StringValue(slow.AudioKey)])
	assert.Nil(t, res.Grants["audios/never-uploaded.mp3"])
	assert.Contains(t, res.Grants, "audios/never-uploaded.mp3")
	assert.Equal(t, 300*time.Second, res.TTL)

	urls := res.URLs()
	assert.Len(t, urls, 5)
}

func TestIssueURLs_InputErrors(t *testing.T) {
	ctx := context.Background()
	env := setupTestService(t)

	res, err := env.svc.IssueURLs(ctx, anon, soundarchive.IssueRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Grants)

	// blank keys are skipped, never failing the batch
	res, err = env.svc.IssueURLs(ctx, anon, soundarchive.IssueRequest{Keys: []string{"audios/a.mp3", " ", ""}})
	require.NoError(t, err)
	require.Len(t, res.Grants, 1)
	assert.Contains(t, res.Grants, "audios/a.mp3")
	assert.Nil(t, res.Grants["audios/a.mp3"])

	many := make([]string, 51)
	for i := range many {
		many[i] = fmt.Sprintf("audios/%02d.mp3", i)
	}
	_, err = env.svc.IssueURLs(ctx, anon, soundarchive.IssueRequest{Keys: many})
	assert.ErrorIs(t, err, soundarchive.ErrInvalidInput)

	// duplicates collapse before the limit applies
	dupes := append(many[:50:50], many[0])
	res, err = env.svc.IssueURLs(ctx, anon, soundarchive.IssueRequest{Keys: dupes})
	require.NoError(t, err)
	assert.Len(t, res.Grants, 50)
}

func TestIssueURLs_PublicIsStable(t *testing.T) {
	ctx := context.Background()
	env := setupTestServiceWithStore(t, memorystorage.New(memorystorage.WithPublicBaseURL("https://cdn.example.org/contenido")))

	public := createWithFlags(t, env, "Pública", soundarchive.StatusPublished, true, true)
	private := createWithFlags(t, env, "Privada", soundarchive.StatusPublished, true, false)
	publicKey := soundarchive.StringValue(public.AudioKey)
	privateKey := soundarchive.StringValue(private.AudioKey)

	first, err := env.svc.IssueURLs(ctx, anon, soundarchive.IssueRequest{Keys: []string{publicKey}})
	require.NoError(t, err)
	second, err := env.svc.IssueURLs(ctx, anon, soundarchive.IssueRequest{Keys: []string{publicKey}, Expires: time.Hour})
	require.NoError(t, err)

	require.NotNil(t, first.Grants[publicKey])
	assert.True(t, first.Grants[publicKey].Public)
	assert.True(t, first.Grants[publicKey].ExpiresAt.IsZero())
	assert.Equal(t, first.Grants[publicKey].URL, second.Grants[publicKey].URL)
	assert.Equal(t, "https://cdn.example.org/contenido/"+publicKey, first.Grants[publicKey].URL)

	// anonymous callers cannot reach records that are not public
	res, err := env.svc.IssueURLs(ctx, anon, soundarchive.IssueRequest{Keys: []string{privateKey}})
	require.NoError(t, err)
	assert.Nil(t, res.Grants[privateKey])

	// users get a signed URL even though the store is public
	res, err = env.svc.IssueURLs(ctx, user, soundarchive.IssueRequest{Keys: []string{privateKey}})
	require.NoError(t, err)
	require.NotNil(t, res.Grants[privateKey])
	assert.False(t, res.Grants[privateKey].Public)
}

func TestIssueURLs_PrivateIsSigned(t *testing.T) {
	ctx := context.Background()
	backend := memorystorage.New()
	env := setupTestServiceWithStore(t, backend)
	rec := createWithFlags(t, env, "Canto", soundarchive.StatusPublished, true, false)
	key := soundarchive.StringValue(rec.AudioKey)

	res, err := env.svc.IssueURLs(ctx, user, soundarchive.IssueRequest{Keys: []string{key}, Expires: 10 * time.Minute})
	require.NoError(t, err)
	grant := res.Grants[key]
	require.NotNil(t, grant)
	assert.False(t, grant.Public)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), grant.ExpiresAt, 5*time.Second)

	u, err := url.Parse(grant.URL)
	require.NoError(t, err)
	req := httptest.NewRequest("GET", u.RequestURI(), nil)
	got, err := backend.Signer().ValidateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	// drafts are admin only
	draft := createWithFlags(t, env, "Borrador", soundarchive.StatusDraft, true, false)
	draftKey := soundarchive.StringValue(draft.AudioKey)
	res, err = env.svc.IssueURLs(ctx, user, soundarchive.IssueRequest{Keys: []string{draftKey}})
	require.NoError(t, err)
	assert.Nil(t, res.Grants[draftKey])
	res, err = env.svc.IssueURLs(ctx, admin, soundarchive.IssueRequest{Keys: []string{draftKey}})
	require.NoError(t, err)
	assert.NotNil(t, res.Grants[draftKey])
}
