package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

func newRecord(title string, status soundarchive.Status, created time.Time) *soundarchive.ContentRecord {
	return &soundarchive.ContentRecord{
		ID:            uuid.New(),
		Title:         title,
		Status:        status,
		VisibleToUser: true,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestRepository_ContentCRUD(t *testing.T) {
	ctx := context.Background()
	repo := New()

	record := newRecord("Canto de siembra", soundarchive.StatusDraft, time.Now())
	record.SetMedia(soundarchive.MediaAudio, "audios/a.mp3", "")
	require.NoError(t, repo.CreateContent(ctx, record))

	// stored copy is isolated from the caller
	record.Title = "mutated"
	got, err := repo.GetContent(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Canto de siembra", got.Title)

	got.Status = soundarchive.StatusPublished
	require.NoError(t, repo.UpdateContent(ctx, got))

	byKey, err := repo.FindByMediaKey(ctx, "audios/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, soundarchive.StatusPublished, byKey.Status)

	_, err = repo.FindByMediaKey(ctx, "audios/none.mp3")
	assert.ErrorIs(t, err, soundarchive.ErrNotFound)

	require.NoError(t, repo.DeleteContent(ctx, record.ID))
	_, err = repo.GetContent(ctx, record.ID)
	assert.ErrorIs(t, err, soundarchive.ErrNotFound)
	assert.ErrorIs(t, repo.DeleteContent(ctx, record.ID), soundarchive.ErrNotFound)
}

func TestRepository_ListContent(t *testing.T) {
	ctx := context.Background()
	repo := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	titles := []string{"Selva", "Montaña", "Selva nocturna", "Costa"}
	for i, title := range titles {
		r := newRecord(title, soundarchive.StatusPublished, base.Add(time.Duration(i)*time.Hour))
		if title == "Costa" {
			r.Status = soundarchive.StatusDraft
		}
		require.NoError(t, repo.CreateContent(ctx, r))
	}

	all, err := repo.ListContent(ctx, soundarchive.ContentQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Costa", all[0].Title, "newest first")

	published, err := repo.ListContent(ctx, soundarchive.ContentQuery{Statuses: []soundarchive.Status{soundarchive.StatusPublished}})
	require.NoError(t, err)
	assert.Len(t, published, 3)

	search, err := repo.ListContent(ctx, soundarchive.ContentQuery{Search: "SELVA"})
	require.NoError(t, err)
	assert.Len(t, search, 2)

	paged, err := repo.ListContent(ctx, soundarchive.ContentQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, "Montaña", paged[0].Title)

	empty, err := repo.ListContent(ctx, soundarchive.ContentQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_UsersAndRoles(t *testing.T) {
	ctx := context.Background()
	repo := New()

	_, err := repo.RoleOf(ctx, "u1")
	assert.ErrorIs(t, err, soundarchive.ErrNotFound)

	require.NoError(t, repo.UpsertUser(ctx, &soundarchive.UserRecord{UserID: "u1", Email: "a@example.org", Role: soundarchive.RoleAdmin, IsActive: true}))
	role, err := repo.RoleOf(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, soundarchive.RoleAdmin, role)

	require.NoError(t, repo.UpsertUser(ctx, &soundarchive.UserRecord{UserID: "u1", Email: "a@example.org", Role: soundarchive.RoleAdmin, IsActive: false}))
	_, err = repo.RoleOf(ctx, "u1")
	assert.ErrorIs(t, err, soundarchive.ErrNotFound, "inactive accounts hold no role")

	require.NoError(t, repo.AppendStatusLog(ctx, &soundarchive.UserStatusLog{AdminID: "a", TargetUserID: "u1"}))
	logs := repo.StatusLogs()
	require.Len(t, logs, 1)
	assert.NotEqual(t, uuid.Nil, logs[0].ID)

	users, err := repo.ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, repo.DeleteUser(ctx, "u1"))
	assert.ErrorIs(t, repo.DeleteUser(ctx, "u1"), soundarchive.ErrNotFound)
}
