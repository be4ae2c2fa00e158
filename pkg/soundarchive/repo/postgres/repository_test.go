package postgres

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

func boolPtr(b bool) *bool { return &b }

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    soundarchive.ContentQuery
		contains []string
		args     int
	}{
		{
			name:     "no filters",
			query:    soundarchive.ContentQuery{},
			contains: []string{"FROM contenidos ORDER BY created_at DESC"},
			args:     0,
		},
		{
			name: "anonymous scope",
			query: soundarchive.ContentQuery{
				Statuses:        []soundarchive.Status{soundarchive.StatusPublished},
				PubliclyVisible: boolPtr(true),
				Limit:           10,
				Offset:          20,
			},
			contains: []string{"status = ANY($1)", "publicly_visible = $2", "LIMIT $3", "OFFSET $4"},
			args:     4,
		},
		{
			name:     "search",
			query:    soundarchive.ContentQuery{Search: "50%_selva"},
			contains: []string{"(title ILIKE $1 OR description ILIKE $1)"},
			args:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := buildListQuery(tt.query)
			for _, c := range tt.contains {
				assert.Contains(t, sql, c)
			}
			assert.Len(t, args, tt.args)
		})
	}

	_, args := buildListQuery(soundarchive.ContentQuery{Search: "50%_selva"})
	assert.Equal(t, `%50\%\_selva%`, args[0])
}

func TestHandlePostgresError(t *testing.T) {
	r := &Repository{}

	assert.ErrorIs(t, r.handlePostgresError("get", pgx.ErrNoRows), soundarchive.ErrNotFound)
	assert.ErrorIs(t, r.handlePostgresError("create", &pgconn.PgError{Code: "23505", ConstraintName: "idx_contenidos_audio_path"}), soundarchive.ErrInvalidInput)
	assert.ErrorIs(t, r.handlePostgresError("list", &pgconn.PgError{Code: "42P01"}), soundarchive.ErrUpstreamUnavailable)
	assert.ErrorIs(t, r.handlePostgresError("list", errors.New("conn reset")), soundarchive.ErrUpstreamUnavailable)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	assert.Equal(t, up, down)
	assert.GreaterOrEqual(t, up, 2)
}

func TestMigrate_UnknownCommand(t *testing.T) {
	err := Migrate(nil, "postgres://localhost/none", "sideways")
	assert.Error(t, err)
}
