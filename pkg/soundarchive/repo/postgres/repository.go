package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements soundarchive.Repository, soundarchive.UserStore and
// soundarchive.RoleChecker using PostgreSQL
type Repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return soundarchive.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "path") {
				return soundarchive.NewValidationError("media key", "already referenced by another record")
			}
			return soundarchive.NewValidationError("record", "duplicate entry")
		case "23514": // check_violation
			return soundarchive.NewValidationError(pgErr.ColumnName, "check constraint "+pgErr.ConstraintName+" failed")
		case "23502": // not_null_violation
			return soundarchive.NewValidationError(pgErr.ColumnName, "required field is missing")
		case "42P01": // undefined_table
			return fmt.Errorf("%w: table does not exist - database migration required", soundarchive.ErrUpstreamUnavailable)
		default:
			return fmt.Errorf("%w: database error in %s: %s (code: %s)", soundarchive.ErrUpstreamUnavailable, operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("%w: database error in %s: %v", soundarchive.ErrUpstreamUnavailable, operation, err)
}

const contentColumns = `id, title, description, region, status, visible_to_user, publicly_visible,
	audio_path, image_path, video_path, audio_public_url, image_public_url, video_public_url,
	created_by, updated_by, created_at, updated_at`

func scanContent(row pgx.Row) (*soundarchive.ContentRecord, error) {
	var c soundarchive.ContentRecord
	var status string
	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Region, &status, &c.VisibleToUser, &c.PubliclyVisible,
		&c.AudioKey, &c.ImageKey, &c.VideoKey, &c.AudioPublicURL, &c.ImagePublicURL, &c.VideoPublicURL,
		&c.CreatedBy, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = soundarchive.Status(status)
	return &c, nil
}

// Content operations

func (r *Repository) CreateContent(ctx context.Context, c *soundarchive.ContentRecord) error {
	query := `
		INSERT INTO contenidos (
			id, title, description, region, status, visible_to_user, publicly_visible,
			audio_path, image_path, video_path, audio_public_url, image_public_url, video_public_url,
			created_by, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.Exec(ctx, query,
		c.ID, c.Title, c.Description, c.Region, string(c.Status), c.VisibleToUser, c.PubliclyVisible,
		c.AudioKey, c.ImageKey, c.VideoKey, c.AudioPublicURL, c.ImagePublicURL, c.VideoPublicURL,
		c.CreatedBy, c.UpdatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create content", err)
	}
	return nil
}

func (r *Repository) GetContent(ctx context.Context, id uuid.UUID) (*soundarchive.ContentRecord, error) {
	query := `SELECT ` + contentColumns + ` FROM contenidos WHERE id = $1`

	c, err := scanContent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get content", err)
	}
	return c, nil
}

func (r *Repository) UpdateContent(ctx context.Context, c *soundarchive.ContentRecord) error {
	query := `
		UPDATE contenidos SET
			title = $2, description = $3, region = $4, status = $5,
			visible_to_user = $6, publicly_visible = $7,
			audio_path = $8, image_path = $9, video_path = $10,
			audio_public_url = $11, image_public_url = $12, video_public_url = $13,
			updated_by = $14, updated_at = $15
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		c.ID, c.Title, c.Description, c.Region, string(c.Status),
		c.VisibleToUser, c.PubliclyVisible,
		c.AudioKey, c.ImageKey, c.VideoKey,
		c.AudioPublicURL, c.ImagePublicURL, c.VideoPublicURL,
		c.UpdatedBy, c.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update content", err)
	}
	if tag.RowsAffected() == 0 {
		return soundarchive.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteContent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contenidos WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete content", err)
	}
	if tag.RowsAffected() == 0 {
		return soundarchive.ErrNotFound
	}
	return nil
}

// buildListQuery renders the WHERE clause and arguments for a content query.
func buildListQuery(q soundarchive.ContentQuery) (string, []interface{}) {
	var conds []string
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+next(statuses)+")")
	}
	if q.VisibleToUser != nil {
		conds = append(conds, "visible_to_user = "+next(*q.VisibleToUser))
	}
	if q.PubliclyVisible != nil {
		conds = append(conds, "publicly_visible = "+next(*q.PubliclyVisible))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		p := next("%" + escapeLike(s) + "%")
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}

	query := `SELECT ` + contentColumns + ` FROM contenidos`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT " + next(q.Limit)
	}
	if q.Offset > 0 {
		query += " OFFSET " + next(q.Offset)
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repository) ListContent(ctx context.Context, q soundarchive.ContentQuery) ([]*soundarchive.ContentRecord, error) {
	query, args := buildListQuery(q)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	defer rows.Close()

	records := []*soundarchive.ContentRecord{}
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan content", err)
		}
		records = append(records, c)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list content", err)
	}
	return records, nil
}

func (r *Repository) FindByMediaKey(ctx context.Context, key string) (*soundarchive.ContentRecord, error) {
	query := `SELECT ` + contentColumns + ` FROM contenidos
		WHERE audio_path = $1 OR image_path = $1 OR video_path = $1
		LIMIT 1`

	c, err := scanContent(r.db.QueryRow(ctx, query, key))
	if err != nil {
		return nil, r.handlePostgresError("find by media key", err)
	}
	return c, nil
}

func (r *Repository) ListMediaKeys(ctx context.Context) ([]string, error) {
	query := `
		SELECT k FROM (
			SELECT audio_path AS k FROM contenidos
			UNION ALL SELECT image_path FROM contenidos
			UNION ALL SELECT video_path FROM contenidos
		) keys WHERE k IS NOT NULL ORDER BY k`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, r.handlePostgresError("list media keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, r.handlePostgresError("scan media key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT 1 FROM contenidos LIMIT 1`).Scan(&n); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return r.handlePostgresError("ping", err)
	}
	return nil
}

// Close releases the pool when the repository owns one.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}
