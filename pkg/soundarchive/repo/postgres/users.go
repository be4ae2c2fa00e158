package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

const userColumns = `user_id, correo_electronico, nombre_completo, role, is_active, fecha_registro, updated_at`

func scanUser(row pgx.Row) (*soundarchive.UserRecord, error) {
	var u soundarchive.UserRecord
	var role string
	if err := row.Scan(&u.UserID, &u.Email, &u.FullName, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = soundarchive.Role(role)
	return &u, nil
}

func (r *Repository) UpsertUser(ctx context.Context, u *soundarchive.UserRecord) error {
	query := `
		INSERT INTO usuarios (user_id, correo_electronico, nombre_completo, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			correo_electronico = EXCLUDED.correo_electronico,
			nombre_completo = EXCLUDED.nombre_completo,
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()`

	if _, err := r.db.Exec(ctx, query, u.UserID, u.Email, u.FullName, string(u.Role), u.IsActive); err != nil {
		return r.handlePostgresError("upsert user", err)
	}
	return nil
}

func (r *Repository) GetUser(ctx context.Context, userID string) (*soundarchive.UserRecord, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE user_id = $1`, userID))
	if err != nil {
		return nil, r.handlePostgresError("get user", err)
	}
	return u, nil
}

func (r *Repository) DeleteUser(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM usuarios WHERE user_id = $1`, userID)
	if err != nil {
		return r.handlePostgresError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return soundarchive.ErrNotFound
	}
	return nil
}

func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]*soundarchive.UserRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM usuarios ORDER BY fecha_registro DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, r.handlePostgresError("list users", err)
	}
	defer rows.Close()

	users := []*soundarchive.UserRecord{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan user", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *Repository) AppendStatusLog(ctx context.Context, e *soundarchive.UserStatusLog) error {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	query := `
		INSERT INTO user_status_logs (id, admin_id, target_user_id, prev_role, new_role, prev_active, new_active, reason)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)`

	_, err := r.db.Exec(ctx, query, id, e.AdminID, e.TargetUserID,
		string(e.PrevRole), string(e.NewRole), e.PrevActive, e.NewActive, e.Reason)
	if err != nil {
		return r.handlePostgresError("append status log", err)
	}
	return nil
}

// RoleOf implements soundarchive.RoleChecker from the usuarios table.
func (r *Repository) RoleOf(ctx context.Context, principalID string) (soundarchive.Role, error) {
	var role string
	err := r.db.QueryRow(ctx,
		`SELECT role FROM usuarios WHERE user_id = $1 AND is_active`, principalID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", soundarchive.ErrNotFound
		}
		return "", r.handlePostgresError("role lookup", err)
	}
	return soundarchive.Role(role), nil
}
