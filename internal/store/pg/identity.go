package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"condominio.app/internal/auth"
)

var _ auth.IdentityStore = (*Store)(nil)

const identityColumns = `id, email, password_hash, nombre_completo, rol, is_active,
	notificaciones_email, notificaciones_push, last_login, created_at, updated_at`

func scanIdentity(row rowScanner) (auth.Identity, error) {
	var (
		ident     auth.Identity
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &ident.FullName, &role, &ident.Active,
		&ident.NotifyEmail, &ident.NotifyPush, &lastLogin, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Identity{}, auth.ErrNotFound
		}
		return auth.Identity{}, err
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return auth.Identity{}, err
	}
	ident.Role = r
	ident.LastLogin = timePtr(lastLogin)
	return ident, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (auth.Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx, `select `+identityColumns+` from usuarios where id = $1`, id))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (auth.Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx, `select `+identityColumns+` from usuarios where email = $1`, email))
}

func (s *Store) Create(ctx context.Context, ident *auth.Identity) error {
	role, err := ident.Role.DBName()
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx, `
		insert into usuarios (email, password_hash, nombre_completo, rol, is_active,
			notificaciones_email, notificaciones_push, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning id
	`, ident.Email, ident.PasswordHash, ident.FullName, role, ident.Active,
		ident.NotifyEmail, ident.NotifyPush, ident.CreatedAt, ident.UpdatedAt).Scan(&ident.ID)
	if err != nil {
		if isPgCode(err, pgErrUniqueViolation) {
			return auth.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return s.execOne(ctx, auth.ErrNotFound, `update usuarios set password_hash = $2, updated_at = now() where id = $1`, id, hash)
}

func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	return s.execOne(ctx, auth.ErrNotFound, `update usuarios set is_active = $2, updated_at = now() where id = $1`, id, active)
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return s.execOne(ctx, auth.ErrNotFound, `update usuarios set last_login = $2 where id = $1`, id, at)
}

func (s *Store) UpdateProfile(ctx context.Context, id int64, upd auth.ProfileUpdate) (auth.Identity, error) {
	ident, err := scanIdentity(s.db.QueryRowContext(ctx, `
		update usuarios set
			nombre_completo = coalesce($2, nombre_completo),
			email = coalesce($3, email),
			notificaciones_email = coalesce($4, notificaciones_email),
			notificaciones_push = coalesce($5, notificaciones_push),
			updated_at = now()
		where id = $1
		returning `+identityColumns,
		id, nullable(upd.FullName), nullable(upd.Email), nullable(upd.NotifyEmail), nullable(upd.NotifyPush)))
	if err != nil && isPgCode(err, pgErrUniqueViolation) {
		return auth.Identity{}, auth.ErrAlreadyExists
	}
	return ident, err
}

// execOne runs a single-row update and reports notFound when no row matched.
func (s *Store) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
