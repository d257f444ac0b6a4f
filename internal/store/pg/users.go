package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/stagegate/internal/domain/repository"
)

// UserRepo implementa repository.UserRepository sobre la tabla app_user.
type UserRepo struct{ pool *pgxpool.Pool }

var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id, email, first_name, last_name, gender, password_hash, signed, active, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Gender,
		&u.PasswordHash, &u.Signed, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	email := repository.NormalizeEmail(in.Email)
	if email == "" || in.PasswordHash == "" {
		return nil, repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO app_user (id, email, first_name, last_name, gender, password_hash, signed, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q,
		uuid.NewString(), email, in.FirstName, in.LastName, in.Gender, in.PasswordHash, in.Signed, in.Active))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE LOWER(email) = $1 LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, q, repository.NormalizeEmail(email)))
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		// un id no-uuid nunca existe; evita el error de cast de postgres
		return nil, repository.ErrNotFound
	}
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if hash == "" {
		return repository.ErrInvalidInput
	}
	const q = `UPDATE app_user SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, q, id, hash)
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	const q = `UPDATE app_user SET active = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, q, id, active)
}

func (r *UserRepo) execOne(ctx context.Context, q, id string, arg any) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, q, id, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
