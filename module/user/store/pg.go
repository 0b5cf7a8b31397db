package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"PChat/module/user/model"
	"PChat/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, full_name, email, password, profile_pic, created_at, updated_at`

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Store backed by the users table.
func NewPostgres(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.UserID, &u.FullName, &u.Email, &u.Password, &u.ProfilePic, &u.CreateTime, &u.UpdateTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound.Wrap()
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "scan user")
	}
	return &u, nil
}

func (s *pgStore) Create(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.UserID, u.FullName, strings.ToLower(u.Email), u.Password, u.ProfilePic, u.CreateTime, u.UpdateTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken.Wrap()
		}
		return errs.WrapMsg(err, "insert user")
	}
	return nil
}

func (s *pgStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *pgStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
}

func (s *pgStore) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY full_name`, ids)
}

func (s *pgStore) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, errs.WrapMsg(err, "user exists")
	}
	return ok, nil
}

func (s *pgStore) ListExcept(ctx context.Context, id string) ([]*model.User, error) {
	return s.query(ctx, `SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY full_name`, id)
}

func (s *pgStore) query(ctx context.Context, sql string, args ...any) ([]*model.User, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.WrapMsg(err, "query users")
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, errs.Wrap(rows.Err())
}

func (s *pgStore) UpdateProfilePic(ctx context.Context, id, pic string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET profile_pic = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		id, pic, time.Now()))
}
