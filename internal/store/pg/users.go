package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"roledash.org/internal/auth"
)

const userColumns = `id, name, email, password, role, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (s *Store) Create(ctx context.Context, u *auth.User) error {
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, name, email, password, role, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, updated_at
	`, u.ID, u.Name, u.Email, u.Password, string(u.Role), u.CreatedAt, u.UpdatedAt)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s", auth.ErrAlreadyExists, u.Email)
		}
		return err
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return s.findOne(ctx, `select `+userColumns+` from users where id = $1`, id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findOne(ctx, `select `+userColumns+` from users where email = $1`, email)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) List(ctx context.Context) ([]*auth.User, error) {
	return s.list(ctx, `select `+userColumns+` from users order by created_at, id`)
}

func (s *Store) ListByRole(ctx context.Context, role auth.Role) ([]*auth.User, error) {
	return s.list(ctx, `select `+userColumns+` from users where role = $1 order by created_at, id`, string(role))
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdatePassword(ctx context.Context, id, password string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set password = $2, updated_at = now()
		where id = $1
	`, id, password)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) UpdateRole(ctx context.Context, id string, role auth.Role) (*auth.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		update users set role = $2, updated_at = now()
		where id = $1
		returning `+userColumns, id, string(role)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from users`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
