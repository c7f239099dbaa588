package auth

import "context"

// UserStore persists user accounts. Implementations return ErrNotFound for
// missing records and ErrAlreadyExists for duplicate emails. Emails are
// passed already normalized.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	ListByRole(ctx context.Context, role Role) ([]*User, error)
	UpdatePassword(ctx context.Context, id, password string) error
	UpdateRole(ctx context.Context, id string, role Role) (*User, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}
