package users

import (
	"context"
	"errors"
	"fmt"

	"roledash.org/internal/audit"
	"roledash.org/internal/auth"
	"roledash.org/internal/ids"
)

var (
	// ErrInvalidRole is returned by UpdateRole for anything outside the role set.
	ErrInvalidRole = fmt.Errorf("%w: invalid role", auth.ErrValidation)
	// ErrNotOwner is returned when a non-admin deletes someone else's account.
	ErrNotOwner = fmt.Errorf("%w: can only delete own account", auth.ErrInsufficientRole)
)

// Service implements the user directory operations behind /api/users.
type Service struct {
	store auth.UserStore
	sink  audit.Sink
}

func NewService(store auth.UserStore, sink audit.Sink) *Service {
	if sink == nil {
		sink = audit.Discard
	}
	return &Service{store: store, sink: sink}
}

// List returns every account.
func (s *Service) List(ctx context.Context) ([]auth.PublicUser, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return public(list), nil
}

// Reset deletes every account. Calling it on an empty directory succeeds.
func (s *Service) Reset(ctx context.Context, actor auth.Identity) (int64, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("users: reset: %w", err)
	}
	s.sink.Record(ctx, audit.Event{
		Name:     "users.reset",
		Level:    audit.LevelWarn,
		Message:  "all users deleted",
		UserID:   actor.ID,
		UserRole: string(actor.Role),
		Fields:   map[string]any{"deleted": n},
	})
	return n, nil
}

// Profile returns the caller's own record.
func (s *Service) Profile(ctx context.Context, actor auth.Identity) (auth.PublicUser, error) {
	u, err := s.find(ctx, actor.ID)
	if err != nil {
		return auth.PublicUser{}, err
	}
	return u.Public(), nil
}

// UpdateRole changes the role of the account id.
func (s *Service) UpdateRole(ctx context.Context, actor auth.Identity, id, role string) (auth.PublicUser, error) {
	r, err := auth.ParseRole(role)
	if err != nil {
		return auth.PublicUser{}, ErrInvalidRole
	}
	if !ids.Valid(id) {
		return auth.PublicUser{}, auth.ErrNotFound
	}
	u, err := s.store.UpdateRole(ctx, id, r)
	if err != nil {
		return auth.PublicUser{}, wrap("update role", err)
	}
	s.sink.Record(ctx, audit.Event{
		Name:     "users.role.updated",
		Level:    audit.LevelInfo,
		Message:  "user role updated",
		UserID:   actor.ID,
		UserRole: string(actor.Role),
		Fields:   map[string]any{"target_id": id, "new_role": string(r)},
	})
	return u.Public(), nil
}

// Content returns the editors visible to the caller: all of them for an
// admin, only the caller for an editor.
func (s *Service) Content(ctx context.Context, actor auth.Identity) ([]auth.PublicUser, error) {
	switch actor.Role {
	case auth.RoleAdmin:
		list, err := s.store.ListByRole(ctx, auth.RoleEditor)
		if err != nil {
			return nil, fmt.Errorf("users: content: %w", err)
		}
		return public(list), nil
	case auth.RoleEditor:
		u, err := s.store.FindByID(ctx, actor.ID)
		if errors.Is(err, auth.ErrNotFound) {
			return []auth.PublicUser{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("users: content: %w", err)
		}
		return []auth.PublicUser{u.Public()}, nil
	default:
		return nil, auth.ErrInsufficientRole
	}
}

// Delete removes the account id. Admins may delete anyone; everyone else
// only themselves. byAdmin reports which rule applied.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) (byAdmin bool, err error) {
	byAdmin = actor.Role == auth.RoleAdmin
	if !byAdmin && actor.ID != id {
		return false, ErrNotOwner
	}
	if !ids.Valid(id) {
		return byAdmin, auth.ErrNotFound
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return byAdmin, wrap("delete", err)
	}
	s.sink.Record(ctx, audit.Event{
		Name:     "users.deleted",
		Level:    audit.LevelInfo,
		Message:  "user deleted",
		UserID:   actor.ID,
		UserRole: string(actor.Role),
		Fields:   map[string]any{"target_id": id, "by_admin": byAdmin},
	})
	return byAdmin, nil
}

func (s *Service) find(ctx context.Context, id string) (*auth.User, error) {
	if !ids.Valid(id) {
		return nil, auth.ErrNotFound
	}
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrap("find", err)
	}
	return u, nil
}

func wrap(op string, err error) error {
	if errors.Is(err, auth.ErrNotFound) {
		return err
	}
	return fmt.Errorf("users: %s: %w", op, err)
}

func public(list []*auth.User) []auth.PublicUser {
	out := make([]auth.PublicUser, 0, len(list))
	for _, u := range list {
		out = append(out, u.Public())
	}
	return out
}
