// Package memory keeps users and messages in process memory. It backs tests
// and single-instance deployments without DATABASE_URL.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"roledash.org/internal/auth"
	"roledash.org/internal/messages"
)

type Store struct {
	mu       sync.RWMutex
	users    map[string]*auth.User
	emails   map[string]string
	messages []*messages.Message
	now      func() time.Time
}

func New() *Store {
	return &Store{
		users:  make(map[string]*auth.User),
		emails: make(map[string]string),
		now:    time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) Create(ctx context.Context, u *auth.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return auth.ErrAlreadyExists
	}
	if _, ok := s.users[u.ID]; ok {
		return auth.ErrAlreadyExists
	}
	cp := *u
	s.users[u.ID] = &cp
	s.emails[u.Email] = u.ID
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) List(ctx context.Context) ([]*auth.User, error) {
	return s.filter(ctx, func(*auth.User) bool { return true })
}

func (s *Store) ListByRole(ctx context.Context, role auth.Role) ([]*auth.User, error) {
	return s.filter(ctx, func(u *auth.User) bool { return u.Role == role })
}

func (s *Store) UpdatePassword(ctx context.Context, id, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.Password = password
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, role auth.Role) (*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now().UTC()
	cp := *u
	return &cp, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.emails, u.Email)
	delete(s.users, id)
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.users))
	clear(s.users)
	clear(s.emails)
	return n, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *messages.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages = append(s.messages, &cp)
	return nil
}

// ListMessages returns newest first; ties are broken by id.
func (s *Store) ListMessages(ctx context.Context) ([]*messages.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*messages.Message, 0, len(s.messages))
	for _, m := range s.messages {
		cp := *m
		out = append(out, &cp)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *messages.Message) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

// filter returns copies ordered by creation time.
func (s *Store) filter(ctx context.Context, keep func(*auth.User) bool) ([]*auth.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*auth.User, 0, len(s.users))
	for _, u := range s.users {
		if keep(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *auth.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}
