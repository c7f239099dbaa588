package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roledash.org/internal/auth"
	"roledash.org/internal/ids"
)

// Message is a note sent by an authenticated user to the administrators.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Email      string    `json:"email"`
	Body       string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists messages. List returns newest first.
type Store interface {
	CreateMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context) ([]*Message, error)
}

// SendInput is the body of POST /api/messages.
type SendInput struct {
	Message string `json:"message" validate:"notblank,max=2000"`
}

type Service struct {
	store    Store
	validate auth.Validator
	now      func() time.Time
}

// NewService requires a validator; messages are checked for blank and oversized bodies.
func NewService(store Store, validate auth.Validator) (*Service, error) {
	if store == nil {
		return nil, errors.New("messages: store is required")
	}
	if validate == nil {
		return nil, errors.New("messages: validator is required")
	}
	return &Service{store: store, validate: validate, now: time.Now}, nil
}

// Send stores a message on behalf of sender.
func (s *Service) Send(ctx context.Context, sender auth.Identity, body string) (*Message, error) {
	body = strings.TrimSpace(body)
	if err := s.validate.Validate(SendInput{Message: body}); err != nil {
		return nil, err
	}
	m := &Message{
		ID:         ids.New(),
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Email:      sender.Email,
		Body:       body,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("messages: create: %w", err)
	}
	return m, nil
}

// List returns every message, newest first.
func (s *Service) List(ctx context.Context) ([]*Message, error) {
	list, err := s.store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("messages: list: %w", err)
	}
	return list, nil
}
