package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roledash.org/internal/audit"
	"roledash.org/internal/ids"
	"roledash.org/internal/obs"
)

// LoginInput is the credential pair submitted to Login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput is the account submitted to Register.
type RegisterInput struct {
	Name     string `json:"name" validate:"notblank"`
	Email    string `json:"email" validate:"gmail"`
	Password string `json:"password" validate:"password"`
	Role     string `json:"role" validate:"role"`
}

// Validator checks decoded input. Failures must wrap ErrValidation.
type Validator interface {
	Validate(v any) error
}

// Service issues sessions for existing and new accounts.
type Service struct {
	users    UserStore
	codec    *TokenCodec
	verifier *Verifier
	validate Validator
	sink     audit.Sink
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

func WithVerifier(v *Verifier) ServiceOption {
	return func(s *Service) {
		if v != nil {
			s.verifier = v
		}
	}
}

func WithValidator(v Validator) ServiceOption {
	return func(s *Service) {
		if v != nil {
			s.validate = v
		}
	}
}

func WithAudit(sink audit.Sink) ServiceOption {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithServiceClock sets the clock used for record timestamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a Service. Without WithValidator only the minimal shape
// checks in basicValidator apply.
func NewService(users UserStore, codec *TokenCodec, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	s := &Service{
		users:    users,
		codec:    codec,
		verifier: NewVerifier(DefaultBcryptCost),
		validate: basicValidator{},
		sink:     audit.Discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login checks the credential and issues a token. Unknown emails and wrong
// passwords both return ErrInvalidCredentials. A matching legacy plaintext
// credential is replaced by its hash before the token is issued.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if err := s.validate.Validate(LoginInput{Email: email, Password: password}); err != nil {
		return Session{}, err
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.loginFailed(ctx, email, "unknown_email")
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("auth: find user: %w", err)
	}

	ok, upgraded := s.verifier.Verify(password, u.Password)
	if !ok {
		s.loginFailed(ctx, email, "bad_password")
		return Session{}, ErrInvalidCredentials
	}
	if upgraded != "" {
		if err := ctx.Err(); err != nil {
			return Session{}, err
		}
		if err := s.users.UpdatePassword(ctx, u.ID, upgraded); err != nil {
			return Session{}, fmt.Errorf("auth: upgrade legacy password: %w", err)
		}
		u.Password = upgraded
		obs.RecordPasswordUpgrade()
		s.sink.Record(ctx, audit.Event{
			Name:    "auth.password.upgraded",
			Level:   audit.LevelInfo,
			Message: "legacy password hashed on login",
			UserID:  u.ID,
			Fields:  map[string]any{"email": email},
		})
	}

	sess, err := s.session(u)
	if err != nil {
		return Session{}, err
	}
	s.succeeded(ctx, "auth.login.succeeded", "user logged in", u)
	return sess, nil
}

// Register creates an account with a hashed password and issues a token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = NormalizeEmail(in.Email)
	if err := s.validate.Validate(in); err != nil {
		return Session{}, err
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return Session{}, err
	}

	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		s.sink.Record(ctx, audit.Event{
			Name:    "auth.register.rejected",
			Level:   audit.LevelWarn,
			Message: "registration with existing email",
			Kind:    "duplicate_email",
			Fields:  map[string]any{"email": in.Email},
		})
		return Session{}, fmt.Errorf("%w: email %s", ErrAlreadyExists, in.Email)
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, fmt.Errorf("auth: find user: %w", err)
	}

	hash, err := s.verifier.Hash(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("auth: hash password: %w", err)
	}
	now := s.now().UTC()
	u := &User{
		ID:        ids.New(),
		Name:      in.Name,
		Email:     in.Email,
		Password:  hash,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return Session{}, fmt.Errorf("auth: create user: %w", err)
	}

	sess, err := s.session(u)
	if err != nil {
		return Session{}, err
	}
	s.succeeded(ctx, "auth.register.succeeded", "user registered", u)
	return sess, nil
}

func (s *Service) session(u *User) (Session, error) {
	token, expiresAt, err := s.codec.Issue(u.Identity())
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: u.Public()}, nil
}

func (s *Service) loginFailed(ctx context.Context, email, reason string) {
	s.sink.Record(ctx, audit.Event{
		Name:    "auth.login.failed",
		Level:   audit.LevelWarn,
		Message: "login failed",
		Kind:    "invalid_credentials",
		Reason:  reason,
		Fields:  map[string]any{"email": email},
	})
}

func (s *Service) succeeded(ctx context.Context, name, msg string, u *User) {
	s.sink.Record(ctx, audit.Event{
		Name:     name,
		Level:    audit.LevelInfo,
		Message:  msg,
		UserID:   u.ID,
		UserRole: string(u.Role),
		Fields:   map[string]any{"email": u.Email},
	})
}

type basicValidator struct{}

func (basicValidator) Validate(v any) error {
	switch in := v.(type) {
	case LoginInput:
		if in.Email == "" || in.Password == "" {
			return fmt.Errorf("%w: email and password are required", ErrValidation)
		}
	case RegisterInput:
		if in.Name == "" || in.Email == "" || in.Password == "" {
			return fmt.Errorf("%w: name, email and password are required", ErrValidation)
		}
		if !Role(in.Role).Valid() {
			return fmt.Errorf("%w: invalid role %q", ErrValidation, in.Role)
		}
	}
	return nil
}
