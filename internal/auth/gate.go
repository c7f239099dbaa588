package auth

import (
	"context"
	"errors"
	"slices"
	"strings"

	"roledash.org/internal/audit"
	"roledash.org/internal/obs"
)

// Request is the part of an inbound request the gates look at.
type Request struct {
	Method        string
	Path          string
	ClientIP      string
	Authorization string
}

// Check is a per-route authorization decision. It runs after Authenticate.
type Check func(ctx context.Context, req Request) error

const (
	gateAuthenticate = "authenticate"
	gateAuthorize    = "authorize"

	kindNoToken          = "no_token"
	kindExpired          = "expired"
	kindMalformed        = "malformed"
	kindUnauthenticated  = "unauthenticated"
	kindInsufficientRole = "insufficient_role"
)

// Gate authenticates bearer tokens and builds role checks. Rejections are
// reported to the audit sink; acceptances only to metrics.
type Gate struct {
	codec *TokenCodec
	sink  audit.Sink
}

// NewGate wires the codec and audit sink. A nil sink discards events.
func NewGate(codec *TokenCodec, sink audit.Sink) (*Gate, error) {
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	if sink == nil {
		sink = audit.Discard
	}
	return &Gate{codec: codec, sink: sink}, nil
}

// Authenticate verifies the bearer credential and returns a context carrying
// the identity. A missing credential yields ErrNoToken; a presented but bad
// one yields an error wrapping ErrInvalidToken.
func (g *Gate) Authenticate(ctx context.Context, req Request) (context.Context, Identity, error) {
	token, err := bearerToken(req.Authorization)
	if err == nil {
		var id Identity
		id, err = g.codec.Verify(token)
		if err == nil {
			obs.RecordAuthDecision(gateAuthenticate, "accepted", "")
			return ContextWithIdentity(ctx, id), id, nil
		}
	}

	kind := authenticateKind(err)
	obs.RecordAuthDecision(gateAuthenticate, "rejected", kind)
	g.sink.Record(ctx, audit.Event{
		Name:     "auth.authenticate.rejected",
		Level:    audit.LevelWarn,
		Message:  "authentication rejected",
		Method:   req.Method,
		Path:     req.Path,
		ClientIP: req.ClientIP,
		Kind:     kind,
		Reason:   err.Error(),
	})
	return ctx, Identity{}, err
}

// Authorize returns a check admitting identities whose role is in allowed.
// An empty allow-list admits nobody.
func (g *Gate) Authorize(allowed ...Role) Check {
	allowed = slices.Clone(allowed)
	required := RoleStrings(allowed)
	return func(ctx context.Context, req Request) error {
		id, ok := IdentityFromContext(ctx)
		if !ok {
			g.reject(ctx, req, kindUnauthenticated, Identity{}, required)
			return ErrUnauthenticated
		}
		if !slices.Contains(allowed, id.Role) {
			g.reject(ctx, req, kindInsufficientRole, id, required)
			return ErrInsufficientRole
		}
		obs.RecordAuthDecision(gateAuthorize, "accepted", "")
		return nil
	}
}

// AnyAuthenticated only requires that Authenticate ran successfully.
func (g *Gate) AnyAuthenticated() Check {
	return func(ctx context.Context, req Request) error {
		if _, ok := IdentityFromContext(ctx); !ok {
			g.reject(ctx, req, kindUnauthenticated, Identity{}, nil)
			return ErrUnauthenticated
		}
		obs.RecordAuthDecision(gateAuthorize, "accepted", "")
		return nil
	}
}

func (g *Gate) reject(ctx context.Context, req Request, kind string, id Identity, required []string) {
	obs.RecordAuthDecision(gateAuthorize, "rejected", kind)
	msg := "authorization rejected"
	if kind == kindUnauthenticated {
		msg = "authorization without identity"
	}
	g.sink.Record(ctx, audit.Event{
		Name:          "auth.authorize.rejected",
		Level:         audit.LevelWarn,
		Message:       msg,
		Method:        req.Method,
		Path:          req.Path,
		ClientIP:      req.ClientIP,
		Kind:          kind,
		UserID:        id.ID,
		UserRole:      string(id.Role),
		RequiredRoles: required,
	})
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoToken
	}
	fields := strings.Fields(header)
	if !strings.EqualFold(fields[0], "Bearer") {
		return "", ErrTokenMalformed
	}
	switch len(fields) {
	case 1:
		return "", ErrNoToken
	case 2:
		return fields[1], nil
	default:
		return "", ErrTokenMalformed
	}
}

func authenticateKind(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return kindNoToken
	case errors.Is(err, ErrTokenExpired):
		return kindExpired
	default:
		return kindMalformed
	}
}
