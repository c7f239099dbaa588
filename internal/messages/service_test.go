package messages_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"roledash.org/internal/auth"
	"roledash.org/internal/messages"
	"roledash.org/internal/store/memory"
	"roledash.org/internal/validation"
)

func newService(t *testing.T) *messages.Service {
	t.Helper()
	svc, err := messages.NewService(memory.New(), validation.New())
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestSendAndList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	sender := auth.Identity{ID: "u1", Name: "Una", Email: "una@gmail.com", Role: auth.RoleUser}

	first, err := svc.Send(ctx, sender, "  hello  ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if first.Body != "hello" || first.SenderName != "Una" || first.Email != "una@gmail.com" {
		t.Fatalf("unexpected message: %+v", first)
	}
	if _, err := svc.Send(ctx, sender, "again"); err != nil {
		t.Fatal(err)
	}

	list, err := svc.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("List: %d %v", len(list), err)
	}
	if list[0].Body != "again" {
		t.Fatalf("expected newest first, got %q", list[0].Body)
	}
}

func TestSendRejectsBlankAndOversized(t *testing.T) {
	svc := newService(t)
	sender := auth.Identity{ID: "u1", Role: auth.RoleUser}
	for _, body := range []string{"", "   ", strings.Repeat("x", validation.MaxMessageLen+1)} {
		if _, err := svc.Send(context.Background(), sender, body); !errors.Is(err, auth.ErrValidation) {
			t.Fatalf("len %d: expected ErrValidation, got %v", len(body), err)
		}
	}
	if _, err := svc.Send(context.Background(), sender, strings.Repeat("x", validation.MaxMessageLen)); err != nil {
		t.Fatalf("max length rejected: %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := messages.NewService(nil, validation.New()); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := messages.NewService(memory.New(), nil); err == nil {
		t.Fatal("expected error for nil validator")
	}
}
