package session

import (
	"context"
	"testing"
	"time"

	cachemem "github.com/dropDatabas3/fedbroker/internal/cache/memory"
)

func newTestStore() *Store {
	return NewStore(cachemem.New(time.Hour, ""), time.Hour)
}

func TestNotesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	if got := s.Get(ctx, "sess-1", NoteFederatedAccessToken); got != "" {
		t.Fatalf("nota inexistente: got %q, want \"\"", got)
	}
	if err := s.Set(ctx, "sess-1", NoteFederatedAccessToken, "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.Get(ctx, "sess-1", NoteFederatedAccessToken); got != "tok-1" {
		t.Fatalf("got %q, want tok-1", got)
	}
}

func TestNotesScopedBySession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	if err := s.Set(ctx, "sess-1", NoteIdentityProvider, "gov-id"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.Get(ctx, "sess-2", NoteIdentityProvider); got != "" {
		t.Fatalf("nota filtrada entre sesiones: %q", got)
	}
}

func TestSetEmptyDeletesNote(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	if err := s.Set(ctx, "sess-1", NoteExchangeProvider, "gov-id"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "sess-1", NoteExchangeProvider, ""); err != nil {
		t.Fatalf("Set vacío: %v", err)
	}
	if got := s.Get(ctx, "sess-1", NoteExchangeProvider); got != "" {
		t.Fatalf("la nota debería haberse borrado, got %q", got)
	}
}

func TestNotesExpire(t *testing.T) {
	ctx := context.Background()
	s := NewStore(cachemem.New(time.Hour, ""), 10*time.Millisecond)

	if err := s.Set(ctx, "sess-1", NotePrompt, "login"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := s.Get(ctx, "sess-1", NotePrompt); got != "" {
		t.Fatalf("la nota debería haber expirado, got %q", got)
	}
}
