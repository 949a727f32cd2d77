package session

import (
	"context"
	"testing"

	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

type fakeSession struct {
	id         string
	userID     int
	gameID     int
	receivable bool
	got        []*vcwire.Envelope
}

func (f *fakeSession) ID() string       { return f.id }
func (f *fakeSession) UserID() int      { return f.userID }
func (f *fakeSession) GameID() int      { return f.gameID }
func (f *fakeSession) Receivable() bool { return f.receivable }

func (f *fakeSession) Send(ctx context.Context, env *vcwire.Envelope) error {
	f.got = append(f.got, env)
	return nil
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	a := &fakeSession{id: "s1", userID: 1, receivable: true}
	if _, err := r.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// same handle again is a no-op
	if _, err := r.Register(a); err != nil {
		t.Fatalf("re-Register same handle: %v", err)
	}
	// different handle under same id must fail
	b := &fakeSession{id: "s1", userID: 2, receivable: true}
	if _, err := r.Register(b); err != ErrDuplicateSession {
		t.Fatalf("expected ErrDuplicateSession, got %v", err)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	a := &fakeSession{id: "s1", userID: 1, receivable: true}
	if _, err := r.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Unregister("s1")
	r.Unregister("s1") // second time is a no-op
	r.Unregister("never-registered")

	got := r.Resolve(vcwire.TargetSelf, ResolveContext{SessionID: "s1"})
	if len(got) != 0 {
		t.Fatalf("resolve after unregister returned %d sessions", len(got))
	}
}

func TestResolveSelf(t *testing.T) {
	r := NewRegistry()
	a := &fakeSession{id: "s1", userID: 1, receivable: true}
	b := &fakeSession{id: "s2", userID: 2, receivable: true}
	for _, s := range []Session{a, b} {
		if _, err := r.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	got := r.Resolve(vcwire.TargetSelf, ResolveContext{SessionID: "s2"})
	if len(got) != 1 || got[0].ID() != "s2" {
		t.Fatalf("SELF by session id resolved %v", got)
	}
	got = r.Resolve(vcwire.TargetSelf, ResolveContext{UserID: 1})
	if len(got) != 1 || got[0].ID() != "s1" {
		t.Fatalf("SELF by user id resolved %v", got)
	}
	got = r.Resolve(vcwire.TargetSelf, ResolveContext{SessionID: "missing"})
	if len(got) != 0 {
		t.Fatalf("SELF for unknown session resolved %v", got)
	}
}

func TestResolveAllSkipsNonReceivable(t *testing.T) {
	r := NewRegistry()
	a := &fakeSession{id: "s1", userID: 1, receivable: true}
	b := &fakeSession{id: "s2", userID: 2, receivable: true}
	bot := &fakeSession{id: "bot", userID: 100, receivable: false}
	for _, s := range []Session{a, b, bot} {
		if _, err := r.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	got := r.Resolve(vcwire.TargetAll, ResolveContext{})
	if len(got) != 2 {
		t.Fatalf("ALL resolved %d sessions, want 2", len(got))
	}
	for _, s := range got {
		if s.ID() == "bot" {
			t.Fatalf("synthetic session resolved for ALL")
		}
	}
}

func TestResolveGameScoped(t *testing.T) {
	r := NewRegistry()
	a := &fakeSession{id: "s1", userID: 1, gameID: 7, receivable: true}
	b := &fakeSession{id: "s2", userID: 2, receivable: true}
	for _, s := range []Session{a, b} {
		if _, err := r.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	r.BindGame("s2", 7)

	got := r.Resolve(vcwire.TargetGame, ResolveContext{GameID: 7})
	if len(got) != 2 {
		t.Fatalf("GAME resolved %d sessions, want 2", len(got))
	}
	got = r.Resolve(vcwire.TargetGame, ResolveContext{GameID: 8})
	if len(got) != 0 {
		t.Fatalf("GAME 8 resolved %d sessions, want 0", len(got))
	}

	r.Unregister("s1")
	got = r.Resolve(vcwire.TargetGame, ResolveContext{GameID: 7})
	if len(got) != 1 || got[0].ID() != "s2" {
		t.Fatalf("GAME after unregister resolved %v", got)
	}
}

func TestUnbindGame(t *testing.T) {
	r := NewRegistry()
	a := &fakeSession{id: "s1", userID: 1, gameID: 7, receivable: true}
	if _, err := r.Register(a); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.UnbindGame("s1", 7)
	if got := r.Resolve(vcwire.TargetGame, ResolveContext{GameID: 7}); len(got) != 0 {
		t.Fatalf("GAME after unbind resolved %v", got)
	}
	// still registered: SELF and ALL keep working
	if got := r.Resolve(vcwire.TargetSelf, ResolveContext{SessionID: "s1"}); len(got) != 1 {
		t.Fatalf("SELF after unbind resolved %d sessions", len(got))
	}
	if got := r.Resolve(vcwire.TargetAll, ResolveContext{}); len(got) != 1 {
		t.Fatalf("ALL after unbind resolved %d sessions", len(got))
	}

	// unbinding again, or for an unknown game, is a no-op
	r.UnbindGame("s1", 7)
	r.UnbindGame("s1", 99)
}

func TestBridgeSessionEgress(t *testing.T) {
	r := NewRegistry()
	var relayed []*vcwire.Envelope
	bridge := NewVCBridgeSession(7, func(ctx context.Context, env *vcwire.Envelope) error {
		relayed = append(relayed, env)
		return nil
	})
	if _, err := r.Register(bridge); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got := r.Resolve(vcwire.TargetGame, ResolveContext{GameID: 7})
	if len(got) != 1 || got[0].ID() != bridge.ID() {
		t.Fatalf("GAME resolved %v, want the bridge", got)
	}
	env := &vcwire.Envelope{Command: vcwire.CmdEvent, Target: vcwire.TargetGame}
	if err := got[0].Send(context.Background(), env); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(relayed) != 1 || relayed[0] != env {
		t.Fatalf("egress relayed %v", relayed)
	}
	if bridge.UserID() != -1 {
		t.Fatalf("bridge user id = %d, want -1", bridge.UserID())
	}
}

func TestBridgeSessionNilEgress(t *testing.T) {
	bridge := NewVCBridgeSession(7, nil)
	if bridge.Receivable() {
		t.Fatalf("bridge without egress must not be receivable")
	}
	if err := bridge.Send(context.Background(), &vcwire.Envelope{}); err != ErrNotReceivable {
		t.Fatalf("expected ErrNotReceivable, got %v", err)
	}
}

func TestSyntheticUserNeverReceives(t *testing.T) {
	s := NewSyntheticUser("sak-100", 100, 0)
	if s.Receivable() {
		t.Fatalf("synthetic user must not be receivable")
	}
	if err := s.Send(context.Background(), &vcwire.Envelope{}); err != ErrNotReceivable {
		t.Fatalf("expected ErrNotReceivable, got %v", err)
	}
}
