package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/kapu/vc-campus-server/internal/session"
	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

type recSession struct {
	id      string
	userID  int
	gameID  int
	failing bool
	got     []*vcwire.Envelope
}

func (r *recSession) ID() string       { return r.id }
func (r *recSession) UserID() int      { return r.userID }
func (r *recSession) GameID() int      { return r.gameID }
func (r *recSession) Receivable() bool { return true }

func (r *recSession) Send(ctx context.Context, env *vcwire.Envelope) error {
	if r.failing {
		return errors.New("transport closed")
	}
	r.got = append(r.got, env)
	return nil
}

func setup(t *testing.T, sessions ...session.Session) *Dispatcher {
	t.Helper()
	reg := session.NewRegistry()
	for _, s := range sessions {
		if _, err := reg.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return New(reg, nil)
}

func TestDispatchAllExactlyOnce(t *testing.T) {
	a := &recSession{id: "s1", userID: 1}
	b := &recSession{id: "s2", userID: 2}
	c := &recSession{id: "s3", userID: 3}
	d := setup(t, a, b, c)

	env := vcwire.BuildEnvelope(-1, vcwire.CmdEvent, vcwire.TargetAll, vcwire.EventData{EventId: 1})
	d.Dispatch(context.Background(), env)

	for _, s := range []*recSession{a, b, c} {
		if len(s.got) != 1 {
			t.Fatalf("session %s observed %d envelopes, want 1", s.id, len(s.got))
		}
	}
}

func TestDispatchSelfOnlyAddressed(t *testing.T) {
	a := &recSession{id: "s1", userID: 1}
	b := &recSession{id: "s2", userID: 2}
	d := setup(t, a, b)

	env := vcwire.BuildEnvelope(1, vcwire.CmdEvent, vcwire.TargetSelf, vcwire.EventData{SessionId: "s1"})
	d.Dispatch(context.Background(), env)

	if len(a.got) != 1 {
		t.Fatalf("addressed session observed %d envelopes, want 1", len(a.got))
	}
	if len(b.got) != 0 {
		t.Fatalf("other session observed %d envelopes, want 0", len(b.got))
	}
}

func TestDispatchFailureIsContained(t *testing.T) {
	a := &recSession{id: "s1", userID: 1, failing: true}
	b := &recSession{id: "s2", userID: 2}
	d := setup(t, a, b)

	env := vcwire.BuildEnvelope(-1, vcwire.CmdEvent, vcwire.TargetAll, vcwire.EventData{})
	d.Dispatch(context.Background(), env)

	if len(b.got) != 1 {
		t.Fatalf("healthy session observed %d envelopes, want 1", len(b.got))
	}
}

func TestDispatchGameThroughBridge(t *testing.T) {
	var relayed []*vcwire.Envelope
	bridge := session.NewVCBridgeSession(7, func(ctx context.Context, env *vcwire.Envelope) error {
		relayed = append(relayed, env)
		return nil
	})
	d := setup(t, bridge)

	env := vcwire.BuildEnvelope(-1, vcwire.CmdEvent, vcwire.TargetGame, vcwire.EventData{GameId: 7})
	d.Dispatch(context.Background(), env)

	if len(relayed) != 1 || relayed[0] != env {
		t.Fatalf("bridge egress observed %d envelopes, want 1", len(relayed))
	}
}

func TestDispatchNoRecipientsIsNotAnError(t *testing.T) {
	d := setup(t)
	env := vcwire.BuildEnvelope(-1, vcwire.CmdEvent, vcwire.TargetGame, vcwire.EventData{GameId: 42})
	d.Dispatch(context.Background(), env) // must not panic or log fatal
}

func TestDispatchError(t *testing.T) {
	a := &recSession{id: "s1", userID: 9}
	d := setup(t, a)

	d.DispatchError(context.Background(), "s1", 9, "unparseable payload")

	if len(a.got) != 1 {
		t.Fatalf("originator observed %d envelopes, want 1", len(a.got))
	}
	env := a.got[0]
	if env.Command != vcwire.CmdError || env.Target != vcwire.TargetSelf {
		t.Fatalf("unexpected command/target: %d/%d", env.Command, env.Target)
	}
	p, err := vcwire.ParsePayload(env.Data.Payload)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.String("Message") != "unparseable payload" {
		t.Fatalf("Message = %q", p.String("Message"))
	}
}
