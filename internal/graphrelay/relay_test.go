package graphrelay

import (
	"context"
	"sync"
	"testing"

	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

type captureBus struct {
	mu   sync.Mutex
	envs []*vcwire.Envelope
}

func (b *captureBus) Dispatch(ctx context.Context, env *vcwire.Envelope) {
	b.mu.Lock()
	b.envs = append(b.envs, env)
	b.mu.Unlock()
}

func TestErrorRoutedBackToOriginator(t *testing.T) {
	bus := &captureBus{}
	r := New(bus, nil)

	in := vcwire.BuildEnvelope(42, vcwire.CmdError, vcwire.TargetAll, vcwire.EventData{
		EventId:   9,
		SessionId: "sess-1",
		Payload:   []vcwire.Field{vcwire.StringField("Message", "search failed")},
	})
	r.OnTaskMessage(context.Background(), in)

	if len(bus.envs) != 1 {
		t.Fatalf("dispatched = %d, want 1", len(bus.envs))
	}
	out := bus.envs[0]
	if out.Command != vcwire.CmdError || out.Target != vcwire.TargetSelf {
		t.Fatalf("command/target = %d/%d", out.Command, out.Target)
	}
	if out.Data.ToUserId != 42 || out.Data.SessionId != "sess-1" {
		t.Fatalf("misaddressed: %+v", out.Data)
	}
}

func TestSendEventIsNoOp(t *testing.T) {
	bus := &captureBus{}
	r := New(bus, nil)

	in := vcwire.BuildEnvelope(7, vcwire.CmdSendEvent, vcwire.TargetSelf, vcwire.EventData{})
	r.OnTaskMessage(context.Background(), in)

	if len(bus.envs) != 0 {
		t.Fatalf("SEND_EVENT dispatched %d envelopes", len(bus.envs))
	}
}

func TestInternalProgressBroadcast(t *testing.T) {
	bus := &captureBus{}
	r := New(bus, nil)

	r.OnInternalEvent(context.Background(), InternalEvent{
		API: APIDigWord, Message: "expanding keywords", Step: 2, Total: 5,
	})

	if len(bus.envs) != 1 {
		t.Fatalf("dispatched = %d, want 1", len(bus.envs))
	}
	env := bus.envs[0]
	if env.Command != vcwire.CmdEvent || env.Target != vcwire.TargetAll || env.FromUserId != -1 {
		t.Fatalf("envelope = %+v", env)
	}
	p, err := vcwire.ParsePayload(env.Data.Payload)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.String("Api") != APIDigWord || p.Int32("Step") != 2 || p.Int32("Total") != 5 {
		t.Fatalf("payload: api=%q step=%d total=%d", p.String("Api"), p.Int32("Step"), p.Int32("Total"))
	}
}

func TestUnknownInternalAPIIgnored(t *testing.T) {
	bus := &captureBus{}
	r := New(bus, nil)

	r.OnInternalEvent(context.Background(), InternalEvent{API: "mystery"})

	if len(bus.envs) != 0 {
		t.Fatalf("unknown api dispatched %d envelopes", len(bus.envs))
	}
}
