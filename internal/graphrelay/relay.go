package graphrelay

import (
	"context"

	"go.uber.org/zap"

	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

// Internal API tags the relay reacts to.
const (
	APIDigWord = "digWord"
)

const systemFromID = -1

// progressEventID marks background-task progress envelopes.
const progressEventID = 2000

// Broadcaster is the dispatch primitive the relay feeds.
type Broadcaster interface {
	Dispatch(ctx context.Context, env *vcwire.Envelope)
}

// InternalEvent is a progress notification from a long-running background
// task, such as one step of a keyword-expansion search.
type InternalEvent struct {
	API     string
	Message string
	Step    int
	Total   int
}

// Relay forwards background-task progress to all sessions and routes error
// envelopes back to their originator. It is a narrow consumer of the
// dispatcher: it never resolves targets itself.
type Relay struct {
	bus    Broadcaster
	logger *zap.Logger

	// queue is a placeholder for bounding unacknowledged progress events;
	// the current contract only requires in-order forwarding.
	queue chan *vcwire.Envelope
}

func New(bus Broadcaster, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{bus: bus, logger: logger, queue: make(chan *vcwire.Envelope, 64)}
}

// OnTaskMessage handles an envelope surfaced by a background task. Errors go
// back to the originating user as SELF-targeted envelopes; SEND_EVENT is
// accepted as a hook point for future progress payloads.
func (r *Relay) OnTaskMessage(ctx context.Context, env *vcwire.Envelope) {
	switch env.Command {
	case vcwire.CmdError:
		out := vcwire.BuildEnvelope(env.FromUserId, vcwire.CmdError, vcwire.TargetSelf, vcwire.EventData{
			EventId:   env.Data.EventId,
			FromId:    systemFromID,
			ToUserId:  env.FromUserId,
			SessionId: env.Data.SessionId,
			Payload:   env.Data.Payload,
		})
		r.bus.Dispatch(ctx, out)

	case vcwire.CmdSendEvent:
		// accepted, not yet acted on

	default:
		r.logger.Debug("relay_ignored",
			zap.Int("command", int(env.Command)),
			zap.Int("from_user_id", env.FromUserId))
	}
}

// OnInternalEvent broadcasts progress of a known internal API to everyone as
// a system-authored envelope. Unknown tags are ignored.
func (r *Relay) OnInternalEvent(ctx context.Context, evt InternalEvent) {
	switch evt.API {
	case APIDigWord:
		env := vcwire.BuildEnvelope(systemFromID, vcwire.CmdEvent, vcwire.TargetAll, vcwire.EventData{
			EventId: progressEventID,
			FromId:  systemFromID,
			Payload: []vcwire.Field{
				vcwire.StringField("Api", evt.API),
				vcwire.StringField("Message", evt.Message),
				vcwire.Int32Field("Step", int32(evt.Step)),
				vcwire.Int32Field("Total", int32(evt.Total)),
			},
		})
		r.bus.Dispatch(ctx, env)

	default:
		r.logger.Debug("relay_unknown_api", zap.String("api", evt.API))
	}
}
