package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/kapu/vc-campus-server/internal/session"
	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

// Dispatcher is the single broadcast primitive. Every producer (route
// handlers, the sakura engine, the graph relay) hands envelopes here.
type Dispatcher struct {
	reg    *session.Registry
	logger *zap.Logger
}

func New(reg *session.Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{reg: reg, logger: logger}
}

// Dispatch resolves the recipient set and delivers fire-and-forget per
// recipient: one closed transport never aborts delivery to the rest.
func (d *Dispatcher) Dispatch(ctx context.Context, env *vcwire.Envelope) {
	if env == nil {
		return
	}
	recipients := d.reg.Resolve(env.Target, session.ResolveContext{
		SessionID: env.Data.SessionId,
		UserID:    env.Data.ToUserId,
		GameID:    env.Data.GameId,
	})
	for _, s := range recipients {
		if err := s.Send(ctx, env); err != nil {
			d.logger.Warn("delivery_failure",
				zap.String("session_id", s.ID()),
				zap.Int("user_id", s.UserID()),
				zap.Int("command", int(env.Command)),
				zap.Error(err))
		}
	}
}

// DispatchError converts a malformed inbound command into an ordinary ERROR
// envelope addressed back to the originating session. Errors are envelopes,
// not exceptions crossing the dispatch boundary.
func (d *Dispatcher) DispatchError(ctx context.Context, sessionID string, fromUserID int, reason string) {
	env := vcwire.BuildEnvelope(fromUserID, vcwire.CmdError, vcwire.TargetSelf, vcwire.EventData{
		FromId:    -1,
		ToUserId:  fromUserID,
		SessionId: sessionID,
		Payload: []vcwire.Field{
			vcwire.StringField("Message", reason),
		},
	})
	d.Dispatch(ctx, env)
}
