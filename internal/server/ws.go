package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/vc-campus-server/internal/dispatch"
	"github.com/kapu/vc-campus-server/internal/sakura"
	"github.com/kapu/vc-campus-server/internal/session"
	"github.com/kapu/vc-campus-server/internal/usercache"
	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

// WSServer owns the accept side of the realtime transport. net/http is only
// the handshake carrier; everything after Accept speaks envelopes.
type WSServer struct {
	reg       *session.Registry
	bus       *dispatch.Dispatcher
	engine    *sakura.Engine
	cache     *usercache.Cache
	logger    *zap.Logger
	outBuffer int
}

type WSOption func(*WSServer)

// WithSessionBuffer sets the per-session outbound channel size.
func WithSessionBuffer(n int) WSOption {
	return func(s *WSServer) { s.outBuffer = n }
}

func NewWSServer(reg *session.Registry, bus *dispatch.Dispatcher, engine *sakura.Engine, cache *usercache.Cache, logger *zap.Logger, opts ...WSOption) *WSServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WSServer{reg: reg, bus: bus, engine: engine, cache: cache, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttachBridge registers a bridge-relay session so an external transport
// receives game-scoped traffic through the dispatcher. Returns the session id
// used to detach.
func (s *WSServer) AttachBridge(gameID int, egress session.EgressFunc) (string, error) {
	b := session.NewVCBridgeSession(gameID, egress)
	id, err := s.reg.Register(b)
	if err != nil {
		return "", err
	}
	s.logger.Info("bridge_attached", zap.String("session_id", id), zap.Int("game_id", gameID))
	return id, nil
}

// DetachBridge removes a bridge-relay session; unknown ids are a no-op.
func (s *WSServer) DetachBridge(id string) {
	s.reg.Unregister(id)
}

// Handler serves GET /ws?user_id=N&game_id=M.
func (s *WSServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.Atoi(r.URL.Query().Get("user_id"))
		if err != nil || userID <= 0 {
			http.Error(w, "invalid user_id", http.StatusBadRequest)
			return
		}
		gameID, _ := strconv.Atoi(r.URL.Query().Get("game_id"))

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		if err != nil {
			s.logger.Warn("ws_accept_error", zap.Int("user_id", userID), zap.Error(err))
			return
		}
		s.serve(r.Context(), conn, userID, gameID)
	})
}

func (s *WSServer) serve(ctx context.Context, conn *websocket.Conn, userID, gameID int) {
	sess := session.NewUserSession(userID, conn, session.WithOutboundBuffer(s.outBuffer))
	if gameID > 0 {
		sess.SetGameID(gameID)
	}
	id, err := s.reg.Register(sess)
	if err != nil {
		s.logger.Warn("ws_register_error", zap.Int("user_id", userID), zap.Error(err))
		sess.Close()
		return
	}
	if s.cache != nil {
		if err := s.cache.BindUser(ctx, userID, id); err != nil {
			s.logger.Warn("cache_bind_error", zap.Int("user_id", userID), zap.Error(err))
		}
	}
	s.logger.Info("ws_connected",
		zap.String("session_id", id),
		zap.Int("user_id", userID),
		zap.Int("game_id", gameID))

	defer func() {
		s.reg.Unregister(id)
		sess.Close()
		if s.cache != nil {
			cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = s.cache.Delete(cctx, id)
			_ = s.cache.UnbindUser(cctx, userID)
			cancel()
		}
		s.logger.Info("ws_disconnected", zap.String("session_id", id), zap.Int("user_id", userID))
	}()

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				s.logger.Debug("ws_read_error", zap.String("session_id", id), zap.Error(err))
			}
			return
		}
		env, err := vcwire.ParseEnvelope(raw)
		if err != nil {
			s.bus.DispatchError(ctx, id, userID, "malformed command")
			continue
		}
		s.handleInbound(ctx, id, userID, env)
	}
}

// handleInbound stamps the sender's identity onto the envelope before it
// enters the dispatch path, so clients cannot spoof addressing context.
func (s *WSServer) handleInbound(ctx context.Context, sessionID string, userID int, env *vcwire.Envelope) {
	env.FromUserId = userID
	if env.Data.SessionId == "" {
		env.Data.SessionId = sessionID
	}

	switch env.Command {
	case vcwire.CmdSendEvent:
		if env.Data.EventId > 0 {
			s.engine.OnEventHook(env.Data.EventId, sakura.HookContext{
				GameID: env.Data.GameId,
				UserID: userID,
			})
		}
		s.bus.Dispatch(ctx, env)
	default:
		s.bus.DispatchError(ctx, sessionID, userID, "unsupported command")
	}
}
