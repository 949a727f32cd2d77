package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/vc-campus-server/internal/dispatch"
	"github.com/kapu/vc-campus-server/internal/graphrelay"
	"github.com/kapu/vc-campus-server/internal/master"
	"github.com/kapu/vc-campus-server/internal/sakura"
	"github.com/kapu/vc-campus-server/internal/session"
)

// MessageReader is the read-back side of the durable message log.
type MessageReader interface {
	ListMessagesByUser(ctx context.Context, userID, limit int) ([]sakura.MessageRecord, error)
}

// API is the operational HTTP surface: lifecycle notifications from the game
// backend, operator tooling, and health. Realtime traffic does not go here.
type API struct {
	reg     *session.Registry
	bus     *dispatch.Dispatcher
	engine  *sakura.Engine
	relay   *graphrelay.Relay
	catalog *master.Catalog
	msgs    MessageReader
	logger  *zap.Logger
}

func NewAPI(reg *session.Registry, bus *dispatch.Dispatcher, engine *sakura.Engine, relay *graphrelay.Relay, catalog *master.Catalog, msgs MessageReader, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{reg: reg, bus: bus, engine: engine, relay: relay, catalog: catalog, msgs: msgs, logger: logger}
}

type lifecycleRequest struct {
	GameHash  string `json:"game_hash"`
	GameID    int    `json:"game_id"`
	GameTitle string `json:"game_title"`
	UserID    int    `json:"user_id"`
	GameUsers []struct {
		UserID      int    `json:"user_id"`
		DisplayName string `json:"display_name"`
	} `json:"game_users"`
}

type maintainRequest struct {
	Message string `json:"message"`
}

type progressRequest struct {
	API     string `json:"api"`
	Message string `json:"message"`
	Step    int    `json:"step"`
	Total   int    `json:"total"`
}

// Handler is the fasthttp route table.
func (a *API) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		method := string(ctx.Method())

		switch {
		case method == fasthttp.MethodPost && path == "/vc/usercreate":
			a.handleLifecycle(ctx, sakura.APICreateUser)
		case method == fasthttp.MethodPost && path == "/vc/gamestart":
			a.handleLifecycle(ctx, sakura.APIGameStartVC)
		case method == fasthttp.MethodPost && path == "/vc/ai/gamestart":
			a.handleLifecycle(ctx, sakura.APIGameStartAIGame)
		case method == fasthttp.MethodPost && path == "/vc/gameend":
			a.handleLifecycle(ctx, sakura.APIGameEndVC)
		case method == fasthttp.MethodPost && path == "/vc/ai/gameend":
			a.handleLifecycle(ctx, sakura.APIGameEndAIGame)
		case method == fasthttp.MethodPost && path == "/maintain":
			a.handleMaintain(ctx)
		case method == fasthttp.MethodPost && path == "/relay/progress":
			a.handleProgress(ctx)
		case method == fasthttp.MethodPost && path == "/tools/masterupdate":
			a.handleMasterUpdate(ctx)
		case method == fasthttp.MethodGet && path == "/vc/messages":
			a.handleMessages(ctx)
		case method == fasthttp.MethodGet && path == "/stat":
			a.handleStat(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

func (a *API) handleLifecycle(ctx *fasthttp.RequestCtx, api string) {
	var req lifecycleRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"error": "malformed body"})
		return
	}
	evt := sakura.APIEvent{
		API:       api,
		GameHash:  req.GameHash,
		GameID:    req.GameID,
		GameTitle: req.GameTitle,
		UserID:    req.UserID,
	}
	for _, u := range req.GameUsers {
		evt.GameUsers = append(evt.GameUsers, sakura.GameUser{UserID: u.UserID, DisplayName: u.DisplayName})
	}
	a.engine.OnAPIEvent(evt)
	a.logger.Info("lifecycle_event",
		zap.String("api", api),
		zap.Int("game_id", req.GameID),
		zap.Int("user_id", req.UserID),
		zap.Int("participants", len(req.GameUsers)))
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "accepted"})
}

func (a *API) handleMaintain(ctx *fasthttp.RequestCtx) {
	var req maintainRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Message == "" {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"error": "message required"})
		return
	}
	env := a.engine.ComposeAdminMessage(req.Message)
	a.bus.Dispatch(ctx, env)
	a.logger.Info("maintain_broadcast", zap.Int("sessions", a.reg.Count()))
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "sent"})
}

func (a *API) handleProgress(ctx *fasthttp.RequestCtx) {
	var req progressRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.API == "" {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"error": "api required"})
		return
	}
	a.relay.OnInternalEvent(ctx, graphrelay.InternalEvent{
		API:     req.API,
		Message: req.Message,
		Step:    req.Step,
		Total:   req.Total,
	})
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "relayed"})
}

func (a *API) handleMasterUpdate(ctx *fasthttp.RequestCtx) {
	if err := a.catalog.Reload(); err != nil {
		a.logger.Error("master_reload_error", zap.Error(err))
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	a.engine.ReloadRules()
	a.logger.Info("master_reloaded")
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "reloaded"})
}

func (a *API) handleMessages(ctx *fasthttp.RequestCtx) {
	userID := ctx.QueryArgs().GetUintOrZero("user_id")
	if userID <= 0 {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{"error": "user_id required"})
		return
	}
	limit := ctx.QueryArgs().GetUintOrZero("limit")
	recs, err := a.msgs.ListMessagesByUser(ctx, userID, limit)
	if err != nil {
		a.logger.Error("messages_query_error", zap.Int("user_id", userID), zap.Error(err))
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{"error": "storage error"})
		return
	}
	type msgView struct {
		ToUserID   int       `json:"to_user_id"`
		FromUserID int       `json:"from_user_id"`
		AvatarType int       `json:"avatar_type"`
		Message    string    `json:"message"`
		Emotion    int       `json:"emotion"`
		CreatedAt  time.Time `json:"created_at"`
	}
	out := make([]msgView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, msgView{
			ToUserID:   rec.ToUserID,
			FromUserID: rec.FromUserID,
			AvatarType: rec.AvatarType,
			Message:    rec.Message,
			Emotion:    rec.Emotion,
			CreatedAt:  rec.CreatedAt,
		})
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"messages": out})
}

func (a *API) handleStat(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"sessions": a.reg.Count(),
	})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	b, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetBody(b)
}
