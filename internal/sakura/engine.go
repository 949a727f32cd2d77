package sakura

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/vc-campus-server/internal/master"
	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

// Event ids used in outbound envelopes.
const (
	sakuraMessageEventID = 1000
	adminMessageEventID  = 1001
	adminMessageEmotion  = 99
	systemFromID         = -1
)

// Random-gate bounds: a uniform draw in [0, randomGateRange) below
// randomGateThreshold suppresses the rule.
const (
	randomGateRange     = 10
	randomGateThreshold = 5
)

// AI-game start stagger so personas do not all speak simultaneously.
const (
	aiGameStaggerStepMs = 3000
	aiGameStaggerBaseMs = 1500
)

var ErrAIResponse = errors.New("malformed ai response")

// ChatProvider is the AI text-completion capability.
type ChatProvider interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// MasterData serves the read-only rule tables.
type MasterData interface {
	GetMaster(table string) []master.Row
	GetAIRule(key string) (master.AIRule, bool)
}

// MessageStore persists delivered synthetic messages.
type MessageStore interface {
	InsertMessage(ctx context.Context, rec *MessageRecord) error
}

// Broadcaster re-enters the dispatcher with a finished envelope.
type Broadcaster interface {
	Dispatch(ctx context.Context, env *vcwire.Envelope)
}

// Rand is the injectable uniform randomness seam; crypto-strength draws are
// not required for persona selection.
type Rand interface {
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Config wires the engine's collaborators. Sched, Rand and Logger default
// when nil; the rest are required.
type Config struct {
	Master MasterData
	Chat   ChatProvider
	Store  MessageStore
	Bus    Broadcaster
	Sched  Scheduler
	Rand   Rand
	Logger *zap.Logger
}

// Engine converts game lifecycle notifications into zero or more synthetic
// AI-authored messages, governed by the SakuraEvent rule table. Each trigger
// invocation is independent; failures abort only the rule they occur in and
// never propagate to the lifecycle caller.
type Engine struct {
	masterData MasterData
	chat       ChatProvider
	store      MessageStore
	bus        Broadcaster
	sched      Scheduler
	rand       Rand
	logger     *zap.Logger

	mu       sync.RWMutex
	rules    []EventRule
	personas []Persona

	wg sync.WaitGroup
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		masterData: cfg.Master,
		chat:       cfg.Chat,
		store:      cfg.Store,
		bus:        cfg.Bus,
		sched:      cfg.Sched,
		rand:       cfg.Rand,
		logger:     cfg.Logger,
	}
	if e.sched == nil {
		e.sched = NewTimerScheduler()
	}
	if e.rand == nil {
		e.rand = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.ReloadRules()
	return e
}

// ReloadRules re-parses the SakuraEvent table; the rule slice is swapped
// whole, never patched.
func (e *Engine) ReloadRules() {
	rules := ParseEventRules(e.masterData.GetMaster("SakuraEvent"))
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
}

// SetPersonas installs the synthetic participant pool.
func (e *Engine) SetPersonas(pool []Persona) {
	e.mu.Lock()
	e.personas = pool
	e.mu.Unlock()
}

// Wait blocks until all in-flight rule executions finish. Pending scheduled
// deliveries are not waited on; they belong to the scheduler.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) matchRules(trigger string) []EventRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []EventRule
	for _, r := range e.rules {
		if r.Trigger == trigger {
			out = append(out, r)
		}
	}
	return out
}

// GameUser is one participant of a multi-user game start.
type GameUser struct {
	UserID      int
	DisplayName string
}

// APIEvent is a lifecycle notification relayed from the HTTP surface.
type APIEvent struct {
	API       string
	GameHash  string
	GameID    int
	GameTitle string
	UserID    int
	GameUsers []GameUser
}

type invocation struct {
	api    string
	userID int
	gameID int
	index  int
}

// OnAPIEvent routes a lifecycle event through rule matching. It never blocks
// and never fails: bot misbehavior must not block real gameplay.
func (e *Engine) OnAPIEvent(evt APIEvent) {
	switch evt.API {
	case APICreateUser:
		for _, rule := range e.matchRules(TriggerRegister) {
			e.spawn(rule, invocation{api: evt.API, userID: evt.UserID})
		}

	case APIGameStartAIGame:
		for _, rule := range e.matchRules(TriggerGameStart) {
			if rule.GameID != evt.GameID {
				continue
			}
			for i, u := range evt.GameUsers {
				e.spawn(rule, invocation{api: evt.API, userID: u.UserID, gameID: evt.GameID, index: i})
			}
		}

	case APIGameStartVC:
		for _, rule := range e.matchRules(TriggerGameStart) {
			if rule.GameID != evt.GameID {
				continue
			}
			e.spawn(rule, invocation{api: evt.API, userID: evt.UserID, gameID: evt.GameID})
		}

	case APIGameEndAIGame, APIGameEndVC:
		// no rules fire on game end; pending timers run out on their own
	}
}

// HookContext carries the addressing context of an event hook.
type HookContext struct {
	GameID int
	UserID int
}

// OnEventHook fires rules whose first param matches the event id. No match
// is a valid outcome, not an error.
func (e *Engine) OnEventHook(eventID int, hctx HookContext) {
	for _, rule := range e.matchRules(TriggerEventHook) {
		if rule.Params[0] != eventID {
			continue
		}
		if rule.GameID != hctx.GameID {
			continue
		}
		e.spawn(rule, invocation{userID: hctx.UserID, gameID: hctx.GameID})
	}
}

func (e *Engine) spawn(rule EventRule, inv invocation) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execRule(context.Background(), rule, inv)
	}()
}

type aiMessage struct {
	Message string `json:"Message"`
	Emotion int    `json:"Emotion"`
}

func (e *Engine) execRule(ctx context.Context, rule EventRule, inv invocation) {
	e.mu.RLock()
	pool := e.personas
	e.mu.RUnlock()

	cohort := resolveCohort(pool, rule)
	if len(cohort) == 0 {
		return
	}

	// probabilistic gate, drawn once per rule match
	if rule.hasFlag(FlagRandom) && e.rand.Intn(randomGateRange) < randomGateThreshold {
		return
	}

	persona := cohort[e.rand.Intn(len(cohort))]

	aiRule, ok := e.masterData.GetAIRule(rule.SakuraKey)
	if !ok {
		e.logger.Warn("sakura_rule_missing", zap.String("key", rule.SakuraKey))
		return
	}
	prompt := composePrompt(aiRule.RuleText, rule.Description, persona)

	content, err := e.chat.Chat(ctx, prompt)
	if err != nil {
		e.logger.Warn("sakura_ai_error", zap.String("key", rule.SakuraKey), zap.Error(err))
		return
	}
	var msg aiMessage
	if err := json.Unmarshal([]byte(content), &msg); err != nil {
		e.logger.Warn("sakura_ai_error", zap.String("key", rule.SakuraKey),
			zap.Error(fmt.Errorf("%w: %v", ErrAIResponse, err)))
		return
	}

	delay := e.computeDelay(rule, inv)

	// zero is reserved as "unset" downstream and must never be persisted
	if msg.Emotion == 0 {
		msg.Emotion = 1
	}

	rec := &MessageRecord{
		ToUserID:   inv.userID,
		FromUserID: persona.UserID,
		AvatarType: persona.AvatarType,
		Message:    msg.Message,
		Emotion:    msg.Emotion,
	}
	env := e.buildMessageEnvelope(rule, persona, rec)

	if delay > 0 {
		e.sched.After(delay, func() { e.deliver(context.Background(), rec, env) })
		return
	}
	e.deliver(ctx, rec, env)
}

func (e *Engine) computeDelay(rule EventRule, inv invocation) time.Duration {
	if rule.Trigger != TriggerGameStart {
		return 0
	}
	ms := rule.Params[0]
	if rule.Params[1] > 0 {
		ms += e.rand.Intn(rule.Params[1])
	}
	if inv.api == APIGameStartAIGame {
		ms += inv.index*aiGameStaggerStepMs + aiGameStaggerBaseMs
	}
	return time.Duration(ms) * time.Millisecond
}

// deliver persists first, then re-enters the dispatcher. A storage failure
// aborts the delivery; the durable record is the source of truth. CreatedAt
// is stamped here so delayed deliveries carry their actual delivery time.
func (e *Engine) deliver(ctx context.Context, rec *MessageRecord, env *vcwire.Envelope) {
	rec.CreatedAt = time.Now()
	if err := e.store.InsertMessage(ctx, rec); err != nil {
		e.logger.Error("sakura_persist_error",
			zap.Int("to_user_id", rec.ToUserID),
			zap.Int("from_user_id", rec.FromUserID),
			zap.Error(err))
		return
	}
	e.bus.Dispatch(ctx, env)
}

func (e *Engine) buildMessageEnvelope(rule EventRule, persona Persona, rec *MessageRecord) *vcwire.Envelope {
	return vcwire.BuildEnvelope(persona.UserID, vcwire.CmdEvent, vcwire.TargetSelf, vcwire.EventData{
		EventId:  sakuraMessageEventID,
		FromId:   persona.UserID,
		ToUserId: rec.ToUserID,
		GameId:   rule.GameID,
		Payload: []vcwire.Field{
			vcwire.Int32Field("Emotion", int32(rec.Emotion)),
			vcwire.StringField("Message", rec.Message),
			vcwire.Int32Field("Avatar", int32(persona.AvatarType)),
			vcwire.StringField("Name", persona.DisplayName),
		},
	})
}

// ComposeAdminMessage builds the fixed-format operator broadcast. It skips
// persona selection entirely; the emotion value is pinned.
func (e *Engine) ComposeAdminMessage(text string) *vcwire.Envelope {
	return vcwire.BuildEnvelope(systemFromID, vcwire.CmdEvent, vcwire.TargetAll, vcwire.EventData{
		EventId: adminMessageEventID,
		FromId:  systemFromID,
		Payload: []vcwire.Field{
			vcwire.Int32Field("Emotion", adminMessageEmotion),
			vcwire.StringField("Message", text),
		},
	})
}
