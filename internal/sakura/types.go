package sakura

import (
	"strconv"
	"strings"
	"time"

	"github.com/kapu/vc-campus-server/internal/master"
)

// Trigger names matched against the rule table.
const (
	TriggerRegister  = "Register"
	TriggerGameStart = "GameStart"
	TriggerEventHook = "EventHook"
)

// API tags routed through OnAPIEvent.
const (
	APICreateUser      = "createUser"
	APIGameStartAIGame = "gameStartAIGame"
	APIGameStartVC     = "gameStartVC"
	APIGameEndAIGame   = "gameEndAIGame"
	APIGameEndVC       = "gameEndVC"
)

// EventRule is one row of the SakuraEvent master table. Params semantics are
// trigger dependent: GameStart uses them as a delay window [base, base+jitter)
// in milliseconds, EventHook matches Params[0] against the hook event id.
type EventRule struct {
	Trigger     string
	GameID      int
	SendFlag    []string
	SakuraKey   string
	Description string
	Params      [2]int
}

func (r EventRule) hasFlag(flag string) bool {
	for _, f := range r.SendFlag {
		if f == flag {
			return true
		}
	}
	return false
}

// ParseEventRules converts raw master rows into typed rules. Unknown columns
// are ignored; numeric columns that fail to parse default to zero, matching
// the tolerant load of the master sheet.
func ParseEventRules(rows []master.Row) []EventRule {
	out := make([]EventRule, 0, len(rows))
	for _, row := range rows {
		rule := EventRule{}
		for k, v := range row {
			switch k {
			case "Trigger":
				rule.Trigger = v
			case "GameId":
				rule.GameID, _ = strconv.Atoi(v)
			case "SendFlag":
				for _, f := range strings.Split(v, ",") {
					if f = strings.TrimSpace(f); f != "" {
						rule.SendFlag = append(rule.SendFlag, f)
					}
				}
			case "SakuraKey":
				rule.SakuraKey = v
			case "Description":
				rule.Description = v
			case "ParamA":
				rule.Params[0], _ = strconv.Atoi(v)
			case "ParamB":
				rule.Params[1], _ = strconv.Atoi(v)
			}
		}
		out = append(out, rule)
	}
	return out
}

// Persona is a synthetic participant: stable identity plus the personality
// profile used verbatim as AI prompt context.
type Persona struct {
	UserID      int
	AvatarType  int
	DisplayName string
	Gender      string
	Age         string
	Personality string
	Motivation  string
	Weaknesses  string
	Background  string
}

// MessageRecord is the durable form of a delivered synthetic message; it is
// the source of truth regardless of whether the live broadcast succeeds.
type MessageRecord struct {
	ToUserID   int
	FromUserID int
	AvatarType int
	Message    string
	Emotion    int
	CreatedAt  time.Time
}
