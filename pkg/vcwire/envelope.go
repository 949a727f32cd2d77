package vcwire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CMD is the command kind carried by an envelope.
type CMD int

const (
	CmdSendEvent CMD = iota // client-originated request
	CmdEvent                // server-originated notification
	CmdError                // error notification addressed back to the sender
)

// Target selects the recipient set for an envelope.
type Target int

const (
	TargetAll Target = iota
	TargetSelf
	TargetGame
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// EventData is the structured body of an envelope. GameId/ToUserId/SessionId
// carry the addressing context used by target resolution.
type EventData struct {
	EventId   int     `json:"EventId"`
	FromId    int     `json:"FromId"`
	ToUserId  int     `json:"ToUserId,omitempty"`
	GameId    int     `json:"GameId,omitempty"`
	SessionId string  `json:"SessionId"`
	Payload   []Field `json:"Payload"`
}

// Envelope is a routed command message.
type Envelope struct {
	FromUserId int       `json:"FromUserId"`
	Command    CMD       `json:"Command"`
	Target     Target    `json:"Target"`
	Data       EventData `json:"Data"`
}

// BuildEnvelope is a pure construction helper; it performs no I/O.
func BuildEnvelope(fromUserId int, cmd CMD, target Target, data EventData) *Envelope {
	return &Envelope{
		FromUserId: fromUserId,
		Command:    cmd,
		Target:     target,
		Data:       data,
	}
}

// ParseEnvelope decodes raw JSON into an Envelope. Decode failures are
// reported as ErrMalformedEnvelope so callers can turn them into CmdError
// envelopes instead of surfacing exceptions across the dispatch boundary.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	switch env.Command {
	case CmdSendEvent, CmdEvent, CmdError:
	default:
		return nil, fmt.Errorf("%w: unknown command %d", ErrMalformedEnvelope, env.Command)
	}
	return &env, nil
}

// Encode renders the envelope as wire JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
