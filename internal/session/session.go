package session

import (
	"context"
	"errors"

	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

var (
	ErrDuplicateSession = errors.New("session id already bound to a different handle")
	ErrSessionClosed    = errors.New("session closed")
	ErrNotReceivable    = errors.New("session has no live transport")
)

// Session is a registered participant handle. Receivable reports whether the
// session is backed by a live transport; synthetic participants are identity
// only and never receive.
type Session interface {
	ID() string
	UserID() int
	GameID() int
	Receivable() bool
	Send(ctx context.Context, env *vcwire.Envelope) error
}

// SyntheticUser is a bot persona handle. Messages attributed to it are
// produced by the sakura engine; nothing is ever delivered to it.
type SyntheticUser struct {
	id     string
	userID int
	gameID int
}

func NewSyntheticUser(id string, userID, gameID int) *SyntheticUser {
	return &SyntheticUser{id: id, userID: userID, gameID: gameID}
}

func (s *SyntheticUser) ID() string       { return s.id }
func (s *SyntheticUser) UserID() int      { return s.userID }
func (s *SyntheticUser) GameID() int      { return s.gameID }
func (s *SyntheticUser) Receivable() bool { return false }

func (s *SyntheticUser) Send(ctx context.Context, env *vcwire.Envelope) error {
	return ErrNotReceivable
}
