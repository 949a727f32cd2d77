package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

const defaultOutboundBuffer = 64

// UserSession is a real, bidirectional participant bound to a WebSocket.
// Outbound envelopes go through a buffered channel drained by a single write
// pump, so per-session delivery order matches submission order.
type UserSession struct {
	id     string
	userID int

	conn *websocket.Conn

	mu     sync.RWMutex
	gameID int
	closed bool

	out     chan *vcwire.Envelope
	outSize int
	done    chan struct{}
	once    sync.Once
}

type UserSessionOption func(*UserSession)

// WithOutboundBuffer sizes the outbound channel; values below 1 keep the
// default.
func WithOutboundBuffer(n int) UserSessionOption {
	return func(s *UserSession) {
		if n > 0 {
			s.outSize = n
		}
	}
}

func NewUserSession(userID int, conn *websocket.Conn, opts ...UserSessionOption) *UserSession {
	s := &UserSession{
		id:      uuid.NewString(),
		userID:  userID,
		conn:    conn,
		outSize: defaultOutboundBuffer,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.out = make(chan *vcwire.Envelope, s.outSize)
	go s.writePump()
	return s
}

func (s *UserSession) ID() string  { return s.id }
func (s *UserSession) UserID() int { return s.userID }

func (s *UserSession) GameID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameID
}

func (s *UserSession) SetGameID(gameID int) {
	s.mu.Lock()
	s.gameID = gameID
	s.mu.Unlock()
}

func (s *UserSession) Receivable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Send enqueues an envelope for the write pump. It fails fast when the
// session is closed or the outbound buffer is full; the dispatcher treats
// either as a per-recipient delivery failure.
func (s *UserSession) Send(ctx context.Context, env *vcwire.Envelope) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}
	select {
	case s.out <- env:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *UserSession) writePump() {
	for {
		select {
		case <-s.done:
			return
		case env := <-s.out:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, s.conn, env)
			cancel()
			if err != nil {
				s.Close()
				return
			}
		}
	}
}

// Close is idempotent. After Close the registry lookup must miss; the caller
// is expected to Unregister as well.
func (s *UserSession) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
		}
	})
}
