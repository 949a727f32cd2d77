package session

import (
	"sync"

	"github.com/kapu/vc-campus-server/pkg/vcwire"
)

// ResolveContext names the addressing context of one resolve call. For SELF
// the session id wins when set; the user id is the fallback.
type ResolveContext struct {
	SessionID string
	UserID    int
	GameID    int
}

// Registry maps session and user identifiers to live handles, scoped per
// game where applicable. Mutations are serialized against resolves; lookups
// after Unregister always miss, never return a stale handle.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]Session
	byUser map[int]Session
	byGame map[int]map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]Session),
		byUser: make(map[int]Session),
		byGame: make(map[int]map[string]Session),
	}
}

// Register binds the session under its id. Rebinding the same id to a
// different handle fails with ErrDuplicateSession; re-registering the same
// handle is a no-op.
func (r *Registry) Register(s Session) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.ID()
	if prev, ok := r.byID[id]; ok {
		if prev == s {
			return id, nil
		}
		return "", ErrDuplicateSession
	}
	r.byID[id] = s
	if uid := s.UserID(); uid >= 0 {
		r.byUser[uid] = s
	}
	if gid := s.GameID(); gid > 0 {
		r.bindGameLocked(id, s, gid)
	}
	return id, nil
}

// Unregister is idempotent; removing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if uid := s.UserID(); uid >= 0 && r.byUser[uid] == s {
		delete(r.byUser, uid)
	}
	for gid, set := range r.byGame {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byGame, gid)
		}
	}
}

// BindGame scopes an already-registered session to a game id.
func (r *Registry) BindGame(id string, gameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return
	}
	r.bindGameLocked(id, s, gameID)
}

// UnbindGame removes a session's game scoping without unregistering it. The
// session stays resolvable via SELF and ALL.
func (r *Registry) UnbindGame(id string, gameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byGame[gameID]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.byGame, gameID)
	}
}

func (r *Registry) bindGameLocked(id string, s Session, gameID int) {
	set, ok := r.byGame[gameID]
	if !ok {
		set = make(map[string]Session)
		r.byGame[gameID] = set
	}
	set[id] = s
}

// Resolve computes the recipient set for a target. An empty result is a
// valid outcome, not an error: absence of recipients is not a failure.
func (r *Registry) Resolve(target vcwire.Target, rctx ResolveContext) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch target {
	case vcwire.TargetSelf:
		if rctx.SessionID != "" {
			if s, ok := r.byID[rctx.SessionID]; ok && s.Receivable() {
				return []Session{s}
			}
			return nil
		}
		if s, ok := r.byUser[rctx.UserID]; ok && s.Receivable() {
			return []Session{s}
		}
		return nil

	case vcwire.TargetAll:
		out := make([]Session, 0, len(r.byID))
		for _, s := range r.byID {
			if s.Receivable() {
				out = append(out, s)
			}
		}
		return out

	case vcwire.TargetGame:
		set := r.byGame[rctx.GameID]
		out := make([]Session, 0, len(set))
		for _, s := range set {
			if s.Receivable() {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Count reports the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
