// Package registry implements the user registry (spec §4.6): the
// mapping from an authenticated user to its current session (strong)
// and current match (weak), plus the reverse session->user lookup used
// on disconnect.
package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tankwar/server/internal/match"
	"github.com/tankwar/server/internal/wire"
)

// Session is the slice of internal/session that the registry needs to
// hold a strong reference to an authenticated connection, kept as an
// interface so registry never imports internal/session.
type Session interface {
	ID() uint64
	Deliver(kind wire.ServerKind, payload []byte)
	Close()
}

// User is one registered account's live state (spec §4.6: "user data,
// current session strong pointer, current match weak pointer").
type User struct {
	ID       uuid.UUID
	Username string
	Elo      []int32 // per ranked mode, index-aligned with mode byte

	Session Session     // nil when no session is bound
	Match   match.Handle // nil when not currently in a match
}

// UserRegistry is the single serialization domain of spec §4.6: mu
// guards both maps and every User reachable from them.
type UserRegistry struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*User
	bySessionID map[uint64]uuid.UUID
}

// New builds an empty UserRegistry.
func New() *UserRegistry {
	return &UserRegistry{
		users:       make(map[uuid.UUID]*User),
		bySessionID: make(map[uint64]uuid.UUID),
	}
}

// OnLogin creates or updates the User for userID and binds session
// (spec §4.6 "on_login"). A prior bound session, if any, is closed
// first. If the user has a live match handle, MatchInProgress is sent
// on the new session and the match is asked to resync the player onto
// it.
func (r *UserRegistry) OnLogin(userID uuid.UUID, username string, elo []int32, session Session) *User {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		u = &User{ID: userID}
		r.users[userID] = u
	}
	u.Username = username
	u.Elo = elo

	if u.Session != nil {
		delete(r.bySessionID, u.Session.ID())
		u.Session.Close()
	}
	u.Session = session
	r.bySessionID[session.ID()] = userID

	if u.Match != nil {
		session.Deliver(wire.SMatchInProgress, nil)
		u.Match.SyncPlayer(userID, session)
	}
	return u
}

// Disconnect removes sessionID's reverse-map entry (spec §4.6
// "disconnect"). If the user's currently bound session is the one
// disconnecting, the session pointer is cleared; a newer login may
// already have replaced it, in which case this is a no-op on the
// session field. The user is evicted if it now has neither a session
// nor a live match.
func (r *UserRegistry) Disconnect(sessionID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.bySessionID[sessionID]
	if !ok {
		return
	}
	delete(r.bySessionID, sessionID)

	u, ok := r.users[userID]
	if !ok {
		return
	}
	if u.Session != nil && u.Session.ID() == sessionID {
		u.Session = nil
	}
	r.evictIfIdleLocked(u)
}

// NotifyMatchStart sets userID's weak match pointer (spec §4.6
// "notify_match_start"). It is a no-op if the user is not registered.
func (r *UserRegistry) NotifyMatchStart(userID uuid.UUID, handle match.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[userID]; ok {
		u.Match = handle
	}
}

// NotifyMatchFinished clears userID's weak match pointer and evicts the
// user if it has no bound session (spec §4.6 "notify_match_finished").
// mode is accepted to match the matchmaker's callback shape; the
// registry does not currently act on it beyond bookkeeping symmetry.
func (r *UserRegistry) NotifyMatchFinished(userID uuid.UUID, _ uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return
	}
	u.Match = nil
	r.evictIfIdleLocked(u)
}

// evictIfIdleLocked removes u from the registry once it has neither a
// bound session nor a live match. Caller must hold mu.
func (r *UserRegistry) evictIfIdleLocked(u *User) {
	if u.Session == nil && u.Match == nil {
		delete(r.users, u.ID)
	}
}

// Lookup returns the registered User for userID, if any.
func (r *UserRegistry) Lookup(userID uuid.UUID) (*User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	return u, ok
}

// UserForSession resolves a session id back to its user id (spec §4.6
// reverse map).
func (r *UserRegistry) UserForSession(sessionID uint64) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.bySessionID[sessionID]
	return userID, ok
}

// Count reports the number of currently registered users.
func (r *UserRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Snapshot returns a point-in-time copy of every registered user, for
// the admin console's ListUsers listing. Session/Match are the live
// interface values, not copies, since callers only inspect them (e.g.
// checking for nil or reading an ID), never mutate through them.
func (r *UserRegistry) Snapshot() []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out
}
