// Package store declares the persistence contract spec.md §6 assigns
// to "the store": authentication, registration, append-only match
// history, ban enforcement, the social graph, and history/replay
// retrieval. internal/server, internal/registry and internal/matchmaker
// depend only on the Store interface; internal/store/postgres is one
// concrete implementation of it.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tankwar/server/internal/wire"
)

// NumModes is the count of game modes a user carries an elo for (spec
// §4.5: Ranked-2, Casual-3, Casual-5, Casual-2 — see internal/game's
// Mode* constants). Casual modes carry an elo purely for matchmaking
// bucket continuity even though only Ranked-2 updates it competitively;
// spec.md §3 describes the array uniformly as "per-mode ranks."
const NumModes = 4

// Credentials is what a client presents at login or registration: a
// username and the client-side-hashed password (spec §6 "Password
// hashing" — the client performs the first, memory-hard pass; the
// store performs a second Argon2id pass with its own per-user salt
// before ever touching a column).
type Credentials struct {
	Username   string
	ClientHash [32]byte
}

// AuthenticatedUser is what authenticate() returns on success (spec §6
// "GoodAuth carrying the per-mode elo array").
type AuthenticatedUser struct {
	UserID uuid.UUID
	Elo    [NumModes]int32
}

// RegisterOutcome enumerates register_account's result (spec §6 /
// wire.BadRegistrationReason, minus the "currently authenticated" case
// which internal/server checks before ever calling the store).
type RegisterOutcome uint8

const (
	RegisterOK RegisterOutcome = iota
	RegisterUsernameTaken
	RegisterInvalidUsername
)

// MatchRecord is what record_match persists (spec §4.4 MatchResult). It
// carries no elo deltas: for ranked matches the store computes them
// from the stored ratings with internal/matchmaker.EloDelta — see
// SPEC_FULL.md §6 "Ranked elo updates".
type MatchRecord struct {
	MatchID          uint64
	Mode             uint8
	Players          []uuid.UUID // index == player id, as in match.Result
	EliminationOrder []int       // player ids, survivor last
	ConcludedAt      time.Time
	Ranked           bool // only Ranked-2 matches move elo
}

// BanEntry is one row of the ban table, keyed by subject (username or
// dotted-quad IP) in LoadBans' returned map.
type BanEntry struct {
	Until  time.Time
	Reason string
}

// Store is the full persistence contract of spec.md §6. Every method
// takes a context so the reference Postgres adapter (or any future
// one) can honor cancellation and query timeouts; the in-memory core
// (registry, matchmaker, session) never calls Store directly — only
// internal/server (dispatch handlers and admin console) and cmd/server's
// match-result sink do.
type Store interface {
	// Authenticate verifies creds against the stored second-pass hash.
	// A nil,nil return means bad credentials (spec: "user_data_or_nil");
	// a non-nil error means the store itself failed. Ban checks are made
	// by internal/server before this call; the postgres implementation
	// does not use clientIP.
	Authenticate(ctx context.Context, creds Credentials, clientIP string) (*AuthenticatedUser, error)

	// RegisterAccount creates a new account with a freshly chosen
	// server-side salt.
	RegisterAccount(ctx context.Context, creds Credentials, clientIP string) (RegisterOutcome, *AuthenticatedUser, error)

	// ResolveUsername looks up a user id by username, for social
	// commands that name their target by username on the wire (spec
	// §4.1 UserEntry is the read-side shape; the write-side commands
	// carry a bare username string instead).
	ResolveUsername(ctx context.Context, username string) (uuid.UUID, bool, error)

	// RecordMatch appends rec to match history and, for ranked
	// matches, updates every participant's Ranked-2 elo in the same
	// transaction (spec.md Open Question "Ranked elo updates").
	RecordMatch(ctx context.Context, rec MatchRecord) error

	BanUser(ctx context.Context, userID uuid.UUID, until time.Time, reason string) error
	UnbanUser(ctx context.Context, userID uuid.UUID) error
	BanIP(ctx context.Context, ip string, until time.Time, reason string) error
	UnbanIP(ctx context.Context, ip string) error
	// LoadBans returns every currently-active ban keyed by subject
	// (username for user bans, dotted-quad for IP bans), for
	// internal/server to build its in-memory enforcement tables at
	// startup and on refresh.
	LoadBans(ctx context.Context) (users map[string]BanEntry, ips map[string]BanEntry, err error)

	SendFriendRequest(ctx context.Context, from, to uuid.UUID) error
	RespondFriendRequest(ctx context.Context, userID, from uuid.UUID, accept bool) error
	RemoveFriend(ctx context.Context, userID, friend uuid.UUID) error
	BlockUser(ctx context.Context, userID, target uuid.UUID) error
	UnblockUser(ctx context.Context, userID, target uuid.UUID) error

	FetchFriends(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error)
	FetchFriendRequests(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error)
	FetchBlocks(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error)

	FetchMatchHistory(ctx context.Context, userID uuid.UUID, mode uint8) ([]wire.MatchResultRow, error)
	FetchReplay(ctx context.Context, matchID uint64) (*wire.MatchReplay, error)
}
