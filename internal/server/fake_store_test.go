package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tankwar/server/internal/store"
	"github.com/tankwar/server/internal/wire"
)

// fakeStore is a minimal in-memory store.Store stand-in for dispatcher
// tests — it only implements the behavior each test actually exercises,
// following the matchmaker package's own fakeRegistry/fakeSink style.
type fakeStore struct {
	users map[string]uuid.UUID // username -> id
	elo   map[uuid.UUID][store.NumModes]int32

	friends       map[uuid.UUID][]wire.UserEntry
	friendReqs    map[uuid.UUID][]wire.UserEntry
	blocks        map[uuid.UUID][]wire.UserEntry
	sentRequests  []struct{ from, to uuid.UUID }
	matchHistory  map[uuid.UUID][]wire.MatchResultRow
	replays       map[uint64]*wire.MatchReplay
	bannedUsers   map[string]store.BanEntry
	bannedIPs     map[string]store.BanEntry
	authErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[string]uuid.UUID),
		elo:          make(map[uuid.UUID][store.NumModes]int32),
		friends:      make(map[uuid.UUID][]wire.UserEntry),
		friendReqs:   make(map[uuid.UUID][]wire.UserEntry),
		blocks:       make(map[uuid.UUID][]wire.UserEntry),
		matchHistory: make(map[uuid.UUID][]wire.MatchResultRow),
		replays:      make(map[uint64]*wire.MatchReplay),
		bannedUsers:  make(map[string]store.BanEntry),
		bannedIPs:    make(map[string]store.BanEntry),
	}
}

func (f *fakeStore) Authenticate(ctx context.Context, creds store.Credentials, clientIP string) (*store.AuthenticatedUser, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	id, ok := f.users[creds.Username]
	if !ok {
		return nil, nil
	}
	return &store.AuthenticatedUser{UserID: id, Elo: f.elo[id]}, nil
}

func (f *fakeStore) RegisterAccount(ctx context.Context, creds store.Credentials, clientIP string) (store.RegisterOutcome, *store.AuthenticatedUser, error) {
	if _, taken := f.users[creds.Username]; taken {
		return store.RegisterUsernameTaken, nil, nil
	}
	id := uuid.New()
	f.users[creds.Username] = id
	return store.RegisterOK, &store.AuthenticatedUser{UserID: id}, nil
}

func (f *fakeStore) ResolveUsername(ctx context.Context, username string) (uuid.UUID, bool, error) {
	id, ok := f.users[username]
	return id, ok, nil
}

func (f *fakeStore) RecordMatch(ctx context.Context, rec store.MatchRecord) error { return nil }

func (f *fakeStore) BanUser(ctx context.Context, userID uuid.UUID, until time.Time, reason string) error {
	return nil
}
func (f *fakeStore) UnbanUser(ctx context.Context, userID uuid.UUID) error { return nil }
func (f *fakeStore) BanIP(ctx context.Context, ip string, until time.Time, reason string) error {
	return nil
}
func (f *fakeStore) UnbanIP(ctx context.Context, ip string) error { return nil }

func (f *fakeStore) LoadBans(ctx context.Context) (map[string]store.BanEntry, map[string]store.BanEntry, error) {
	return f.bannedUsers, f.bannedIPs, nil
}

func (f *fakeStore) SendFriendRequest(ctx context.Context, from, to uuid.UUID) error {
	f.sentRequests = append(f.sentRequests, struct{ from, to uuid.UUID }{from, to})
	return nil
}
func (f *fakeStore) RespondFriendRequest(ctx context.Context, userID, from uuid.UUID, accept bool) error {
	return nil
}
func (f *fakeStore) RemoveFriend(ctx context.Context, userID, friend uuid.UUID) error { return nil }
func (f *fakeStore) BlockUser(ctx context.Context, userID, target uuid.UUID) error    { return nil }
func (f *fakeStore) UnblockUser(ctx context.Context, userID, target uuid.UUID) error  { return nil }

func (f *fakeStore) FetchFriends(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error) {
	return f.friends[userID], nil
}
func (f *fakeStore) FetchFriendRequests(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error) {
	return f.friendReqs[userID], nil
}
func (f *fakeStore) FetchBlocks(ctx context.Context, userID uuid.UUID) ([]wire.UserEntry, error) {
	return f.blocks[userID], nil
}

func (f *fakeStore) FetchMatchHistory(ctx context.Context, userID uuid.UUID, mode uint8) ([]wire.MatchResultRow, error) {
	return f.matchHistory[userID], nil
}
func (f *fakeStore) FetchReplay(ctx context.Context, matchID uint64) (*wire.MatchReplay, error) {
	return f.replays[matchID], nil
}

var _ store.Store = (*fakeStore)(nil)
