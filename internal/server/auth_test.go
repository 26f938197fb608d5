package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tankwar/server/internal/config"
	"github.com/tankwar/server/internal/matchmaker"
	"github.com/tankwar/server/internal/registry"
	"github.com/tankwar/server/internal/session"
	"github.com/tankwar/server/internal/store"
	"github.com/tankwar/server/internal/wire"
)

// testHarness wires a real dispatcher over a real *session.Session
// (net.Pipe()-backed, following internal/session's own pipeSession
// pattern) to a real UserRegistry/Matchmaker and a fakeStore, so every
// dispatch test exercises the actual routing and delivery path instead
// of a mocked one.
type testHarness struct {
	srv    *Server
	d      *dispatcher
	client net.Conn
	store  *fakeStore
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	serverConn, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	reg := registry.New()
	mm := matchmaker.New(reg, map[uint8]matchmaker.Strategy{})
	st := newFakeStore()

	srv := New(config.Default(), st, reg, mm, nil)

	sess := session.New(serverConn, 1, session.Config{})
	d := &dispatcher{srv: srv, sess: sess, ip: "203.0.113.7"}
	sess.SetMessageHandler(d.onMessage, d.onClose)
	go sess.Start()
	t.Cleanup(sess.Close)

	return &testHarness{srv: srv, d: d, client: client, store: st}
}

func readFrame(t *testing.T, conn net.Conn, timeout time.Duration) (wire.ServerKind, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	h, err := wire.ReadHeader(conn)
	require.NoError(t, err)
	payload := make([]byte, h.Length)
	_, err = io.ReadFull(conn, payload)
	require.NoError(t, err)
	return wire.ServerKind(h.Kind), payload
}

func TestHandleLogin_UnknownUsernameIsBadCredentials(t *testing.T) {
	h := newTestHarness(t)

	payload, err := wire.EncodeLoginRequest(wire.Credentials{Username: "ghost", ClientHash: [32]byte{1}})
	require.NoError(t, err)

	h.d.handleLogin(context.Background(), payload)

	kind, body := readFrame(t, h.client, time.Second)
	assert.Equal(t, wire.SBadAuth, kind)
	require.Len(t, body, 1)
	assert.Equal(t, byte(wire.AuthReasonBadCredentials), body[0])
	assert.False(t, h.d.authenticated)
}

func TestHandleLogin_SuccessDeliversGoodAuthAndSocialLists(t *testing.T) {
	h := newTestHarness(t)

	userID := uuid.New()
	h.store.users["alice"] = userID
	h.store.elo[userID] = [4]int32{1200, 1200, 1200, 1200}
	h.store.friends[userID] = []wire.UserEntry{{ID: uuid.New(), Username: "bob"}}

	payload, err := wire.EncodeLoginRequest(wire.Credentials{Username: "alice", ClientHash: [32]byte{2}})
	require.NoError(t, err)

	h.d.handleLogin(context.Background(), payload)

	kind, body := readFrame(t, h.client, time.Second)
	require.Equal(t, wire.SGoodAuth, kind)
	elo, err := wire.DecodeEloArray(body)
	require.NoError(t, err)
	assert.Equal(t, []int32{1200, 1200, 1200, 1200}, elo)

	kind, body = readFrame(t, h.client, time.Second)
	require.Equal(t, wire.SFriendList, kind)
	friends, err := wire.DecodeUserList(body)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)

	kind, _ = readFrame(t, h.client, time.Second)
	assert.Equal(t, wire.SBlockList, kind)

	kind, _ = readFrame(t, h.client, time.Second)
	assert.Equal(t, wire.SFriendRequestList, kind)

	assert.True(t, h.d.authenticated)
	assert.Equal(t, userID, h.d.userID)

	u, ok := h.srv.reg.Lookup(userID)
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)
}

func TestHandleLogin_BannedIPIsRejectedBeforeStore(t *testing.T) {
	h := newTestHarness(t)
	h.store.users["alice"] = uuid.New()

	h.srv.banMu.Lock()
	h.srv.ipBans["203.0.113.7"] = store.BanEntry{Until: time.Now().Add(time.Hour), Reason: "test"}
	h.srv.banMu.Unlock()

	payload, err := wire.EncodeLoginRequest(wire.Credentials{Username: "alice", ClientHash: [32]byte{3}})
	require.NoError(t, err)

	h.d.handleLogin(context.Background(), payload)

	kind, body := readFrame(t, h.client, time.Second)
	assert.Equal(t, wire.SBanned, kind)
	assert.GreaterOrEqual(t, len(body), 9)
}

func TestHandleLogin_AlreadyAuthenticatedIsRejected(t *testing.T) {
	h := newTestHarness(t)
	h.d.authenticated = true

	payload, err := wire.EncodeLoginRequest(wire.Credentials{Username: "alice", ClientHash: [32]byte{4}})
	require.NoError(t, err)

	h.d.handleLogin(context.Background(), payload)

	kind, body := readFrame(t, h.client, time.Second)
	assert.Equal(t, wire.SBadAuth, kind)
	require.Len(t, body, 1)
	assert.Equal(t, byte(wire.AuthReasonServerError), body[0])
}

func TestHandleRegistration_UsernameTaken(t *testing.T) {
	h := newTestHarness(t)
	h.store.users["alice"] = uuid.New()

	payload, err := wire.EncodeRegistrationRequest(wire.Credentials{Username: "alice", ClientHash: [32]byte{5}})
	require.NoError(t, err)

	h.d.handleRegistration(context.Background(), payload)

	kind, body := readFrame(t, h.client, time.Second)
	assert.Equal(t, wire.SBadRegistration, kind)
	require.Len(t, body, 1)
	assert.Equal(t, byte(wire.RegReasonNotUnique), body[0])
	assert.False(t, h.d.authenticated)
}

func TestHandleRegistration_SuccessLogsInTheNewAccount(t *testing.T) {
	h := newTestHarness(t)

	payload, err := wire.EncodeRegistrationRequest(wire.Credentials{Username: "newbie", ClientHash: [32]byte{6}})
	require.NoError(t, err)

	h.d.handleRegistration(context.Background(), payload)

	kind, _ := readFrame(t, h.client, time.Second)
	require.Equal(t, wire.SGoodRegistration, kind)

	kind, _ = readFrame(t, h.client, time.Second)
	require.Equal(t, wire.SGoodAuth, kind)

	assert.True(t, h.d.authenticated)
	_, ok := h.store.users["newbie"]
	assert.True(t, ok)
}
