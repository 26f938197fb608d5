package server

import (
	"context"
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
	"github.com/tankwar/server/internal/wire"
)

// socialHarness shares one Server/registry/store across two logged-in
// dispatchers, so social notifications can be observed landing on a
// second live session the way the matchmaker package's fakeSink tests
// observe cross-entity delivery.
type socialHarness struct {
	srv        *Server
	store      *fakeStore
	alice, bob *dispatcher
	aliceConn  net.Conn
	bobConn    net.Conn
	aliceID    uuid.UUID
	bobID      uuid.UUID
}

func newSocialHarness(t *testing.T) *socialHarness {
	t.Helper()
	reg := registry.New()
	mm := matchmaker.New(reg, map[uint8]matchmaker.Strategy{})
	st := newFakeStore()
	srv := New(config.Default(), st, reg, mm, nil)

	mkSession := func(id uint64, username string) (*dispatcher, net.Conn, uuid.UUID) {
		serverConn, client := net.Pipe()
		t.Cleanup(func() { client.Close() })
		sess := session.New(serverConn, id, session.Config{})
		d := &dispatcher{srv: srv, sess: sess, ip: "127.0.0.1"}
		sess.SetMessageHandler(d.onMessage, d.onClose)
		go sess.Start()
		t.Cleanup(sess.Close)

		userID := uuid.New()
		st.users[username] = userID
		reg.OnLogin(userID, username, []int32{1000, 1000, 1000, 1000}, sess)
		d.authenticated = true
		d.userID = userID
		return d, client, userID
	}

	alice, aliceConn, aliceID := mkSession(1, "alice")
	bob, bobConn, bobID := mkSession(2, "bob")

	return &socialHarness{
		srv: srv, store: st,
		alice: alice, bob: bob,
		aliceConn: aliceConn, bobConn: bobConn,
		aliceID: aliceID, bobID: bobID,
	}
}

func TestSendFriendRequest_DeliversNotificationToLiveRecipient(t *testing.T) {
	h := newSocialHarness(t)

	h.alice.dispatchSocial(context.Background(), wire.KSendFriendRequest, []byte("bob"))

	kind, body := readFrame(t, h.bobConn, time.Second)
	assert.Equal(t, wire.SNotifyFriendRequest, kind)
	require.Len(t, body, 16)
	var sender uuid.UUID
	copy(sender[:], body)
	assert.Equal(t, h.aliceID, sender)

	require.Len(t, h.store.sentRequests, 1)
	assert.Equal(t, h.aliceID, h.store.sentRequests[0].from)
	assert.Equal(t, h.bobID, h.store.sentRequests[0].to)
}

func TestSendFriendRequest_UnknownTargetIsSilentlyDropped(t *testing.T) {
	h := newSocialHarness(t)

	h.alice.dispatchSocial(context.Background(), wire.KSendFriendRequest, []byte("ghost"))

	assert.Len(t, h.store.sentRequests, 0)
}

func TestRespondFriendRequest_AcceptNotifiesRequester(t *testing.T) {
	h := newSocialHarness(t)

	payload := append([]byte("alice"), 1)
	h.bob.dispatchSocial(context.Background(), wire.KRespondFriendRequest, payload)

	kind, body := readFrame(t, h.aliceConn, time.Second)
	assert.Equal(t, wire.SNotifyFriendAccepted, kind)
	var sender uuid.UUID
	copy(sender[:], body)
	assert.Equal(t, h.bobID, sender)
}

func TestDirectTextMessage_RelaysToRecipient(t *testing.T) {
	h := newSocialHarness(t)

	payload := append(append([]byte{}, h.bobID[:]...), []byte("hello bob")...)
	h.alice.dispatchSocial(context.Background(), wire.KDirectTextMessage, payload)

	kind, body := readFrame(t, h.bobConn, time.Second)
	assert.Equal(t, wire.SDirectTextMessage, kind)
	relay, err := wire.DecodeChatRelay(body)
	require.NoError(t, err)
	assert.Equal(t, h.aliceID, relay.Sender)
	assert.Equal(t, "hello bob", relay.Text)
}

func TestFetchFriends_RepliesWithStoredList(t *testing.T) {
	h := newSocialHarness(t)
	h.store.friends[h.aliceID] = []wire.UserEntry{{ID: h.bobID, Username: "bob"}}

	h.alice.dispatchSocial(context.Background(), wire.KFetchFriends, nil)

	kind, body := readFrame(t, h.aliceConn, time.Second)
	require.Equal(t, wire.SFriendList, kind)
	friends, err := wire.DecodeUserList(body)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].Username)
}

func TestFetchMatchHistory_RepliesWithStoredRows(t *testing.T) {
	h := newSocialHarness(t)
	h.store.matchHistory[h.aliceID] = []wire.MatchResultRow{
		{MatchID: 42, EpochSec: 1000, Placement: 1, EloDelta: 12},
	}

	h.alice.dispatchSocial(context.Background(), wire.KFetchMatchHistory, []byte{0})

	kind, body := readFrame(t, h.aliceConn, time.Second)
	require.Equal(t, wire.SMatchHistory, kind)
	rows, err := wire.DecodeMatchHistory(body)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(42), rows[0].MatchID)
}

func TestMatchReplayRequest_NoReplayFound(t *testing.T) {
	h := newSocialHarness(t)

	payload := make([]byte, 8)
	h.alice.dispatchSocial(context.Background(), wire.KMatchReplayRequest, payload)

	kind, _ := readFrame(t, h.aliceConn, time.Second)
	assert.Equal(t, wire.SNoReplay, kind)
}
