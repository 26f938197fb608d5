package server

import (
	"context"
	"encoding/binary"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tankwar/server/internal/wire"
)

// dispatchSocial implements spec §4.7's social-kind routing ("hand to
// the store or to the user registry"): friend/block graph mutation and
// the fetch-style history/replay reads.
func (d *dispatcher) dispatchSocial(ctx context.Context, kind wire.ClientKind, payload []byte) {
	switch kind {
	case wire.KFetchFriends:
		d.replyUserList(ctx, wire.SFriendList, d.srv.st.FetchFriends)
	case wire.KFetchFriendRequests:
		d.replyUserList(ctx, wire.SFriendRequestList, d.srv.st.FetchFriendRequests)
	case wire.KFetchBlocks:
		d.replyUserList(ctx, wire.SBlockList, d.srv.st.FetchBlocks)
	case wire.KSendFriendRequest:
		d.handleSendFriendRequest(ctx, payload)
	case wire.KRespondFriendRequest:
		d.handleRespondFriendRequest(ctx, payload)
	case wire.KRemoveFriend:
		d.handleByTargetUsername(ctx, payload, d.srv.st.RemoveFriend)
	case wire.KBlockUser:
		d.handleByTargetUsername(ctx, payload, d.srv.st.BlockUser)
	case wire.KUnblockUser:
		d.handleByTargetUsername(ctx, payload, d.srv.st.UnblockUser)
	case wire.KDirectTextMessage:
		d.handleDirectTextMessage(payload)
	case wire.KFetchMatchHistory:
		d.handleFetchMatchHistory(ctx, payload)
	case wire.KMatchReplayRequest:
		d.handleMatchReplayRequest(ctx, payload)
	}
}

func (d *dispatcher) replyUserList(ctx context.Context, kind wire.ServerKind, fetch func(context.Context, uuid.UUID) ([]wire.UserEntry, error)) {
	entries, err := fetch(ctx, d.userID)
	if err != nil {
		slog.Error("fetching user list failed", "kind", kind, "error", err)
		return
	}
	b, err := wire.EncodeUserList(entries)
	if err != nil {
		slog.Error("encoding user list failed", "kind", kind, "error", err)
		return
	}
	d.sess.Deliver(kind, b)
}

func (d *dispatcher) resolveTarget(ctx context.Context, name string) (uuid.UUID, bool) {
	if !wire.ValidUsername(name) {
		return uuid.UUID{}, false
	}
	id, ok, err := d.srv.st.ResolveUsername(ctx, name)
	if err != nil {
		slog.Error("resolving username failed", "username", name, "error", err)
		return uuid.UUID{}, false
	}
	return id, ok
}

func (d *dispatcher) handleSendFriendRequest(ctx context.Context, payload []byte) {
	target, ok := d.resolveTarget(ctx, string(payload))
	if !ok {
		return
	}
	if err := d.srv.st.SendFriendRequest(ctx, d.userID, target); err != nil {
		slog.Error("send friend request failed", "error", err)
		return
	}
	if sink := d.srv.sinkFor(target); sink != nil {
		sink.Deliver(wire.SNotifyFriendRequest, d.userID[:])
	}
}

func (d *dispatcher) handleRespondFriendRequest(ctx context.Context, payload []byte) {
	if len(payload) < 2 {
		return
	}
	accept := payload[len(payload)-1] != 0
	from, ok := d.resolveTarget(ctx, string(payload[:len(payload)-1]))
	if !ok {
		return
	}
	if err := d.srv.st.RespondFriendRequest(ctx, d.userID, from, accept); err != nil {
		slog.Error("respond friend request failed", "error", err)
		return
	}
	if accept {
		if sink := d.srv.sinkFor(from); sink != nil {
			sink.Deliver(wire.SNotifyFriendAccepted, d.userID[:])
		}
	}
}

func (d *dispatcher) handleByTargetUsername(ctx context.Context, payload []byte, op func(context.Context, uuid.UUID, uuid.UUID) error) {
	target, ok := d.resolveTarget(ctx, string(payload))
	if !ok {
		return
	}
	if err := op(ctx, d.userID, target); err != nil {
		slog.Error("social op failed", "error", err)
	}
}

func (d *dispatcher) handleDirectTextMessage(payload []byte) {
	if len(payload) < 16 {
		return
	}
	var target uuid.UUID
	copy(target[:], payload[:16])
	text := string(payload[16:])

	relay := wire.EncodeChatRelay(wire.ChatRelay{Sender: d.userID, Text: text})
	if sink := d.srv.sinkFor(target); sink != nil {
		sink.Deliver(wire.SDirectTextMessage, relay)
	}
}

func (d *dispatcher) handleFetchMatchHistory(ctx context.Context, payload []byte) {
	if len(payload) < 1 {
		return
	}
	mode := payload[0]
	rows, err := d.srv.st.FetchMatchHistory(ctx, d.userID, mode)
	if err != nil {
		slog.Error("fetching match history failed", "error", err)
		return
	}
	d.sess.Deliver(wire.SMatchHistory, wire.EncodeMatchHistory(rows))
}

func (d *dispatcher) handleMatchReplayRequest(ctx context.Context, payload []byte) {
	if len(payload) < 8 {
		return
	}
	matchID := binary.BigEndian.Uint64(payload[:8])
	replay, err := d.srv.st.FetchReplay(ctx, matchID)
	if err != nil {
		slog.Error("fetching replay failed", "matchID", matchID, "error", err)
		return
	}
	if replay == nil {
		d.sess.Deliver(wire.SNoReplay, nil)
		return
	}
	b, err := wire.EncodeMatchReplay(*replay)
	if err != nil {
		slog.Error("encoding replay failed", "matchID", matchID, "error", err)
		return
	}
	d.sess.Deliver(wire.SMatchReplay, b)
}
