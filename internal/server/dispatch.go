package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/tankwar/server/internal/wire"
)

// onMessage is the session's MessageHandler: the per-kind routing table
// of spec §4.7 ("Auth/Registration... Post-auth kinds... Social
// kinds... Game kinds").
func (d *dispatcher) onMessage(kind wire.ClientKind, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch kind {
	case wire.KLoginRequest:
		d.handleLogin(ctx, payload)
	case wire.KRegistrationRequest:
		d.handleRegistration(ctx, payload)
	case wire.KPing, wire.KPingResponse:
		// handled by internal/session before onMessage is ever invoked.
	default:
		if !d.authenticated {
			d.sess.Deliver(wire.SUnauthorized, nil)
			return
		}
		d.dispatchAuthenticated(ctx, kind, payload)
	}
}

func (d *dispatcher) dispatchAuthenticated(ctx context.Context, kind wire.ClientKind, payload []byte) {
	switch kind {
	case wire.KFetchFriends, wire.KFetchFriendRequests, wire.KFetchBlocks,
		wire.KSendFriendRequest, wire.KRespondFriendRequest, wire.KRemoveFriend,
		wire.KBlockUser, wire.KUnblockUser, wire.KDirectTextMessage,
		wire.KFetchMatchHistory, wire.KMatchReplayRequest:
		d.dispatchSocial(ctx, kind, payload)
	case wire.KQueueMatch, wire.KCancelMatch, wire.KForfeitMatch,
		wire.KSendCommand, wire.KMatchTextMessage:
		d.dispatchGame(kind, payload)
	default:
		slog.Warn("unhandled client kind", "kind", kind, "session", d.sess.ID())
	}
}

// onClose is the session's CloseHandler: it releases the user registry
// entry bound to this session's id (spec §4.6 "disconnect").
func (d *dispatcher) onClose() {
	d.srv.reg.Disconnect(d.sess.ID())
}
