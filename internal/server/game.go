package server

import (
	"github.com/tankwar/server/internal/wire"
)

// dispatchGame implements spec §4.7's game-kind routing ("hand to the
// matchmaker"): queue admission, cancellation, forfeit, in-match
// commands, and match-scoped chat.
func (d *dispatcher) dispatchGame(kind wire.ClientKind, payload []byte) {
	switch kind {
	case wire.KQueueMatch:
		d.handleQueueMatch(payload)
	case wire.KCancelMatch:
		d.handleCancelMatch()
	case wire.KForfeitMatch:
		d.srv.mm.Forfeit(d.userID)
	case wire.KSendCommand:
		d.handleSendCommand(payload)
	case wire.KMatchTextMessage:
		d.handleMatchTextMessage(payload)
	}
}

func (d *dispatcher) handleQueueMatch(payload []byte) {
	if len(payload) < 1 {
		return
	}
	mode := payload[0]

	u, ok := d.srv.reg.Lookup(d.userID)
	if !ok {
		return
	}
	var elo int32
	if int(mode) < len(u.Elo) {
		elo = u.Elo[mode]
	}

	if !d.srv.mm.Enqueue(d.userID, u.Username, d.sess, elo, mode) {
		d.sess.Deliver(wire.SBadQueue, nil)
	}
}

func (d *dispatcher) handleCancelMatch() {
	ok, badCancel := d.srv.mm.Cancel(d.userID, true)
	if badCancel {
		d.sess.Deliver(wire.SBadCancel, nil)
		return
	}
	if !ok {
		d.sess.Deliver(wire.SBadCancel, nil)
	}
}

func (d *dispatcher) handleSendCommand(payload []byte) {
	cmd, err := wire.DecodeCommand(payload)
	if err != nil {
		d.sess.Deliver(wire.SBadMessage, nil)
		return
	}
	if !d.srv.mm.RouteToMatch(d.userID, cmd, d.sess) {
		d.sess.Deliver(wire.SNoMatchFound, nil)
	}
}

func (d *dispatcher) handleMatchTextMessage(payload []byte) {
	text := string(payload)
	if !d.srv.mm.SendMatchMessage(d.userID, text, d.srv.sinkForMatchmaker) {
		d.sess.Deliver(wire.SNoMatchFound, nil)
	}
}
