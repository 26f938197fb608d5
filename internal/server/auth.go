package server

import (
	"context"
	"log/slog"

	"github.com/tankwar/server/internal/store"
	"github.com/tankwar/server/internal/wire"
)

// handleLogin implements spec §4.7's auth dispatch: reject if already
// authenticated, re-check the IP ban (it may have been applied after
// connect), hand to the store, and on success register the user and
// answer GoodAuth with its per-mode elo array plus its friend/block
// lists (spec §6's "(user_data, friends, blocks, session)" callback,
// split here into the store's Authenticate plus three follow-up fetches
// (friends, blocks, pending friend requests) since internal/store.Store
// keeps those as separate methods).
func (d *dispatcher) handleLogin(ctx context.Context, payload []byte) {
	if d.authenticated {
		d.sess.Deliver(wire.SBadAuth, []byte{byte(wire.AuthReasonServerError)})
		return
	}
	if _, banned := d.srv.ipBanned(d.ip); banned {
		d.sess.Deliver(wire.SBanned, banPayload())
		return
	}

	creds, err := wire.DecodeLoginRequest(payload)
	if err != nil {
		d.sess.Deliver(wire.SBadMessage, nil)
		return
	}
	if _, banned := d.srv.userBanned(creds.Username); banned {
		d.sess.Deliver(wire.SBanned, banPayload())
		return
	}

	user, err := d.srv.st.Authenticate(ctx, store.Credentials(creds), d.ip)
	if err != nil {
		slog.Error("authenticate failed", "username", creds.Username, "error", err)
		d.sess.Deliver(wire.SBadAuth, []byte{byte(wire.AuthReasonServerError)})
		return
	}
	if user == nil {
		d.sess.Deliver(wire.SBadAuth, []byte{byte(wire.AuthReasonBadCredentials)})
		return
	}

	d.completeLogin(ctx, *user, creds.Username)
}

func (d *dispatcher) completeLogin(ctx context.Context, user store.AuthenticatedUser, username string) {
	elo := append([]int32(nil), user.Elo[:]...)
	d.srv.reg.OnLogin(user.UserID, username, elo, d.sess)
	d.authenticated = true
	d.userID = user.UserID

	d.sess.Deliver(wire.SGoodAuth, wire.EncodeEloArray(elo))

	if friends, err := d.srv.st.FetchFriends(ctx, user.UserID); err == nil {
		if b, err := wire.EncodeUserList(friends); err == nil {
			d.sess.Deliver(wire.SFriendList, b)
		}
	}
	if blocks, err := d.srv.st.FetchBlocks(ctx, user.UserID); err == nil {
		if b, err := wire.EncodeUserList(blocks); err == nil {
			d.sess.Deliver(wire.SBlockList, b)
		}
	}
	if reqs, err := d.srv.st.FetchFriendRequests(ctx, user.UserID); err == nil {
		if b, err := wire.EncodeUserList(reqs); err == nil {
			d.sess.Deliver(wire.SFriendRequestList, b)
		}
	}
}

// handleRegistration implements spec §6's register_account contract:
// GoodRegistration or BadRegistration(reason).
func (d *dispatcher) handleRegistration(ctx context.Context, payload []byte) {
	if d.authenticated {
		d.sess.Deliver(wire.SBadRegistration, []byte{byte(wire.RegReasonCurrentlyAuthenticated)})
		return
	}
	if _, banned := d.srv.ipBanned(d.ip); banned {
		d.sess.Deliver(wire.SBanned, banPayload())
		return
	}

	creds, err := wire.DecodeRegistrationRequest(payload)
	if err != nil {
		d.sess.Deliver(wire.SBadRegistration, []byte{byte(wire.RegReasonInvalidUsername)})
		return
	}

	outcome, user, err := d.srv.st.RegisterAccount(ctx, store.Credentials(creds), d.ip)
	if err != nil {
		slog.Error("register failed", "username", creds.Username, "error", err)
		d.sess.Deliver(wire.SBadRegistration, []byte{byte(wire.RegReasonServerError)})
		return
	}
	switch outcome {
	case store.RegisterUsernameTaken:
		d.sess.Deliver(wire.SBadRegistration, []byte{byte(wire.RegReasonNotUnique)})
		return
	case store.RegisterInvalidUsername:
		d.sess.Deliver(wire.SBadRegistration, []byte{byte(wire.RegReasonInvalidUsername)})
		return
	}

	d.sess.Deliver(wire.SGoodRegistration, nil)
	d.completeLogin(ctx, *user, creds.Username)
}

// banPayload is a placeholder ban-detail payload (username/IP ban
// reasons are logged server-side; the wire contract only requires
// SBanned's minimum size, spec §4.1 serverSizes).
func banPayload() []byte {
	return make([]byte, 9)
}
