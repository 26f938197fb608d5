package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Per-direction payload ceilings (spec §4.1). MatchReplay is the single
// client-bound carve-out above the normal 8000-byte ceiling.
const (
	MaxServerBoundPayload = 3000
	MaxClientBoundPayload = 8000
	MaxMatchReplayPayload = 65535
)

const headerSize = 5 // 1 byte kind + 4 byte big-endian length

// sizeSpec describes a kind's expected payload size: either exact or a
// minimum that the declared length must meet or exceed.
type sizeSpec struct {
	exact int // -1 means "use min instead"
	min   int
}

func exactly(n int) sizeSpec { return sizeSpec{exact: n, min: -1} }
func atLeast(n int) sizeSpec { return sizeSpec{exact: -1, min: n} }

func (s sizeSpec) accepts(n int) bool {
	if s.exact >= 0 {
		return n == s.exact
	}
	return n >= s.min
}

// commandWireSize is the fixed size of an encoded Command (spec §4.1):
// 5 single-byte fields then a 16-bit big-endian sequence number.
const commandWireSize = 5 + 2

// clientSizes gives each server-bound kind's payload size rule.
var clientSizes = map[ClientKind]sizeSpec{
	KLoginRequest:        atLeast(1),
	KRegistrationRequest: atLeast(1),
	KFetchFriends:        exactly(0),
	KFetchFriendRequests: exactly(0),
	KFetchBlocks:         exactly(0),
	KSendFriendRequest:   atLeast(1),
	KRespondFriendRequest: atLeast(2),
	KRemoveFriend:        atLeast(1),
	KBlockUser:           atLeast(1),
	KUnblockUser:         atLeast(1),
	KQueueMatch:          exactly(1),
	KCancelMatch:         exactly(1),
	KForfeitMatch:        exactly(0),
	KSendCommand:         exactly(commandWireSize),
	KDirectTextMessage:   atLeast(1),
	KMatchTextMessage:    atLeast(1),
	KFetchMatchHistory:   exactly(1),
	KMatchReplayRequest:  atLeast(8),
	KPing:                exactly(0),
	KPingResponse:        exactly(0),
}

// serverSizes gives each client-bound kind's payload size rule (exact
// or minimum); session.writeFrame checks every outbound frame against
// it before writing.
var serverSizes = map[ServerKind]sizeSpec{
	SUnauthorized:         exactly(0),
	SGoodAuth:             atLeast(0),
	SBadAuth:              exactly(1),
	SGoodRegistration:     exactly(0),
	SBadRegistration:      exactly(1),
	SFriendList:           atLeast(0),
	SFriendRequestList:    atLeast(0),
	SBlockList:            atLeast(0),
	SNotifyFriendRequest:  atLeast(1),
	SNotifyFriendAccepted: atLeast(1),
	SNotifyFriendRemoved:  atLeast(1),
	SNotifyBlocked:        atLeast(1),
	SNotifyUnblocked:      atLeast(1),
	SQueueDropped:         exactly(0),
	SBadQueue:             exactly(0),
	SBadCancel:            exactly(0),
	SMatchStarting:        exactly(1),
	SStaticMatchData:      atLeast(1),
	SPlayerView:           atLeast(7),
	SFailedMove:           exactly(0),
	SStaleMove:            exactly(0),
	SEliminated:           exactly(0),
	STimedOut:             exactly(0),
	SVictory:              exactly(0),
	SGameEnded:            exactly(0),
	SPing:                 exactly(0),
	SPingResponse:         exactly(0),
	SPingTimeout:          exactly(0),
	SRateLimited:          exactly(0),
	SBanned:               atLeast(9),
	SServerFull:           exactly(0),
	SMatchHistory:         atLeast(0),
	SMatchReplay:          atLeast(22),
	SNoReplay:             exactly(0),
	SMatchInProgress:      exactly(0),
	SNoMatchFound:         exactly(0),
	SBadMessage:           atLeast(0),
	SMatchCreationError:   exactly(0),
	SDirectTextMessage:    atLeast(16),
	SMatchTextMessage:     atLeast(16),
}

// Header is the fixed frame prefix: a 1-byte kind and a 4-byte big-endian
// payload length.
type Header struct {
	Kind   byte
	Length uint32
}

// ReadHeader reads one frame header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [headerSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("reading frame header: %w", err)
	}
	return Header{
		Kind:   buf[0],
		Length: binary.BigEndian.Uint32(buf[1:]),
	}, nil
}

// WriteHeader writes a frame header to w.
func WriteHeader(w io.Writer, kind byte, length uint32) error {
	var buf [headerSize]byte
	buf[0] = kind
	binary.BigEndian.PutUint32(buf[1:], length)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	return nil
}

// ValidateClientFrame checks a server-bound header against the per-kind
// size rule and the server-bound payload ceiling, before the body is read.
func ValidateClientFrame(h Header) (ClientKind, error) {
	kind := ClientKind(h.Kind)
	if !kind.Valid() {
		return 0, fmt.Errorf("unknown server-bound kind %d", h.Kind)
	}
	if h.Length > MaxServerBoundPayload {
		return 0, fmt.Errorf("payload length %d exceeds server-bound max %d", h.Length, MaxServerBoundPayload)
	}
	spec, ok := clientSizes[kind]
	if !ok || !spec.accepts(int(h.Length)) {
		return 0, fmt.Errorf("kind %d: payload length %d rejected by size rule", h.Kind, h.Length)
	}
	return kind, nil
}

// ValidateServerFrame checks a client-bound header, applying the
// MatchReplay carve-out to the normal client-bound ceiling.
func ValidateServerFrame(h Header) (ServerKind, error) {
	kind := ServerKind(h.Kind)
	if !kind.Valid() {
		return 0, fmt.Errorf("unknown client-bound kind %d", h.Kind)
	}
	max := MaxClientBoundPayload
	if kind == SMatchReplay {
		max = MaxMatchReplayPayload
	}
	if int(h.Length) > max {
		return 0, fmt.Errorf("payload length %d exceeds client-bound max %d", h.Length, max)
	}
	spec, ok := serverSizes[kind]
	if !ok || !spec.accepts(int(h.Length)) {
		return 0, fmt.Errorf("kind %d: payload length %d rejected by size rule", h.Kind, h.Length)
	}
	return kind, nil
}

// ReadClientFrame reads and validates one server-bound frame from r,
// returning its kind and raw payload bytes.
func ReadClientFrame(r io.Reader) (ClientKind, []byte, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return 0, nil, err
	}
	kind, err := ValidateClientFrame(h)
	if err != nil {
		return 0, nil, err
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("reading payload for kind %d: %w", h.Kind, err)
	}
	return kind, payload, nil
}

// WriteServerFrame validates and writes one client-bound frame to w.
func WriteServerFrame(w io.Writer, kind ServerKind, payload []byte) error {
	h := Header{Kind: byte(kind), Length: uint32(len(payload))}
	if _, err := ValidateServerFrame(h); err != nil {
		return err
	}
	if err := WriteHeader(w, h.Kind, h.Length); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing payload for kind %d: %w", kind, err)
	}
	return nil
}
