package wire

import (
	"encoding/binary"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// NoTankByte is the wire sentinel for "no tank" in a byte-sized tank-id
// field (PlayerView cell occupant, tank records use -1 in-process but are
// clamped to this sentinel on the wire).
const NoTankByte = 0xFF

// Command is the wire shape of one player-intended action (spec §4.1,
// §3). 5 single-byte fields then a 16-bit big-endian sequence number.
type Command struct {
	Sender    uint8
	Kind      CommandKind
	TankID    uint8 // or placement direction, for Place
	Payload1  uint8
	Payload2  uint8
	Seq       uint16
}

func EncodeCommand(c Command) []byte {
	buf := make([]byte, commandWireSize)
	buf[0] = c.Sender
	buf[1] = byte(c.Kind)
	buf[2] = c.TankID
	buf[3] = c.Payload1
	buf[4] = c.Payload2
	binary.BigEndian.PutUint16(buf[5:7], c.Seq)
	return buf
}

func DecodeCommand(b []byte) (Command, error) {
	if len(b) != commandWireSize {
		return Command{}, fmt.Errorf("command: expected %d bytes, got %d", commandWireSize, len(b))
	}
	return Command{
		Sender:   b[0],
		Kind:     CommandKind(b[1]),
		TankID:   b[2],
		Payload1: b[3],
		Payload2: b[4],
		Seq:      binary.BigEndian.Uint16(b[5:7]),
	}, nil
}

// CellView is one cell in a PlayerView's grid slice.
type CellView struct {
	Kind     uint8
	Occupant uint8
	Visible  bool
}

// TankView is one tank record in a PlayerView.
type TankView struct {
	X, Y       uint8
	Dir        uint8
	Barrel     uint8
	TankID     uint8
	Health     uint8
	AimFocused bool
	Loaded     bool
	Owner      uint8
}

// PlayerView is the per-player rendered snapshot (spec §3, §4.1).
type PlayerView struct {
	NTanks        uint8
	CurrentPlayer uint8
	W, H          uint8
	Fuel          uint8
	State         MatchState
	Cells         []CellView // length W*H, row-major
	Tanks         []TankView // length NTanks
	Clocks        []int64    // remaining clock per player, milliseconds
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func EncodePlayerView(v PlayerView) ([]byte, error) {
	if int(v.W)*int(v.H) != len(v.Cells) {
		return nil, fmt.Errorf("player view: W*H=%d but %d cells given", int(v.W)*int(v.H), len(v.Cells))
	}
	if int(v.NTanks) != len(v.Tanks) {
		return nil, fmt.Errorf("player view: NTanks=%d but %d tank records given", v.NTanks, len(v.Tanks))
	}

	size := 7 + len(v.Cells)*3 + len(v.Tanks)*9 + len(v.Clocks)*8
	buf := make([]byte, size)

	buf[0] = v.NTanks
	buf[1] = v.CurrentPlayer
	buf[2] = v.W
	buf[3] = v.H
	buf[4] = v.Fuel
	buf[5] = byte(v.State)
	buf[6] = uint8(len(v.Clocks))

	off := 7
	for _, c := range v.Cells {
		buf[off] = c.Kind
		buf[off+1] = c.Occupant
		buf[off+2] = boolByte(c.Visible)
		off += 3
	}
	for _, t := range v.Tanks {
		buf[off] = t.X
		buf[off+1] = t.Y
		buf[off+2] = t.Dir
		buf[off+3] = t.Barrel
		buf[off+4] = t.TankID
		buf[off+5] = t.Health
		buf[off+6] = boolByte(t.AimFocused)
		buf[off+7] = boolByte(t.Loaded)
		buf[off+8] = t.Owner
		off += 9
	}
	for _, ms := range v.Clocks {
		binary.BigEndian.PutUint64(buf[off:off+8], uint64(ms))
		off += 8
	}
	return buf, nil
}

func DecodePlayerView(b []byte) (PlayerView, error) {
	if len(b) < 7 {
		return PlayerView{}, fmt.Errorf("player view: short header")
	}
	v := PlayerView{
		NTanks:        b[0],
		CurrentPlayer: b[1],
		W:             b[2],
		H:             b[3],
		Fuel:          b[4],
		State:         MatchState(b[5]),
	}
	nTimers := int(b[6])
	off := 7

	nCells := int(v.W) * int(v.H)
	if len(b) < off+nCells*3 {
		return PlayerView{}, fmt.Errorf("player view: truncated cell section")
	}
	v.Cells = make([]CellView, nCells)
	for i := 0; i < nCells; i++ {
		v.Cells[i] = CellView{Kind: b[off], Occupant: b[off+1], Visible: b[off+2] != 0}
		off += 3
	}

	if len(b) < off+int(v.NTanks)*9 {
		return PlayerView{}, fmt.Errorf("player view: truncated tank section")
	}
	v.Tanks = make([]TankView, v.NTanks)
	for i := range v.Tanks {
		v.Tanks[i] = TankView{
			X: b[off], Y: b[off+1], Dir: b[off+2], Barrel: b[off+3],
			TankID: b[off+4], Health: b[off+5],
			AimFocused: b[off+6] != 0, Loaded: b[off+7] != 0, Owner: b[off+8],
		}
		off += 9
	}

	if len(b) < off+nTimers*8 {
		return PlayerView{}, fmt.Errorf("player view: truncated clock section")
	}
	v.Clocks = make([]int64, nTimers)
	for i := range v.Clocks {
		v.Clocks[i] = int64(binary.BigEndian.Uint64(b[off : off+8]))
		off += 8
	}

	return v, nil
}

// MaxUsernameLength is the wire ceiling on an encoded username (spec §4.1).
const MaxUsernameLength = 24

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidUsername reports whether name may legally appear on the wire.
func ValidUsername(name string) bool {
	return len(name) > 0 && len(name) <= MaxUsernameLength && usernamePattern.MatchString(name)
}

// UserEntry is one (uuid, username) pair as it appears in UserList and
// StaticMatchData frames.
type UserEntry struct {
	ID       uuid.UUID
	Username string
}

func EncodeUserEntry(u UserEntry) ([]byte, error) {
	if !ValidUsername(u.Username) {
		return nil, fmt.Errorf("invalid username %q", u.Username)
	}
	buf := make([]byte, 16+1+len(u.Username))
	copy(buf[:16], u.ID[:])
	buf[16] = byte(len(u.Username))
	copy(buf[17:], u.Username)
	return buf, nil
}

// DecodeUserEntry decodes one entry starting at b[0], returning it and the
// number of bytes consumed.
func DecodeUserEntry(b []byte) (UserEntry, int, error) {
	if len(b) < 17 {
		return UserEntry{}, 0, fmt.Errorf("user entry: short buffer")
	}
	var id uuid.UUID
	copy(id[:], b[:16])
	nameLen := int(b[16])
	if len(b) < 17+nameLen {
		return UserEntry{}, 0, fmt.Errorf("user entry: truncated username")
	}
	name := string(b[17 : 17+nameLen])
	if !ValidUsername(name) {
		return UserEntry{}, 0, fmt.Errorf("user entry: invalid username %q", name)
	}
	return UserEntry{ID: id, Username: name}, 17 + nameLen, nil
}

func EncodeUserList(users []UserEntry) ([]byte, error) {
	var out []byte
	for _, u := range users {
		b, err := EncodeUserEntry(u)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func DecodeUserList(b []byte) ([]UserEntry, error) {
	var out []UserEntry
	for len(b) > 0 {
		u, n, err := DecodeUserEntry(b)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
		b = b[n:]
	}
	return out, nil
}

// StaticMatchData is sent once at match start (spec §4.1).
type StaticMatchData struct {
	Players       []UserEntry
	PlacementMask []uint8 // length W*H, player id or NoPlayer sentinel
}

// NoPlayerByte is the wire sentinel in a placement mask for "unowned tile".
const NoPlayerByte = 0xFF

func EncodeStaticMatchData(d StaticMatchData) ([]byte, error) {
	if len(d.Players) > 255 {
		return nil, fmt.Errorf("static match data: too many players (%d)", len(d.Players))
	}
	out := []byte{byte(len(d.Players))}
	for _, p := range d.Players {
		b, err := EncodeUserEntry(p)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	out = append(out, d.PlacementMask...)
	return out, nil
}

func DecodeStaticMatchData(b []byte, w, h int) (StaticMatchData, error) {
	if len(b) < 1 {
		return StaticMatchData{}, fmt.Errorf("static match data: empty")
	}
	count := int(b[0])
	b = b[1:]
	players := make([]UserEntry, 0, count)
	for i := 0; i < count; i++ {
		u, n, err := DecodeUserEntry(b)
		if err != nil {
			return StaticMatchData{}, err
		}
		players = append(players, u)
		b = b[n:]
	}
	mask := w * h
	if len(b) < mask {
		return StaticMatchData{}, fmt.Errorf("static match data: truncated placement mask")
	}
	return StaticMatchData{Players: players, PlacementMask: append([]uint8(nil), b[:mask]...)}, nil
}

// MatchResultRow is one row of match history sent in a MatchHistory frame
// (spec §4.1).
type MatchResultRow struct {
	MatchID   uint64
	EpochSec  uint64
	Placement uint16
	EloDelta  int32
}

const matchResultRowSize = 8 + 8 + 2 + 4

func EncodeMatchResultRow(r MatchResultRow) []byte {
	buf := make([]byte, matchResultRowSize)
	binary.BigEndian.PutUint64(buf[0:8], r.MatchID)
	binary.BigEndian.PutUint64(buf[8:16], r.EpochSec)
	binary.BigEndian.PutUint16(buf[16:18], r.Placement)
	binary.BigEndian.PutUint32(buf[18:22], uint32(r.EloDelta))
	return buf
}

func DecodeMatchResultRow(b []byte) (MatchResultRow, error) {
	if len(b) != matchResultRowSize {
		return MatchResultRow{}, fmt.Errorf("match result row: expected %d bytes, got %d", matchResultRowSize, len(b))
	}
	return MatchResultRow{
		MatchID:   binary.BigEndian.Uint64(b[0:8]),
		EpochSec:  binary.BigEndian.Uint64(b[8:16]),
		Placement: binary.BigEndian.Uint16(b[16:18]),
		EloDelta:  int32(binary.BigEndian.Uint32(b[18:22])),
	}, nil
}

func EncodeMatchHistory(rows []MatchResultRow) []byte {
	out := make([]byte, 0, len(rows)*matchResultRowSize)
	for _, r := range rows {
		out = append(out, EncodeMatchResultRow(r)...)
	}
	return out
}

func DecodeMatchHistory(b []byte) ([]MatchResultRow, error) {
	if len(b)%matchResultRowSize != 0 {
		return nil, fmt.Errorf("match history: length %d not a multiple of row size %d", len(b), matchResultRowSize)
	}
	rows := make([]MatchResultRow, 0, len(b)/matchResultRowSize)
	for off := 0; off < len(b); off += matchResultRowSize {
		row, err := DecodeMatchResultRow(b[off : off+matchResultRowSize])
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MapDescriptor is the 5-byte (W,H,T,N,mode) header carried inside a
// MatchReplay frame.
type MapDescriptor struct {
	W, H, TanksPerPlayer, NumPlayers, Mode uint8
}

func (m MapDescriptor) encode() [5]byte {
	return [5]byte{m.W, m.H, m.TanksPerPlayer, m.NumPlayers, m.Mode}
}

func decodeMapDescriptor(b []byte) (MapDescriptor, error) {
	if len(b) < 5 {
		return MapDescriptor{}, fmt.Errorf("map descriptor: short buffer")
	}
	return MapDescriptor{W: b[0], H: b[1], TanksPerPlayer: b[2], NumPlayers: b[3], Mode: b[4]}, nil
}

// CommandHead is a Command without its sequence number, as stored in a
// replay's turn history (spec §4.1: "5-byte command heads").
type CommandHead struct {
	Sender, TankID, Payload1, Payload2 uint8
	Kind                               CommandKind
}

func (c CommandHead) encode() [5]byte {
	return [5]byte{c.Sender, byte(c.Kind), c.TankID, c.Payload1, c.Payload2}
}

func decodeCommandHead(b []byte) (CommandHead, error) {
	if len(b) < 5 {
		return CommandHead{}, fmt.Errorf("command head: short buffer")
	}
	return CommandHead{Sender: b[0], Kind: CommandKind(b[1]), TankID: b[2], Payload1: b[3], Payload2: b[4]}, nil
}

// MatchReplay is the full replay payload (spec §4.1). StartedAt/EndedAt
// are Unix milliseconds.
type MatchReplay struct {
	StartedAt, EndedAt int64
	MatchID            uint64
	Filename           string
	Map                MapDescriptor
	Players            []UserEntry
	Turns              []CommandHead
}

func EncodeMatchReplay(r MatchReplay) ([]byte, error) {
	if len(r.Players) > 255 {
		return nil, fmt.Errorf("match replay: too many players (%d)", len(r.Players))
	}
	if len(r.Filename) > 0xFFFF {
		return nil, fmt.Errorf("match replay: filename too long")
	}

	head := make([]byte, 4+2+8+8+8)
	binary.BigEndian.PutUint32(head[0:4], uint32(len(r.Turns)))
	binary.BigEndian.PutUint16(head[4:6], uint16(len(r.Filename)))
	binary.BigEndian.PutUint64(head[6:14], uint64(r.StartedAt))
	binary.BigEndian.PutUint64(head[14:22], uint64(r.EndedAt))
	binary.BigEndian.PutUint64(head[22:30], r.MatchID)

	out := append(head, []byte(r.Filename)...)
	mapBytes := r.Map.encode()
	out = append(out, mapBytes[:]...)

	for _, p := range r.Players {
		b, err := EncodeUserEntry(p)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	for _, t := range r.Turns {
		b := t.encode()
		out = append(out, b[:]...)
	}
	return out, nil
}

func DecodeMatchReplay(b []byte) (MatchReplay, error) {
	if len(b) < 30 {
		return MatchReplay{}, fmt.Errorf("match replay: short header")
	}
	turnCount := binary.BigEndian.Uint32(b[0:4])
	filenameLen := binary.BigEndian.Uint16(b[4:6])
	startedAt := binary.BigEndian.Uint64(b[6:14])
	endedAt := binary.BigEndian.Uint64(b[14:22])
	matchID := binary.BigEndian.Uint64(b[22:30])

	off := 30
	if len(b) < off+int(filenameLen) {
		return MatchReplay{}, fmt.Errorf("match replay: truncated filename")
	}
	filename := string(b[off : off+int(filenameLen)])
	off += int(filenameLen)

	mapDesc, err := decodeMapDescriptor(b[off:])
	if err != nil {
		return MatchReplay{}, err
	}
	off += 5

	players := make([]UserEntry, 0, mapDesc.NumPlayers)
	for i := 0; i < int(mapDesc.NumPlayers); i++ {
		u, n, err := DecodeUserEntry(b[off:])
		if err != nil {
			return MatchReplay{}, err
		}
		players = append(players, u)
		off += n
	}

	turns := make([]CommandHead, 0, turnCount)
	for i := uint32(0); i < turnCount; i++ {
		head, err := decodeCommandHead(b[off:])
		if err != nil {
			return MatchReplay{}, err
		}
		turns = append(turns, head)
		off += 5
	}

	return MatchReplay{
		StartedAt: int64(startedAt),
		EndedAt:   int64(endedAt),
		MatchID:   matchID,
		Filename:  filename,
		Map:       mapDesc,
		Players:   players,
		Turns:     turns,
	}, nil
}

// ChatRelay is the server's relay of a DirectTextMessage/MatchTextMessage
// frame to its recipient(s): the sender's uuid followed by the raw text
// bytes (no length prefix — the frame length already bounds it).
type ChatRelay struct {
	Sender uuid.UUID
	Text   string
}

func EncodeChatRelay(r ChatRelay) []byte {
	buf := make([]byte, 16+len(r.Text))
	copy(buf[:16], r.Sender[:])
	copy(buf[16:], r.Text)
	return buf
}

func DecodeChatRelay(b []byte) (ChatRelay, error) {
	if len(b) < 16 {
		return ChatRelay{}, fmt.Errorf("chat relay: short buffer")
	}
	var sender uuid.UUID
	copy(sender[:], b[:16])
	return ChatRelay{Sender: sender, Text: string(b[16:])}, nil
}
