package match

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tankwar/server/internal/game"
	"github.com/tankwar/server/internal/wire"
)

type frame struct {
	kind    wire.ServerKind
	payload []byte
}

type fakeSink struct {
	mu     sync.Mutex
	frames []frame
}

func (s *fakeSink) Deliver(kind wire.ServerKind, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame{kind, payload})
}

func (s *fakeSink) last() (frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return frame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

func (s *fakeSink) lastOfKind(kind wire.ServerKind) (frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].kind == kind {
			return s.frames[i], true
		}
	}
	return frame{}, false
}

func twoPlayerDescriptor() game.MapDescriptor {
	const w, h = 4, 4
	terrain := make([]bool, w*h)
	mask := make([]uint8, w*h)
	for i := range mask {
		mask[i] = game.NoPlayer
	}
	mask[0+0*w] = 0
	mask[3+3*w] = 1
	return game.MapDescriptor{W: w, H: h, TanksPerPlayer: 1, NumPlayers: 2, Mode: 0, Terrain: terrain, PlacementMask: mask}
}

func newTestRuntime(t *testing.T, clock time.Duration) (*Runtime, []*fakeSink, []wire.UserEntry) {
	t.Helper()
	roster := []wire.UserEntry{
		{ID: uuid.New(), Username: "alice"},
		{ID: uuid.New(), Username: "bob"},
	}
	sinks := []*fakeSink{{}, {}}
	runtimeSinks := []Sink{sinks[0], sinks[1]}

	var mu sync.Mutex
	var results []Result
	rt, err := NewRuntime(1, twoPlayerDescriptor(), roster, runtimeSinks, clock, time.Second, DefaultMaxQueueSize, DefaultTurnFuel, func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, r)
	})
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return rt, sinks, roster
}

func placeCommand(dir uint8, x, y uint8, seq uint16) wire.Command {
	return wire.Command{Kind: wire.CmdPlace, TankID: dir, Payload1: x, Payload2: y, Seq: seq}
}

func TestStart_SendsStaticDataThenSetupView(t *testing.T) {
	rt, sinks, roster := newTestRuntime(t, time.Minute)
	rt.Start()

	_ = roster
	_, ok := sinks[0].lastOfKind(wire.SStaticMatchData)
	require.True(t, ok)

	f, ok := sinks[0].lastOfKind(wire.SPlayerView)
	require.True(t, ok)
	view, err := wire.DecodePlayerView(f.payload)
	require.NoError(t, err)
	assert.Equal(t, wire.StateSetup, view.State)
}

func TestPlacement_PromotesToPlayWhenAllPlaced(t *testing.T) {
	rt, sinks, roster := newTestRuntime(t, time.Minute)
	rt.Start()

	rt.ReceiveCommand(roster[0].ID, placeCommand(2, 0, 0, 1), sinks[0])
	rt.ReceiveCommand(roster[1].ID, placeCommand(6, 3, 3, 1), sinks[1])

	f, ok := sinks[0].lastOfKind(wire.SPlayerView)
	require.True(t, ok)
	view, err := wire.DecodePlayerView(f.payload)
	require.NoError(t, err)
	assert.Equal(t, wire.StatePlay, view.State)
	assert.EqualValues(t, DefaultTurnFuel, view.Fuel)
}

func TestPlacement_WrongMaskTileYieldsFailedMove(t *testing.T) {
	rt, sinks, roster := newTestRuntime(t, time.Minute)
	rt.Start()

	rt.ReceiveCommand(roster[0].ID, placeCommand(2, 3, 3, 1), sinks[0])

	_, ok := sinks[0].lastOfKind(wire.SFailedMove)
	assert.True(t, ok)
}

func TestTimeout_EliminatesCurrentPlayer(t *testing.T) {
	rt, sinks, roster := newTestRuntime(t, time.Minute)
	rt.Start()
	rt.ReceiveCommand(roster[0].ID, placeCommand(2, 0, 0, 1), sinks[0])
	rt.ReceiveCommand(roster[1].ID, placeCommand(6, 3, 3, 1), sinks[1])

	rt.mu.Lock()
	turnID := rt.turnID
	rt.mu.Unlock()
	rt.handleTimeout(turnID)

	_, ok := sinks[0].lastOfKind(wire.STimedOut)
	assert.True(t, ok)

	rt.mu.Lock()
	alive := rt.alive[0]
	rt.mu.Unlock()
	assert.False(t, alive)
}

func TestForfeit_ConcludesMatchWithSurvivorVictory(t *testing.T) {
	rt, sinks, roster := newTestRuntime(t, time.Minute)
	rt.Start()
	rt.ReceiveCommand(roster[0].ID, placeCommand(2, 0, 0, 1), sinks[0])
	rt.ReceiveCommand(roster[1].ID, placeCommand(6, 3, 3, 1), sinks[1])

	rt.Forfeit(roster[0].ID)

	_, ok := sinks[1].lastOfKind(wire.SVictory)
	assert.True(t, ok)
	assert.True(t, rt.Concluded())
}

func TestSyncPlayer_RebindsSinkAndSendsCurrentState(t *testing.T) {
	rt, sinks, roster := newTestRuntime(t, time.Minute)
	rt.Start()

	newSink := &fakeSink{}
	ok := rt.SyncPlayer(roster[0].ID, newSink)
	require.True(t, ok)

	_, found := newSink.lastOfKind(wire.SStaticMatchData)
	assert.True(t, found)
	_, found = newSink.lastOfKind(wire.SPlayerView)
	assert.True(t, found)
}

func TestReceiveCommand_UnknownUserGetsGameEnded(t *testing.T) {
	rt, sinks, _ := newTestRuntime(t, time.Minute)
	rt.Start()

	stranger := &fakeSink{}
	rt.ReceiveCommand(uuid.New(), placeCommand(2, 0, 0, 1), stranger)

	_, ok := stranger.lastOfKind(wire.SGameEnded)
	assert.True(t, ok)
	_ = sinks
}
