package matchmaker

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tankwar/server/internal/match"
	"github.com/tankwar/server/internal/wire"
)

type fakeSink struct {
	mu     sync.Mutex
	frames []wire.ServerKind
}

func (s *fakeSink) Deliver(kind wire.ServerKind, _ []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, kind)
}

func (s *fakeSink) has(kind wire.ServerKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.frames {
		if k == kind {
			return true
		}
	}
	return false
}

type fakeRegistry struct {
	mu       sync.Mutex
	started  map[uuid.UUID]uint64
	finished map[uuid.UUID]uint8
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{started: make(map[uuid.UUID]uint64), finished: make(map[uuid.UUID]uint8)}
}

func (r *fakeRegistry) NotifyMatchStart(userID uuid.UUID, handle match.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[userID] = handle.ID()
}

func (r *fakeRegistry) NotifyMatchFinished(userID uuid.UUID, mode uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished[userID] = mode
}

func newTestMatchmaker() (*Matchmaker, *fakeRegistry) {
	reg := newFakeRegistry()
	strategies := map[uint8]Strategy{
		0: NewCasualFIFO(0, 2),
		1: NewRankedBucketed(1),
	}
	return New(reg, strategies), reg
}

func TestMatchmaker_EnqueueConstructsMatchAtN(t *testing.T) {
	mm, reg := newTestMatchmaker()
	a, b := uuid.New(), uuid.New()
	sinkA, sinkB := &fakeSink{}, &fakeSink{}

	require.True(t, mm.Enqueue(a, "alice", sinkA, 0, 0))
	require.True(t, mm.Enqueue(b, "bob", sinkB, 0, 0))

	assert.True(t, sinkA.has(wire.SMatchStarting))
	assert.True(t, sinkB.has(wire.SMatchStarting))

	mm.mu.Lock()
	_, aInMatch := mm.userMatch[a]
	_, bInMatch := mm.userMatch[b]
	mm.mu.Unlock()
	assert.True(t, aInMatch)
	assert.True(t, bInMatch)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	assert.Contains(t, reg.started, a)
	assert.Contains(t, reg.started, b)
}

func TestMatchmaker_EnqueueRejectsDoubleQueue(t *testing.T) {
	mm, _ := newTestMatchmaker()
	a := uuid.New()
	require.True(t, mm.Enqueue(a, "alice", &fakeSink{}, 0, 1))
	assert.False(t, mm.Enqueue(a, "alice", &fakeSink{}, 0, 1))
}

func TestMatchmaker_EnqueueRejectsUnknownMode(t *testing.T) {
	mm, _ := newTestMatchmaker()
	assert.False(t, mm.Enqueue(uuid.New(), "alice", &fakeSink{}, 0, 99))
}

func TestMatchmaker_CancelRemovesFromQueue(t *testing.T) {
	mm, _ := newTestMatchmaker()
	a := uuid.New()
	mm.Enqueue(a, "alice", &fakeSink{}, 0, 1)

	ok, badCancel := mm.Cancel(a, true)
	assert.True(t, ok)
	assert.False(t, badCancel)

	ok, _ = mm.Cancel(a, true)
	assert.False(t, ok)
}

func TestMatchmaker_CancelRejectsWhenAlreadyInMatch(t *testing.T) {
	mm, _ := newTestMatchmaker()
	a, b := uuid.New(), uuid.New()
	mm.Enqueue(a, "alice", &fakeSink{}, 0, 0)
	mm.Enqueue(b, "bob", &fakeSink{}, 0, 0)

	_, badCancel := mm.Cancel(a, true)
	assert.True(t, badCancel)
}

func TestMatchmaker_RouteToMatchMissReportsNoMatchFound(t *testing.T) {
	mm, _ := newTestMatchmaker()
	ok := mm.RouteToMatch(uuid.New(), wire.Command{}, &fakeSink{})
	assert.False(t, ok)
}

func TestMatchmaker_ForfeitEndsMatchAndNotifiesRegistry(t *testing.T) {
	mm, reg := newTestMatchmaker()
	a, b := uuid.New(), uuid.New()
	mm.Enqueue(a, "alice", &fakeSink{}, 0, 0)
	mm.Enqueue(b, "bob", &fakeSink{}, 0, 0)

	require.True(t, mm.Forfeit(a))

	reg.mu.Lock()
	defer reg.mu.Unlock()
	assert.Contains(t, reg.finished, a)
	assert.Contains(t, reg.finished, b)

	mm.mu.Lock()
	defer mm.mu.Unlock()
	assert.Empty(t, mm.liveMatches)
	assert.Empty(t, mm.userMatch)
}

func TestMatchmaker_ResultSinkFiresOnConclusion(t *testing.T) {
	mm, _ := newTestMatchmaker()
	a, b := uuid.New(), uuid.New()

	var mu sync.Mutex
	var gotMode uint8
	var gotResult match.Result
	fired := false
	mm.SetResultSink(func(mode uint8, result match.Result) {
		mu.Lock()
		defer mu.Unlock()
		gotMode = mode
		gotResult = result
		fired = true
	})

	mm.Enqueue(a, "alice", &fakeSink{}, 0, 0)
	mm.Enqueue(b, "bob", &fakeSink{}, 0, 0)
	require.True(t, mm.Forfeit(a))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, fired)
	assert.Equal(t, uint8(0), gotMode)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, gotResult.Players)
}
