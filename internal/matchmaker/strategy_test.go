package matchmaker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryFor(userID uuid.UUID, elo int32, at time.Time) Entry {
	return Entry{UserID: userID, Username: "u", Elo: elo, EnqueuedAt: at}
}

func TestCasualFIFO_ResolvesAtN(t *testing.T) {
	s := NewCasualFIFO(0, 3)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	require.Empty(t, s.Enqueue(entryFor(a, 0, time.Time{})))
	require.Empty(t, s.Enqueue(entryFor(b, 0, time.Time{})))
	proposals := s.Enqueue(entryFor(c, 0, time.Time{}))

	require.Len(t, proposals, 1)
	assert.Len(t, proposals[0].Entries, 3)
}

func TestCasualFIFO_RejectsDuplicateEnqueue(t *testing.T) {
	s := NewCasualFIFO(0, 2)
	a := uuid.New()

	s.Enqueue(entryFor(a, 0, time.Time{}))
	proposals := s.Enqueue(entryFor(a, 0, time.Time{}))
	assert.Empty(t, proposals)
}

func TestCasualFIFO_Cancel(t *testing.T) {
	s := NewCasualFIFO(0, 2)
	a := uuid.New()

	s.Enqueue(entryFor(a, 0, time.Time{}))
	assert.True(t, s.Cancel(a))
	assert.False(t, s.Cancel(a))

	b, c := uuid.New(), uuid.New()
	proposals := s.Enqueue(entryFor(b, 0, time.Time{}))
	assert.Empty(t, proposals, "cancelled entry must not linger in the deque")
	s.Enqueue(entryFor(c, 0, time.Time{}))
}

func TestRankedBucketed_PairsSameBucketOnTick(t *testing.T) {
	s := NewRankedBucketed(1)
	now := time.Now()
	a, b := uuid.New(), uuid.New()

	s.Enqueue(entryFor(a, 150, now))
	s.Enqueue(entryFor(b, 180, now))

	proposals := s.Tick(now)
	require.Len(t, proposals, 1)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, []uuid.UUID{proposals[0].Entries[0].UserID, proposals[0].Entries[1].UserID})
}

func TestRankedBucketed_LoneEntryWaitsThenRelaxes(t *testing.T) {
	s := NewRankedBucketed(1)
	now := time.Now()
	a := uuid.New()
	s.Enqueue(entryFor(a, 150, now))

	assert.Empty(t, s.Tick(now.Add(1*time.Second)))

	b := uuid.New()
	s.Enqueue(entryFor(b, 260, now))

	proposals := s.Tick(now.Add(RankedBucketIncrement + time.Second))
	require.Len(t, proposals, 1)
	assert.ElementsMatch(t, []uuid.UUID{a, b}, []uuid.UUID{proposals[0].Entries[0].UserID, proposals[0].Entries[1].UserID})
}

func TestRankedBucketed_Cancel(t *testing.T) {
	s := NewRankedBucketed(1)
	a := uuid.New()
	s.Enqueue(entryFor(a, 150, time.Now()))

	assert.True(t, s.Cancel(a))
	assert.False(t, s.Cancel(a))
	assert.Empty(t, s.Tick(time.Now().Add(time.Hour)))
}
