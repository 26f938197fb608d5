package matchmaker

import (
	"time"

	"github.com/google/uuid"
	"github.com/tankwar/server/internal/match"
)

// Entry is one queued player, as held by a mode's Strategy.
type Entry struct {
	UserID     uuid.UUID
	Username   string
	Sink       match.Sink
	Elo        int32
	EnqueuedAt time.Time
}

// Proposal is a strategy's decision that a set of entries should start
// a match together (spec §4.5 "construct a MatchSettings, invoke
// on_match_ready").
type Proposal struct {
	Mode    uint8
	Entries []Entry
}
