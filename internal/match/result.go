package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/tankwar/server/internal/game"
	"github.com/tankwar/server/internal/wire"
)

// Result is the record a runtime hands to its ResultsCallback at
// conclusion (spec §3 "MatchResult"): command history, the indexed
// player-id -> user-id roster, elimination order, the map used, and
// the clock parameters the match was configured with.
type Result struct {
	MatchID        uint64
	History        []wire.CommandHead
	Players        []uuid.UUID // index == player id
	EliminationOrder []int     // player ids, in the order they left the match; survivor last
	Map            game.MapDescriptor
	InitialClock   time.Duration
	Increment      time.Duration
	StartedAt      time.Time
	ConcludedAt    time.Time
}
