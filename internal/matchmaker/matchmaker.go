// Package matchmaker implements the per-mode matching queues and the
// routing layer between a connected user and its live match runtime
// (spec §4.5).
package matchmaker

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tankwar/server/internal/game"
	"github.com/tankwar/server/internal/match"
	"github.com/tankwar/server/internal/wire"
)

// RegistryNotifier is the slice of internal/registry's UserRegistry the
// matchmaker needs, kept as an interface so the two packages do not
// import each other.
type RegistryNotifier interface {
	NotifyMatchStart(userID uuid.UUID, handle match.Handle)
	NotifyMatchFinished(userID uuid.UUID, mode uint8)
}

// Matchmaker is the top-level aggregate of spec §4.5: one queue per
// mode, plus the user->match and user->queued-mode maps. mu is its
// serialization domain (spec §5) — every exported method takes it.
type Matchmaker struct {
	mu sync.Mutex

	registry   RegistryNotifier
	strategies map[uint8]Strategy

	userMatch      map[uuid.UUID]*match.Runtime
	userQueuedMode map[uuid.UUID]uint8
	liveMatches    map[uint64]*match.Runtime

	nextMatchID  uint64
	initialClock time.Duration
	increment    time.Duration
	maxQueueSize int
	turnFuel     int

	resultSink func(mode uint8, result match.Result)
}

// Configure overrides the match-runtime tuning New() otherwise
// defaults to match.DefaultInitialClock/DefaultIncrement/
// DefaultMaxQueueSize/DefaultTurnFuel, for cmd/server to apply
// config.MatchmakerConfig at startup.
func (mm *Matchmaker) Configure(initialClock, increment time.Duration, maxQueueSize, turnFuel int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.initialClock = initialClock
	mm.increment = increment
	mm.maxQueueSize = maxQueueSize
	mm.turnFuel = turnFuel
}

// SetResultSink registers a callback invoked once per concluded match,
// after the live-match bookkeeping above has already been cleared and
// the registry notified. cmd/server wires this to persistence
// (store.RecordMatch / StoreReplay) so the matchmaker itself never
// depends on internal/store.
func (mm *Matchmaker) SetResultSink(sink func(mode uint8, result match.Result)) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.resultSink = sink
}

// New builds a Matchmaker over the given per-mode strategies (mode byte
// -> Strategy, e.g. CasualFIFO / RankedBucketed instances).
func New(registry RegistryNotifier, strategies map[uint8]Strategy) *Matchmaker {
	return &Matchmaker{
		registry:       registry,
		strategies:     strategies,
		userMatch:      make(map[uuid.UUID]*match.Runtime),
		userQueuedMode: make(map[uuid.UUID]uint8),
		liveMatches:    make(map[uint64]*match.Runtime),
		initialClock:   match.DefaultInitialClock,
		increment:      match.DefaultIncrement,
		maxQueueSize:   match.DefaultMaxQueueSize,
		turnFuel:       match.DefaultTurnFuel,
	}
}

// Enqueue admits a user into mode's queue (spec §4.5 "enqueue"). It
// reports false (BadQueue) if the user is already in a match or already
// queued in any mode.
func (mm *Matchmaker) Enqueue(userID uuid.UUID, username string, sink match.Sink, elo int32, mode uint8) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if _, inMatch := mm.userMatch[userID]; inMatch {
		return false
	}
	if _, queued := mm.userQueuedMode[userID]; queued {
		return false
	}
	strategy, ok := mm.strategies[mode]
	if !ok {
		return false
	}

	mm.userQueuedMode[userID] = mode
	proposals := strategy.Enqueue(Entry{
		UserID: userID, Username: username, Sink: sink, Elo: elo, EnqueuedAt: time.Now(),
	})
	for _, p := range proposals {
		mm.constructMatchLocked(p)
	}
	return true
}

// Cancel removes a user from its queue (spec §4.5 "cancel"). byUser
// distinguishes a user-initiated cancel (which is rejected with
// BadCancel if the user has since entered a match) from an internal
// eviction performed as part of match-start.
func (mm *Matchmaker) Cancel(userID uuid.UUID, byUser bool) (ok bool, badCancel bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mode, queued := mm.userQueuedMode[userID]
	if queued {
		if strategy, ok := mm.strategies[mode]; ok {
			strategy.Cancel(userID)
		}
		delete(mm.userQueuedMode, userID)
	}

	if byUser {
		if _, inMatch := mm.userMatch[userID]; inMatch {
			return false, true
		}
	}
	return queued, false
}

// RouteToMatch forwards a decoded Command to userID's active match
// (spec §4.5 "route_to_match"). It reports false (NoMatchFound) on
// miss.
func (mm *Matchmaker) RouteToMatch(userID uuid.UUID, cmd wire.Command, callerSink match.Sink) bool {
	mm.mu.Lock()
	rt, ok := mm.userMatch[userID]
	mm.mu.Unlock()

	if !ok {
		return false
	}
	rt.ReceiveCommand(userID, cmd, callerSink)
	return true
}

// Forfeit routes a forfeit to userID's active match, if any.
func (mm *Matchmaker) Forfeit(userID uuid.UUID) bool {
	mm.mu.Lock()
	rt, ok := mm.userMatch[userID]
	mm.mu.Unlock()

	if !ok {
		return false
	}
	rt.Forfeit(userID)
	return true
}

// SendMatchMessage relays text from userID to every other live
// participant of its match via a ChatRelay frame (spec §4.5
// "send_match_message"). It reports false (NoMatchFound) on miss.
func (mm *Matchmaker) SendMatchMessage(userID uuid.UUID, text string, sinksByUser func(uuid.UUID) match.Sink) bool {
	mm.mu.Lock()
	rt, ok := mm.userMatch[userID]
	var recipients []uuid.UUID
	for other, r := range mm.userMatch {
		if ok && r == rt && other != userID {
			recipients = append(recipients, other)
		}
	}
	mm.mu.Unlock()
	if !ok {
		return false
	}

	payload := wire.EncodeChatRelay(wire.ChatRelay{Sender: userID, Text: text})
	if sinksByUser == nil {
		return true
	}
	for _, other := range recipients {
		if s := sinksByUser(other); s != nil {
			s.Deliver(wire.SMatchTextMessage, payload)
		}
	}
	return true
}

// TickAll drives every strategy's time-based relaxation (Ranked-2
// bucket radius search) and constructs any resulting matches (spec §4.5
// "tick_all").
func (mm *Matchmaker) TickAll(now time.Time) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	for _, strategy := range mm.strategies {
		for _, p := range strategy.Tick(now) {
			mm.constructMatchLocked(p)
		}
	}
}

// constructMatchLocked realizes a strategy's Proposal (spec §4.5 "Match
// construction"). Caller must hold mm.mu.
func (mm *Matchmaker) constructMatchLocked(p Proposal) {
	for _, e := range p.Entries {
		delete(mm.userQueuedMode, e.UserID)
	}

	live := make([]Entry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.Sink == nil {
			continue
		}
		live = append(live, e)
	}
	if len(live) != len(p.Entries) {
		for _, e := range live {
			e.Sink.Deliver(wire.SQueueDropped, nil)
		}
		return
	}

	candidates := game.MapsForMode(p.Mode)
	if len(candidates) == 0 {
		for _, e := range live {
			e.Sink.Deliver(wire.SMatchCreationError, nil)
		}
		return
	}
	desc := candidates[rand.Intn(len(candidates))]

	roster := make([]wire.UserEntry, len(live))
	sinks := make([]match.Sink, len(live))
	for i, e := range live {
		roster[i] = wire.UserEntry{ID: e.UserID, Username: e.Username}
		sinks[i] = e.Sink
		e.Sink.Deliver(wire.SMatchStarting, []byte{byte(i)})
	}

	mm.nextMatchID++
	matchID := mm.nextMatchID
	mode := p.Mode

	rt, err := match.NewRuntime(matchID, desc, roster, sinks, mm.initialClock, mm.increment,
		mm.maxQueueSize, mm.turnFuel, func(result match.Result) {
			mm.onMatchConcluded(matchID, mode, result)
		})
	if err != nil {
		for _, e := range live {
			e.Sink.Deliver(wire.SMatchCreationError, nil)
		}
		return
	}

	mm.liveMatches[matchID] = rt
	for _, e := range live {
		mm.userMatch[e.UserID] = rt
		if mm.registry != nil {
			mm.registry.NotifyMatchStart(e.UserID, rt)
		}
	}
	rt.Start()
}

// onMatchConcluded is the results callback passed to every Runtime: it
// deletes the match from the live table and notifies the user registry
// (spec §4.5 "notifies the user registry").
func (mm *Matchmaker) onMatchConcluded(matchID uint64, mode uint8, result match.Result) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	delete(mm.liveMatches, matchID)
	for _, userID := range result.Players {
		if mm.userMatch[userID] != nil && mm.userMatch[userID].ID() == matchID {
			delete(mm.userMatch, userID)
		}
		if mm.registry != nil {
			mm.registry.NotifyMatchFinished(userID, mode)
		}
	}
	if mm.resultSink != nil {
		mm.resultSink(mode, result)
	}
}
