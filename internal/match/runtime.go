// Package match implements one live match's turn state machine: command
// ingestion, clock accounting, elimination, and view broadcast driven
// off a single game.GameInstance (spec §4.4).
package match

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tankwar/server/internal/game"
	"github.com/tankwar/server/internal/wire"
)

// Defaults for values spec.md §9 leaves as "tune with telemetry"
// (Open Question, recorded in DESIGN.md): callers may override all of
// these per mode.
const (
	DefaultTurnFuel     = 3
	DefaultMaxQueueSize = 8
	DefaultInitialClock = 60 * time.Second
	DefaultIncrement    = 5 * time.Second
)

// Runtime is one match's turn loop and mutable state. All mutation goes
// through mu, which is the match's serialization domain (spec §5): the
// timer goroutine and command-arrival callers both acquire it before
// touching anything below.
type Runtime struct {
	mu sync.Mutex

	id        uint64
	game      *game.GameInstance
	mapDesc   game.MapDescriptor
	roster    []wire.UserEntry
	sinks     []Sink
	startedAt time.Time

	numPlayers     int
	tanksPerPlayer int

	state            wire.MatchState
	currentPlayer    int
	currentFuel      int
	turnFuel         int
	remainingPlayers int
	alive            []bool
	eliminationOrder []int

	clocks       []time.Duration
	initialClock time.Duration
	increment    time.Duration

	queues       []*playerQueue
	maxQueueSize int

	turnID      uint64
	turnClaimed bool
	turnArmedAt time.Time
	timer       *time.Timer

	history []wire.CommandHead

	concluded       bool
	resultsCallback func(Result)
}

// NewRuntime builds a match runtime in Setup state, not yet started.
func NewRuntime(
	id uint64,
	desc game.MapDescriptor,
	roster []wire.UserEntry,
	sinks []Sink,
	initialClock, increment time.Duration,
	maxQueueSize, turnFuel int,
	resultsCallback func(Result),
) (*Runtime, error) {
	inst, err := game.NewGameInstance(desc)
	if err != nil {
		return nil, err
	}

	n := len(roster)
	clocks := make([]time.Duration, n)
	alive := make([]bool, n)
	queues := make([]*playerQueue, n)
	for i := range clocks {
		clocks[i] = initialClock
		alive[i] = true
		queues[i] = newPlayerQueue(maxQueueSize)
	}

	return &Runtime{
		id: id, game: inst, mapDesc: desc, roster: roster, sinks: sinks,
		startedAt:  time.Now(),
		numPlayers: n, tanksPerPlayer: int(desc.TanksPerPlayer),
		state: wire.StateSetup, remainingPlayers: n, alive: alive,
		clocks: clocks, initialClock: initialClock, increment: increment,
		queues: queues, maxQueueSize: maxQueueSize,
		turnFuel: turnFuel, resultsCallback: resultsCallback,
	}, nil
}

// ID returns the match's opaque identifier.
func (m *Runtime) ID() uint64 { return m.id }

// Start sends the once-per-match StaticMatchData, an initial view to
// every participant, and arms the first turn.
func (m *Runtime) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	static := m.game.StaticMatchData(m.roster)
	if payload, err := wire.EncodeStaticMatchData(static); err == nil {
		for i := range m.roster {
			m.deliverLocked(i, wire.SStaticMatchData, payload)
		}
	}
	m.broadcastViewsLocked()
	m.beginTurnLocked()
}

func (m *Runtime) playerIDForUser(userID uuid.UUID) int {
	for i, u := range m.roster {
		if u.ID == userID {
			return i
		}
	}
	return -1
}

func (m *Runtime) deliverLocked(playerID int, kind wire.ServerKind, payload []byte) {
	if playerID < 0 || playerID >= len(m.sinks) || m.sinks[playerID] == nil {
		return
	}
	m.sinks[playerID].Deliver(kind, payload)
}

// currentClocksMillisLocked reports each player's remaining clock,
// with the current player's value reduced by time elapsed in the
// currently running turn (display only — does not mutate state).
func (m *Runtime) currentClocksMillisLocked() []int64 {
	out := make([]int64, m.numPlayers)
	for i, c := range m.clocks {
		out[i] = c.Milliseconds()
	}
	if !m.concluded && m.currentPlayer < m.numPlayers && m.alive[m.currentPlayer] {
		remaining := m.clocks[m.currentPlayer] - time.Since(m.turnArmedAt)
		if remaining < 0 {
			remaining = 0
		}
		out[m.currentPlayer] = remaining.Milliseconds()
	}
	return out
}

func (m *Runtime) broadcastViewsLocked() {
	clocksMs := m.currentClocksMillisLocked()
	for i := 0; i < m.numPlayers; i++ {
		if !m.alive[i] {
			continue
		}
		view := m.game.ComputeView(i, m.currentPlayer, m.currentFuel, m.state, clocksMs)
		payload, err := wire.EncodePlayerView(view)
		if err != nil {
			continue
		}
		m.deliverLocked(i, wire.SPlayerView, payload)
	}
}

// beginTurnLocked arms the next turn (spec §4.4 "Turn state machine").
// Caller must hold mu.
func (m *Runtime) beginTurnLocked() {
	if m.concluded {
		return
	}

	m.turnID++
	m.turnClaimed = false

	if m.state == wire.StateSetup && m.game.TotalPlaced() == m.remainingPlayers*m.tanksPerPlayer {
		m.state = wire.StatePlay
		m.currentPlayer = 0
		m.currentFuel = m.turnFuel
		m.broadcastViewsLocked()
	}

	if m.remainingPlayers <= 1 {
		m.concludeLocked()
		return
	}

	if !m.alive[m.currentPlayer] {
		m.currentPlayer = (m.currentPlayer + 1) % m.numPlayers
		m.beginTurnLocked()
		return
	}

	m.turnArmedAt = time.Now()
	turnID := m.turnID
	if m.timer != nil {
		m.timer.Stop()
	}
	remaining := m.clocks[m.currentPlayer]
	if remaining < 0 {
		remaining = 0
	}
	m.timer = time.AfterFunc(remaining, func() { m.handleTimeout(turnID) })

	if m.queues[m.currentPlayer].Len() > 0 {
		m.dispatchHeadLocked()
	}
}

// handleTimeout is the timer callback; it races with command arrival
// via turnClaimed (spec §4.4, §5 "turn race").
func (m *Runtime) handleTimeout(turnID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.concluded || turnID != m.turnID || m.turnClaimed {
		return
	}
	m.turnClaimed = true
	m.handleEliminationLocked(m.currentPlayer, wire.STimedOut)
	m.beginTurnLocked()
}

// ReceiveCommand admits one command from an authenticated user (spec
// §4.4 "Command admission"). callerSink receives GameEnded if the user
// is not a participant or the match has already concluded.
func (m *Runtime) ReceiveCommand(userID uuid.UUID, cmd wire.Command, callerSink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()

	playerID := m.playerIDForUser(userID)
	if playerID < 0 || m.concluded {
		if callerSink != nil {
			callerSink.Deliver(wire.SGameEnded, nil)
		}
		return
	}

	cmd.Sender = uint8(playerID)
	postedTurnID := m.turnID
	m.queues[playerID].Offer(cmd)

	if playerID != m.currentPlayer {
		return
	}
	if postedTurnID != m.turnID {
		m.deliverLocked(playerID, wire.SStaleMove, nil)
		return
	}
	m.dispatchHeadLocked()
}

// dispatchHeadLocked is the command-arrival side of the turn race: it
// claims the turn, pops the current player's queue head, and applies
// it. Caller must hold mu.
func (m *Runtime) dispatchHeadLocked() {
	if m.concluded || m.turnClaimed {
		return
	}
	cmd, ok := m.queues[m.currentPlayer].Pop()
	if !ok {
		return
	}
	m.turnClaimed = true
	if m.timer != nil {
		m.timer.Stop()
	}

	elapsed := time.Since(m.turnArmedAt)
	m.clocks[m.currentPlayer] -= elapsed
	if m.clocks[m.currentPlayer] < 0 {
		m.clocks[m.currentPlayer] = 0
	}

	result := m.game.Apply(m.currentPlayer, cmd, m.state == wire.StateSetup)
	if !result.Valid {
		m.deliverLocked(m.currentPlayer, wire.SFailedMove, nil)
		m.beginTurnLocked()
		return
	}

	m.clocks[m.currentPlayer] += m.increment
	m.history = append(m.history, wire.CommandHead{
		Sender: cmd.Sender, Kind: cmd.Kind, TankID: cmd.TankID,
		Payload1: cmd.Payload1, Payload2: cmd.Payload2,
	})

	if m.state == wire.StateSetup {
		m.currentPlayer = (m.currentPlayer + 1) % m.numPlayers
	} else {
		m.currentFuel--
		if m.currentFuel <= 0 {
			m.currentFuel = m.turnFuel
			m.currentPlayer = (m.currentPlayer + 1) % m.numPlayers
		}
	}

	m.checkImplicitEliminationsLocked()
	m.broadcastViewsLocked()
	m.beginTurnLocked()
}

// checkImplicitEliminationsLocked eliminates any live-in-name Play
// participant with zero remaining tanks (spec §4.4 "Implicit
// elimination"). Caller must hold mu.
func (m *Runtime) checkImplicitEliminationsLocked() {
	if m.state != wire.StatePlay {
		return
	}
	for changed := true; changed; {
		changed = false
		for i := 0; i < m.numPlayers; i++ {
			if m.alive[i] && m.game.LiveTankCount(i) == 0 {
				m.handleEliminationLocked(i, wire.SEliminated)
				changed = true
			}
		}
	}
}

// handleEliminationLocked is a no-op if p is already dead, otherwise
// drains its queue, clears its tanks from the grid, and records the
// elimination (spec §4.4 "Elimination"). Caller must hold mu.
func (m *Runtime) handleEliminationLocked(playerID int, reason wire.ServerKind) {
	if !m.alive[playerID] {
		return
	}
	m.queues[playerID].Drain()
	m.alive[playerID] = false
	m.remainingPlayers--
	m.eliminationOrder = append(m.eliminationOrder, playerID)
	m.clocks[playerID] = 0
	m.game.EliminatePlayer(playerID)
	if m.state == wire.StateSetup {
		m.game.Players[playerID].TanksPlaced = 0
	}

	m.deliverLocked(playerID, reason, nil)
	m.broadcastViewsLocked()

	if playerID == m.currentPlayer {
		if m.timer != nil {
			m.timer.Stop()
		}
		m.currentPlayer = (m.currentPlayer + 1) % m.numPlayers
	}
}

// Forfeit eliminates userID's player immediately (spec §4.5 forfeit
// routing terminates at the match runtime).
func (m *Runtime) Forfeit(userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	playerID := m.playerIDForUser(userID)
	if playerID < 0 || m.concluded {
		return
	}
	m.handleEliminationLocked(playerID, wire.SEliminated)
	m.beginTurnLocked()
}

// SyncPlayer rebinds a reconnecting user's sink, discards its stale
// queued commands, and replays StaticMatchData + the current view
// (spec §4.4 "Reconnection").
func (m *Runtime) SyncPlayer(userID uuid.UUID, newSink Sink) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	playerID := m.playerIDForUser(userID)
	if playerID < 0 {
		return false
	}
	m.sinks[playerID] = newSink
	m.queues[playerID].Drain()

	static := m.game.StaticMatchData(m.roster)
	if payload, err := wire.EncodeStaticMatchData(static); err == nil {
		newSink.Deliver(wire.SStaticMatchData, payload)
	}

	view := m.game.ComputeView(playerID, m.currentPlayer, m.currentFuel, m.state, m.currentClocksMillisLocked())
	if payload, err := wire.EncodePlayerView(view); err == nil {
		newSink.Deliver(wire.SPlayerView, payload)
	}
	return true
}

// concludeLocked finalizes the match: the sole survivor (if any)
// receives Victory and is appended last to the elimination order, the
// timer is cancelled, and the results callback fires exactly once.
// Caller must hold mu.
func (m *Runtime) concludeLocked() {
	if m.concluded {
		return
	}
	m.concluded = true
	m.state = wire.StateConcluded
	if m.timer != nil {
		m.timer.Stop()
	}

	for i, alive := range m.alive {
		if alive {
			m.eliminationOrder = append(m.eliminationOrder, i)
			m.deliverLocked(i, wire.SVictory, nil)
			break
		}
	}

	if m.resultsCallback == nil {
		return
	}
	users := make([]uuid.UUID, len(m.roster))
	for i, u := range m.roster {
		users[i] = u.ID
	}
	m.resultsCallback(Result{
		MatchID:          m.id,
		History:          m.history,
		Players:          users,
		EliminationOrder: m.eliminationOrder,
		Map:              m.mapDesc,
		InitialClock:     m.initialClock,
		Increment:        m.increment,
		StartedAt:        m.startedAt,
		ConcludedAt:      time.Now(),
	})
}

// Shutdown cancels the running timer and drops the results callback
// (spec §4.4 "async_shutdown"); no further frames are produced.
func (m *Runtime) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.resultsCallback = nil
	m.concluded = true
}

// Concluded reports whether the match has finished.
func (m *Runtime) Concluded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.concluded
}
