// Package game owns one match's grid, tanks, and players, and exposes
// the operations a MatchRuntime drives commands through (spec §3-§4.2).
package game

import (
	"github.com/tankwar/server/internal/grid"
	"github.com/tankwar/server/internal/wire"
)

// GameInstance is one match's mutable game state: grid, tank table,
// placement mask, and player records. It holds no concurrency control
// of its own — callers serialize access through the owning match's
// domain, per spec §5.
type GameInstance struct {
	Grid           *grid.Grid
	Tanks          map[int32]*grid.Tank
	Players        []Player
	PlacementMask  []uint8 // length W*H, player id or NoPlayer
	TanksPerPlayer int
	nextTankID     int32
}

// ByID implements grid.Tanks for Fire resolution.
func (g *GameInstance) ByID(id int32) *grid.Tank { return g.Tanks[id] }

// NewGameInstance builds a fresh game instance from a map descriptor
// (spec §3: "created at match start from a MapDescriptor").
func NewGameInstance(d MapDescriptor) (*GameInstance, error) {
	gr, err := buildGrid(d)
	if err != nil {
		return nil, err
	}
	players := make([]Player, d.NumPlayers)
	for i := range players {
		players[i] = newPlayer(i, int(d.TanksPerPlayer))
	}
	return &GameInstance{
		Grid:           gr,
		Tanks:          make(map[int32]*grid.Tank),
		Players:        players,
		PlacementMask:  append([]uint8(nil), d.PlacementMask...),
		TanksPerPlayer: int(d.TanksPerPlayer),
	}, nil
}

// ApplyResult carries the outcome of Apply for callers that need more
// than a bare valid/invalid signal (Fire's hit/lethal detail).
type ApplyResult struct {
	Valid    bool
	Hit      bool
	Lethal   bool
	TargetID int32
}

// tankOf returns the sender's live tank for a single-tank command, and
// whether the command is admissible for it.
func (g *GameInstance) tankOf(playerID int, tankID uint8) (*grid.Tank, bool) {
	p := &g.Players[playerID]
	slot := p.slotOf(int32(tankID))
	if slot < 0 {
		return nil, false
	}
	t, ok := g.Tanks[int32(tankID)]
	if !ok || !t.Alive() {
		return nil, false
	}
	return t, true
}

// Apply validates and executes one command against the current state
// (spec §4.4 "apply"). setupPhase selects whether Place is legal.
func (g *GameInstance) Apply(playerID int, cmd wire.Command, setupPhase bool) ApplyResult {
	if cmd.Kind == wire.CmdPlace {
		if !setupPhase {
			return ApplyResult{}
		}
		return g.applyPlace(playerID, cmd)
	}
	if setupPhase {
		return ApplyResult{}
	}

	switch cmd.Kind {
	case wire.CmdMove:
		return g.applyMove(playerID, cmd.TankID)
	case wire.CmdRotateTank:
		return g.applyRotate(playerID, cmd.TankID, cmd.Payload1, false)
	case wire.CmdRotateBarrel:
		return g.applyRotate(playerID, cmd.TankID, cmd.Payload1, true)
	case wire.CmdFire:
		return g.applyFire(playerID, cmd.TankID)
	case wire.CmdLoad:
		return g.applyLoad(playerID, cmd.TankID)
	case wire.CmdNoOp:
		return ApplyResult{Valid: true}
	default:
		return ApplyResult{}
	}
}

func (g *GameInstance) applyMove(playerID int, tankID uint8) ApplyResult {
	t, ok := g.tankOf(playerID, tankID)
	if !ok {
		return ApplyResult{}
	}
	if g.Grid.TryMove(t).Rejected() {
		return ApplyResult{}
	}
	return ApplyResult{Valid: true}
}

// cwFlag is the Payload1 convention for rotate commands: 0 = CCW, any
// nonzero = CW.
func cwFlag(payload1 uint8) bool { return payload1 != 0 }

func (g *GameInstance) applyRotate(playerID int, tankID uint8, payload1 uint8, barrel bool) ApplyResult {
	t, ok := g.tankOf(playerID, tankID)
	if !ok {
		return ApplyResult{}
	}
	rotate := func(d grid.Direction) grid.Direction {
		if cwFlag(payload1) {
			return d.RotateCW()
		}
		return d.RotateCCW()
	}
	if barrel {
		t.Barrel = rotate(t.Barrel)
	} else {
		t.Body = rotate(t.Body)
	}
	return ApplyResult{Valid: true}
}

// fireDamage is the fixed per-shot damage (spec leaves this a server
// constant; §4.2 specifies only ray resolution, not the damage value).
const fireDamage = 25

func (g *GameInstance) applyFire(playerID int, tankID uint8) ApplyResult {
	t, ok := g.tankOf(playerID, tankID)
	if !ok || !t.Loaded {
		return ApplyResult{}
	}
	t.Loaded = false
	res := g.Grid.Fire(t, fireDamage, g)
	return ApplyResult{Valid: true, Hit: res.Hit, Lethal: res.Lethal, TargetID: res.TargetID}
}

func (g *GameInstance) applyLoad(playerID int, tankID uint8) ApplyResult {
	t, ok := g.tankOf(playerID, tankID)
	if !ok || t.Loaded {
		return ApplyResult{}
	}
	t.Loaded = true
	return ApplyResult{Valid: true}
}

func (g *GameInstance) applyPlace(playerID int, cmd wire.Command) ApplyResult {
	dir := grid.Direction(cmd.TankID)
	x, y := int(cmd.Payload1), int(cmd.Payload2)
	if !dir.Valid() {
		return ApplyResult{}
	}
	idx, ok := g.Grid.Index(x, y)
	if !ok {
		return ApplyResult{}
	}
	if g.PlacementMask[idx] != uint8(playerID) {
		return ApplyResult{}
	}
	cell := &g.Grid.Cells[idx]
	if cell.Kind == grid.Terrain || cell.Occupant != grid.NoTank {
		return ApplyResult{}
	}

	p := &g.Players[playerID]
	slot := -1
	for i, id := range p.Tanks {
		if id == grid.NoTank {
			slot = i
			break
		}
	}
	if slot < 0 {
		return ApplyResult{}
	}

	id := g.nextTankID
	g.nextTankID++
	t := &grid.Tank{
		ID: id, Owner: int32(playerID), X: x, Y: y,
		Body: dir, Barrel: dir, Health: grid.InitialHealth, Loaded: true,
	}
	g.Tanks[id] = t
	g.Grid.Place(t)
	p.Tanks[slot] = id
	p.TanksPlaced++

	return ApplyResult{Valid: true}
}

// LiveTankCount returns the number of tanks still alive for a player.
func (g *GameInstance) LiveTankCount(playerID int) int {
	n := 0
	for _, id := range g.Players[playerID].Tanks {
		if id == grid.NoTank {
			continue
		}
		if t, ok := g.Tanks[id]; ok && t.Alive() {
			n++
		}
	}
	return n
}

// EliminatePlayer clears health and grid occupancy for every tank p
// owns (spec §4.4 "handle_elimination"). It leaves p's TanksPlaced
// count unchanged.
func (g *GameInstance) EliminatePlayer(playerID int) {
	p := &g.Players[playerID]
	for _, id := range p.Tanks {
		if id == grid.NoTank {
			continue
		}
		t, ok := g.Tanks[id]
		if !ok {
			continue
		}
		t.Health = 0
		g.Grid.Clear(t)
	}
}

// TotalPlaced sums tanks_placed across all players.
func (g *GameInstance) TotalPlaced() int {
	n := 0
	for i := range g.Players {
		n += g.Players[i].TanksPlaced
	}
	return n
}
