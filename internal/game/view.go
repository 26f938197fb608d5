package game

import (
	"github.com/tankwar/server/internal/grid"
	"github.com/tankwar/server/internal/wire"
)

// ComputeView builds the wire-level PlayerView for playerID: the union
// of fog-of-war visibility over every live tank that player owns
// (spec §4.2 "for each live tank of P, mark its own cell visible, and
// emit a bundle of rays..."). currentPlayer/fuel/state/clocks are
// match-runtime state folded into the same frame.
func (g *GameInstance) ComputeView(playerID, currentPlayer int, fuel int, state wire.MatchState, clocks []int64) wire.PlayerView {
	merged := make([]grid.Cell, len(g.Grid.Cells))
	for i, c := range g.Grid.Cells {
		merged[i] = grid.Cell{Kind: c.Kind, Occupant: grid.NoTank, Visible: false}
	}

	for _, id := range g.Players[playerID].Tanks {
		if id == grid.NoTank {
			continue
		}
		t, ok := g.Tanks[id]
		if !ok || !t.Alive() {
			continue
		}
		tv := g.Grid.ComputeView(t.X, t.Y, t.Barrel)
		for i, c := range tv.Cells {
			if c.Visible {
				merged[i].Visible = true
				merged[i].Occupant = c.Occupant
			}
		}
	}

	cells := make([]wire.CellView, len(merged))
	var tanks []wire.TankView
	seen := make(map[int32]bool)
	for i, c := range merged {
		occByte := uint8(wire.NoTankByte)
		if c.Occupant != grid.NoTank {
			occByte = uint8(c.Occupant)
			if !seen[c.Occupant] {
				seen[c.Occupant] = true
				if t, ok := g.Tanks[c.Occupant]; ok {
					tanks = append(tanks, wire.TankView{
						X: uint8(t.X), Y: uint8(t.Y),
						Dir: uint8(t.Body), Barrel: uint8(t.Barrel),
						TankID: uint8(t.ID), Health: clampHealth(t.Health),
						AimFocused: t.AimFocused, Loaded: t.Loaded, Owner: uint8(t.Owner),
					})
				}
			}
		}
		cells[i] = wire.CellView{Kind: uint8(c.Kind), Occupant: occByte, Visible: c.Visible}
	}

	return wire.PlayerView{
		NTanks:        uint8(len(tanks)),
		CurrentPlayer: uint8(currentPlayer),
		W:             uint8(g.Grid.W),
		H:             uint8(g.Grid.H),
		Fuel:          uint8(fuel),
		State:         state,
		Cells:         cells,
		Tanks:         tanks,
		Clocks:        clocks,
	}
}

func clampHealth(h int32) uint8 {
	if h < 0 {
		return 0
	}
	if h > 255 {
		return 255
	}
	return uint8(h)
}

// StaticMatchData builds the once-per-match frame payload: the player
// roster and the placement mask, translating GameInstance's NoPlayer
// sentinel to the wire's NoPlayerByte (spec §4.1).
func (g *GameInstance) StaticMatchData(players []wire.UserEntry) wire.StaticMatchData {
	mask := make([]uint8, len(g.PlacementMask))
	copy(mask, g.PlacementMask)
	return wire.StaticMatchData{Players: players, PlacementMask: mask}
}
