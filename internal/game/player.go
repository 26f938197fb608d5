package game

import "github.com/tankwar/server/internal/grid"

// Player is one match participant's bookkeeping (spec §3): an id, the
// tank ids it owns (sentinel grid.NoTank for unplaced slots), and a
// placed-tank counter kept in sync with Setup commits.
type Player struct {
	ID          int
	TanksPlaced int
	Tanks       []int32 // length TanksPerPlayer
}

func newPlayer(id, tanksPerPlayer int) Player {
	tanks := make([]int32, tanksPerPlayer)
	for i := range tanks {
		tanks[i] = grid.NoTank
	}
	return Player{ID: id, Tanks: tanks}
}

// slotOf reports whether tankID is one of p's tanks, returning
// its slot index (or -1 if not owned).
func (p *Player) slotOf(tankID int32) int {
	for i, id := range p.Tanks {
		if id == tankID {
			return i
		}
	}
	return -1
}
