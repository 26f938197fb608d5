package grid

// InitialHealth is a tank's starting (and maximum) health.
const InitialHealth = 100

// Tank is one player-owned vehicle on the grid.
type Tank struct {
	ID       int32
	Owner    int32 // player id
	X, Y     int
	Body     Direction
	Barrel   Direction
	Health   int32
	Loaded   bool
	AimFocused bool // declared on the wire; see DESIGN.md focused-aim decision
}

// Alive reports whether the tank still has health remaining.
func (t *Tank) Alive() bool {
	return t.Health > 0
}

// MoveResult is the outcome of an attempted move.
type MoveResult int

const (
	MoveOK MoveResult = iota
	MoveOutOfBounds
	MoveBlockedTerrain
	MoveBlockedOccupied
	MoveBlockedCorner
)

func (r MoveResult) Rejected() bool {
	return r != MoveOK
}

// TryMove attempts to move t one cell in its body direction. On success the
// grid's occupant pointers are updated atomically with respect to the
// caller (the grid itself holds no lock; callers serialize through the
// owning match's domain per spec §5).
func (g *Grid) TryMove(t *Tank) MoveResult {
	dx, dy := t.Body.Delta()
	nx, ny := t.X+dx, t.Y+dy

	if !g.InBounds(nx, ny) {
		return MoveOutOfBounds
	}

	target, _ := g.At(nx, ny)
	if target.Kind == Terrain {
		return MoveBlockedTerrain
	}
	if target.Occupant != NoTank {
		return MoveBlockedOccupied
	}

	if t.Body.IsDiagonal() {
		a, b := cornerNeighbors(t.Body)
		ax, ay := t.X+mustDelta(a), t.Y+mustDeltaY(a)
		bx, by := t.X+mustDelta(b), t.Y+mustDeltaY(b)
		aCell, aOK := g.At(ax, ay)
		bCell, bOK := g.At(bx, by)
		aBlocked := !aOK || aCell.Kind == Terrain
		bBlocked := !bOK || bCell.Kind == Terrain
		if aBlocked && bBlocked {
			return MoveBlockedCorner
		}
	}

	from, _ := g.At(t.X, t.Y)
	from.Occupant = NoTank
	target.Occupant = t.ID
	t.X, t.Y = nx, ny
	return MoveOK
}

func mustDelta(d Direction) int  { dx, _ := d.Delta(); return dx }
func mustDeltaY(d Direction) int { _, dy := d.Delta(); return dy }

// Place commits a tank's presence onto the grid at (x,y). Caller has already
// validated placement legality.
func (g *Grid) Place(t *Tank) {
	cell, _ := g.At(t.X, t.Y)
	cell.Occupant = t.ID
}

// Clear removes a dead tank's occupant mark from the grid, if present.
func (g *Grid) Clear(t *Tank) {
	if cell, ok := g.At(t.X, t.Y); ok && cell.Occupant == t.ID {
		cell.Occupant = NoTank
	}
}
