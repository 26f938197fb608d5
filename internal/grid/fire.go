package grid

// Max ray range for a fired shot, in cells, depending on whether the
// barrel direction is orthogonal or diagonal (spec §4.2).
const (
	FireRangeOrthogonal = 4
	FireRangeDiagonal   = 3
)

// FireResult describes the outcome of resolving one shot.
type FireResult struct {
	Hit      bool
	TargetID int32 // valid only if Hit
	Lethal   bool  // target's health reached zero
}

// Tanks is the lookup the grid package needs to resolve damage: a table of
// tank id -> *Tank, owned by the caller (the game instance).
type Tanks interface {
	ByID(id int32) *Tank
}

// Fire resolves a ray from firer along its barrel direction, stepping one
// cell at a time up to the direction's max range. The firer's Loaded flag
// is the caller's responsibility to clear; Fire only resolves the ray and
// applies damage.
func (g *Grid) Fire(firer *Tank, damage int32, tanks Tanks) FireResult {
	maxRange := FireRangeOrthogonal
	if firer.Barrel.IsDiagonal() {
		maxRange = FireRangeDiagonal
	}

	dx, dy := firer.Barrel.Delta()
	x, y := firer.X, firer.Y
	for step := 0; step < maxRange; step++ {
		x += dx
		y += dy
		cell, ok := g.At(x, y)
		if !ok {
			return FireResult{}
		}
		if cell.Kind == Terrain {
			return FireResult{}
		}
		if cell.Occupant == NoTank {
			continue
		}

		target := tanks.ByID(cell.Occupant)
		if target == nil {
			return FireResult{}
		}
		target.Health -= damage
		lethal := target.Health <= 0
		if lethal {
			target.Health = 0
			g.Clear(target)
		}
		return FireResult{Hit: true, TargetID: target.ID, Lethal: lethal}
	}
	return FireResult{}
}
