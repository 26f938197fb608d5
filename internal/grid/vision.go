package grid

import "math"

// halfCellEpsilon is the permissive band around a half-grid-line crossing
// (spec §4.2): offsets within (0.5-eps, 0.5+eps) graze past terrain instead
// of being blocked by it.
const halfCellEpsilon = 1e-3

// orthoRay is one ray in the 7-ray orthogonal vision cone, expressed for
// the canonical East-facing tank (dx=1 per step, slope = dy/dx). Ranges
// vary per ray so the cone is 3 cells wide at distance 2 and narrows back
// toward a point at the tip (max range), per spec §4.2.
type orthoRay struct {
	slope    float64
	maxRange int
}

// orthogonalCone is the fixed table of rational slopes and per-ray ranges.
// Index 3 is the center (boresight) ray.
var orthogonalCone = [7]orthoRay{
	{slope: -1.0 / 2, maxRange: 2},
	{slope: -1.0 / 3, maxRange: 3},
	{slope: -1.0 / 6, maxRange: 4},
	{slope: 0, maxRange: 4},
	{slope: 1.0 / 6, maxRange: 4},
	{slope: 1.0 / 3, maxRange: 3},
	{slope: 1.0 / 2, maxRange: 2},
}

// diagRay is one ray in the 9-ray diagonal vision cone, expressed as an
// integer (dx,dy) vector for the canonical South-East-facing tank; Norm is
// the precomputed L2 norm used to pick a step size of 0.5/Norm so every
// traversed cell is sampled at least once.
type diagRay struct {
	DX, DY   float64
	Norm     float64
	MaxRange float64 // max Euclidean distance from the firer, in cells
}

var diagonalCone = func() [9]diagRay {
	raw := [9][2]float64{
		{1, 4}, {1, 3}, {1, 2}, {2, 3}, {1, 1}, {3, 2}, {2, 1}, {3, 1}, {4, 1},
	}
	ranges := [9]float64{2, 2.5, 3, 3.5, 4, 3.5, 3, 2.5, 2}
	var out [9]diagRay
	for i, v := range raw {
		norm := math.Hypot(v[0], v[1])
		out[i] = diagRay{DX: v[0], DY: v[1], Norm: norm, MaxRange: ranges[i]}
	}
	return out
}()

// mirrorOrthogonal maps a canonical East-facing ray delta (dx=1,dy=slope)
// into the coordinate frame of facing d (spec: "slopes are mirrored for
// the three non-east orthogonals").
func mirrorOrthogonal(d Direction, slope float64) (dx, dy float64) {
	switch d {
	case East:
		return 1, slope
	case West:
		return -1, -slope
	case North:
		// Hand-coded special case (spec §9 Open Questions): the center ray
		// (index 3) keeps its sign; all others are negated relative to the
		// naive transpose, matching the source's documented quirk.
		return slope, -1
	case South:
		return slope, 1
	default:
		return 1, slope
	}
}

func mirrorOrthogonalIndexed(d Direction, idx int, slope float64) (dx, dy float64) {
	if d == North && idx != 3 {
		dx, dy = mirrorOrthogonal(d, -slope)
		return
	}
	return mirrorOrthogonal(d, slope)
}

// mirrorDiagonal rotates the canonical SouthEast-facing diagonal ray table
// into the frame of facing d.
func mirrorDiagonal(d Direction, dx, dy float64) (float64, float64) {
	switch d {
	case SouthEast:
		return dx, dy
	case NorthEast:
		return dx, -dy
	case SouthWest:
		return -dx, dy
	case NorthWest:
		return -dx, -dy
	default:
		return dx, dy
	}
}

// ComputeView returns the fog-of-war grid for one tank: a copy of g with
// every cell marked not-visible and occupant cleared, then populated by
// ray-casting from the tank's position along its barrel direction. Pure
// function of (g, tank's position/direction) — repeated calls are
// deterministic (spec §8 vision determinism property).
func (g *Grid) ComputeView(tankX, tankY int, barrel Direction) *Grid {
	view := g.Clone()
	for i := range view.Cells {
		view.Cells[i].Visible = false
		view.Cells[i].Occupant = NoTank
	}

	markVisible := func(x, y int) {
		vc, ok := view.At(x, y)
		if !ok {
			return
		}
		vc.Visible = true
		if src, ok := g.At(x, y); ok {
			vc.Occupant = src.Occupant
		}
	}

	markVisible(tankX, tankY)

	if barrel.IsOrthogonal() {
		castOrthogonalCone(g, view, tankX, tankY, barrel, markVisible)
	} else {
		castDiagonalCone(g, view, tankX, tankY, barrel, markVisible)
	}

	return view
}

func castOrthogonalCone(g, view *Grid, ox, oy int, barrel Direction, markVisible func(x, y int)) {
	for idx, ray := range orthogonalCone {
		dx, dy := mirrorOrthogonalIndexed(barrel, idx, ray.slope)
		castOrthogonalRay(g, ox, oy, dx, dy, ray.maxRange, markVisible)
	}
}

// castOrthogonalRay steps along the primary axis (whichever of dx/dy has
// magnitude 1) one cell at a time, resolving the cross-axis fractional
// offset against the half-cell grazing rule.
func castOrthogonalRay(g *Grid, ox, oy int, dx, dy float64, maxRange int, markVisible func(x, y int)) {
	primaryIsX := math.Abs(dx) >= math.Abs(dy)
	for step := 1; step <= maxRange; step++ {
		var x, y int
		var cross float64
		if primaryIsX {
			x = ox + step*int(sign(dx))
			cross = float64(oy) + dy*float64(step)
			y = resolveCross(cross)
		} else {
			y = oy + step*int(sign(dy))
			cross = float64(ox) + dx*float64(step)
			x = resolveCross(cross)
		}

		cell, ok := g.At(x, y)
		if !ok {
			return
		}

		if graze(cross) {
			markVisible(x, y)
			continue
		}
		if cell.Kind == Terrain {
			return
		}
		markVisible(x, y)
	}
}

// resolveCross picks the grid row/column for a fractional cross-axis
// coordinate: strictly above the half-line tests the upper neighbour,
// strictly below tests the lower neighbour (spec §4.2).
func resolveCross(v float64) int {
	floor := math.Floor(v)
	frac := v - floor
	if frac > 0.5 {
		return int(floor) + 1
	}
	return int(floor)
}

func graze(v float64) bool {
	floor := math.Floor(v)
	frac := v - floor
	return frac > 0.5-halfCellEpsilon && frac < 0.5+halfCellEpsilon
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	if v > 0 {
		return 1
	}
	return 0
}

func castDiagonalCone(g, view *Grid, ox, oy int, barrel Direction, markVisible func(x, y int)) {
	for _, ray := range diagonalCone {
		dx, dy := mirrorDiagonal(barrel, ray.DX, ray.DY)
		castDiagonalRay(g, ox, oy, dx, dy, ray.Norm, ray.MaxRange, markVisible)
	}
}

func castDiagonalRay(g *Grid, ox, oy int, dx, dy, norm, maxRange float64, markVisible func(x, y int)) {
	ux, uy := dx/norm, dy/norm
	step := 0.5 / norm

	visited := make(map[[2]int]bool, int(maxRange)*2)
	for t := step; t <= maxRange; t += step {
		fx := float64(ox) + ux*t
		fy := float64(oy) + uy*t
		x, y := int(math.Round(fx)), int(math.Round(fy))

		cell, ok := g.At(x, y)
		if !ok {
			return
		}
		if cell.Kind == Terrain {
			return
		}
		key := [2]int{x, y}
		if !visited[key] {
			visited[key] = true
			markVisible(x, y)
		}
	}
}
