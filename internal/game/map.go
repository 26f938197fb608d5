package game

import "github.com/tankwar/server/internal/grid"

// MapDescriptor is the game-level counterpart of wire.MapDescriptor: it
// additionally carries the terrain layout and placement mask needed to
// build a GameInstance (spec §3 "created at match start from a
// MapDescriptor").
type MapDescriptor struct {
	W, H           uint8
	TanksPerPlayer uint8
	NumPlayers     uint8
	Mode           uint8
	Terrain        []bool  // length W*H, true = Terrain
	PlacementMask  []uint8 // length W*H, player id or NoPlayer sentinel
}

// NoPlayer marks a placement-mask tile as unowned by any player.
const NoPlayer = 0xFF

// sampleMaps holds the canned layouts a Matchmaker strategy draws from
// per mode (spec §4.5: "draw a random map for the mode"). Map keys are
// the wire mode byte.
// Mode bytes as they appear on the wire and in matchmaker queue keys
// (spec §4.5 "Casual-N (N in {2,3,5})" plus "Ranked-2").
const (
	ModeRanked2 uint8 = iota
	ModeCasual3
	ModeCasual5
	ModeCasual2
)

// sampleMaps carries more than one layout per mode where practical so
// the matchmaker's per-mode random draw (in internal/matchmaker's
// constructMatchLocked, mirroring MapRepository::get_random_map) has
// something to choose
// between instead of degenerating to a single fixed map.
var sampleMaps = map[uint8][]MapDescriptor{
	ModeRanked2: {classicTwoPlayerMap(), openTwoPlayerMap()},
	ModeCasual3: {casualThreeMap()},
	ModeCasual5: {casualFiveMap()},
	ModeCasual2: {casualTwoMap(), openTwoPlayerMap().withMode(ModeCasual2)},
}

// MapsForMode returns the candidate maps for a mode, or nil if the mode
// has none registered.
func MapsForMode(mode uint8) []MapDescriptor {
	return sampleMaps[mode]
}

func emptyMask(w, h int) []uint8 {
	m := make([]uint8, w*h)
	for i := range m {
		m[i] = NoPlayer
	}
	return m
}

func classicTwoPlayerMap() MapDescriptor {
	const w, h = 12, 10
	terrain := make([]bool, w*h)
	for _, xy := range [][2]int{{5, 4}, {6, 4}, {5, 5}, {6, 5}} {
		terrain[xy[0]+xy[1]*w] = true
	}
	mask := emptyMask(w, h)
	for y := 0; y < h; y++ {
		mask[0+y*w] = 0
		mask[w-1+y*w] = 1
	}
	return MapDescriptor{
		W: w, H: h, TanksPerPlayer: 3, NumPlayers: 2, Mode: ModeRanked2,
		Terrain: terrain, PlacementMask: mask,
	}
}

// casualTwoMap reuses the ranked 2-player layout's dimensions with a
// lighter loadout (spec §4.5 treats Casual-2 as an unranked sibling of
// Ranked-2, same player count).
func casualTwoMap() MapDescriptor {
	const w, h = 12, 10
	terrain := make([]bool, w*h)
	mask := emptyMask(w, h)
	for y := 0; y < h; y++ {
		mask[0+y*w] = 0
		mask[w-1+y*w] = 1
	}
	return MapDescriptor{
		W: w, H: h, TanksPerPlayer: 2, NumPlayers: 2, Mode: ModeCasual2,
		Terrain: terrain, PlacementMask: mask,
	}
}

func casualThreeMap() MapDescriptor {
	const w, h = 14, 12
	terrain := make([]bool, w*h)
	for x := 5; x < 9; x++ {
		terrain[x+6*w] = true
	}
	mask := emptyMask(w, h)
	for x := 0; x < w; x++ {
		mask[x+0*w] = 0
	}
	for y := 0; y < h; y++ {
		mask[0+y*w] = 1
	}
	for x := 0; x < w; x++ {
		mask[x+(h-1)*w] = 2
	}
	return MapDescriptor{
		W: w, H: h, TanksPerPlayer: 2, NumPlayers: 3, Mode: ModeCasual3,
		Terrain: terrain, PlacementMask: mask,
	}
}

func casualFiveMap() MapDescriptor {
	const w, h = 18, 18
	terrain := make([]bool, w*h)
	cx, cy := w/2, h/2
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			terrain[(cx+dx)+(cy+dy)*w] = true
		}
	}
	mask := emptyMask(w, h)
	corners := [][2]int{{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1}, {cx, 0}}
	for pid, c := range corners {
		for dx := 0; dx < 2 && c[0]+dx < w; dx++ {
			for dy := 0; dy < 2 && c[1]+dy < h; dy++ {
				mask[(c[0]+dx)+(c[1]+dy)*w] = uint8(pid)
			}
		}
	}
	return MapDescriptor{
		W: w, H: h, TanksPerPlayer: 1, NumPlayers: 5, Mode: ModeCasual5,
		Terrain: terrain, PlacementMask: mask,
	}
}

// withMode returns a copy of d tagged for a different mode, used to
// share a layout's geometry across Ranked-2 and its unranked Casual-2
// sibling without duplicating the terrain/mask literals.
func (d MapDescriptor) withMode(mode uint8) MapDescriptor {
	d.Mode = mode
	return d
}

// openTwoPlayerMap is a second Ranked-2/Casual-2 layout with no terrain
// at all, an open field variant of classicTwoPlayerMap's cover-in-the-
// middle design.
func openTwoPlayerMap() MapDescriptor {
	const w, h = 12, 10
	terrain := make([]bool, w*h)
	mask := emptyMask(w, h)
	for y := 0; y < h; y++ {
		mask[0+y*w] = 0
		mask[w-1+y*w] = 1
	}
	return MapDescriptor{
		W: w, H: h, TanksPerPlayer: 3, NumPlayers: 2, Mode: ModeRanked2,
		Terrain: terrain, PlacementMask: mask,
	}
}

func buildGrid(d MapDescriptor) (*grid.Grid, error) {
	g, err := grid.NewGrid(int(d.W), int(d.H))
	if err != nil {
		return nil, err
	}
	for y := 0; y < int(d.H); y++ {
		for x := 0; x < int(d.W); x++ {
			if d.Terrain[x+y*int(d.W)] {
				cell, _ := g.At(x, y)
				cell.Kind = grid.Terrain
			}
		}
	}
	return g, nil
}
