package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeView_OwnCellAlwaysVisible(t *testing.T) {
	g, err := NewGrid(10, 10)
	require.NoError(t, err)

	view := g.ComputeView(5, 5, East)
	cell, ok := view.At(5, 5)
	require.True(t, ok)
	assert.True(t, cell.Visible)
}

func TestComputeView_IsDeterministic(t *testing.T) {
	g, err := NewGrid(10, 10)
	require.NoError(t, err)
	blocker, _ := g.At(7, 5)
	blocker.Kind = Terrain

	v1 := g.ComputeView(5, 5, East)
	v2 := g.ComputeView(5, 5, East)

	require.Equal(t, len(v1.Cells), len(v2.Cells))
	for i := range v1.Cells {
		assert.Equal(t, v1.Cells[i], v2.Cells[i], "cell %d", i)
	}
}

func TestComputeView_OrthogonalConeWidensAtDistanceTwo(t *testing.T) {
	g, err := NewGrid(10, 10)
	require.NoError(t, err)

	view := g.ComputeView(0, 5, East)

	// At distance 2 the cone covers rows 4,5,6 per the fixed slope table.
	for _, y := range []int{4, 5, 6} {
		cell, ok := view.At(2, y)
		require.True(t, ok)
		assert.True(t, cell.Visible, "expected (2,%d) visible", y)
	}
}

func TestComputeView_TerrainBlocksRayBeyondGrazeBand(t *testing.T) {
	g, err := NewGrid(10, 10)
	require.NoError(t, err)
	blocker, _ := g.At(3, 5)
	blocker.Kind = Terrain

	view := g.ComputeView(0, 5, East)

	farCell, ok := view.At(4, 5)
	require.True(t, ok)
	assert.False(t, farCell.Visible, "cell beyond center-line terrain should stay hidden")
}

func TestComputeView_NorthSouthHandCodedSpecialCase(t *testing.T) {
	g, err := NewGrid(10, 10)
	require.NoError(t, err)

	viewNorth := g.ComputeView(5, 9, North)
	viewSouth := g.ComputeView(5, 0, South)

	// Both cones are symmetric about their boresight column/row regardless
	// of the north/south slope-negation special case for non-center rays.
	for _, y := range []int{7, 8} {
		n, ok := viewNorth.At(4, y)
		require.True(t, ok)
		n2, ok := viewNorth.At(6, y)
		require.True(t, ok)
		assert.Equal(t, n.Visible, n2.Visible)
	}
	for _, y := range []int{1, 2} {
		s, ok := viewSouth.At(4, y)
		require.True(t, ok)
		s2, ok := viewSouth.At(6, y)
		require.True(t, ok)
		assert.Equal(t, s.Visible, s2.Visible)
	}
}

func TestComputeView_DiagonalConeCoversBoresight(t *testing.T) {
	g, err := NewGrid(10, 10)
	require.NoError(t, err)

	view := g.ComputeView(2, 2, SouthEast)
	cell, ok := view.At(4, 4)
	require.True(t, ok)
	assert.True(t, cell.Visible)
}

func TestComputeView_OccupantCopiedOnlyWhenVisible(t *testing.T) {
	g, err := NewGrid(10, 10)
	require.NoError(t, err)
	cell, _ := g.At(9, 9)
	cell.Occupant = 42

	view := g.ComputeView(0, 0, East)
	vc, ok := view.At(9, 9)
	require.True(t, ok)
	assert.False(t, vc.Visible)
	assert.Equal(t, NoTank, vc.Occupant)
}
