package matchmaker

import "testing"

import "github.com/stretchr/testify/assert"

func TestEloDelta_WinnerGainsLoserLoses(t *testing.T) {
	win := EloDelta(1500, []int32{1500}, 0, 2)
	lose := EloDelta(1500, []int32{1500}, 1, 2)
	assert.Greater(t, win, int32(0))
	assert.Less(t, lose, int32(0))
	assert.Equal(t, win, -lose)
}

func TestEloDelta_UnderdogWinGainsMore(t *testing.T) {
	underdog := EloDelta(1400, []int32{1600}, 0, 2)
	favorite := EloDelta(1600, []int32{1400}, 0, 2)
	assert.Greater(t, underdog, favorite)
}

func TestEloDelta_SinglePlayerIsZero(t *testing.T) {
	assert.Equal(t, int32(0), EloDelta(1500, nil, 0, 1))
}

func TestEloDelta_PairwiseAverageDiffersFromPooledAverage(t *testing.T) {
	// One strong (2100) and one weak (1300) opponent average to the same
	// pooled rating (1700) as two 1700 opponents, but the average of the
	// per-opponent expectations (about 0.40) is not the expectation
	// against the pooled average (about 0.24), so the same first place
	// earns a different delta (+31 vs +39).
	lopsided := EloDelta(1500, []int32{2100, 1300}, 0, 3)
	symmetric := EloDelta(1500, []int32{1700, 1700}, 0, 3)
	assert.NotEqual(t, lopsided, symmetric)
}

func TestEloDelta_ClampsExtremeRatingGaps(t *testing.T) {
	// A 4000-point gap (10 decades) exceeds the +-7 decade clamp, so the
	// heavy favorite's expectation saturates at 1.0 rather than
	// overflowing the logistic's exponent: an upset loss costs exactly
	// K (32), not a vanishingly small clamped-away amount.
	delta := EloDelta(4500, []int32{500}, 1, 2)
	assert.Equal(t, int32(-32), delta)
}

func TestEloDelta_FloorsNewRatingAtEloFloor(t *testing.T) {
	// An even matchup loss would normally drop the rating by K/2 (16),
	// but EloFloor+10 can only fall to EloFloor.
	delta := EloDelta(EloFloor+10, []int32{EloFloor + 10}, 1, 2)
	assert.Equal(t, int32(-10), delta)
}
