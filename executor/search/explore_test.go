package search

import (
	"math/rand"
	"testing"

	"github.com/brensch/blockdrop/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emptyBoard(t *testing.T, w, h int) *game.Board {
	t.Helper()
	b, err := game.NewBoard(w, h)
	require.NoError(t, err)
	return b
}

func layoutBoard(t *testing.T, layout [][]uint8) *game.Board {
	t.Helper()
	b, err := game.FromLayout(layout, nil)
	require.NoError(t, err)
	return b
}

// randomStack returns a 10x30 board whose bottom rows each hold at most five
// filled cells, so no single placement can complete a row.
func randomStack(rng *rand.Rand, rows int) [][]uint8 {
	layout := make([][]uint8, 30)
	for y := range layout {
		layout[y] = make([]uint8, 10)
		if y >= rows {
			continue
		}
		for _, x := range rng.Perm(10)[:rng.Intn(6)] {
			layout[y][x] = uint8(game.Kinds[rng.Intn(len(game.Kinds))])
		}
	}
	return layout
}

func TestExplore_OOnEmptyBoard(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	res, err := Explore(b, game.O, Options{})
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	require.Len(t, res.Layouts, 9)

	seen := map[int]bool{}
	for _, l := range res.Layouts {
		require.Len(t, l.History, 1)
		cells := l.History[0].Cells()
		minX := cells[0].X
		for _, c := range cells {
			assert.Contains(t, []int{0, 1}, c.Y, "O cell %v not on the floor", c)
			assert.Equal(t, uint8(game.O), l.Board.Cell(c.X, c.Y))
			if c.X < minX {
				minX = c.X
			}
		}
		seen[minX] = true
	}
	for x := 0; x <= 8; x++ {
		assert.True(t, seen[x], "missing O at column %d", x)
	}
}

func TestExplore_LayoutsDifferOnlyByPlacement(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		start := layoutBoard(t, randomStack(rng, 6))
		for _, kind := range game.Kinds {
			res, err := Explore(start, kind, Options{})
			require.NoError(t, err)
			require.NotEmpty(t, res.Layouts)

			for _, l := range res.Layouts {
				placed := map[game.Point]bool{}
				for _, c := range l.History[0].Cells() {
					placed[c] = true
				}
				for y := 0; y < start.Height(); y++ {
					for x := 0; x < start.Width(); x++ {
						before, after := start.Cell(x, y), l.Board.Cell(x, y)
						if placed[game.Point{X: x, Y: y}] {
							if before != 0 || after != uint8(kind) {
								t.Fatalf("trial %d %v: placed cell (%d,%d) before=%d after=%d\n%s", trial, kind, x, y, before, after, l.Board.TopRows())
							}
							continue
						}
						if before != after {
							t.Fatalf("trial %d %v: untouched cell (%d,%d) changed %d -> %d", trial, kind, x, y, before, after)
						}
					}
				}
			}
		}
	}
}

func TestExplore_ClearsRows(t *testing.T) {
	layout := make([][]uint8, 20)
	for y := range layout {
		layout[y] = make([]uint8, 10)
	}
	for x := 0; x < 9; x++ {
		layout[0][x] = uint8(game.L)
	}
	start := layoutBoard(t, layout)
	res, err := Explore(start, game.I, Options{})
	require.NoError(t, err)

	var cleared *game.Board
	for _, l := range res.Layouts {
		if l.Board.Cell(0, 0) == uint8(game.L) {
			continue
		}
		cleared = l.Board
	}
	require.NotNil(t, cleared, "no layout cleared the bottom row")
	t.Logf("cleared:\n%s", cleared.TopRows())
	// The upright I in column 9 clears row 0, leaving three I cells.
	for y := 0; y < 3; y++ {
		assert.Equal(t, uint8(game.I), cleared.Cell(9, y))
	}
	assert.Equal(t, uint8(0), cleared.Cell(9, 3))
}

func TestExplore_Validation(t *testing.T) {
	b := emptyBoard(t, 3, 10)
	_, err := Explore(b, game.I, Options{})
	assert.ErrorIs(t, err, ErrBoardTooNarrow)

	_, err = Explore(b, game.Kind(9), Options{})
	assert.ErrorIs(t, err, game.ErrInvalidKind)

	_, err = Explore(b, game.KindNone, Options{})
	assert.ErrorIs(t, err, game.ErrInvalidKind)

	res, err := Explore(b, game.T, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Layouts)
}

func TestExplore_Truncates(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	res, err := Explore(b, game.T, Options{Limit: 3})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Layouts, 3)

	full, err := Explore(b, game.T, Options{})
	require.NoError(t, err)
	assert.False(t, full.Truncated)
	assert.Greater(t, len(full.Layouts), 3)
}

func TestExplore_TopOutReturnsEmpty(t *testing.T) {
	layout := make([][]uint8, 30)
	for y := range layout {
		layout[y] = make([]uint8, 10)
		if y >= 15 {
			for x := range layout[y] {
				layout[y][x] = uint8(game.Z)
			}
		}
	}
	b := layoutBoard(t, layout)
	for _, kind := range game.Kinds {
		res, err := Explore(b, kind, Options{})
		require.NoError(t, err)
		assert.Empty(t, res.Layouts, "%v", kind)
		assert.False(t, res.Truncated)
	}
}

func TestExplore_HistoryIsCopied(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	prefix := []game.Piece{{Kind: game.T, Pos: game.Point{X: 0, Y: -1}}}
	res, err := Explore(b, game.O, Options{History: prefix})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Layouts), 2)

	for _, l := range res.Layouts {
		require.Len(t, l.History, 2)
		assert.Equal(t, prefix[0], l.History[0])
		assert.Equal(t, game.O, l.History[1].Kind)
	}
	res.Layouts[0].History[0].Pos.X = 99
	assert.Equal(t, 0, res.Layouts[1].History[0].Pos.X)
	assert.Equal(t, 0, prefix[0].Pos.X)
}

func TestExplore_ShiftsReachUnderOverhang(t *testing.T) {
	layout := make([][]uint8, 20)
	for y := range layout {
		layout[y] = make([]uint8, 10)
	}
	for x := 0; x < 4; x++ {
		layout[2][x] = uint8(game.J)
	}
	b := layoutBoard(t, layout)

	tucked := func(ls []PossibleLayout) bool {
		for _, l := range ls {
			if l.Board.Cell(0, 0) == uint8(game.O) && l.Board.Cell(1, 1) == uint8(game.O) {
				return true
			}
		}
		return false
	}

	plain, err := Explore(b, game.O, Options{})
	require.NoError(t, err)
	assert.False(t, tucked(plain.Layouts), "drop-only search reached under the shelf")

	shifted, err := Explore(b, game.O, Options{Shifts: true})
	require.NoError(t, err)
	assert.True(t, tucked(shifted.Layouts), "shift search missed the tuck")
	assert.Greater(t, len(shifted.Layouts), len(plain.Layouts))
}

func TestExplore_DoesNotMutateInput(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	start := layoutBoard(t, randomStack(rng, 5))
	before := start.Layout()
	_, err := Explore(start, game.S, Options{Shifts: true})
	require.NoError(t, err)
	assert.Equal(t, before, start.Layout())
}
