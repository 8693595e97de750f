package rules

import (
	"testing"

	"github.com/brensch/blockdrop/game"
)

func emptyBoard(t *testing.T, w, h int) *game.Board {
	t.Helper()
	b, err := game.NewBoard(w, h)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// withCells returns an empty board with the given cells filled.
func withCells(t *testing.T, w, h int, cells ...game.Point) *game.Board {
	t.Helper()
	layout := make([][]uint8, h)
	for y := range layout {
		layout[y] = make([]uint8, w)
	}
	for _, c := range cells {
		layout[c.Y][c.X] = 1
	}
	b, err := game.FromLayout(layout, nil)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func logPiece(t *testing.T, label string, b *game.Board, p game.Piece) {
	c := b.Clone()
	if c.Fits(p) {
		c.Place(p)
	}
	t.Logf("%s %v rot=%d pos=%v\n%s", label, p.Kind, p.Rot, p.Pos, c.TopRows())
}

func TestSpawn_IOneRowLower(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	if p := Spawn(b, game.T); p.Pos != (game.Point{X: 3, Y: 18}) || p.Rot != 0 {
		t.Fatalf("T spawn=%+v", p)
	}
	if p := Spawn(b, game.I); p.Pos != (game.Point{X: 3, Y: 17}) {
		t.Fatalf("I spawn=%+v", p)
	}
}

func TestMove_WallsAndFloor(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	p := game.Piece{Kind: game.O, Pos: game.Point{X: -1, Y: -1}}
	if Collides(b, p.Kind, p.Pos, p.Rot) {
		t.Fatalf("O at left wall on floor should fit")
	}
	if _, ok := Move(b, p, -1, 0); ok {
		t.Fatalf("moved through left wall")
	}
	if _, ok := Move(b, p, 0, -1); ok {
		t.Fatalf("moved through floor")
	}
	next, ok := Move(b, p, 1, 0)
	if !ok || next.Pos != (game.Point{X: 0, Y: -1}) {
		t.Fatalf("move right=%+v ok=%v", next, ok)
	}
	if p.Pos != (game.Point{X: -1, Y: -1}) {
		t.Fatalf("Move mutated its input")
	}
}

func TestIsLocked(t *testing.T) {
	b := withCells(t, 10, 10, game.Point{X: 5, Y: 3})
	floor := game.Piece{Kind: game.O, Pos: game.Point{X: 0, Y: -1}}
	if !IsLocked(b, floor) {
		t.Fatalf("O on floor should be locked")
	}
	air := game.Piece{Kind: game.O, Pos: game.Point{X: 0, Y: 2}}
	if IsLocked(b, air) {
		t.Fatalf("O in the air should not be locked")
	}
	// O cells at x=5,6 y=4,5 sit on the filled cell at (5,3).
	onBlock := game.Piece{Kind: game.O, Pos: game.Point{X: 4, Y: 3}}
	if !IsLocked(b, onBlock) {
		t.Fatalf("O on a block should be locked")
	}
}

func TestHardDrop_GhostCells(t *testing.T) {
	b := withCells(t, 10, 20, game.Point{X: 4, Y: 0}, game.Point{X: 4, Y: 1})
	p := Spawn(b, game.T)
	landed := HardDrop(b, p)
	logPiece(t, "landed", b, landed)
	if !IsLocked(b, landed) {
		t.Fatalf("hard drop should end locked")
	}
	// T rot0 spans x=3..5 on matrix row 1; column 4 is filled up to y=1.
	if landed.Pos != (game.Point{X: 3, Y: 1}) {
		t.Fatalf("landed at %v want {3 1}", landed.Pos)
	}
	ghost := GhostCells(b, p)
	want := landed.Cells()
	for i := range want {
		if ghost[i] != want[i] {
			t.Fatalf("ghost[%d]=%v want=%v", i, ghost[i], want[i])
		}
	}
	if p != Spawn(b, game.T) {
		t.Fatalf("GhostCells mutated its input")
	}
}

func TestRotate_OIsNoOp(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	p := game.Piece{Kind: game.O, Pos: game.Point{X: 4, Y: 4}, Rot: 0}
	got, ok := Rotate(b, p, RotateRight)
	if !ok || got != p {
		t.Fatalf("O rotate=%+v ok=%v", got, ok)
	}
}

func TestRotate_TAgainstLeftWallKicks(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	// T flat on the floor against the left wall.
	p := game.Piece{Kind: game.T, Pos: game.Point{X: 0, Y: -1}, Rot: 0}
	if Collides(b, p.Kind, p.Pos, p.Rot) {
		t.Fatalf("seed collides")
	}
	got, ok := Rotate(b, p, RotateRight)
	logPiece(t, "rotated", b, got)
	if !ok {
		t.Fatalf("rotation should succeed")
	}
	// (0,0) and (-1,0) hit the floor; (-1,1) is the first free offset.
	if got.Rot != 1 || got.Pos != (game.Point{X: -1, Y: 0}) {
		t.Fatalf("rotated to rot=%d pos=%v want rot=1 pos={-1 0}", got.Rot, got.Pos)
	}
}

func TestRotate_TAgainstLeftWallBlocked(t *testing.T) {
	b := withCells(t, 10, 30, game.Point{X: 0, Y: 2})
	p := game.Piece{Kind: game.T, Pos: game.Point{X: 0, Y: -1}, Rot: 0}
	got, ok := Rotate(b, p, RotateRight)
	if ok {
		t.Fatalf("rotation should fail, got %+v", got)
	}
	if got != p {
		t.Fatalf("failed rotation changed the piece: %+v", got)
	}
}

func TestRotate_IUsesOwnTable(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	// Flat I on the floor; its cells are on matrix row 2.
	p := game.Piece{Kind: game.I, Pos: game.Point{X: 0, Y: -2}, Rot: 0}
	got, ok := Rotate(b, p, RotateRight)
	if !ok {
		t.Fatalf("rotation failed")
	}
	// (0,0) puts the upright I at y=-2..1. (-2,0) and (1,0) also hit the
	// floor, (-2,-1) is lower still, (1,2) lands at y=0..3 in column 3.
	if got.Pos != (game.Point{X: 1, Y: 0}) || got.Rot != 1 {
		t.Fatalf("I rotated to %+v", got)
	}
	for _, c := range got.Cells() {
		if c.X != 3 {
			t.Fatalf("I cell %v not in column 3", c)
		}
	}
}

func TestRotate_LeftThenRightRestores(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	for _, k := range []game.Kind{game.I, game.T, game.J, game.L, game.S, game.Z} {
		p := Spawn(b, k)
		l, ok := Rotate(b, p, RotateLeft)
		if !ok || l.Rot != 3 {
			t.Fatalf("%v rotate left=%+v ok=%v", k, l, ok)
		}
		r, ok := Rotate(b, l, RotateRight)
		if !ok || r != p {
			t.Fatalf("%v rotate back=%+v want %+v", k, r, p)
		}
	}
}

func TestRotate180(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	p := Spawn(b, game.J)
	got, ok := Rotate180(b, p)
	if !ok || got.Rot != 2 || got.Pos != p.Pos {
		t.Fatalf("J 180=%+v ok=%v", got, ok)
	}

	// A T on the floor walled in by two cells: no quarter turn fits.
	blocked := withCells(t, 3, 30, game.Point{X: 0, Y: 2}, game.Point{X: 2, Y: 2})
	flat := game.Piece{Kind: game.T, Pos: game.Point{X: 0, Y: -1}, Rot: 0}
	if Collides(blocked, flat.Kind, flat.Pos, flat.Rot) {
		t.Fatalf("seed collides")
	}
	got, ok = Rotate180(blocked, flat)
	if ok || got != flat {
		t.Fatalf("180 on blocked board=%+v ok=%v", got, ok)
	}
}

func TestApply(t *testing.T) {
	b := emptyBoard(t, 10, 30)
	p := Spawn(b, game.S)
	tests := []struct {
		in   Input
		want game.Piece
	}{
		{InputDown, p.WithPos(game.Point{X: 3, Y: 17})},
		{InputLeft, p.WithPos(game.Point{X: 2, Y: 18})},
		{InputRight, p.WithPos(game.Point{X: 4, Y: 18})},
		{InputRotateRight, game.Piece{Kind: game.S, Pos: p.Pos, Rot: 1}},
		{InputRotateLeft, game.Piece{Kind: game.S, Pos: p.Pos, Rot: 3}},
		{InputRotate180, game.Piece{Kind: game.S, Pos: p.Pos, Rot: 2}},
	}
	for _, tc := range tests {
		got, ok := Apply(b, p, tc.in)
		if !ok || got != tc.want {
			t.Errorf("%v: got %+v ok=%v want %+v", tc.in, got, ok, tc.want)
		}
	}
}
