package game

// Shape matrices are written top row first so they read like the piece
// looks; init flips them so that row 0 is the bottom row, matching the board.
var rawShapes = map[Kind][4][][]uint8{
	I: {
		{
			{0, 0, 0, 0},
			{1, 1, 1, 1},
			{0, 0, 0, 0},
			{0, 0, 0, 0},
		},
		{
			{0, 0, 1, 0},
			{0, 0, 1, 0},
			{0, 0, 1, 0},
			{0, 0, 1, 0},
		},
		{
			{0, 0, 0, 0},
			{0, 0, 0, 0},
			{1, 1, 1, 1},
			{0, 0, 0, 0},
		},
		{
			{0, 1, 0, 0},
			{0, 1, 0, 0},
			{0, 1, 0, 0},
			{0, 1, 0, 0},
		},
	},
	O: {
		{{0, 2, 2, 0}, {0, 2, 2, 0}, {0, 0, 0, 0}},
		{{0, 2, 2, 0}, {0, 2, 2, 0}, {0, 0, 0, 0}},
		{{0, 2, 2, 0}, {0, 2, 2, 0}, {0, 0, 0, 0}},
		{{0, 2, 2, 0}, {0, 2, 2, 0}, {0, 0, 0, 0}},
	},
	T: {
		{{0, 3, 0}, {3, 3, 3}, {0, 0, 0}},
		{{0, 3, 0}, {0, 3, 3}, {0, 3, 0}},
		{{0, 0, 0}, {3, 3, 3}, {0, 3, 0}},
		{{0, 3, 0}, {3, 3, 0}, {0, 3, 0}},
	},
	J: {
		{{4, 0, 0}, {4, 4, 4}, {0, 0, 0}},
		{{0, 4, 4}, {0, 4, 0}, {0, 4, 0}},
		{{0, 0, 0}, {4, 4, 4}, {0, 0, 4}},
		{{0, 4, 0}, {0, 4, 0}, {4, 4, 0}},
	},
	L: {
		{{0, 0, 5}, {5, 5, 5}, {0, 0, 0}},
		{{0, 5, 0}, {0, 5, 0}, {0, 5, 5}},
		{{0, 0, 0}, {5, 5, 5}, {5, 0, 0}},
		{{5, 5, 0}, {0, 5, 0}, {0, 5, 0}},
	},
	S: {
		{{0, 6, 6}, {6, 6, 0}, {0, 0, 0}},
		{{0, 6, 0}, {0, 6, 6}, {0, 0, 6}},
		{{0, 0, 0}, {0, 6, 6}, {6, 6, 0}},
		{{6, 0, 0}, {6, 6, 0}, {0, 6, 0}},
	},
	Z: {
		{{7, 7, 0}, {0, 7, 7}, {0, 0, 0}},
		{{0, 0, 7}, {0, 7, 7}, {0, 7, 0}},
		{{0, 0, 0}, {7, 7, 0}, {0, 7, 7}},
		{{0, 7, 0}, {7, 7, 0}, {7, 0, 0}},
	},
	X: {
		{{8, 0, 8}, {0, 0, 0}, {8, 0, 8}},
		{{8, 0, 8}, {0, 0, 0}, {8, 0, 8}},
		{{8, 0, 8}, {0, 0, 0}, {8, 0, 8}},
		{{8, 0, 8}, {0, 0, 0}, {8, 0, 8}},
	},
}

// shapeInfo is the precomputed form of one (kind, rotation) matrix.
type shapeInfo struct {
	matrix [][]uint8
	cells  []Point
	minCol int
	maxCol int
}

var shapes [X + 1][4]shapeInfo

var boundingWidth [X + 1]int

func init() {
	for kind, rots := range rawShapes {
		widest := 0
		for r, top := range rots {
			n := len(top)
			m := make([][]uint8, n)
			for i := range top {
				row := make([]uint8, len(top[i]))
				copy(row, top[i])
				m[n-1-i] = row
			}
			info := shapeInfo{matrix: m, minCol: -1, maxCol: -1}
			for y, row := range m {
				for x, v := range row {
					if v == 0 {
						continue
					}
					info.cells = append(info.cells, Point{X: x, Y: y})
					if info.minCol < 0 || x < info.minCol {
						info.minCol = x
					}
					if x > info.maxCol {
						info.maxCol = x
					}
				}
			}
			shapes[kind][r] = info
			if w := info.maxCol - info.minCol + 1; w > widest {
				widest = w
			}
		}
		boundingWidth[kind] = widest
	}
}

// Shape returns a copy of the (kind, rotation) matrix, bottom row first.
func Shape(k Kind, rot int) [][]uint8 {
	src := shapes[k][rot&3].matrix
	out := make([][]uint8, len(src))
	for i := range src {
		out[i] = append([]uint8(nil), src[i]...)
	}
	return out
}

// Offsets returns the occupied cells of the (kind, rotation) matrix relative
// to the matrix origin. The returned slice must not be modified.
func Offsets(k Kind, rot int) []Point {
	return shapes[k][rot&3].cells
}

// ColumnSpan returns the lowest and highest occupied matrix columns.
func ColumnSpan(k Kind, rot int) (lo, hi int) {
	s := &shapes[k][rot&3]
	return s.minCol, s.maxCol
}

// BoundingWidth is the widest occupied column span over all rotations.
func (k Kind) BoundingWidth() int {
	if !k.Valid() {
		return 0
	}
	return boundingWidth[k]
}
