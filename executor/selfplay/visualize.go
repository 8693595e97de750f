// visualize.go - Console rendering for debugging self-play games.
package selfplay

import (
	"fmt"
	"io"
	"strings"

	"github.com/brensch/blockdrop/game"
	"github.com/brensch/blockdrop/rules"
)

// RenderBoard draws b top row first. When ghost is non-nil its hard-drop
// cells are drawn as '+' and its current cells as '*'.
func RenderBoard(b *game.Board, ghost *game.Piece) string {
	overlay := map[game.Point]byte{}
	if ghost != nil {
		for _, c := range rules.GhostCells(b, *ghost) {
			overlay[c] = '+'
		}
		for _, c := range ghost.Cells() {
			overlay[c] = '*'
		}
	}

	var sb strings.Builder
	sb.WriteString("+" + strings.Repeat("-", b.Width()) + "+\n")
	for y := b.Height() - 1; y >= 0; y-- {
		sb.WriteByte('|')
		for x := 0; x < b.Width(); x++ {
			if ch, ok := overlay[game.Point{X: x, Y: y}]; ok {
				sb.WriteByte(ch)
				continue
			}
			if v := b.Cell(x, y); v != 0 {
				sb.WriteString(game.Kind(v).String())
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString("+" + strings.Repeat("-", b.Width()) + "+\n")
	return sb.String()
}

// PrintBoard writes a trace block for one turn.
func PrintBoard(w io.Writer, turn int, b *game.Board, ghost *game.Piece) {
	header := fmt.Sprintf("=== TRACE Turn %d ===", turn)
	if ghost != nil {
		header = fmt.Sprintf("=== TRACE Turn %d (%s at %d,%d rot %d) ===", turn, ghost.Kind, ghost.Pos.X, ghost.Pos.Y, ghost.Rot)
	}
	fmt.Fprintf(w, "\n%s\n%s", header, RenderBoard(b, ghost))
}
