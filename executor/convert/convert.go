// Package convert encodes board grids as float32 tensors for a learned
// layout scorer.
//
// Output shape per grid: [Channels, Height, Width] (C, H, W), row 0 is the
// bottom row. Grids larger than the encoder are cropped; smaller ones are
// zero padded.
package convert

import (
	"sync"
)

const (
	// Channel layout:
	// 0: occupancy (1 for a filled cell)
	// 1: column height, every cell at or below a column top holds (top+1)/Height
	// 2: holes (1 for an empty cell with a filled cell above it)
	ChannelOccupancy = iota
	ChannelHeight
	ChannelHoles
	Channels
)

// Encoder converts grids of one fixed size.
type Encoder struct {
	Width  int
	Height int

	pool sync.Pool
}

func NewEncoder(width, height int) *Encoder {
	e := &Encoder{Width: width, Height: height}
	size := e.Size()
	e.pool.New = func() any {
		b := make([]float32, size)
		return &b
	}
	return e
}

// Size is the number of floats for one grid.
func (e *Encoder) Size() int {
	return Channels * e.Width * e.Height
}

// Get returns a pooled buffer of Size floats. Contents are unspecified.
func (e *Encoder) Get() *[]float32 {
	return e.pool.Get().(*[]float32)
}

// Put returns a buffer obtained from Get or LayoutToFloat32.
func (e *Encoder) Put(b *[]float32) {
	e.pool.Put(b)
}

// LayoutToFloat32 encodes grid into a pooled buffer. Caller must return it
// with Put.
func (e *Encoder) LayoutToFloat32(grid [][]uint8) *[]float32 {
	ptr := e.Get()
	e.Encode(grid, *ptr)
	return ptr
}

// Encode writes grid into dst, which must hold Size floats.
func (e *Encoder) Encode(grid [][]uint8, dst []float32) {
	clear(dst)
	plane := e.Width * e.Height
	h := min(len(grid), e.Height)
	norm := float32(e.Height)

	for x := 0; x < e.Width; x++ {
		top := -1
		for y := h - 1; y >= 0; y-- {
			if x >= len(grid[y]) {
				break
			}
			idx := y*e.Width + x
			if grid[y][x] != 0 {
				dst[ChannelOccupancy*plane+idx] = 1
				if top < 0 {
					top = y
				}
				continue
			}
			if top >= 0 {
				dst[ChannelHoles*plane+idx] = 1
			}
		}
		if top < 0 {
			continue
		}
		v := float32(top+1) / norm
		for y := 0; y <= top; y++ {
			dst[ChannelHeight*plane+y*e.Width+x] = v
		}
	}
}

// EncodeBatch packs grids back to back into dst, growing it as needed.
func (e *Encoder) EncodeBatch(grids [][][]uint8, dst []float32) []float32 {
	size := e.Size()
	need := size * len(grids)
	if cap(dst) < need {
		dst = make([]float32, need)
	}
	dst = dst[:need]
	for i, g := range grids {
		e.Encode(g, dst[i*size:(i+1)*size])
	}
	return dst
}
