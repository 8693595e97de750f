package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Planes(t *testing.T) {
	e := NewEncoder(3, 4)
	// Bottom first: column 0 has a hole at y=0 under a cell at y=1.
	grid := [][]uint8{
		{0, 2, 0},
		{5, 2, 0},
		{0, 0, 0},
		{0, 0, 0},
	}
	ptr := e.LayoutToFloat32(grid)
	defer e.Put(ptr)
	data := *ptr
	require.Len(t, data, Channels*3*4)

	at := func(c, x, y int) float32 { return data[c*12+y*3+x] }

	assert.Equal(t, float32(1), at(ChannelOccupancy, 0, 1))
	assert.Equal(t, float32(0), at(ChannelOccupancy, 0, 0))
	assert.Equal(t, float32(1), at(ChannelHoles, 0, 0))
	assert.Equal(t, float32(0), at(ChannelHoles, 1, 0))

	assert.Equal(t, float32(0.5), at(ChannelHeight, 0, 0))
	assert.Equal(t, float32(0.5), at(ChannelHeight, 1, 1))
	assert.Equal(t, float32(0), at(ChannelHeight, 1, 2))
	assert.Equal(t, float32(0), at(ChannelHeight, 2, 0))
}

func TestEncode_ReusedBufferIsCleared(t *testing.T) {
	e := NewEncoder(2, 2)
	buf := make([]float32, e.Size())
	e.Encode([][]uint8{{1, 1}, {1, 1}}, buf)
	e.Encode([][]uint8{{0, 0}, {0, 0}}, buf)
	for i, v := range buf {
		assert.Zero(t, v, "index %d", i)
	}
}

func TestEncode_CropsTallGrid(t *testing.T) {
	e := NewEncoder(2, 2)
	grid := [][]uint8{{1, 0}, {0, 0}, {0, 1}}
	buf := make([]float32, e.Size())
	e.Encode(grid, buf)
	assert.Equal(t, float32(1), buf[0])
	assert.Equal(t, float32(0), buf[3])
}

func TestEncodeBatch(t *testing.T) {
	e := NewEncoder(2, 2)
	grids := [][][]uint8{
		{{0, 0}, {0, 0}},
		{{1, 0}, {0, 0}},
	}
	out := e.EncodeBatch(grids, nil)
	require.Len(t, out, 2*e.Size())
	assert.Equal(t, float32(0), out[0])
	assert.Equal(t, float32(1), out[e.Size()])
}
