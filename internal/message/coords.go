package message

import (
	"fmt"
	"math"
)

// DefaultChunkSize is the side of one chunk in canvas units. Every peer must
// use the same value; it is not negotiated on the wire.
const DefaultChunkSize float32 = 1404

// GlobalCoordinates is a point on the shared canvas. Equality is exact.
type GlobalCoordinates struct {
	X float32
	Y float32
}

func Pt(x, y float32) GlobalCoordinates {
	return GlobalCoordinates{X: x, Y: y}
}

// ChunkCoordinates identifies one square tile of the canvas.
type ChunkCoordinates struct {
	X int32
	Y int32
}

func Chunk(x, y int32) ChunkCoordinates {
	return ChunkCoordinates{X: x, Y: y}
}

// Less orders chunks by x, then y.
func (c ChunkCoordinates) Less(o ChunkCoordinates) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	return c.Y < o.Y
}

func (c ChunkCoordinates) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// ToChunk returns the chunk containing g, using floor(coord / chunkSize) on
// each axis so negative coordinates round toward negative infinity.
//
// The result is unspecified when a coordinate is NaN or infinite, or when the
// quotient does not fit in an int32: Go leaves such float-to-int conversions
// implementation defined.
func ToChunk(g GlobalCoordinates, chunkSize float32) ChunkCoordinates {
	return ChunkCoordinates{
		X: floorDiv(g.X, chunkSize),
		Y: floorDiv(g.Y, chunkSize),
	}
}

func floorDiv(v, size float32) int32 {
	return int32(math.Floor(float64(v) / float64(size)))
}
