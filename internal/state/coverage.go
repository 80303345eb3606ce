package state

import (
	"math"

	"InkBoard/internal/message"
)

const (
	// MaxCoverage caps how many chunks one primitive's bounding box may expand
	// to. A line with a larger box is covered by the chunks its centerline
	// crosses instead, a dot by the chunk holding its center.
	MaxCoverage = 1024
	// MaxWalk caps how many chunks are listed for one long line. A line
	// crossing more is covered by the first MaxWalk-1 chunks from its start
	// plus the chunk holding its end.
	MaxWalk = 1 << 16
)

// Area is an axis aligned rectangle in canvas units.
type Area struct {
	MinX, MinY float32
	MaxX, MaxY float32
}

// Bounds returns the box around a primitive, padded by half its width.
func Bounds(p Primitive) Area {
	switch p := p.(type) {
	case message.Line:
		pad := halfWidth(p.Width)
		return Area{
			MinX: min(p.From.X, p.To.X) - pad,
			MinY: min(p.From.Y, p.To.Y) - pad,
			MaxX: max(p.From.X, p.To.X) + pad,
			MaxY: max(p.From.Y, p.To.Y) + pad,
		}
	case message.Dot:
		pad := halfWidth(p.Diameter)
		return Area{
			MinX: p.Center.X - pad,
			MinY: p.Center.Y - pad,
			MaxX: p.Center.X + pad,
			MaxY: p.Center.Y + pad,
		}
	}
	return Area{}
}

func halfWidth(w message.Width) float32 {
	if !w.Valid() || math.IsInf(float64(w), 0) {
		return 0
	}
	return float32(w) / 2
}

// Union grows a to cover b.
func (a Area) Union(b Area) Area {
	return Area{
		MinX: min(a.MinX, b.MinX),
		MinY: min(a.MinY, b.MinY),
		MaxX: max(a.MaxX, b.MaxX),
		MaxY: max(a.MaxY, b.MaxY),
	}
}

// Chunks lists every chunk the area overlaps. The box of a diagonal segment
// over-approximates the chunks it really crosses.
func (a Area) Chunks(chunkSize float32) []message.ChunkCoordinates {
	lo := message.ToChunk(message.Pt(a.MinX, a.MinY), chunkSize)
	hi := message.ToChunk(message.Pt(a.MaxX, a.MaxY), chunkSize)
	w := int64(hi.X) - int64(lo.X) + 1
	h := int64(hi.Y) - int64(lo.Y) + 1
	if w <= 0 || h <= 0 || w*h > MaxCoverage {
		return nil
	}
	out := make([]message.ChunkCoordinates, 0, w*h)
	for x := lo.X; ; x++ {
		for y := lo.Y; ; y++ {
			out = append(out, message.Chunk(x, y))
			if y == hi.Y {
				break
			}
		}
		if x == hi.X {
			break
		}
	}
	return out
}

// PrimitiveChunks returns the chunks a primitive touches.
func PrimitiveChunks(p Primitive, chunkSize float32) []message.ChunkCoordinates {
	if chunks := Bounds(p).Chunks(chunkSize); chunks != nil {
		return chunks
	}
	switch p := p.(type) {
	case message.Line:
		return dedupe(walk(p.From, p.To, chunkSize))
	case message.Dot:
		return []message.ChunkCoordinates{message.ToChunk(p.Center, chunkSize)}
	}
	return nil
}

// walk lists the chunks the segment from a to b crosses, in order, stepping
// one grid line at a time.
func walk(a, b message.GlobalCoordinates, chunkSize float32) []message.ChunkCoordinates {
	start := message.ToChunk(a, chunkSize)
	end := message.ToChunk(b, chunkSize)
	out := []message.ChunkCoordinates{start}
	if start == end {
		return out
	}

	size := float64(chunkSize)
	x, y := int64(start.X), int64(start.Y)
	ex, ey := int64(end.X), int64(end.Y)
	stepX, nextX, deltaX := gridAxis(float64(a.X)/size, float64(b.X-a.X)/size, x)
	stepY, nextY, deltaY := gridAxis(float64(a.Y)/size, float64(b.Y-a.Y)/size, y)
	for (x != ex || y != ey) && len(out) < MaxWalk-1 {
		// Each axis stops at the end chunk even if rounding says otherwise.
		if y == ey || (x != ex && nextX < nextY) {
			x += stepX
			nextX += deltaX
		} else {
			y += stepY
			nextY += deltaY
		}
		out = append(out, message.Chunk(int32(x), int32(y)))
	}
	if out[len(out)-1] != end {
		out = append(out, end)
	}
	return out
}

// gridAxis returns, for one axis of a segment starting at p (in chunk units)
// and moving by d over its length, the step direction, the fraction of the
// length at which the first grid line is crossed, and the fraction between
// later crossings.
func gridAxis(p, d float64, c int64) (step int64, next, delta float64) {
	switch {
	case d > 0:
		return 1, (float64(c+1) - p) / d, 1 / d
	case d < 0:
		return -1, (float64(c) - p) / d, -1 / d
	}
	return 0, math.Inf(1), math.Inf(1)
}

// Coverage returns the sorted, deduplicated chunks touched by prims.
func Coverage(prims []Primitive, chunkSize float32) []message.ChunkCoordinates {
	var all []message.ChunkCoordinates
	for _, p := range prims {
		all = append(all, PrimitiveChunks(p, chunkSize)...)
	}
	return dedupe(all)
}

func dedupe(chunks []message.ChunkCoordinates) []message.ChunkCoordinates {
	if len(chunks) == 0 {
		return nil
	}
	return message.SubscriptionOf(chunks...).Chunks()
}
