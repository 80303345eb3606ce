package ui

import (
	"math"

	"fyne.io/fyne/v2"

	"InkBoard/internal/message"
)

const (
	minScale  = 0.3
	maxScale  = 3.0
	zoomStep  = 1.2
	viewSlack = 1 // extra chunks subscribed around the visible area
)

// Viewport maps widget positions onto the infinite canvas. Origin is the
// canvas point shown at the widget's top left corner.
type Viewport struct {
	Origin message.GlobalCoordinates
	Scale  float32
}

func NewViewport() Viewport {
	return Viewport{Scale: 1}
}

// CenteredOn returns a viewport whose top left corner is the origin of chunk c.
func CenteredOn(c message.ChunkCoordinates, chunkSize float32) Viewport {
	return Viewport{
		Origin: message.Pt(float32(c.X)*chunkSize, float32(c.Y)*chunkSize),
		Scale:  1,
	}
}

func (v Viewport) ToCanvas(p fyne.Position) message.GlobalCoordinates {
	return message.Pt(v.Origin.X+p.X/v.Scale, v.Origin.Y+p.Y/v.Scale)
}

func (v Viewport) ToScreen(g message.GlobalCoordinates) fyne.Position {
	return fyne.NewPos((g.X-v.Origin.X)*v.Scale, (g.Y-v.Origin.Y)*v.Scale)
}

// Pan moves the view by a screen space delta, as when dragging the canvas.
func (v *Viewport) Pan(dx, dy float32) {
	v.Origin.X -= dx / v.Scale
	v.Origin.Y -= dy / v.Scale
}

// Zoom scales around the screen point at, keeping it fixed.
func (v *Viewport) Zoom(factor float32, at fyne.Position) {
	anchor := v.ToCanvas(at)
	v.Scale = float32(math.Max(minScale, math.Min(maxScale, float64(v.Scale*factor))))
	v.Origin.X = anchor.X - at.X/v.Scale
	v.Origin.Y = anchor.Y - at.Y/v.Scale
}

// Visible is the subscription covering a widget of the given size, plus a
// margin so strokes just outside the view are already loaded.
func (v Viewport) Visible(size fyne.Size, chunkSize float32) message.Subscription {
	lo := message.ToChunk(v.Origin, chunkSize)
	hi := message.ToChunk(v.ToCanvas(fyne.NewPos(size.Width, size.Height)), chunkSize)
	return message.SubscriptionBetween(lo, hi, viewSlack)
}

// gridLines returns the chunk boundaries crossing a widget of the given size,
// in screen coordinates along each axis.
func (v Viewport) gridLines(size fyne.Size, chunkSize float32) (xs, ys []float32) {
	lo := message.ToChunk(v.Origin, chunkSize)
	hi := message.ToChunk(v.ToCanvas(fyne.NewPos(size.Width, size.Height)), chunkSize)
	for x := int64(lo.X) + 1; x <= int64(hi.X); x++ {
		xs = append(xs, v.ToScreen(message.Pt(float32(x)*chunkSize, 0)).X)
	}
	for y := int64(lo.Y) + 1; y <= int64(hi.Y); y++ {
		ys = append(ys, v.ToScreen(message.Pt(0, float32(y)*chunkSize)).Y)
	}
	return xs, ys
}
