package state

import (
	"fmt"
	"log/slog"

	"InkBoard/internal/message"
)

// Reconstructor turns inbound draw messages into line and dot primitives. It
// remembers the last point of every open incremental stroke.
//
// A Reconstructor belongs to one connection's read loop and is not safe for
// concurrent use. Steps of one stroke must arrive in send order: there are no
// sequence numbers, so reordering silently produces wrong segments.
type Reconstructor struct {
	anchors map[message.PathID]message.GlobalCoordinates
	log     *slog.Logger
}

func NewReconstructor() *Reconstructor {
	return &Reconstructor{
		anchors: make(map[message.PathID]message.GlobalCoordinates),
		log:     slog.With("component", "reconstruct"),
	}
}

// Apply returns the primitives m produces, in order, updating stroke state.
func (r *Reconstructor) Apply(m message.DrawMessage) []Primitive {
	return r.apply(m, nil)
}

func (r *Reconstructor) apply(m message.DrawMessage, out []Primitive) []Primitive {
	switch m := m.(type) {
	case message.Composite:
		// Nested composites are not sent by well-behaved peers but are flattened.
		for _, sub := range m.Messages {
			out = r.apply(sub, out)
		}
	case message.Path:
		for i := 1; i < len(m.Points); i++ {
			out = append(out, message.Line{
				From:  m.Points[i-1],
				To:    m.Points[i],
				Width: m.Width,
				Color: m.Color,
			})
		}
	case message.Line:
		out = append(out, m)
	case message.Dot:
		out = append(out, m)
	case message.PathStepDraw:
		if prev, ok := r.anchors[m.ID]; ok {
			out = append(out, message.Line{
				From:  prev,
				To:    m.Point,
				Width: m.Width,
				Color: m.Color,
			})
		}
		r.anchors[m.ID] = m.Point
	case message.PathStepEnd:
		delete(r.anchors, m.ID)
	default:
		r.log.Warn("ignoring unknown draw message", "type", fmt.Sprintf("%T", m))
	}
	return out
}

// Dispatch applies m, draws the result on dst and refreshes dst once.
// It returns the number of primitives drawn.
func (r *Reconstructor) Dispatch(m message.DrawMessage, dst Renderer) int {
	prims := r.Apply(m)
	for _, p := range prims {
		Draw(dst, p)
	}
	dst.Refresh()
	return len(prims)
}

// Anchor returns the last point seen for an open stroke.
func (r *Reconstructor) Anchor(id message.PathID) (message.GlobalCoordinates, bool) {
	p, ok := r.anchors[id]
	return p, ok
}

// Pending is the number of strokes that have not been ended.
func (r *Reconstructor) Pending() int {
	return len(r.anchors)
}

// Reset forgets every open stroke, as on connection teardown.
func (r *Reconstructor) Reset() {
	clear(r.anchors)
}
