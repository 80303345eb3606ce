package state

import (
	"sync"

	"InkBoard/internal/message"
)

// Renderer consumes reconstructed primitives. Refresh is called once after
// every dispatched message, including each Composite batch as a whole.
type Renderer interface {
	DrawLine(l message.Line)
	DrawDot(d message.Dot)
	Refresh()
}

// Primitive is a drawable produced by reconstruction: message.Line or message.Dot.
type Primitive = message.Primitive

// Draw forwards p to r.
func Draw(r Renderer, p Primitive) {
	switch p := p.(type) {
	case message.Line:
		r.DrawLine(p)
	case message.Dot:
		r.DrawDot(p)
	}
}

// Synchronized serialises calls into r so it can be shared between the read
// loop and local input.
func Synchronized(r Renderer) Renderer {
	if _, ok := r.(*lockedRenderer); ok {
		return r
	}
	return &lockedRenderer{r: r}
}

type lockedRenderer struct {
	mu sync.Mutex
	r  Renderer
}

func (l *lockedRenderer) DrawLine(line message.Line) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.DrawLine(line)
}

func (l *lockedRenderer) DrawDot(d message.Dot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.DrawDot(d)
}

func (l *lockedRenderer) Refresh() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Refresh()
}

// Recorder is a Renderer that keeps everything it is given in memory.
type Recorder struct {
	Primitives []Primitive
	Refreshes  int
}

func (r *Recorder) DrawLine(l message.Line) { r.Primitives = append(r.Primitives, l) }
func (r *Recorder) DrawDot(d message.Dot)   { r.Primitives = append(r.Primitives, d) }
func (r *Recorder) Refresh()                { r.Refreshes++ }

// Replay draws every recorded primitive onto dst and refreshes it once.
func (r *Recorder) Replay(dst Renderer) {
	for _, p := range r.Primitives {
		Draw(dst, p)
	}
	dst.Refresh()
}

// Lines returns only the recorded line segments.
func (r *Recorder) Lines() []message.Line {
	var out []message.Line
	for _, p := range r.Primitives {
		if l, ok := p.(message.Line); ok {
			out = append(out, l)
		}
	}
	return out
}
