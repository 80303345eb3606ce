package ui

import (
	"image/color"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

var (
	backgroundColor = color.NRGBA{R: 245, G: 246, B: 248, A: 255}
	gridColor       = color.NRGBA{R: 220, G: 220, B: 220, A: 160}
	previewColor    = color.NRGBA{R: 0, G: 0, B: 0, A: 96}
)

// BoardWidget shows the reconstructed canvas and turns pointer gestures into
// outbound messages. It is a state.Renderer; DrawLine and DrawDot may be
// called from any goroutine.
type BoardWidget struct {
	widget.BaseWidget

	mu        sync.Mutex
	prims     []state.Primitive
	preview   []message.GlobalCoordinates
	view      Viewport
	size      fyne.Size
	chunkSize float32
	showGrid  bool

	viewMu   sync.Mutex           // orders view change reports
	lastView message.Subscription // guarded by mu

	mode    string
	width   message.Width
	color   message.Color
	capture state.Capture
	drawing bool

	// OnMessages receives captured messages in the order they must be sent.
	OnMessages func([]message.Message)
	// OnViewChanged receives the chunks visible after a pan, zoom or resize.
	// It is called with an internal lock held and must not block.
	OnViewChanged func(message.Subscription)

	status *widget.Label
	log    *slog.Logger
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ fyne.Scrollable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)
var _ state.Renderer = (*BoardWidget)(nil)

func NewBoardWidget(mode string, width message.Width, col message.Color, chunkSize float32) *BoardWidget {
	b := &BoardWidget{
		view:      NewViewport(),
		chunkSize: chunkSize,
		showGrid:  true,
		lastView:  message.EmptySubscription(),
		mode:      mode,
		width:     width,
		color:     col,
		status:    widget.NewLabel("Ready"),
		log:       slog.With("component", "board"),
	}
	b.resetCapture()
	b.ExtendBaseWidget(b)
	return b
}

// resetCapture rebuilds the capture after a tool change. Callers hold mu or
// own b exclusively.
func (b *BoardWidget) resetCapture() {
	c, err := state.NewCapture(b.mode, b.width, b.color, nil)
	if err != nil {
		b.log.Error("falling back to stream capture", "err", err)
		b.mode = state.ModeStream
		c, _ = state.NewCapture(b.mode, b.width, b.color, nil)
	}
	b.capture = c
}

func (b *BoardWidget) DrawLine(l message.Line) {
	b.mu.Lock()
	b.prims = append(b.prims, l)
	b.mu.Unlock()
}

func (b *BoardWidget) DrawDot(d message.Dot) {
	b.mu.Lock()
	b.prims = append(b.prims, d)
	b.mu.Unlock()
}

// Refresh redraws the widget on the fyne goroutine.
func (b *BoardWidget) Refresh() {
	fyne.Do(b.BaseWidget.Refresh)
}

// Primitives returns a copy of everything drawn so far.
func (b *BoardWidget) Primitives() []state.Primitive {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]state.Primitive, len(b.prims))
	copy(out, b.prims)
	return out
}

func (b *BoardWidget) SetStatus(text string) {
	fyne.Do(func() { b.status.SetText(text) })
}

func (b *BoardWidget) StatusBar() fyne.CanvasObject {
	return b.status
}

func (b *BoardWidget) SetColor(c message.Color) {
	b.setTool(func() { b.color = c })
}

func (b *BoardWidget) SetWidth(w message.Width) {
	b.setTool(func() { b.width = w })
}

func (b *BoardWidget) SetMode(mode string) {
	b.setTool(func() { b.mode = mode })
}

// setTool applies a tool change. A gesture in progress keeps its old settings.
func (b *BoardWidget) setTool(change func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	change()
	if !b.drawing {
		b.resetCapture()
	}
}

// Viewport returns the current view.
func (b *BoardWidget) Viewport() Viewport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

func (b *BoardWidget) SetViewport(v Viewport) {
	b.mu.Lock()
	b.view = v
	b.mu.Unlock()
	b.viewChanged()
}

func (b *BoardWidget) ZoomIn()  { b.zoom(zoomStep) }
func (b *BoardWidget) ZoomOut() { b.zoom(1 / zoomStep) }

func (b *BoardWidget) zoom(factor float32) {
	b.mu.Lock()
	b.view.Zoom(factor, fyne.NewPos(b.size.Width/2, b.size.Height/2))
	b.mu.Unlock()
	b.viewChanged()
}

func (b *BoardWidget) ToggleGrid() {
	b.mu.Lock()
	b.showGrid = !b.showGrid
	b.mu.Unlock()
	b.Refresh()
}

// viewChanged redraws and reports a changed set of visible chunks. Reports
// are made in the order the views were computed; OnViewChanged must not block.
func (b *BoardWidget) viewChanged() {
	b.viewMu.Lock()
	defer b.viewMu.Unlock()
	b.mu.Lock()
	visible := b.view.Visible(b.size, b.chunkSize)
	changed := !visible.Equal(b.lastView)
	if changed {
		b.lastView = visible
	}
	b.mu.Unlock()
	b.Refresh()
	if changed && b.OnViewChanged != nil {
		b.OnViewChanged(visible)
	}
}

func (b *BoardWidget) emit(msgs []message.Message) {
	if len(msgs) > 0 && b.OnMessages != nil {
		b.OnMessages(msgs)
	}
}

func (b *BoardWidget) beginStroke(at fyne.Position) {
	b.mu.Lock()
	b.drawing = true
	b.capture.Begin()
	p := b.view.ToCanvas(at)
	msgs := b.capture.Sample(p, float32(b.width))
	b.preview = append(b.preview[:0], p)
	b.mu.Unlock()
	b.emit(msgs)
}

func (b *BoardWidget) sample(at fyne.Position) {
	b.mu.Lock()
	if !b.drawing {
		b.mu.Unlock()
		return
	}
	p := b.view.ToCanvas(at)
	msgs := b.capture.Sample(p, float32(b.width))
	b.preview = append(b.preview, p)
	b.mu.Unlock()
	b.emit(msgs)
	b.Refresh()
}

func (b *BoardWidget) endStroke() {
	b.mu.Lock()
	if !b.drawing {
		b.mu.Unlock()
		return
	}
	b.drawing = false
	msgs := b.capture.End()
	b.preview = b.preview[:0]
	b.resetCapture()
	b.mu.Unlock()
	b.emit(msgs)
	b.Refresh()
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button == desktop.MouseButtonPrimary {
		b.beginStroke(e.Position)
	}
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button == desktop.MouseButtonPrimary {
		b.endStroke()
	}
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	b.mu.Lock()
	drawing := b.drawing
	b.mu.Unlock()
	if drawing {
		b.sample(e.Position)
		return
	}
	b.mu.Lock()
	b.view.Pan(e.Dragged.DX, e.Dragged.DY)
	b.mu.Unlock()
	b.viewChanged()
}

func (b *BoardWidget) DragEnd() {
	b.endStroke()
}

func (b *BoardWidget) Scrolled(e *fyne.ScrollEvent) {
	b.mu.Lock()
	b.view.Pan(e.Scrolled.DX, e.Scrolled.DY)
	b.mu.Unlock()
	b.viewChanged()
}

func (b *BoardWidget) MouseIn(*desktop.MouseEvent) {}
func (b *BoardWidget) MouseOut()                   {}
func (b *BoardWidget) MouseMoved(*desktop.MouseEvent) {}

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	return &boardRenderer{
		board:      b,
		background: canvas.NewRectangle(backgroundColor),
	}
}

// objects builds the canvas objects for the current state.
func (b *BoardWidget) objects(background fyne.CanvasObject) []fyne.CanvasObject {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []fyne.CanvasObject{background}
	if b.showGrid {
		xs, ys := b.view.gridLines(b.size, b.chunkSize)
		for _, x := range xs {
			out = append(out, gridLine(fyne.NewPos(x, 0), fyne.NewPos(x, b.size.Height)))
		}
		for _, y := range ys {
			out = append(out, gridLine(fyne.NewPos(0, y), fyne.NewPos(b.size.Width, y)))
		}
	}
	for _, p := range b.prims {
		switch p := p.(type) {
		case message.Line:
			out = append(out, b.lineObject(p.From, p.To, p.Width, p.Color))
		case message.Dot:
			out = append(out, b.dotObject(p))
		}
	}
	for i := 1; i < len(b.preview); i++ {
		l := canvas.NewLine(previewColor)
		l.StrokeWidth = float32(b.width) * b.view.Scale
		l.Position1 = b.view.ToScreen(b.preview[i-1])
		l.Position2 = b.view.ToScreen(b.preview[i])
		out = append(out, l)
	}
	return out
}

func gridLine(from, to fyne.Position) fyne.CanvasObject {
	l := canvas.NewLine(gridColor)
	l.StrokeWidth = 1
	l.Position1 = from
	l.Position2 = to
	return l
}

func (b *BoardWidget) lineObject(from, to message.GlobalCoordinates, w message.Width, c message.Color) fyne.CanvasObject {
	l := canvas.NewLine(toColor(c))
	l.StrokeWidth = strokeWidth(w) * b.view.Scale
	l.Position1 = b.view.ToScreen(from)
	l.Position2 = b.view.ToScreen(to)
	return l
}

func (b *BoardWidget) dotObject(d message.Dot) fyne.CanvasObject {
	r := strokeWidth(d.Diameter) / 2
	circle := canvas.NewCircle(toColor(d.Color))
	circle.Position1 = b.view.ToScreen(message.Pt(d.Center.X-r, d.Center.Y-r))
	circle.Position2 = b.view.ToScreen(message.Pt(d.Center.X+r, d.Center.Y+r))
	return circle
}

// strokeWidth maps widths a renderer cannot use to zero.
func strokeWidth(w message.Width) float32 {
	if !w.Valid() {
		return 0
	}
	return float32(w)
}

func toColor(c message.Color) color.Color {
	if c == nil {
		return color.Black
	}
	return c
}

type boardRenderer struct {
	board      *BoardWidget
	background *canvas.Rectangle
	objects    []fyne.CanvasObject
}

func (r *boardRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
	r.board.mu.Lock()
	resized := r.board.size != size
	r.board.size = size
	r.board.mu.Unlock()
	if resized {
		go r.board.viewChanged()
	}
}

func (r *boardRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 300)
}

func (r *boardRenderer) Refresh() {
	r.objects = r.board.objects(r.background)
	canvas.Refresh(r.board)
}

func (r *boardRenderer) Objects() []fyne.CanvasObject {
	if r.objects == nil {
		r.objects = r.board.objects(r.background)
	}
	return r.objects
}

func (r *boardRenderer) Destroy() {}
