package ui

import (
	"sync"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

func TestViewportMapping(t *testing.T) {
	v := Viewport{Origin: message.Pt(100, 50), Scale: 2}
	assert.Equal(t, message.Pt(105, 60), v.ToCanvas(fyne.NewPos(10, 20)))
	assert.Equal(t, fyne.NewPos(10, 20), v.ToScreen(message.Pt(105, 60)))

	v.Pan(10, -20)
	assert.Equal(t, message.Pt(95, 60), v.Origin)
}

func TestViewportZoomKeepsAnchor(t *testing.T) {
	v := NewViewport()
	at := fyne.NewPos(200, 100)
	before := v.ToCanvas(at)
	v.Zoom(2, at)
	assert.Equal(t, float32(2), v.Scale)
	assert.Equal(t, before, v.ToCanvas(at))

	v.Zoom(100, at)
	assert.Equal(t, float32(maxScale), v.Scale)
	v.Zoom(0.0001, at)
	assert.InDelta(t, minScale, v.Scale, 1e-6)
}

func TestViewportVisible(t *testing.T) {
	v := NewViewport()
	sub := v.Visible(fyne.NewSize(100, 100), 100)
	// Chunks 0..1 on each axis are on screen, plus one chunk of slack.
	assert.Equal(t, 16, sub.Len())
	assert.True(t, sub.Contains(message.Chunk(-1, -1)))
	assert.True(t, sub.Contains(message.Chunk(2, 2)))
	assert.False(t, sub.Contains(message.Chunk(3, 0)))

	moved := CenteredOn(message.Chunk(10, 0), 100)
	assert.True(t, moved.Visible(fyne.NewSize(100, 100), 100).Contains(message.Chunk(10, 0)))
}

func TestGridLines(t *testing.T) {
	v := Viewport{Origin: message.Pt(-50, 0), Scale: 1}
	xs, ys := v.gridLines(fyne.NewSize(200, 99), 100)
	assert.Equal(t, []float32{50, 150}, xs)
	assert.Empty(t, ys)
}

func press(b *BoardWidget, x, y float32) {
	b.MouseDown(&desktop.MouseEvent{
		PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)},
		Button:     desktop.MouseButtonPrimary,
	})
}

func drag(b *BoardWidget, x, y float32) {
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}})
}

func TestBoardStreamsGesture(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	b := NewBoardWidget(state.ModeStream, 3, message.Black, 100)
	b.SetViewport(Viewport{Origin: message.Pt(1000, 0), Scale: 1})
	var sent []message.Message
	b.OnMessages = func(msgs []message.Message) { sent = append(sent, msgs...) }

	press(b, 10, 10)
	drag(b, 20, 10)
	b.DragEnd()
	b.MouseUp(&desktop.MouseEvent{Button: desktop.MouseButtonPrimary})

	require.Len(t, sent, 3)
	first := sent[0].(message.Draw).Msg.(message.PathStepDraw)
	second := sent[1].(message.Draw).Msg.(message.PathStepDraw)
	assert.Equal(t, message.Pt(1010, 10), first.Point)
	assert.Equal(t, message.Pt(1020, 10), second.Point)
	assert.Equal(t, message.Width(3), second.Width)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, message.DrawMessage(message.PathStepEnd{ID: first.ID}), sent[2].(message.Draw).Msg)
}

func TestBoardBatchesGesture(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	b := NewBoardWidget(state.ModeStream, 2, message.Black, 100)
	b.SetMode(state.ModeBatch)
	red := message.NewRGB(255, 0, 0)
	b.SetColor(red)
	var sent []message.Message
	b.OnMessages = func(msgs []message.Message) { sent = append(sent, msgs...) }

	press(b, 1, 1)
	drag(b, 2, 2)
	drag(b, 3, 3)
	require.Empty(t, sent)
	b.DragEnd()

	require.Len(t, sent, 1)
	assert.Equal(t, message.NewDraw(message.Path{
		Points: []message.GlobalCoordinates{message.Pt(1, 1), message.Pt(2, 2), message.Pt(3, 3)},
		Width:  2,
		Color:  red,
	}), sent[0])
}

func TestBoardRendersReconstruction(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	b := NewBoardWidget(state.ModeStream, 2, message.Black, 100)
	r := state.NewReconstructor()
	r.Dispatch(message.Composite{Messages: []message.DrawMessage{
		message.Line{From: message.Pt(0, 0), To: message.Pt(5, 5), Width: 1, Color: message.Black},
		message.Dot{Center: message.Pt(1, 1), Diameter: 2, Color: message.Black},
	}}, b)
	assert.Len(t, b.Primitives(), 2)

	var reported []message.Subscription
	b.OnViewChanged = func(s message.Subscription) { reported = append(reported, s) }
	b.SetViewport(CenteredOn(message.Chunk(5, 5), 100))
	require.Len(t, reported, 1)
	assert.True(t, reported[0].Contains(message.Chunk(5, 5)))
}

func TestBoardReportsViewsInOrder(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	b := NewBoardWidget(state.ModeStream, 2, message.Black, 100)
	var reported []message.Subscription
	b.OnViewChanged = func(s message.Subscription) { reported = append(reported, s) }

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.SetViewport(CenteredOn(message.Chunk(int32(i), 0), 100))
		}()
	}
	wg.Wait()

	require.NotEmpty(t, reported)
	final := b.Viewport().Visible(fyne.NewSize(0, 0), 100)
	assert.True(t, final.Equal(reported[len(reported)-1]))
}
