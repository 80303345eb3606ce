package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

// Palette is the set of colours offered as swatches.
var Palette = []message.Color{
	message.Black,
	message.NewRGB(220, 40, 40),
	message.NewRGB(40, 160, 60),
	message.NewRGB(40, 80, 220),
	message.NewRGB(240, 200, 0),
}

type colorSwatch struct {
	widget.BaseWidget
	Color    message.Color
	OnTapped func(message.Color)
}

func newColorSwatch(c message.Color, tapped func(message.Color)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(32, 32))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

// NewToolbar builds the colour, width, capture mode and view controls.
// onExport is called when the user asks to save the board; it may be nil.
func NewToolbar(board *BoardWidget, onExport func()) fyne.CanvasObject {
	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.ZoomInIcon(), board.ZoomIn),
		widget.NewToolbarAction(theme.ZoomOutIcon(), board.ZoomOut),
		widget.NewToolbarAction(theme.GridIcon(), board.ToggleGrid),
	)
	if onExport != nil {
		tb.Append(widget.NewToolbarSeparator())
		tb.Append(widget.NewToolbarAction(theme.DocumentSaveIcon(), onExport))
	}

	colorBox := container.NewHBox()
	for _, c := range Palette {
		colorBox.Add(newColorSwatch(c, board.SetColor))
	}

	board.mu.Lock()
	width, mode := board.width, board.mode
	board.mu.Unlock()

	widthSlider := widget.NewSlider(1, 50)
	widthSlider.SetValue(float64(width))
	widthSlider.OnChanged = func(v float64) {
		board.SetWidth(message.Width(v))
	}
	sliderContainer := container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), widthSlider)

	modeSelect := widget.NewSelect([]string{state.ModeStream, state.ModeBatch}, board.SetMode)
	modeSelect.SetSelected(mode)

	return container.NewHBox(
		tb,
		widget.NewSeparator(),
		widget.NewLabel("Color:"),
		colorBox,
		widget.NewSeparator(),
		widget.NewLabel("Size:"),
		sliderContainer,
		widget.NewSeparator(),
		widget.NewLabel("Send:"),
		modeSelect,
		layout.NewSpacer(),
	)
}
