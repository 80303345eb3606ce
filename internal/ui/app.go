// Package ui is the interactive fyne front end: a pannable canvas that renders
// reconstructed strokes and captures new ones from the pointer.
package ui

import (
	"context"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
)

// RunApp shows board in a window and blocks until the window closes or ctx
// ends. onStarted runs once the fyne event loop is up, so it may start
// goroutines that draw on board.
func RunApp(ctx context.Context, title string, board *BoardWidget, onStarted func()) {
	a := app.NewWithID("io.inkboard")
	win := a.NewWindow(title)
	win.Resize(fyne.NewSize(1024, 768))

	toolbar := NewToolbar(board, exportAction(board, win))
	win.SetContent(container.NewBorder(toolbar, board.StatusBar(), nil, nil, board))

	if onStarted != nil {
		a.Lifecycle().SetOnStarted(onStarted)
	}
	stop := context.AfterFunc(ctx, func() { fyne.Do(a.Quit) })
	defer stop()
	win.ShowAndRun()
}
