package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"

	"InkBoard/internal/export"
	"InkBoard/internal/state"
)

// SaveBoard writes everything the board has drawn to path (.pdf or .png).
func SaveBoard(board *BoardWidget, path string) error {
	var sheet export.Sheet
	rec := state.Recorder{Primitives: board.Primitives()}
	rec.Replay(&sheet)
	return sheet.Save(path)
}

// exportAction asks for a file name and saves the board there.
func exportAction(board *BoardWidget, win fyne.Window) func() {
	return func() {
		save := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, win)
				return
			}
			if w == nil {
				return
			}
			path := w.URI().Path()
			// The exporters write by path.
			_ = w.Close()
			if err := SaveBoard(board, path); err != nil {
				dialog.ShowError(err, win)
				return
			}
			board.SetStatus("Saved " + path)
		}, win)
		save.SetFileName("board.pdf")
		save.SetFilter(storage.NewExtensionFileFilter([]string{".pdf", ".png"}))
		save.Show()
	}
}
