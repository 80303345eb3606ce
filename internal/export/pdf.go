package export

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

const (
	pageWidth  = 297 // A4 landscape, mm
	pageHeight = 210
	pageMargin = 10
)

// WritePDF draws prims scaled to fit a single A4 landscape page.
func WritePDF(path string, prims []state.Primitive) error {
	p := gofpdf.New("L", "mm", "A4", "")
	p.SetTitle("InkBoard export", true)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	f := fit(prims, pageWidth, pageHeight, pageMargin)
	for _, prim := range prims {
		switch prim := prim.(type) {
		case message.Line:
			p.SetDrawColor(rgb(prim.Color))
			p.SetLineWidth(f.width(prim.Width))
			p.Line(f.x(prim.From.X), f.y(prim.From.Y), f.x(prim.To.X), f.y(prim.To.Y))
		case message.Dot:
			p.SetFillColor(rgb(prim.Color))
			p.Circle(f.x(prim.Center.X), f.y(prim.Center.Y), f.width(prim.Diameter)/2, "F")
		}
	}
	if err := p.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write pdf %s: %w", path, err)
	}
	return nil
}
