package export

import (
	"fmt"
	"image/color"

	"github.com/fogleman/gg"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

const (
	DefaultPNGWidth  = 1920
	DefaultPNGHeight = 1080
	pngMargin        = 20
)

// WritePNG rasterises prims onto a white w by h image.
func WritePNG(path string, prims []state.Primitive, w, h int) error {
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetLineCapRound()

	f := fit(prims, float64(w), float64(h), pngMargin)
	for _, prim := range prims {
		switch prim := prim.(type) {
		case message.Line:
			dc.SetColor(colorOf(prim.Color))
			dc.SetLineWidth(f.width(prim.Width))
			dc.DrawLine(f.x(prim.From.X), f.y(prim.From.Y), f.x(prim.To.X), f.y(prim.To.Y))
			dc.Stroke()
		case message.Dot:
			dc.SetColor(colorOf(prim.Color))
			dc.DrawCircle(f.x(prim.Center.X), f.y(prim.Center.Y), f.width(prim.Diameter)/2)
			dc.Fill()
		}
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to write png %s: %w", path, err)
	}
	return nil
}

func colorOf(c message.Color) color.Color {
	if c == nil {
		return color.Black
	}
	return c
}
