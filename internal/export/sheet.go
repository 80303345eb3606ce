// Package export renders reconstructed strokes into PDF and PNG files.
package export

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

// Sheet is a Renderer that keeps every primitive so it can be written out later.
type Sheet struct {
	mu    sync.Mutex
	prims []state.Primitive
}

func (s *Sheet) DrawLine(l message.Line) {
	s.mu.Lock()
	s.prims = append(s.prims, l)
	s.mu.Unlock()
}

func (s *Sheet) DrawDot(d message.Dot) {
	s.mu.Lock()
	s.prims = append(s.prims, d)
	s.mu.Unlock()
}

func (s *Sheet) Refresh() {}

// Primitives returns a copy of everything drawn so far.
func (s *Sheet) Primitives() []state.Primitive {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]state.Primitive, len(s.prims))
	copy(out, s.prims)
	return out
}

// Save writes the sheet to path, choosing the format from its extension.
func (s *Sheet) Save(path string) error {
	prims := s.Primitives()
	slog.Info("exporting", "path", path, "primitives", len(prims))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return WritePDF(path, prims)
	case ".png":
		return WritePNG(path, prims, DefaultPNGWidth, DefaultPNGHeight)
	}
	return fmt.Errorf("unsupported export format %q: want .pdf or .png", filepath.Ext(path))
}

// frame maps canvas coordinates onto a page, keeping the aspect ratio.
type frame struct {
	minX, minY float64
	scale      float64
	margin     float64
}

func fit(prims []state.Primitive, w, h, margin float64) frame {
	if len(prims) == 0 {
		return frame{scale: 1, margin: margin}
	}
	area := state.Bounds(prims[0])
	for _, p := range prims[1:] {
		area = area.Union(state.Bounds(p))
	}
	bw := float64(area.MaxX - area.MinX)
	bh := float64(area.MaxY - area.MinY)
	scale := 1.0
	if bw > 0 && bh > 0 {
		scale = min((w-2*margin)/bw, (h-2*margin)/bh)
	} else if bw > 0 {
		scale = (w - 2*margin) / bw
	} else if bh > 0 {
		scale = (h - 2*margin) / bh
	}
	return frame{
		minX:   float64(area.MinX),
		minY:   float64(area.MinY),
		scale:  scale,
		margin: margin,
	}
}

func (f frame) x(v float32) float64 { return f.margin + (float64(v)-f.minX)*f.scale }
func (f frame) y(v float32) float64 { return f.margin + (float64(v)-f.minY)*f.scale }

func (f frame) width(w message.Width) float64 {
	if !w.Valid() {
		return 0
	}
	return float64(w) * f.scale
}

func rgb(c message.Color) (r, g, b int) {
	if c == nil {
		return 0, 0, 0
	}
	cr, cg, cb, _ := c.RGBA()
	return int(cr >> 8), int(cg >> 8), int(cb >> 8)
}
