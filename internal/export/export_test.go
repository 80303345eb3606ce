package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

func horizontal() message.Line {
	return message.Line{From: message.Pt(0, 0), To: message.Pt(100, 0), Width: 10, Color: message.Black}
}

func TestFitKeepsAspect(t *testing.T) {
	f := fit([]state.Primitive{horizontal()}, 220, 120, 10)
	// Padded bounds are (-5,-5)..(105,5): width limits the scale.
	assert.InDelta(t, 200.0/110.0, f.scale, 1e-9)
	assert.InDelta(t, 10, f.x(-5), 1e-9)
	assert.InDelta(t, 210, f.x(105), 1e-9)
	assert.InDelta(t, 10+5*f.scale, f.y(0), 1e-9)
}

func TestFitEmpty(t *testing.T) {
	f := fit(nil, 100, 100, 5)
	assert.Equal(t, 1.0, f.scale)
	assert.Equal(t, 5.0, f.x(0))
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.png")
	prims := []state.Primitive{horizontal()}
	require.NoError(t, WritePNG(path, prims, 220, 120))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 220, img.Bounds().Dx())

	f := fit(prims, 220, 120, pngMargin)
	r, g, b, _ := img.At(int(f.x(50)), int(f.y(0))).RGBA()
	assert.Less(t, r+g+b, uint32(3*0x4000), "line centre is dark")
	r, g, b, _ = img.At(int(f.x(50)), 110).RGBA()
	assert.Equal(t, uint32(3*0xffff), r+g+b, "background stays white")
}

func TestSheetSave(t *testing.T) {
	dir := t.TempDir()
	var sheet Sheet
	r := state.NewReconstructor()
	r.Dispatch(message.Path{
		Points: []message.GlobalCoordinates{message.Pt(0, 0), message.Pt(10, 10), message.Pt(20, 0)},
		Width:  2,
		Color:  message.NewRGB(200, 10, 10),
	}, &sheet)
	r.Dispatch(message.Dot{Center: message.Pt(5, 5), Diameter: 4, Color: message.Black}, &sheet)
	require.Len(t, sheet.Primitives(), 3)

	pdfPath := filepath.Join(dir, "board.pdf")
	require.NoError(t, sheet.Save(pdfPath))
	data, err := os.ReadFile(pdfPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	pngPath := filepath.Join(dir, "board.PNG")
	require.NoError(t, sheet.Save(pngPath))
	data, err = os.ReadFile(pngPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))

	assert.Error(t, sheet.Save(filepath.Join(dir, "board.svg")))
}

func TestRGB(t *testing.T) {
	r, g, b := rgb(message.NewRGB(1, 2, 250))
	assert.Equal(t, []int{1, 2, 250}, []int{r, g, b})
	r, g, b = rgb(nil)
	assert.Equal(t, []int{0, 0, 0}, []int{r, g, b})
}
