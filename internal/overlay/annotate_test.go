package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/pagepilot/internal/crawler"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}))
	return buf.Bytes()
}

func near(a, b uint32) bool {
	d := int(a>>8) - int(b>>8)
	return d >= -4 && d <= 4
}

func TestAnnotateEmptyElementsKeepsContent(t *testing.T) {
	a := NewAnnotator("", zaptest.NewLogger(t))
	raw := encode(t, solid(64, 48, color.RGBA{30, 120, 200, 255}))

	out := a.Annotate(raw, nil)

	in, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	got, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, in.Bounds(), got.Bounds())

	for y := 0; y < 48; y += 7 {
		for x := 0; x < 64; x += 7 {
			r1, g1, b1, _ := in.At(x, y).RGBA()
			r2, g2, b2, _ := got.At(x, y).RGBA()
			assert.True(t, near(r1, r2) && near(g1, g2) && near(b1, b2), "pixel (%d,%d) changed", x, y)
		}
	}
}

func TestAnnotateUndecodableInputReturnedUnchanged(t *testing.T) {
	a := NewAnnotator("", zaptest.NewLogger(t))
	raw := []byte("not an image")
	assert.Equal(t, raw, a.Annotate(raw, []crawler.ElementDescriptor{{ID: 0}}))
}

func TestDrawOutlineAndLabel(t *testing.T) {
	a := NewAnnotator("", zaptest.NewLogger(t))
	img := solid(200, 200, color.White)

	a.draw(img, []crawler.ElementDescriptor{
		{ID: 7, Tag: "button", BoundingBox: &crawler.BoundingBox{X: 20, Y: 30, Width: 120, Height: 60}},
		{ID: 8, Tag: "a"},
	})

	red := color.RGBA{255, 0, 0, 255}
	assert.Equal(t, red, img.RGBAAt(20, 60), "left edge")
	assert.Equal(t, red, img.RGBAAt(80, 30), "top edge")
	assert.Equal(t, red, img.RGBAAt(80, 89), "bottom edge")
	assert.Equal(t, red, img.RGBAAt(139, 60), "right edge")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(80, 60), "interior untouched")

	// The label sits inside the top-right corner, so some white glyph pixels
	// and red fill appear just left of the right edge.
	var redCount, whiteCount int
	for y := 31; y < 50; y++ {
		for x := 120; x < 137; x++ {
			switch img.RGBAAt(x, y) {
			case red:
				redCount++
			case color.RGBA{255, 255, 255, 255}:
				whiteCount++
			}
		}
	}
	assert.Greater(t, redCount, 20)
	assert.Greater(t, whiteCount, 0)
}

func TestNewAnnotatorMissingFontFallsBack(t *testing.T) {
	a := NewAnnotator("/nonexistent/font.ttf", zaptest.NewLogger(t))
	require.NotNil(t, a.face)

	img := solid(50, 50, color.White)
	a.draw(img, []crawler.ElementDescriptor{{ID: 0, BoundingBox: &crawler.BoundingBox{X: 0, Y: 0, Width: 50, Height: 50}}})
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 0))
}
