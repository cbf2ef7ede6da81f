package overlay

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/v0xg/pagepilot/internal/crawler"
)

// Quality is the JPEG quality of annotated output
const Quality = 95

const (
	outlineWidth = 2
	labelInset   = 5 // from the box's right edge
	labelPadding = 2
	fontSize     = 12
)

var (
	boxColor   = color.RGBA{255, 0, 0, 255}
	labelColor = color.RGBA{255, 255, 255, 255}
)

// Annotator draws element boxes and their ids onto screenshots
type Annotator struct {
	face   font.Face
	logger *zap.Logger
}

// NewAnnotator loads the TrueType/OpenType font at fontPath, falling back to a
// built-in bitmap face when the path is empty or unreadable.
func NewAnnotator(fontPath string, logger *zap.Logger) *Annotator {
	logger = logger.Named("overlay")
	a := &Annotator{face: basicfont.Face7x13, logger: logger}
	if fontPath == "" {
		return a
	}

	face, err := loadFace(fontPath)
	if err != nil {
		logger.Warn("Falling back to default font", zap.String("path", fontPath), zap.Error(err))
		return a
	}
	a.face = face
	return a
}

func loadFace(path string) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{Size: fontSize, DPI: 72, Hinting: font.HintingFull})
}

// Annotate outlines every element that has a bounding box and tags it with
// its id. It never fails: an undecodable input is returned as is.
func (a *Annotator) Annotate(raw []byte, elements []crawler.ElementDescriptor) []byte {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		a.logger.Warn("Cannot decode screenshot, skipping annotation", zap.Error(err))
		return raw
	}

	bounds := src.Bounds()
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, src, bounds.Min, draw.Src)

	a.draw(img, elements)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality}); err != nil {
		a.logger.Warn("Cannot encode annotated screenshot", zap.Error(err))
		return raw
	}
	return buf.Bytes()
}

func (a *Annotator) draw(img *image.RGBA, elements []crawler.ElementDescriptor) {
	for _, el := range elements {
		if el.BoundingBox == nil {
			continue
		}
		r := rect(el.BoundingBox)
		drawOutline(img, r, outlineWidth, boxColor)
		a.drawLabel(img, r, strconv.Itoa(el.ID))
	}
}

// drawLabel places a filled tag at the box's top-right corner. A failure only
// loses this one label.
func (a *Annotator) drawLabel(img *image.RGBA, box image.Rectangle, text string) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Debug("Label rendering failed", zap.String("label", text), zap.Any("panic", r))
		}
	}()

	metrics := a.face.Metrics()
	width := font.MeasureString(a.face, text).Ceil()
	ascent := metrics.Ascent.Ceil()
	height := ascent + metrics.Descent.Ceil()

	x := box.Max.X - width - labelInset
	y := box.Min.Y + labelPadding

	tag := image.Rect(x-labelPadding, y-labelPadding, x+width+labelPadding, y+height+labelPadding)
	draw.Draw(img, tag.Intersect(img.Bounds()), image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelColor),
		Face: a.face,
		Dot:  fixed.P(x, y+ascent),
	}
	d.DrawString(text)
}

func rect(b *crawler.BoundingBox) image.Rectangle {
	return image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height))
}

// drawOutline draws a rectangle border of the given stroke width inside r
func drawOutline(img *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	fill := image.NewUniform(c)
	bounds := img.Bounds()
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(bounds), fill, image.Point{}, draw.Src)
	}
}
