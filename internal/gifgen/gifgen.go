package gifgen

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"sort"

	"github.com/nfnt/resize"
)

// ErrNoFrames is returned when there is nothing to encode.
var ErrNoFrames = errors.New("no frames to encode")

// Options configures GIF generation
type Options struct {
	FPS      int
	MaxWidth uint // frames wider than this are scaled down; 0 keeps the source width
}

// Generate encodes frames as a looping GIF at a fixed frame rate and returns
// the file size.
func Generate(frames []image.Image, outputPath string, opts Options) (int64, error) {
	if len(frames) == 0 {
		return 0, ErrNoFrames
	}
	if opts.FPS <= 0 {
		opts.FPS = 3
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := gif.EncodeAll(f, Build(frames, opts)); err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Build converts frames into a paletted animation sized from the first frame.
func Build(frames []image.Image, opts Options) *gif.GIF {
	if opts.FPS <= 0 {
		opts.FPS = 3
	}
	// Delay is in 100ths of a second
	delay := 100 / opts.FPS

	bounds := frames[0].Bounds()
	outputWidth := uint(bounds.Dx())
	if opts.MaxWidth > 0 && outputWidth > opts.MaxWidth {
		outputWidth = opts.MaxWidth
	}
	aspectRatio := float64(bounds.Dy()) / float64(bounds.Dx())
	outputHeight := uint(float64(outputWidth) * aspectRatio)

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0, // Infinite loop
	}

	palette := generatePalette(frames[0])

	for i, frame := range frames {
		scaled := frame
		if fb := frame.Bounds(); uint(fb.Dx()) != outputWidth || uint(fb.Dy()) != outputHeight {
			scaled = resize.Resize(outputWidth, outputHeight, frame, resize.Lanczos3)
		}

		paletted := image.NewPaletted(image.Rect(0, 0, int(outputWidth), int(outputHeight)), palette)
		draw.FloydSteinberg.Draw(paletted, paletted.Bounds(), scaled, scaled.Bounds().Min)

		g.Image[i] = paletted
		g.Delay[i] = delay
	}
	return g
}

// generatePalette picks the 255 most frequent colors of a sampled frame plus
// a transparent entry, padding with grays.
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	step := 4 // Sample every 4th pixel for performance
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			counts[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}]++
		}
	}

	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		// Stable tie-break keeps output deterministic
		a, b := colors[i], colors[j]
		return uint32(a.R)<<24|uint32(a.G)<<16|uint32(a.B)<<8|uint32(a.A) <
			uint32(b.R)<<24|uint32(b.G)<<16|uint32(b.B)<<8|uint32(b.A)
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{0, 0, 0, 0})
	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		palette = append(palette, colors[i])
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}
