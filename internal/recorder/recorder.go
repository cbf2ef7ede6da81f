// Package recorder buffers a run's screenshots and reports progress.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"

	"github.com/v0xg/pagepilot/internal/gifgen"
	"github.com/v0xg/pagepilot/internal/progress"
	"go.uber.org/zap"
)

// DefaultFPS is the playback rate of the recorded video.
const DefaultFPS = 3

// ErrFinalized is returned when frames are added after the video was written.
var ErrFinalized = errors.New("recorder already finalized")

// Options configures a Recorder
type Options struct {
	Tag       string // prefixed to every progress line, e.g. "[run-1f3a]"
	OutputDir string
	FPS       int
	MaxWidth  uint
}

// Recorder owns one run's frame buffer and its progress sink.
type Recorder struct {
	sink      progress.Sink
	opts      Options
	frames    [][]byte
	finalized bool
	logger    *zap.Logger
}

// New creates a Recorder writing videos to opts.OutputDir
func New(sink progress.Sink, opts Options, logger *zap.Logger) *Recorder {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Recorder{sink: sink, opts: opts, logger: logger}
}

// AddFrame appends a raw screenshot. The bytes are not copied.
func (r *Recorder) AddFrame(raw []byte) error {
	if r.finalized {
		return ErrFinalized
	}
	r.frames = append(r.frames, raw)
	return nil
}

// Len returns the number of buffered frames
func (r *Recorder) Len() int { return len(r.frames) }

// Logf emits one formatted progress line.
func (r *Recorder) Logf(ctx context.Context, format string, args ...any) error {
	line := fmt.Sprintf(format, args...)
	if r.opts.Tag != "" {
		line = r.opts.Tag + " " + line
	}
	return r.sink.Log(ctx, line)
}

// Frame forwards an annotated frame to the progress sink.
func (r *Recorder) Frame(ctx context.Context, annotated []byte) error {
	return r.sink.Frame(ctx, annotated)
}

// Finalize encodes the buffered frames into name under the output directory,
// discards the buffer and reports the filename on the progress channel.
// Frames that fail to decode are skipped.
func (r *Recorder) Finalize(ctx context.Context, name string) (string, error) {
	if r.finalized {
		return "", ErrFinalized
	}
	r.finalized = true

	images := make([]image.Image, 0, len(r.frames))
	for i, raw := range r.frames {
		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			r.logger.Warn("skipping undecodable frame", zap.Int("frame", i), zap.Error(err))
			continue
		}
		images = append(images, img)
	}
	r.frames = nil

	path := filepath.Join(r.opts.OutputDir, name)
	size, err := gifgen.Generate(images, path, gifgen.Options{FPS: r.opts.FPS, MaxWidth: r.opts.MaxWidth})
	if err != nil {
		return "", fmt.Errorf("failed to write video: %w", err)
	}
	r.logger.Info("video written",
		zap.String("path", path),
		zap.Int("frames", len(images)),
		zap.Int64("bytes", size))

	if err := r.sink.Log(ctx, progress.VideoTag+"/"+name); err != nil {
		return name, err
	}
	return name, nil
}
