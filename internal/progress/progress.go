// Package progress carries human-readable run events to an external observer.
package progress

import (
	"context"

	"go.uber.org/zap"
)

// VideoTag prefixes the line that announces a finished recording.
const VideoTag = "[VIDEO]"

// Sink receives ordered log lines and annotated frames. Nothing is acknowledged.
type Sink interface {
	Log(ctx context.Context, line string) error
	Frame(ctx context.Context, image []byte) error
	Close() error
}

// LogSink writes progress to a zap logger. Frames are only counted.
type LogSink struct {
	logger *zap.Logger
	frames int
}

// NewLogSink creates a sink that logs every line at info level
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Log(_ context.Context, line string) error {
	s.logger.Info(line)
	return nil
}

func (s *LogSink) Frame(_ context.Context, image []byte) error {
	s.frames++
	s.logger.Debug("frame", zap.Int("index", s.frames), zap.Int("bytes", len(image)))
	return nil
}

func (s *LogSink) Close() error { return nil }
