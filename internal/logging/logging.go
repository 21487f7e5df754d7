// Package logging builds the process logger and the sinks that record
// notify outcomes.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/powa-team/errnotify/internal/model"
)

// New builds the process logger. format is "console" or "json".
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Sink records notify responses and failures on a zap logger.
type Sink struct {
	logger *zap.Logger
	file   *os.File
}

// NewSink wraps logger. A nil logger yields a sink that discards everything.
func NewSink(logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{logger: logger}
}

// OpenFile returns a sink appending JSON lines to path. Close releases the
// file.
func OpenFile(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)

	logger := zap.New(core, zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	return &Sink{logger: logger.Named("errnotify"), file: f}, nil
}

// LogResponse records a completed notify call.
func (s *Sink) LogResponse(resp *model.Response) {
	if resp == nil {
		s.logger.Warn("Notice completed without response")
		return
	}
	fields := []zap.Field{
		zap.Stringer("status", resp.Status),
		zap.String("id", resp.ID),
		zap.String("url", resp.URL),
	}
	if resp.StatusCode != 0 {
		fields = append(fields, zap.Int("status_code", resp.StatusCode))
	}
	if resp.Message != "" {
		fields = append(fields, zap.String("message", resp.Message))
	}

	if resp.Status == model.StatusRequestError {
		s.logger.Warn("Notice rejected", fields...)
		return
	}
	s.logger.Info("Notice delivered", fields...)
}

// LogError records a notify call that failed before a response was parsed.
func (s *Sink) LogError(err error) {
	s.logger.Error("Notice failed", zap.Error(err))
}

// Close flushes buffered entries and closes the file opened by OpenFile.
func (s *Sink) Close() error {
	err := s.logger.Sync()
	if s.file != nil {
		if cerr := s.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
