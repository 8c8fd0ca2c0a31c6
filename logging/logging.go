// Package logging builds the application's zap logger and mirrors job events
// into it.
package logging

import (
	"fmt"
	"strings"

	"mediagrab/downloader"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ParseLevel maps a configured level name to a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "", "INFO":
		return zapcore.InfoLevel, nil
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// New builds a logger writing to stderr in the given format
func New(level, format string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Development = false
		cfg.DisableStacktrace = true
	case FormatJSON:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// Mirror writes every hub event into a logger
type Mirror struct {
	logger *zap.Logger
	sub    *downloader.Subscription
	done   chan struct{}
}

// NewMirror subscribes to hub and starts mirroring in the background
func NewMirror(hub *downloader.Hub, logger *zap.Logger) *Mirror {
	m := &Mirror{
		logger: logger.Named("jobs"),
		sub:    hub.Subscribe(),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		for evt := range m.sub.C() {
			writeEvent(m.logger, evt)
		}
	}()
	return m
}

// Wait blocks until the hub is closed and every queued event is written
func (m *Mirror) Wait() {
	<-m.done
}

// Close detaches from the hub; queued events are dropped
func (m *Mirror) Close() {
	m.sub.Close()
	<-m.done
}

func writeEvent(logger *zap.Logger, evt downloader.Event) {
	fields := []zap.Field{
		zap.String("job_id", evt.JobID),
		zap.String("job_kind", string(evt.Kind)),
	}

	switch evt.Type {
	case downloader.EventLog:
		if evt.Log == nil {
			return
		}
		switch evt.Log.Level {
		case downloader.LevelDebug:
			logger.Debug(evt.Log.Message, fields...)
		case downloader.LevelWarning:
			logger.Warn(evt.Log.Message, fields...)
		case downloader.LevelError:
			logger.Error(evt.Log.Message, fields...)
		default:
			logger.Info(evt.Log.Message, fields...)
		}
	case downloader.EventProgress:
		if evt.Progress == nil {
			return
		}
		logger.Debug("progress", append(fields,
			zap.Int("percent", evt.Progress.Percent),
			zap.Int("completed_items", evt.Progress.CompletedItems),
			zap.Int("total_items", evt.Progress.TotalItems))...)
	case downloader.EventResolved:
		logger.Info("resolved", append(fields,
			zap.String("link", evt.Subject),
			zap.Int("entries", len(evt.Entries)))...)
	case downloader.EventCompleted:
		logger.Info("completed", append(fields,
			zap.String("destination", evt.Subject),
			zap.Int("items", len(evt.URLs)))...)
	case downloader.EventCancelled:
		logger.Warn("cancelled", append(fields, zap.Error(evt.Err))...)
	case downloader.EventFailed:
		logger.Error("failed", append(fields, zap.Error(evt.Err))...)
	}
}
