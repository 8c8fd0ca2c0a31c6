package downloader

import (
	"go.uber.org/zap"
)

// jobLogger binds Logger to one job's event stream
type jobLogger struct {
	sink  EventSink
	jobID string
	kind  JobKind
}

func newJobLogger(sink EventSink, jobID string, kind JobKind) *jobLogger {
	return &jobLogger{sink: sink, jobID: jobID, kind: kind}
}

func (l *jobLogger) Debug(msg string)   { l.emit(LevelDebug, msg) }
func (l *jobLogger) Info(msg string)    { l.emit(LevelInfo, msg) }
func (l *jobLogger) Warning(msg string) { l.emit(LevelWarning, msg) }
func (l *jobLogger) Error(msg string)   { l.emit(LevelError, msg) }

func (l *jobLogger) emit(level LogLevel, msg string) {
	l.sink.Emit(Event{
		JobID: l.jobID,
		Kind:  l.kind,
		Type:  EventLog,
		Log:   &LogEvent{Level: level, Message: msg},
	})
}

// ZapLogger adapts a zap logger to the engine Logger interface
type ZapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps l; a nil logger discards everything
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l}
}

func (z *ZapLogger) Debug(msg string)   { z.l.Debug(msg) }
func (z *ZapLogger) Info(msg string)    { z.l.Info(msg) }
func (z *ZapLogger) Warning(msg string) { z.l.Warn(msg) }
func (z *ZapLogger) Error(msg string)   { z.l.Error(msg) }
