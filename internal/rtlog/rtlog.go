// Package rtlog is the runtime's logging front-end: a log/slog logger
// fronted by disorder.dev/shandler for level mapping, implementing
// goakt/v3's Logger interface so the same logger instance can be handed to
// a real goakt.ActorSystem in production mode (runtime/prodrt) and to the
// controlled scheduler in test mode.
package rtlog

import (
	"context"
	"fmt"
	"io"
	golog "log"
	"log/slog"
	"os"
	"strings"

	"disorder.dev/shandler"
	"github.com/tochemey/goakt/v3/log"
)

// Default is the package-level logger used by the scheduler when a caller
// does not supply its own. Debug writes to stdout as JSON so a test run can
// be piped through jq.
var Default = New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

// Discard is a logger that drops everything; convenient for unit tests that
// don't want iteration noise.
var Discard = New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

// Logger wraps slog.Logger to satisfy goakt/v3/log.Logger, so it can be
// handed directly to actor.WithLogger in production mode.
type Logger struct {
	logger *slog.Logger
	level  slog.Level
}

var _ log.Logger = (*Logger)(nil)

// New builds a Logger over the given slog.Handler.
func New(handler slog.Handler) *Logger {
	levelPanic := shandler.LevelFatal + 2
	levels := []slog.Level{levelPanic, shandler.LevelFatal, slog.LevelError, slog.LevelWarn, slog.LevelInfo, slog.LevelDebug, shandler.LevelTrace}
	l := levelPanic
	for i, level := range levels {
		if !handler.Enabled(context.TODO(), level) {
			l = levels[i-1]
			break
		}
	}
	return &Logger{logger: slog.New(handler), level: l}
}

func join(v []any) string {
	var s strings.Builder
	for i, a := range v {
		if i > 0 {
			s.WriteByte(' ')
		}
		s.WriteString(fmt.Sprint(a))
	}
	return s.String()
}

func (l *Logger) Debug(v ...any) { l.logger.Debug(join(v)) }
func (l *Logger) Debugf(format string, v ...any) { l.logger.Debug(fmt.Sprintf(format, v...)) }
func (l *Logger) Info(v ...any)  { l.logger.Info(join(v)) }
func (l *Logger) Infof(format string, v ...any)  { l.logger.Info(fmt.Sprintf(format, v...)) }
func (l *Logger) Warn(v ...any)  { l.logger.Warn(join(v)) }
func (l *Logger) Warnf(format string, v ...any)  { l.logger.Warn(fmt.Sprintf(format, v...)) }
func (l *Logger) Error(v ...any) { l.logger.Error(join(v)) }
func (l *Logger) Errorf(format string, v ...any) { l.logger.Error(fmt.Sprintf(format, v...)) }

func (l *Logger) Fatal(v ...any) {
	l.logger.Log(context.TODO(), shandler.LevelFatal, join(v))
	os.Exit(1)
}

func (l *Logger) Fatalf(format string, v ...any) {
	l.logger.Log(context.TODO(), shandler.LevelFatal, fmt.Sprintf(format, v...))
	os.Exit(1)
}

func (l *Logger) Panic(v ...any) {
	msg := join(v)
	l.logger.Log(context.TODO(), shandler.LevelFatal+2, msg)
	panic(msg)
}

func (l *Logger) Panicf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	l.logger.Log(context.TODO(), shandler.LevelFatal+2, msg)
	panic(msg)
}

func (l *Logger) Trace(v ...any) {
	l.logger.Log(context.TODO(), shandler.LevelTrace, join(v))
}

// LogLevel reports the effective level, translated to goakt's scale.
func (l *Logger) LogLevel() log.Level {
	switch l.level {
	case shandler.LevelFatal:
		return log.FatalLevel
	case slog.LevelError:
		return log.ErrorLevel
	case slog.LevelInfo:
		return log.InfoLevel
	case slog.LevelDebug:
		return log.DebugLevel
	case slog.LevelWarn:
		return log.WarningLevel
	case shandler.LevelTrace:
		return log.DebugLevel + 2
	default:
		return log.InvalidLevel
	}
}

func (l *Logger) LogOutput() []io.Writer { return nil }

func (l *Logger) StdLogger() *golog.Logger {
	return slog.NewLogLogger(l.logger.Handler(), l.level)
}

// With returns a derived Logger carrying the given structured fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), level: l.level}
}
