// Package log provides the leveled, tagged logging used by the sing-asn CLI
// and offered to the library builder.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	E "github.com/sagernet/sing/common/exceptions"
	F "github.com/sagernet/sing/common/format"
	"github.com/sagernet/sing/common/logger"
)

type Level uint8

const (
	LevelPanic Level = iota
	LevelFatal
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelPanic:
		return "panic"
	case LevelFatal:
		return "fatal"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "unknown"
	}
}

func ParseLevel(level string) (Level, error) {
	switch level {
	case "panic":
		return LevelPanic, nil
	case "fatal":
		return LevelFatal, nil
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return LevelInfo, E.New("unknown log level: ", level)
	}
}

const timestampFormat = "-0700 2006-01-02 15:04:05"

// Factory creates tagged loggers sharing one writer and level threshold.
type Factory struct {
	access           sync.Mutex
	writer           io.Writer
	level            Level
	disableTimestamp bool
}

func NewFactory(writer io.Writer) *Factory {
	if writer == nil {
		writer = os.Stderr
	}
	return &Factory{writer: writer, level: LevelInfo}
}

func (f *Factory) Level() Level {
	f.access.Lock()
	defer f.access.Unlock()
	return f.level
}

func (f *Factory) SetLevel(level Level) {
	f.access.Lock()
	defer f.access.Unlock()
	f.level = level
}

func (f *Factory) DisableTimestamp() {
	f.access.Lock()
	defer f.access.Unlock()
	f.disableTimestamp = true
}

// NewLogger returns a logger writing through this factory under the given
// tag.
func (f *Factory) NewLogger(tag string) logger.Logger {
	return &tagLogger{factory: f, tag: tag}
}

type tagLogger struct {
	factory *Factory
	tag     string
}

func (l *tagLogger) log(level Level, args []any) {
	factory := l.factory
	message := F.ToString(args...)
	factory.access.Lock()
	if level <= factory.level {
		var line string
		if factory.disableTimestamp {
			line = F.ToString(level, " [", l.tag, "] ", message, "\n")
		} else {
			line = F.ToString(time.Now().Format(timestampFormat), " ", level, " [", l.tag, "] ", message, "\n")
		}
		factory.writer.Write([]byte(line))
	}
	factory.access.Unlock()
	switch level {
	case LevelFatal:
		os.Exit(1)
	case LevelPanic:
		panic(message)
	}
}

func (l *tagLogger) Trace(args ...any) {
	l.log(LevelTrace, args)
}

func (l *tagLogger) Debug(args ...any) {
	l.log(LevelDebug, args)
}

func (l *tagLogger) Info(args ...any) {
	l.log(LevelInfo, args)
}

func (l *tagLogger) Warn(args ...any) {
	l.log(LevelWarn, args)
}

func (l *tagLogger) Error(args ...any) {
	l.log(LevelError, args)
}

func (l *tagLogger) Fatal(args ...any) {
	l.log(LevelFatal, args)
}

func (l *tagLogger) Panic(args ...any) {
	l.log(LevelPanic, args)
}
