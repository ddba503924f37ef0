/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ssgreg/logf"
	"github.com/ssgreg/logftext"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field is a typed key/value pair attached to a log entry.
type Field = logf.Field

// CloseFunc flushes and closes the underlying channel writer.
type CloseFunc logf.ChannelWriterCloseFunc

// LogFunc logs a message with a bound level.
// nolint: revive
type LogFunc = logf.LogFunc

// Constructors for the typed fields the service logs.
// Error uses the key 'error', the rest take the key as the first argument.
var (
	Error    = logf.Error
	String   = logf.String
	Strings  = logf.Strings
	Bytes    = logf.Bytes
	Int      = logf.Int
	Int64    = logf.Int64
	Uint16   = logf.Uint16
	Duration = logf.Duration
	Bool     = logf.Bool
)

// FieldLogger is the structured logger used across the service.
type FieldLogger interface {
	With(...Field) FieldLogger

	Debug(string, ...Field)
	Info(string, ...Field)
	Warn(string, ...Field)
	Error(string, ...Field)

	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warnf(string, ...interface{})
	Errorf(string, ...interface{})

	AtLevel(Level, func(LogFunc))
	WithLevel(level Level) FieldLogger
}

// LogfAdapter adapts logf.Logger to FieldLogger interface.
type LogfAdapter struct {
	Logger *logf.Logger
}

// NewDisabledLogger returns a new logger that logs nothing.
func NewDisabledLogger() FieldLogger {
	return &LogfAdapter{logf.NewDisabledLogger()}
}

// NewLogger builds a FieldLogger from cfg. The returned CloseFunc flushes
// the underlying channel writer and must be called on shutdown.
func NewLogger(cfg *Config) (FieldLogger, CloseFunc) {
	channel, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{
		Appender:          newAppender(cfg),
		EnableSyncOnError: true,
	})
	logfLogger := logf.NewLogger(levelToLogf(cfg.Level), channel).
		With(logf.Int("pid", os.Getpid()))
	if cfg.AddCaller {
		// skip one stackframe so the caller is not this adapter
		logfLogger = logfLogger.WithCaller().WithCallerSkip(1)
	}
	return &LogfAdapter{logfLogger}, CloseFunc(closeFunc)
}

// With returns a derived logger with the given additional fields.
func (l *LogfAdapter) With(fs ...Field) FieldLogger {
	return &LogfAdapter{l.Logger.With(fs...)}
}

// Debug logs a message at "debug" level.
func (l *LogfAdapter) Debug(msg string, fields ...Field) {
	l.Logger.Debug(msg, fields...)
}

// Info logs a message at "info" level.
func (l *LogfAdapter) Info(msg string, fields ...Field) {
	l.Logger.Info(msg, fields...)
}

// Warn logs a message at "warn" level.
func (l *LogfAdapter) Warn(msg string, fields ...Field) {
	l.Logger.Warn(msg, fields...)
}

// Error logs a message at "error" level.
func (l *LogfAdapter) Error(msg string, fields ...Field) {
	l.Logger.Error(msg, fields...)
}

// Debugf logs a formatted message at "debug" level.
func (l *LogfAdapter) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

// Infof logs a formatted message at "info" level.
func (l *LogfAdapter) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

// Warnf logs a formatted message at "warn" level.
func (l *LogfAdapter) Warnf(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

// Errorf logs a formatted message at "error" level.
func (l *LogfAdapter) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}

func (l *LogfAdapter) logf(level Level, format string, args ...interface{}) {
	l.AtLevel(level, func(write LogFunc) {
		write(fmt.Sprintf(format, args...))
	})
}

// AtLevel calls the given fn if logging a message at the specified level
// is enabled, passing a LogFunc with the bound level.
func (l *LogfAdapter) AtLevel(level Level, fn func(logFunc LogFunc)) {
	l.Logger.AtLevel(levelToLogf(level), fn)
}

// WithLevel returns a derived logger with an additional level check.
// Messages below both the given and the previously set level are dropped,
// so the level can effectively only be raised.
func (l *LogfAdapter) WithLevel(level Level) FieldLogger {
	return &LogfAdapter{Logger: l.Logger.WithLevel(levelToLogf(level))}
}

func levelToLogf(value Level) logf.Level {
	switch value {
	case LevelError:
		return logf.LevelError
	case LevelWarn:
		return logf.LevelWarn
	case LevelDebug:
		return logf.LevelDebug
	default:
		return logf.LevelInfo
	}
}

func newAppender(cfg *Config) logf.Appender {
	var w io.Writer
	switch cfg.Output {
	case OutputFile:
		w = &lumberjack.Logger{
			Filename:   expandFileNamePlaceholders(cfg.File.Path),
			MaxSize:    int(cfg.File.Rotation.MaxSize / 1024 / 1024),
			MaxBackups: cfg.File.Rotation.MaxBackups,
			MaxAge:     cfg.File.Rotation.MaxAgeDays,
			Compress:   cfg.File.Rotation.Compress,
			LocalTime:  cfg.File.Rotation.LocalTimeInNames,
		}
	case OutputStderr:
		w = os.Stderr
	default:
		w = os.Stdout
	}

	var errorEncoder logf.ErrorEncoder
	if cfg.Error.VerboseSuffix != "" || cfg.Error.NoVerbose {
		errorEncoder = logf.NewErrorEncoder(logf.ErrorEncoderConfig{
			NoVerboseField:     cfg.Error.NoVerbose,
			VerboseFieldSuffix: cfg.Error.VerboseSuffix,
		})
	}

	if cfg.Format == FormatText {
		noColor := cfg.NoColor
		return logftext.NewAppender(w, logftext.EncoderConfig{
			NoColor:     &noColor,
			EncodeTime:  logf.RFC3339NanoTimeEncoder,
			EncodeError: errorEncoder,
		})
	}
	return logf.NewWriteAppender(w, logf.NewJSONEncoder(logf.JSONEncoderConfig{
		EncodeTime:   logf.RFC3339NanoTimeEncoder,
		EncodeError:  errorEncoder,
		FieldKeyTime: "time",
	}))
}

// expandFileNamePlaceholders substitutes {{starttime}} and {{pid}} in the log file path,
// so that concurrently running instances do not fight over one file.
func expandFileNamePlaceholders(filePath string) string {
	res := strings.ReplaceAll(filePath, "{{starttime}}", time.Now().Format("200601021504"))
	return strings.ReplaceAll(res, "{{pid}}", strconv.Itoa(os.Getpid()))
}
