// Package debug provides logging and timing utilities for the control bridge.
package debug

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
	// LogLevelFatal is for fatal errors that should terminate the plugin.
	LogLevelFatal
	// LogLevelOff disables all logging.
	LogLevelOff
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelFatal:
		return "FATAL"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "warn" to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	if name == "off" || name == "OFF" {
		return LogLevelOff, nil
	}
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return LogLevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	switch lvl {
	case logrus.TraceLevel, logrus.DebugLevel:
		return LogLevelDebug, nil
	case logrus.InfoLevel:
		return LogLevelInfo, nil
	case logrus.WarnLevel:
		return LogLevelWarn, nil
	case logrus.ErrorLevel:
		return LogLevelError, nil
	default:
		return LogLevelFatal, nil
	}
}

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelWarn:
		return logrus.WarnLevel
	case LogLevelError:
		return logrus.ErrorLevel
	default:
		return logrus.FatalLevel
	}
}

// Logger is a leveled logger tagged with a component prefix.
// Loggers derived with WithField share output and level with their parent.
type Logger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

var defaultLogger = New(os.Stderr, "")

// New creates a logger writing text records to output.
func New(output io.Writer, prefix string) *Logger {
	base := logrus.New()
	base.SetOutput(output)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	entry := logrus.NewEntry(base)
	if prefix != "" {
		entry = entry.WithField("component", prefix)
	}
	return &Logger{base: base, entry: entry}
}

// SetOutput sets the output destination for the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}

// SetLevel sets the minimum log level. LogLevelOff silences the logger.
func (l *Logger) SetLevel(level LogLevel) {
	if level == LogLevelOff {
		// Nothing here logs at panic level.
		l.base.SetLevel(logrus.PanicLevel)
		return
	}
	l.base.SetLevel(level.logrus())
}

// DisableTimestamp drops the time field. Used by tests that compare output.
func (l *Logger) DisableTimestamp() {
	l.base.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})
}

// WithField returns a logger that adds key=value to every record.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{base: l.base, entry: l.entry.WithField(key, value)}
}

// WithPrefix returns a logger tagged with a different component.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return l.WithField("component", prefix)
}

// IsDebug reports whether debug records are written. Use it to skip
// formatting work on hot paths.
func (l *Logger) IsDebug() bool {
	return l.base.IsLevelEnabled(logrus.DebugLevel)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Fatal logs a fatal error message and panics.
func (l *Logger) Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.entry.Log(logrus.ErrorLevel, "FATAL: "+msg)
	panic(msg)
}

// Default returns the default logger instance.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the output destination for the default logger.
func SetOutput(w io.Writer) {
	defaultLogger.SetOutput(w)
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(level LogLevel) {
	defaultLogger.SetLevel(level)
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

// Info logs an informational message using the default logger.
func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

// WarnIf logs a warning message if the condition is true.
func WarnIf(condition bool, format string, args ...interface{}) {
	if condition {
		defaultLogger.Warn(format, args...)
	}
}
