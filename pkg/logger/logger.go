// Package logger provides structured logging for the membership layer.
package logger

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// LoggingConfig controls the behaviour of a Logger.
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Logger wraps a logrus entry carrying the component field.
type Logger struct {
	*logrus.Entry
	base *logrus.Logger
}

// New builds a logger for the given component from configuration.
func New(cfg LoggingConfig, component string) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{
		Entry: base.WithField("component", component),
		base:  base,
	}
}

// NewDefault returns an info-level text logger for the given component.
func NewDefault(component string) *Logger {
	return New(LoggingConfig{Level: "info", Format: "text"}, component)
}

// WithField returns a logger with the field attached.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value), base: l.base}
}

// WithFields returns a logger with all fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithFields(fields), base: l.base}
}

// WithError returns a logger with the error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err), base: l.base}
}

// SetOutput redirects log output, primarily for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.base.SetOutput(w)
}
