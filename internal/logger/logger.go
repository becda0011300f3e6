// Package logger provides leveled, component-tagged logging on top of the
// standard logger.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var minLevel = LevelInfo

func init() {
	// LOG_LEVEL wins; otherwise development environments log debug
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		minLevel = LevelDebug
	case "info":
		minLevel = LevelInfo
	case "warn":
		minLevel = LevelWarn
	case "error":
		minLevel = LevelError
	default:
		if os.Getenv("ENV") == "development" {
			minLevel = LevelDebug
		}
	}

	log.SetFlags(log.Ldate | log.Ltime)
}

// Logger tags every line with the component that emitted it
type Logger struct {
	component string
}

// New creates a logger for one component
func New(component string) *Logger {
	return &Logger{component: component}
}

// SetMinLevel changes the minimum level at runtime
func SetMinLevel(level Level) {
	minLevel = level
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if level < minLevel {
		return
	}
	prefix := fmt.Sprintf("[%s][%s] ", levelNames[level], l.component)
	log.Printf(prefix+format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.logf(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}
