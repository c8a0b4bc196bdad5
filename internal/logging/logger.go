// Package logging provides the leveled diagnostic logger
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/su1ph3r/typeconfusion/pkg/types"
)

// Logger is the logging interface used across the scanner
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// Level is the minimum severity a logger writes
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a level name to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgBlue),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
}

type logger struct {
	mu      sync.Mutex
	level   Level
	console io.Writer
	file    io.WriteCloser
	noColor bool
	now     func() time.Time
}

// New creates a logger writing to console at or above level
func New(console io.Writer, level Level, noColor bool) Logger {
	return &logger{level: level, console: console, noColor: noColor, now: time.Now}
}

// NewFromSettings creates the console logger and, when a file is
// configured, mirrors every line into a size-rotated log file
func NewFromSettings(settings types.LogSettings, noColor bool) (Logger, io.Closer, error) {
	level, err := ParseLevel(settings.Level)
	if err != nil {
		return nil, nil, err
	}

	l := &logger{level: level, console: os.Stderr, noColor: noColor, now: time.Now}
	if settings.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    settings.MaxSizeMB,
			MaxBackups: settings.MaxBackups,
			MaxAge:     settings.MaxAgeDays,
		}
	}
	return l, l, nil
}

// Close closes the log file, if any
func (l *logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *logger) log(level Level, format string, v ...any) {
	if level < l.level {
		return
	}

	ts := l.now().Format("15:04:05")
	msg := fmt.Sprintf(format, v...)

	tag := "[" + level.String() + "]"
	if !l.noColor {
		tag = levelColors[level].Sprint(tag)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.console != nil {
		fmt.Fprintf(l.console, "[%s] %s %s\n", ts, tag, msg)
	}
	if l.file != nil {
		fmt.Fprintf(l.file, "%s [%s] %s\n", l.now().Format(time.RFC3339), level, msg)
	}
}

func (l *logger) Debugf(format string, v ...any) { l.log(LevelDebug, format, v...) }
func (l *logger) Infof(format string, v ...any)  { l.log(LevelInfo, format, v...) }
func (l *logger) Warnf(format string, v ...any)  { l.log(LevelWarn, format, v...) }
func (l *logger) Errorf(format string, v ...any) { l.log(LevelError, format, v...) }

type nop struct{}

func (nop) Debugf(string, ...any) {}
func (nop) Infof(string, ...any)  {}
func (nop) Warnf(string, ...any)  {}
func (nop) Errorf(string, ...any) {}

// Nop returns a logger that discards everything
func Nop() Logger { return nop{} }
