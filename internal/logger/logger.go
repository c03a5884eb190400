// Package logger is a small leveled wrapper around the standard log package.
package logger

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Level is a logging threshold. Smaller values are more verbose.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel sets the global threshold. Unknown names fall back to INFO.
func SetLevel(s string) {
	lvl, err := ParseLevel(s)
	if err != nil {
		log.Printf("[WARN] %v; defaulting to INFO", err)
	}
	current.Store(int32(lvl))
}

func enabled(l Level) bool {
	return Level(current.Load()) <= l
}

func Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

func Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

func Warnf(format string, v ...any) {
	if enabled(LevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

func Errorf(format string, v ...any) {
	if enabled(LevelError) {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Skipf logs a dropped record at WARN. It ignores the threshold: every skip
// is reported even when LOG_LEVEL is ERROR.
func Skipf(format string, v ...any) {
	log.Printf("[WARN] "+format, v...)
}
