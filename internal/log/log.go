// Package log provides the application's leveled key-value logging.
//
// Everything goes to stderr so that stdout stays clean when the org output
// is written to `-`.
package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger     *slog.Logger
	level      = new(slog.LevelVar)
	loggerOnce sync.Once
)

func initLogger() {
	loggerOnce.Do(func() {
		level.Set(slog.LevelInfo)
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	})
}

// SetLevel changes the minimum level emitted. Safe to call at any time.
func SetLevel(l slog.Level) {
	initLogger()
	level.Set(l)
}

func Debug(msg string, kv ...any) {
	initLogger()
	logger.Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger()
	logger.Info(msg, kv...)
}

// Error logs msg with err prepended to the key-value list as "err".
func Error(msg string, err error, kv ...any) {
	initLogger()
	logger.Error(msg, append([]any{"err", err}, kv...)...)
}
