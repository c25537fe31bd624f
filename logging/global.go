package logging

import (
	"log/slog"
	"os"
	"sync"

	"github.com/giygas/medisearch/config"
)

type LoggingService struct {
	Logger   *slog.Logger
	rotating *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	serviceMu             sync.Mutex
)

// InitLogger initializes the global logger with development defaults.
// An empty logDir logs to the console only.
func InitLogger(logDir string) {
	InitLoggerWithOptions(Options{
		Dir:            logDir,
		Env:            config.EnvDevelopment,
		RetentionWeeks: 4,
		MaxFileSize:    100 * 1024 * 1024,
	})
}

// InitLoggerWithOptions replaces the global logger, closing the previous file
func InitLoggerWithOptions(opts Options) {
	logger, rotating := newLogger(opts)

	serviceMu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, rotating: rotating}
	serviceMu.Unlock()

	slog.SetDefault(logger)

	if previous != nil && previous.rotating != nil {
		_ = previous.rotating.Close()
	}
}

// Close flushes and closes the log file, if any
func Close() error {
	serviceMu.Lock()
	service := DefaultLoggingService
	serviceMu.Unlock()

	if service == nil || service.rotating == nil {
		return nil
	}
	return service.rotating.Close()
}

func current() *slog.Logger {
	serviceMu.Lock()
	defer serviceMu.Unlock()
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

// fallback is used before InitLogger
var fallback = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Info(msg, args...)
		return
	}
	fallback.Info(msg, args...)
}

func Error(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Error(msg, args...)
		return
	}
	fallback.Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Warn(msg, args...)
		return
	}
	fallback.Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Debug(msg, args...)
		return
	}
	fallback.Debug(msg, args...)
}
