package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/giygas/medisearch/config"
)

const filePrefix = "medisearch-"

var numberedFile = regexp.MustCompile(`^medisearch-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingLogger writes to one file per ISO week and starts a numbered
// sibling when the current file reaches maxFileSize.
type RotatingLogger struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	currentFile *os.File
	currentWeek string
	currentSize int64

	stop        chan struct{}
	stopOnce    sync.Once
	cleaning    bool
	cleanupDone chan struct{}
}

// NewRotatingLogger creates a rotating logger. A maxFileSize of 0 disables
// size based rotation.
func NewRotatingLogger(logDir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		stop:        make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// getWeekKey returns the week key in YYYY-Www format (ISO week)
func getWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// open selects the file for week and opens it for appending. Caller holds mu.
func (rl *RotatingLogger) open(week string, forceNew bool) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
		rl.currentFile = nil
	}

	name := rl.pickFile(week, forceNew)
	path := filepath.Join(rl.logDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	rl.currentFile = file
	rl.currentWeek = week
	rl.currentSize = size
	return nil
}

// pickFile returns the base file of the week while it has room, otherwise the
// highest numbered file with room, otherwise the next number.
func (rl *RotatingLogger) pickFile(week string, forceNew bool) string {
	base := filePrefix + week + ".log"
	if !forceNew && rl.hasRoom(filepath.Join(rl.logDir, base)) {
		return base
	}

	matches, _ := filepath.Glob(filepath.Join(rl.logDir, filePrefix+week+"_??.log"))
	highest, highestPath := 0, ""
	for _, match := range matches {
		m := numberedFile.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			continue
		}
		if n, _ := strconv.Atoi(m[1]); n > highest {
			highest, highestPath = n, match
		}
	}

	if highestPath != "" && !forceNew && rl.hasRoom(highestPath) {
		return filepath.Base(highestPath)
	}
	return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, highest+1)
}

func (rl *RotatingLogger) hasRoom(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return rl.maxFileSize == 0 || info.Size() < rl.maxFileSize
}

// Write appends p to the current file, rotating on week change or size limit
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := getWeekKey(time.Now())
	switch {
	case rl.currentFile == nil || rl.currentWeek != week:
		if err := rl.open(week, false); err != nil {
			return 0, err
		}
	case rl.maxFileSize > 0 && rl.currentSize+int64(len(p)) > rl.maxFileSize:
		if err := rl.open(week, true); err != nil {
			return 0, err
		}
	}

	n, err := rl.currentFile.Write(p)
	rl.currentSize += int64(n)
	return n, err
}

// cleanupOldLogs removes log files older than the retention period
func (rl *RotatingLogger) cleanupOldLogs() (int, error) {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(rl.logDir, name)); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

// startCleanup runs the retention sweep once a day until Close
func (rl *RotatingLogger) startCleanup(interval time.Duration) {
	rl.mu.Lock()
	rl.cleaning = true
	rl.mu.Unlock()

	go func() {
		defer close(rl.cleanupDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-rl.stop:
				return
			case <-ticker.C:
				// stderr, not slog: the sweep must not write through itself
				if n, err := rl.cleanupOldLogs(); err != nil {
					fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
				} else if n > 0 {
					fmt.Fprintf(os.Stderr, "cleaned up %d old log files\n", n)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and closes the current file
func (rl *RotatingLogger) Close() error {
	rl.stopOnce.Do(func() { close(rl.stop) })

	rl.mu.Lock()
	cleaning := rl.cleaning
	rl.mu.Unlock()
	if cleaning {
		select {
		case <-rl.cleanupDone:
		case <-time.After(time.Second):
		}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.currentFile == nil {
		return nil
	}
	err := rl.currentFile.Close()
	rl.currentFile = nil
	return err
}

// parseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level. Tests stay quiet unless verbose,
// prod and staging default to warn, and LOG_LEVEL overrides outside of tests.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if level != "" {
		return parseLogLevel(level)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel is always debug, the file is the full record
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

// Options configures the global logger
type Options struct {
	Dir            string // empty disables file logging
	Env            config.Environment
	Level          string
	Verbose        bool
	RetentionWeeks int
	MaxFileSize    int64
}

func newLogger(opts Options) (*slog.Logger, *RotatingLogger) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})

	if opts.Dir == "" {
		return slog.New(console), nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		logger := slog.New(console)
		logger.Error("Failed to create logs directory", "dir", opts.Dir, "error", err)
		return logger, nil
	}

	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}
	rotating := NewRotatingLogger(opts.Dir, retention, opts.MaxFileSize)

	rotating.mu.Lock()
	err := rotating.open(getWeekKey(time.Now()), false)
	rotating.mu.Unlock()
	if err != nil {
		logger := slog.New(console)
		logger.Error("Failed to initialize rotating logger", "error", err)
		return logger, nil
	}
	rotating.startCleanup(24 * time.Hour)

	// Console gets text, the file gets JSON
	file := slog.NewJSONHandler(rotating, &slog.HandlerOptions{Level: GetFileLogLevel()})
	return slog.New(&multiHandler{handlers: []slog.Handler{console, file}}), rotating
}

// multiHandler fans a record out to every handler that accepts its level
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
