package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"minuteman/internal/config"
)

// Logger writes leveled key/value entries to a file and, when allowed, to
// the console.
type Logger struct {
	mu      sync.Mutex
	level   string
	file    *os.File
	console io.Writer
	verbose bool
	quiet   bool
}

func NewLogger(cfg *config.Config, verbose bool) (*Logger, error) {
	l := &Logger{
		level:   cfg.Logging.Level,
		console: os.Stderr,
		verbose: verbose,
	}

	if cfg.Logging.File != "" {
		logDir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}

		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Logging.File, err)
		}
		l.file = f
	}

	return l, nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{level: "ERROR", quiet: true}
}

// SetQuiet stops console output. The wizard sets it while tcell owns the
// terminal.
func (l *Logger) SetQuiet(quiet bool) {
	l.mu.Lock()
	l.quiet = quiet
	l.mu.Unlock()
}

// SetConsole redirects console output.
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	l.console = w
	l.mu.Unlock()
}

func (l *Logger) Log(level, message string, fields ...interface{}) {
	if l == nil || !l.shouldLog(level) {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	entry := fmt.Sprintf("[%s] [%s] %s", timestamp, level, message)

	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			entry += fmt.Sprintf(" %v=%v", fields[i], fields[i+1])
		} else {
			entry += fmt.Sprintf(" %v", fields[i])
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.WriteString(entry + "\n")
	}

	if l.quiet || l.console == nil {
		return
	}
	if l.verbose || level == "ERROR" || level == "WARN" {
		fmt.Fprintln(l.console, entry)
	}
}

func (l *Logger) shouldLog(level string) bool {
	levels := map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}
	current := levels[l.level]
	target := levels[level]
	return target >= current
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return err
		}
		return l.file.Close()
	}
	return nil
}
