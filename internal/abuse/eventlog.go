package abuse

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const eventTimeLayout = "2006-01-02 15:04:05"

// EventLog is the append-only abuse log consumed by the admin dashboard.
// Lines are textual events with a timestamp prefix:
//
//	[2025-11-03 14:02:51] Banned IP 10.0.0.5 for 1h0m0s (offense #1)
//
// Writes are best-effort: a log-write failure is logged and swallowed so the
// ban or unban it describes still takes effect.
type EventLog struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewEventLog creates the abuse log, ensuring its directory exists
func NewEventLog(path string, logger *slog.Logger) *EventLog {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Error("failed to create abuse log directory",
			slog.String("path", path), slog.Any("error", err))
	}
	return &EventLog{path: path, logger: logger}
}

// Record appends a formatted event line
func (el *EventLog) Record(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format(eventTimeLayout), fmt.Sprintf(format, args...))

	el.mu.Lock()
	defer el.mu.Unlock()

	f, err := os.OpenFile(el.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		el.logger.Error("failed to open abuse log", slog.Any("error", err))
		return
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		el.logger.Error("failed to write abuse log entry", slog.Any("error", err))
	}
}

// maxTailLineLen bounds how many bytes Tail reads per requested line. Event
// lines are short; anything longer gets truncated at the read boundary.
const maxTailLineLen = 512

// Tail returns up to n most recent event lines, oldest first. The read is
// bounded: only the final n+1 line-budgets of the file are loaded, so the
// call stays cheap no matter how long the log has been growing.
func (el *EventLog) Tail(n int) ([]string, error) {
	el.mu.Lock()
	defer el.mu.Unlock()

	if n <= 0 {
		return []string{}, nil
	}

	f, err := os.Open(el.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open abuse log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat abuse log: %w", err)
	}

	offset := info.Size() - int64(n+1)*maxTailLineLen
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek abuse log: %w", err)
	}

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read abuse log: %w", err)
	}

	trimmed := strings.TrimRight(string(buf), "\n")
	if trimmed == "" {
		return []string{}, nil
	}

	lines := strings.Split(trimmed, "\n")
	if offset > 0 {
		// The seek landed mid-line; the first entry is a fragment
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
