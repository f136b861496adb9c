// Package auditlog appends timestamped lines to a local log file. It
// backs the notification fallback and the general audit trail; writes
// are best-effort durable but never lost to interleaving, as appends
// are serialized per Log.
package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Log is an append-only, line-oriented local log.
type Log struct {
	Path string

	// Now is a test seam; defaults to time.Now.
	Now func() time.Time

	mu sync.Mutex
}

// New returns a Log writing to path.
func New(path string) *Log {
	return &Log{Path: path, Now: time.Now}
}

func (l *Log) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Append writes one timestamped line. Embedded newlines are replaced so
// every record stays a single line.
func (l *Log) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(l.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	record := l.now().UTC().Format(time.RFC3339) + " " + sanitize(line) + "\n"
	_, werr := f.WriteString(record)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("append audit log: %w", werr)
	}
	return nil
}

// Appendf formats and appends one line.
func (l *Log) Appendf(format string, args ...any) error {
	return l.Append(fmt.Sprintf(format, args...))
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\n' || r == '\r' {
			r = ' '
		}
		out = append(out, r)
	}
	return string(out)
}
