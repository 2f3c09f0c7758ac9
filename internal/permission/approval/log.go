package approval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogEntry is one JSONL audit record.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"` // "request" or "decision"
	RequestID string    `json:"request_id"`
	Kind      string    `json:"kind"`
	Tool      string    `json:"tool,omitempty"`
	Target    string    `json:"target,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Remember  bool      `json:"remember,omitempty"`
	DecidedBy string    `json:"decided_by,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// FileLogger writes audit records as JSON lines.
type FileLogger struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// NewFileLogger creates a file-based audit logger, creating parent
// directories as needed.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	return &FileLogger{path: path, file: file}, nil
}

// LogRequest records a request event.
func (l *FileLogger) LogRequest(req *Request) error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.write(LogEntry{
		Timestamp: time.Now(),
		EventType: "request",
		RequestID: req.ID,
		Kind:      string(req.Permission.Kind),
		Tool:      req.Permission.Tool,
		Target:    req.Permission.Target,
	})
}

// LogDecision records a decision event.
func (l *FileLogger) LogDecision(req *Request, result *Result) error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.write(LogEntry{
		Timestamp: time.Now(),
		EventType: "decision",
		RequestID: req.ID,
		Kind:      string(req.Permission.Kind),
		Tool:      req.Permission.Tool,
		Decision:  string(result.Decision),
		Remember:  result.Remember,
		DecidedBy: result.DecidedBy,
		Message:   result.Message,
	})
}

func (l *FileLogger) write(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Path returns the log file path.
func (l *FileLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close closes the log file.
func (l *FileLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// MemoryLogger keeps audit records in memory. Used in tests and
// short-lived sessions.
type MemoryLogger struct {
	mu      sync.RWMutex
	entries []LogEntry
	maxSize int
}

// NewMemoryLogger creates an in-memory audit logger.
func NewMemoryLogger(maxSize int) *MemoryLogger {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryLogger{maxSize: maxSize}
}

// LogRequest records a request event.
func (l *MemoryLogger) LogRequest(req *Request) error {
	return l.add(LogEntry{
		Timestamp: time.Now(),
		EventType: "request",
		RequestID: req.ID,
		Kind:      string(req.Permission.Kind),
		Tool:      req.Permission.Tool,
		Target:    req.Permission.Target,
	})
}

// LogDecision records a decision event.
func (l *MemoryLogger) LogDecision(req *Request, result *Result) error {
	return l.add(LogEntry{
		Timestamp: time.Now(),
		EventType: "decision",
		RequestID: req.ID,
		Kind:      string(req.Permission.Kind),
		Tool:      req.Permission.Tool,
		Decision:  string(result.Decision),
		Remember:  result.Remember,
		DecidedBy: result.DecidedBy,
		Message:   result.Message,
	})
}

func (l *MemoryLogger) add(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= l.maxSize {
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of all records.
func (l *MemoryLogger) Entries() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// NopLogger discards all records.
type NopLogger struct{}

// LogRequest is a no-op.
func (NopLogger) LogRequest(*Request) error { return nil }

// LogDecision is a no-op.
func (NopLogger) LogDecision(*Request, *Result) error { return nil }
