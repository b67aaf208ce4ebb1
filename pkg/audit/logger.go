package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/newtron-network/omnigate/pkg/tools"
	"github.com/newtron-network/omnigate/pkg/util"
)

// maxLineBytes bounds a single event line when reading the log back
const maxLineBytes = 1 << 20

// Logger defines the interface for audit logging backends
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// RotationConfig configures log file rotation
type RotationConfig struct {
	MaxSize    int64 // bytes; the file is rotated before a write would exceed it
	MaxBackups int   // rotated files kept; 0 keeps all
}

// FileLogger appends events to a JSON-lines file. It is safe for
// concurrent use.
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileLogger opens (creating if needed) the log at path
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("opening audit log: %w", err)
	}
	l.file = file
	l.size = info.Size()
	return nil
}

// Log appends one event
func (l *FileLogger) Log(event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("audit log is closed")
	}

	if l.rotation.MaxSize > 0 && l.size > 0 && l.size+int64(len(line)) > l.rotation.MaxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// Query reads rotated files oldest first, then the live file, and returns
// the events matching filter.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	paths := append(l.backups(), l.path)
	var events []*Event
	for _, path := range paths {
		found, err := readEvents(path, filter)
		if err != nil {
			return nil, err
		}
		events = append(events, found...)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(events) {
			events = nil
		} else {
			events = events[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(events) {
		events = events[:filter.Limit]
	}
	if events == nil {
		events = []*Event{}
	}
	return events, nil
}

func readEvents(path string, filter Filter) ([]*Event, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			util.Warnf("audit: skipping malformed entry at %s:%d: %v", filepath.Base(path), lineNum, err)
			continue
		}
		if event.matches(filter) {
			events = append(events, &event)
		}
	}
	return events, scanner.Err()
}

// Close closes the log file. Further writes fail.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// rotate renames the live file with a sortable UTC suffix and reopens it
func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil

	rotated := l.path + "." + time.Now().UTC().Format("20060102T150405.000000000")
	if err := os.Rename(l.path, rotated); err != nil {
		return err
	}
	if err := l.open(); err != nil {
		return err
	}

	if l.rotation.MaxBackups > 0 {
		backups := l.backups()
		for len(backups) > l.rotation.MaxBackups {
			if err := os.Remove(backups[0]); err != nil {
				util.Warnf("audit: removing old log %s: %v", backups[0], err)
			}
			backups = backups[1:]
		}
	}
	return nil
}

// backups lists rotated files, oldest first
func (l *FileLogger) backups() []string {
	matches, err := filepath.Glob(l.path + ".*")
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// loggerHolder wraps a Logger so atomic.Value always stores the same concrete type.
type loggerHolder struct {
	logger Logger
}

var defaultLogger atomic.Value

// SetDefaultLogger sets the default audit logger
func SetDefaultLogger(logger Logger) {
	defaultLogger.Store(loggerHolder{logger: logger})
}

func getDefaultLogger() Logger {
	v := defaultLogger.Load()
	if v == nil {
		return nil
	}
	return v.(loggerHolder).logger
}

// Log logs an event using the default logger
func Log(event *Event) error {
	l := getDefaultLogger()
	if l == nil {
		return nil
	}
	return l.Log(event)
}

// Query queries events from the default logger
func Query(filter Filter) ([]*Event, error) {
	l := getDefaultLogger()
	if l == nil {
		return []*Event{}, nil
	}
	return l.Query(filter)
}

// FromResponse builds the audit event for a finished invocation
func FromResponse(req tools.Request, resp *tools.Response, write bool) *Event {
	e := NewEvent(req.Context.Subject, resp.Meta.Target, req.Operation).
		WithCorrelation(resp.Meta.CorrelationID, req.Context.Client).
		WithCommands(resp.Meta.Commands).
		WithWrite(write).
		WithDuration(time.Duration(resp.Meta.DurationMS) * time.Millisecond)
	e.CredentialSource = resp.Meta.CredentialSource
	e.Truncated = resp.Meta.Truncated
	e.Redacted = resp.Meta.Redacted

	if resp.Error != nil {
		e.WithError(string(resp.Error.Kind), resp.Error.Message)
		if partial, _ := resp.Error.Details["partial"].(bool); partial {
			e.Partial = true
		}
		return e
	}
	return e.WithSuccess()
}

// Observer returns a tools observer that writes every invocation to the
// default logger. Write failures are logged, not returned to the caller.
func Observer(registry *tools.Registry) tools.Observer {
	return func(req tools.Request, resp *tools.Response) {
		write := false
		if op, ok := registry.Lookup(req.Operation); ok {
			write = op.Write
		}
		if err := Log(FromResponse(req, resp, write)); err != nil {
			util.WithOperation(req.Operation).WithError(err).Warn("Failed to write audit event")
		}
	}
}
