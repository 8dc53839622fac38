// Package logging provides the append-only, timestamped text log shared by
// every extguard component, plus log snapshots used by enforcement cycles.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// Sink is the single log file of one process. Every Logger created from it
// appends to the same file, so the sink can hand out byte offsets (anchors)
// for later snapshot extraction.
type Sink struct {
	mu        sync.Mutex
	dir       string
	path      string
	file      *os.File
	offset    int64
	mirror    io.Writer
	sessionID string
	closeOnce sync.Once
}

// Open creates (or appends to) <dir>/<process>_<YYYYMMDD>.log.
func Open(dir, process string) (*Sink, error) {
	if dir == "" {
		return nil, fmt.Errorf("log directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", process, time.Now().Format("20060102")))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &Sink{
		dir:       dir,
		path:      path,
		file:      file,
		offset:    info.Size(),
		sessionID: uuid.New().String(),
	}, nil
}

// SetMirror copies every log line to w (typically stderr).
func (s *Sink) SetMirror(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = w
}

// Logger returns a logger tagged with component.
func (s *Sink) Logger(component string) *Logger {
	return &Logger{sink: s, component: component}
}

// Path returns the log file path.
func (s *Sink) Path() string {
	return s.path
}

// Dir returns the log directory.
func (s *Sink) Dir() string {
	return s.dir
}

// SessionID identifies this process run in the log stream.
func (s *Sink) SessionID() string {
	return s.sessionID
}

// Tail returns the current end offset of the log file.
func (s *Sink) Tail() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

func (s *Sink) writeLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return
	}
	n, err := s.file.WriteString(line + "\n")
	s.offset += int64(n)
	if err != nil && s.mirror != nil {
		fmt.Fprintf(s.mirror, "log write failed: %v\n", err)
	}
	if s.mirror != nil {
		fmt.Fprintln(s.mirror, line)
	}
}

// Close closes the log file. Safe to call multiple times.
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.file != nil {
			err = s.file.Close()
			s.file = nil
		}
	})
	return err
}

// Logger writes component-tagged, leveled lines.
type Logger struct {
	sink      *Sink
	component string
	fallback  io.Writer
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{component: "discard", fallback: io.Discard}
}

// Stderr returns a logger that writes to stderr only. Used when the log
// directory cannot be opened.
func Stderr(component string) *Logger {
	return &Logger{component: component, fallback: os.Stderr}
}

// With returns a logger for a sub-component sharing the same sink.
func (l *Logger) With(component string) *Logger {
	return &Logger{sink: l.sink, component: component, fallback: l.fallback}
}

func (l *Logger) log(level, format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	// Keep one record per line so snapshots can be cut on line boundaries.
	message = strings.ReplaceAll(message, "\n", " ")
	entry := fmt.Sprintf("[%s] [%s] [%s] %s", time.Now().Format(timestampLayout), l.component, level, message)
	if l.sink != nil {
		l.sink.writeLine(entry)
		return
	}
	if l.fallback != nil {
		fmt.Fprintln(l.fallback, entry)
	}
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) { l.log("DEBUG", format, v...) }

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) { l.log("INFO", format, v...) }

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) { l.log("WARN", format, v...) }

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) { l.log("ERROR", format, v...) }
