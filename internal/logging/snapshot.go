package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// SnapshotDir is the sub-directory of the log directory holding snapshots.
const SnapshotDir = "snapshots"

// maxLookback bounds how far AnchorBefore reads back from the tail.
const maxLookback = 1 << 20

var unsafeReason = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AnchorBefore returns the offset of the start of the line that lies `lines`
// lines before the current tail. It never looks back further than 1 MiB.
func (s *Sink) AnchorBefore(lines int) (int64, error) {
	tail := s.Tail()
	if lines <= 0 || tail == 0 {
		return tail, nil
	}

	start := tail - maxLookback
	if start < 0 {
		start = 0
	}
	buf, err := s.readRange(start, tail)
	if err != nil {
		return tail, err
	}

	// Skip the newline that terminates the last line.
	end := len(buf)
	if end > 0 && buf[end-1] == '\n' {
		end--
	}
	seen := 0
	for i := end - 1; i >= 0; i-- {
		if buf[i] != '\n' {
			continue
		}
		seen++
		if seen == lines {
			return start + int64(i) + 1, nil
		}
	}
	return start, nil
}

// Snapshot copies the log bytes between anchor and the current tail into
// <dir>/snapshots/<reason>_<timestamp>.log and returns the written path.
func (s *Sink) Snapshot(reason string, anchor int64) (string, error) {
	tail := s.Tail()
	if anchor < 0 {
		anchor = 0
	}
	if anchor > tail {
		anchor = tail
	}

	data, err := s.readRange(anchor, tail)
	if err != nil {
		return "", fmt.Errorf("failed to read log range: %w", err)
	}

	dir := filepath.Join(s.dir, SnapshotDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.log", sanitizeReason(reason), time.Now().Format("20060102-150405.000"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

func (s *Sink) readRange(from, to int64) ([]byte, error) {
	if to <= from {
		return nil, nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.NewSectionReader(f, from, to-from)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitizeReason(reason string) string {
	clean := unsafeReason.ReplaceAllString(reason, "-")
	if clean == "" {
		return "snapshot"
	}
	return clean
}
