package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := Open(t.TempDir(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestOpenCreatesLogFile(t *testing.T) {
	sink := openTestSink(t)

	assert.NotEmpty(t, sink.SessionID())
	assert.True(t, strings.HasPrefix(filepath.Base(sink.Path()), "test_"))
	_, err := os.Stat(sink.Path())
	assert.NoError(t, err)
}

func TestOpenRejectsEmptyDir(t *testing.T) {
	_, err := Open("", "test")
	assert.Error(t, err)
}

func TestLoggerFormatting(t *testing.T) {
	sink := openTestSink(t)
	logger := sink.Logger("scanner")

	logger.Debugf("Debug message")
	logger.Infof("Info message %d", 7)
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	content, err := os.ReadFile(sink.Path())
	require.NoError(t, err)

	for _, pattern := range []string{
		"[scanner] [DEBUG] Debug message",
		"[scanner] [INFO] Info message 7",
		"[scanner] [WARN] Warning message",
		"[scanner] [ERROR] Error message",
	} {
		assert.Contains(t, string(content), pattern)
	}
}

func TestLoggerFlattensMultilineMessages(t *testing.T) {
	sink := openTestSink(t)
	sink.Logger("x").Infof("first\nsecond")

	content, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "\n"))
}

func TestMirror(t *testing.T) {
	sink := openTestSink(t)
	var buf bytes.Buffer
	sink.SetMirror(&buf)

	sink.Logger("monitor").Infof("hello")
	assert.Contains(t, buf.String(), "[monitor] [INFO] hello")
}

func TestTailTracksWrites(t *testing.T) {
	sink := openTestSink(t)
	before := sink.Tail()
	sink.Logger("x").Infof("abc")

	info, err := os.Stat(sink.Path())
	require.NoError(t, err)
	assert.Greater(t, sink.Tail(), before)
	assert.Equal(t, info.Size(), sink.Tail())
}

func TestSnapshotBetweenAnchorAndTail(t *testing.T) {
	sink := openTestSink(t)
	logger := sink.Logger("enforce")

	logger.Infof("before anchor")
	anchor := sink.Tail()
	logger.Warnf("violation confirmed")
	logger.Infof("closing browser")

	path, err := sink.Snapshot("armed chrome.exe", anchor)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sink.Dir(), SnapshotDir), filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "armed-chrome.exe_"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before anchor")
	assert.Contains(t, string(data), "violation confirmed")
	assert.Contains(t, string(data), "closing browser")
}

func TestSnapshotClampsAnchor(t *testing.T) {
	sink := openTestSink(t)
	sink.Logger("x").Infof("only line")

	path, err := sink.Snapshot("clamp", -10)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "only line")

	path, err = sink.Snapshot("clamp", sink.Tail()+100)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestAnchorBefore(t *testing.T) {
	sink := openTestSink(t)
	logger := sink.Logger("x")
	for _, msg := range []string{"one", "two", "three", "four"} {
		logger.Infof("%s", msg)
	}

	anchor, err := sink.AnchorBefore(2)
	require.NoError(t, err)
	path, err := sink.Snapshot("lookback", anchor)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "three")
	assert.Contains(t, lines[1], "four")

	anchor, err = sink.AnchorBefore(100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), anchor)
}

func TestDiscardLogger(t *testing.T) {
	logger := Discard()
	logger.Infof("nothing")
	logger.With("child").Errorf("still nothing")
}
