package process

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotekdan/extguard/internal/clock"
)

func newTestInventory(ctrl Controller) (*Inventory, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewInventory(ctrl, clk, nil), clk
}

func TestMatchImage(t *testing.T) {
	tests := []struct {
		name  string
		image string
		want  bool
	}{
		{"chrome.exe", "chrome.exe", true},
		{"CHROME.EXE", "chrome.exe", true},
		{"chrome", "chrome.exe", true},
		{"chrome.exe", "chrome", true},
		{"chrome.exe", `C:\Program Files\Google\Chrome\Application\chrome.exe`, true},
		{"chromedriver.exe", "chrome.exe", false},
		{"msedge.exe", "chrome.exe", false},
		{"", "chrome.exe", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchImage(tt.name, tt.image), "%s vs %s", tt.name, tt.image)
	}
}

func TestListRunning(t *testing.T) {
	mem := NewMemory()
	mem.Start("chrome.exe", "")
	mem.Start("Chrome.exe", "")
	mem.Start("msedge", "")
	mem.Start("explorer.exe", "")
	inv, _ := newTestInventory(mem)

	running, err := inv.ListRunning(context.Background(), []string{"chrome.exe", "msedge.exe", "brave.exe"})
	require.NoError(t, err)
	require.Len(t, running, 3)
	images := map[string]int{}
	for _, r := range running {
		images[r.Image]++
	}
	assert.Equal(t, 2, images["chrome.exe"])
	assert.Equal(t, 1, images["msedge.exe"])
}

func TestListRunningError(t *testing.T) {
	mem := NewMemory()
	mem.FailList(errors.New("boom"))
	inv, _ := newTestInventory(mem)

	_, err := inv.ListRunning(context.Background(), []string{"chrome.exe"})
	assert.Error(t, err)
	assert.Equal(t, 0, inv.Terminate(context.Background(), "chrome.exe"))
}

func TestTerminateGraceful(t *testing.T) {
	mem := NewMemory()
	a := mem.Start("chrome.exe", "")
	b := mem.Start("chrome.exe", "")
	other := mem.Start("msedge.exe", "")
	inv, _ := newTestInventory(mem)

	killed := inv.Terminate(context.Background(), "chrome.exe")
	assert.Equal(t, 2, killed)
	assert.False(t, mem.Alive(a))
	assert.False(t, mem.Alive(b))
	assert.True(t, mem.Alive(other))
	assert.Empty(t, mem.Kills())
}

func TestTerminateForceKillsAfterGrace(t *testing.T) {
	mem := NewMemory()
	pid := mem.Start("brave.exe", "")
	mem.SetStubborn(pid)
	inv, clk := newTestInventory(mem)
	start := clk.Now()

	killed := inv.Terminate(context.Background(), "brave.exe")
	assert.Equal(t, 1, killed)
	assert.False(t, mem.Alive(pid))
	assert.Equal(t, []int32{pid}, mem.Kills())
	assert.GreaterOrEqual(t, clk.Now().Sub(start), 500*time.Millisecond)
}

func TestTerminateSwallowsAccessDenied(t *testing.T) {
	mem := NewMemory()
	protected := mem.Start("chrome.exe", "")
	mem.SetProtected(protected)
	normal := mem.Start("chrome.exe", "")
	inv, _ := newTestInventory(mem)

	killed := inv.Terminate(context.Background(), "chrome.exe")
	assert.Equal(t, 1, killed)
	assert.True(t, mem.Alive(protected))
	assert.False(t, mem.Alive(normal))
}

func TestTerminateNothingRunning(t *testing.T) {
	inv, _ := newTestInventory(NewMemory())
	assert.Equal(t, 0, inv.Terminate(context.Background(), "chrome.exe"))
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(1, "kill", nil))
	assert.ErrorIs(t, classify(1, "kill", ErrNotRunning), ErrNotRunning)

	var accessErr *AccessError
	err := classify(7, "terminate", errors.Join(errors.New("denied"), os.ErrPermission))
	require.ErrorAs(t, err, &accessErr)
	assert.Equal(t, int32(7), accessErr.PID)

	err = classify(7, "kill", errors.New("weird"))
	assert.False(t, errors.As(err, &accessErr))
	assert.NotErrorIs(t, err, ErrNotRunning)
}
