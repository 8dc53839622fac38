package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotekdan/extguard/internal/browsers"
	"github.com/lotekdan/extguard/internal/discovery"
	"github.com/lotekdan/extguard/internal/enforce"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestLatestVerdicts(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, d.RecordVerdict(ctx, browsers.Scan{Browser: "Chrome", Verdict: browsers.VerdictEnabled, Checked: 2, Present: 2}, base))
	require.NoError(t, d.RecordVerdict(ctx, browsers.Scan{Browser: "Chrome", Verdict: browsers.VerdictDisabled, Reason: "state=0"}, base.Add(time.Minute)))
	require.NoError(t, d.RecordVerdict(ctx, browsers.Scan{Browser: "Edge", Verdict: browsers.VerdictIndeterminate}, base))

	rows, err := d.LatestVerdicts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Chrome", rows[0].Browser)
	assert.Equal(t, "Disabled", rows[0].Verdict)
	assert.Equal(t, "state=0", rows[0].Reason)
	assert.Equal(t, "Indeterminate", rows[1].Verdict)
}

func TestRecordCycleUpserts(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	armed := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	c := enforce.Cycle{ID: "c1", Browser: "Chrome", Image: "chrome.exe", State: enforce.StateArmed, ArmedAt: armed}
	require.NoError(t, d.RecordCycle(ctx, c))
	c.State = enforce.StateCooldown
	c.ClosedAt = armed.Add(15 * time.Second)
	c.Killed = 3
	require.NoError(t, d.RecordCycle(ctx, c))

	events, err := d.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "enforcement", events[0].Kind)
	assert.Equal(t, "cooldown, 3 process(es) closed", events[0].Detail)
}

func TestRecentEventsMerged(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	require.NoError(t, d.RecordVerdict(ctx, browsers.Scan{Browser: "Brave", Verdict: browsers.VerdictDisabled, Reason: "extension not installed"}, old))
	require.NoError(t, d.RecordSweep(ctx, discovery.Result{Killed: map[string]int{"/opt/opera/opera": 2, "/opt/idle/vivaldi": 0}}))

	events, err := d.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sweep", events[0].Kind)
	assert.Equal(t, "/opt/opera/opera", events[0].Target)
	assert.Equal(t, "verdict", events[1].Kind)
	assert.Equal(t, "Disabled: extension not installed", events[1].Detail)

	limited, err := d.RecentEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
