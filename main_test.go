package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotekdan/extguard/db"
	"github.com/lotekdan/extguard/internal/browsers"
)

func TestLoadHistoryIncludesLastVerdicts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()
	base := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	d, err := db.NewDB(path)
	require.NoError(t, err)
	require.NoError(t, d.RecordVerdict(ctx, browsers.Scan{Browser: "Chrome", Verdict: browsers.VerdictEnabled}, base))
	require.NoError(t, d.RecordVerdict(ctx, browsers.Scan{Browser: "Chrome", Verdict: browsers.VerdictDisabled, Reason: "state=0"}, base.Add(time.Minute)))
	require.NoError(t, d.RecordVerdict(ctx, browsers.Scan{Browser: "Edge", Verdict: browsers.VerdictEnabled}, base))
	d.Close()

	events, latest, err := loadHistory(ctx, path, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Chrome", events[0].Target)

	require.Len(t, latest, 2)
	assert.Equal(t, "Chrome", latest[0].Browser)
	assert.Equal(t, "Disabled", latest[0].Verdict)
	assert.Equal(t, "Edge", latest[1].Browser)
}
