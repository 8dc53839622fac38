package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lotekdan/extguard/internal/browsers"
)

func TestCounterSemantics(t *testing.T) {
	tr := New(3)

	assert.Equal(t, 1, tr.Observe("Chrome", browsers.VerdictDisabled).Count)
	assert.Equal(t, 2, tr.Observe("Chrome", browsers.VerdictDisabled).Count)
	assert.Equal(t, 2, tr.Observe("Chrome", browsers.VerdictIndeterminate).Count)
	assert.Equal(t, 0, tr.Observe("Chrome", browsers.VerdictEnabled).Count)
	assert.Equal(t, 0, tr.Count("Chrome"))
}

func TestConfirmsOncePerCrossing(t *testing.T) {
	tr := New(3)

	var confirmations int
	for i := 0; i < 6; i++ {
		if tr.Observe("Edge", browsers.VerdictDisabled).Confirmed {
			confirmations++
		}
	}
	assert.Equal(t, 1, confirmations)
	assert.Equal(t, 6, tr.Count("Edge"))
	assert.True(t, tr.Latched("Edge"))

	tr.Release("Edge")
	assert.True(t, tr.Observe("Edge", browsers.VerdictDisabled).Confirmed)
}

func TestEnabledClearsLatch(t *testing.T) {
	tr := New(2)
	tr.Observe("Brave", browsers.VerdictDisabled)
	assert.True(t, tr.Observe("Brave", browsers.VerdictDisabled).Confirmed)

	tr.Observe("Brave", browsers.VerdictEnabled)
	assert.False(t, tr.Latched("Brave"))
	assert.False(t, tr.Observe("Brave", browsers.VerdictDisabled).Confirmed)
	assert.True(t, tr.Observe("Brave", browsers.VerdictDisabled).Confirmed)
}

func TestIndeterminateNeverConfirms(t *testing.T) {
	tr := New(1)
	for i := 0; i < 5; i++ {
		obs := tr.Observe("Comet", browsers.VerdictIndeterminate)
		assert.False(t, obs.Confirmed)
		assert.Equal(t, 0, obs.Count)
	}
}

func TestBrowsersAreIndependent(t *testing.T) {
	tr := New(3)
	tr.Observe("Chrome", browsers.VerdictDisabled)
	tr.Observe("Chrome", browsers.VerdictDisabled)
	tr.Observe("Edge", browsers.VerdictEnabled)

	assert.Equal(t, 2, tr.Count("Chrome"))
	assert.Equal(t, 0, tr.Count("Edge"))
	assert.Equal(t, 0, tr.Count("unknown"))
}

func TestInvalidThresholdFallsBack(t *testing.T) {
	assert.Equal(t, DefaultThreshold, New(0).Threshold())
}
