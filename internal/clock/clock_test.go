package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSleepAdvancesTime(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewFake(start)

	require.NoError(t, f.Sleep(context.Background(), 15*time.Second))
	assert.Equal(t, start.Add(15*time.Second), f.Now())
}

func TestFakeSleepHonoursCancelledContext(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, time.Unix(0, 0), f.Now())
}

func TestFakeTickerFiresOnAdvance(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	defer tk.Stop()

	select {
	case <-tk.C():
		t.Fatal("ticker fired before time advanced")
	default:
	}

	f.Advance(time.Second)
	select {
	case got := <-tk.C():
		assert.Equal(t, time.Unix(1, 0), got)
	default:
		t.Fatal("expected tick after advancing one period")
	}
}

func TestFakeTickerStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	tk := f.NewTicker(time.Second)
	tk.Stop()

	f.Advance(5 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker must not fire")
	default:
	}
}

func TestRealClockSleepCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New().Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
