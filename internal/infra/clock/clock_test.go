package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSleepAdvancesTime(t *testing.T) {
	start := time.Date(2025, 9, 14, 9, 0, 0, 0, time.UTC)
	f := NewFake(start)

	require.NoError(t, f.Sleep(context.Background(), time.Second))
	require.NoError(t, f.Sleep(context.Background(), 2*time.Second))

	assert.Equal(t, start.Add(3*time.Second), f.Now())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.Sleeps())
}

func TestSleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Real().Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, NewFake(time.Now()).Sleep(ctx, time.Second), context.Canceled)
}
