package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPauserHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	TimerPauser{}.Pause(ctx, 5*time.Second)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}

func TestWindowPickStaysInRange(t *testing.T) {
	t.Parallel()

	w := Window{Min: 1500 * time.Millisecond, Max: 3500 * time.Millisecond}
	for range 200 {
		d := w.Pick()
		require.GreaterOrEqual(t, d, w.Min)
		require.LessOrEqual(t, d, w.Max)
	}
	require.Equal(t, time.Second, Window{Min: time.Second}.Pick())
}

type recordingPauser struct {
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) {
	p.delays = append(p.delays, d)
}

func TestPauseWithinUsesPauser(t *testing.T) {
	t.Parallel()

	p := &recordingPauser{}
	PauseWithin(context.Background(), p, Window{Min: time.Second, Max: 2 * time.Second})
	PauseWithin(context.Background(), nil, Window{Min: time.Hour})
	require.Len(t, p.delays, 1)
	require.GreaterOrEqual(t, p.delays[0], time.Second)
}
