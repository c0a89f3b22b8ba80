package extract

import (
	"context"
	"sync"
	"time"
)

const site = "https://lore.test/en_US"

// recordingPauser never sleeps; it records requested delays.
type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, d)
}

func (p *recordingPauser) Delays() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.delays...)
}

func testOptions() Options {
	return Options{
		SiteBase:  site,
		Selectors: DefaultSelectors(),
		Timing:    DefaultTiming(),
		Pauser:    &recordingPauser{},
	}
}
