package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/visiona/framecast/internal/capture"
)

// ErrPumpStopped is the bus cause after a terminal capture failure.
var ErrPumpStopped = errors.New("broadcast: capture pump stopped")

// FrameProvider is the pull half of a capture source. *capture.Source
// satisfies it; tests substitute scripted providers.
type FrameProvider interface {
	Frame() (capture.Frame, error)
}

// PumpConfig tunes the capture loop.
type PumpConfig struct {
	// Interval is the minimum time between two capture pulls
	Interval time.Duration
	// MaxConsecutiveFailures is how many failed pulls in a row the pump
	// tolerates before terminating the bus. Minimum 1.
	MaxConsecutiveFailures int
}

// PumpStats contains capture loop statistics.
type PumpStats struct {
	// Pulled is the total number of successful pulls
	Pulled uint64
	// Failures is the total number of failed pulls
	Failures uint64
	// Running indicates the loop is live
	Running bool
}

// Pump runs the single continuous capture loop: one pull per tick,
// published to the bus. All subscribers share this loop, so N viewers
// cost one capture rate, not N.
type Pump struct {
	provider FrameProvider
	bus      *Bus
	cfg      PumpConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pulled   uint64
	failures uint64
	running  atomic.Bool
}

// NewPump creates a pump over the provider and bus.
func NewPump(provider FrameProvider, bus *Bus, cfg PumpConfig) *Pump {
	if cfg.Interval <= 0 {
		cfg.Interval = 33 * time.Millisecond
	}
	if cfg.MaxConsecutiveFailures < 1 {
		cfg.MaxConsecutiveFailures = 1
	}
	return &Pump{
		provider: provider,
		bus:      bus,
		cfg:      cfg,
	}
}

// Start launches the capture loop. Returns an error if already started.
func (p *Pump) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return fmt.Errorf("broadcast: pump already started")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running.Store(true)

	slog.Info("broadcast: pump starting",
		"interval", p.cfg.Interval,
		"max_consecutive_failures", p.cfg.MaxConsecutiveFailures,
	)

	p.wg.Add(1)
	go p.run(ctx)

	return nil
}

func (p *Pump) run(ctx context.Context) {
	defer p.wg.Done()
	defer p.running.Store(false)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			p.bus.Close()
			return
		case <-ticker.C:
		}

		frame, err := p.provider.Frame()
		if err != nil {
			atomic.AddUint64(&p.failures, 1)
			consecutive++
			if consecutive < p.cfg.MaxConsecutiveFailures {
				slog.Debug("broadcast: pull failed, retrying",
					"consecutive", consecutive,
					"error", err,
				)
				continue
			}

			slog.Error("broadcast: terminal capture failure, stopping pump",
				"consecutive", consecutive,
				"pulled", atomic.LoadUint64(&p.pulled),
				"error", err,
			)
			p.bus.CloseWithCause(fmt.Errorf("%w: %v", ErrPumpStopped, err))
			return
		}

		consecutive = 0
		atomic.AddUint64(&p.pulled, 1)
		p.bus.Publish(frame)
	}
}

// Stop cancels the loop, waits for it to exit and closes the bus.
// Idempotent - safe to call multiple times.
func (p *Pump) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	p.wg.Wait()

	slog.Info("broadcast: pump stopped",
		"pulled", atomic.LoadUint64(&p.pulled),
		"failures", atomic.LoadUint64(&p.failures),
	)
}

// Running reports whether the capture loop is live.
func (p *Pump) Running() bool {
	return p.running.Load()
}

// Stats returns a snapshot of capture loop metrics.
func (p *Pump) Stats() PumpStats {
	return PumpStats{
		Pulled:   atomic.LoadUint64(&p.pulled),
		Failures: atomic.LoadUint64(&p.failures),
		Running:  p.running.Load(),
	}
}
