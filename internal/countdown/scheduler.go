package countdown

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tribune/internal/ledger"
	"tribune/internal/metrics"
	"tribune/internal/models"
)

const defaultInterval = 1 * time.Second

// Scheduler is the one-second logical clock behind hold countdowns. Each
// tick recomputes remaining time for every hold, fires the expiry callback
// at most once per hold expiry, and evicts locally-expired holds from the
// ledger so the view can be refreshed without waiting for the next poll.
//
// The scheduler runs only while the hold-bearing view is mounted; holds
// that expire while it is stopped are simply discovered on the next poll.
type Scheduler struct {
	ledger   *ledger.HoldLedger
	interval time.Duration
	now      func() time.Time

	onExpire  func(models.Hold)
	onEvicted func([]models.Hold)

	mu    sync.Mutex
	fired map[int64]time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type Config struct {
	Interval time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

func NewScheduler(l *ledger.HoldLedger, cfg Config) *Scheduler {
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Scheduler{
		ledger:   l,
		interval: cfg.Interval,
		now:      cfg.Now,
		fired:    make(map[int64]time.Time),
		done:     make(chan struct{}),
	}
}

// OnExpire registers the per-hold expiry callback. Set before Start.
func (s *Scheduler) OnExpire(fn func(models.Hold)) {
	s.onExpire = fn
}

// OnEvicted registers the callback invoked with the holds removed by a tick's
// eviction pass. Used to trigger an out-of-band seat-map refresh. Set before
// Start.
func (s *Scheduler) OnEvicted(fn func([]models.Hold)) {
	s.onEvicted = fn
}

// Start begins ticking in the background until Stop or ctx cancellation.
// Starting again after the previous context was cancelled is allowed; the
// scheduler runs only while a hold-bearing view is mounted.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Debug("Starting countdown scheduler", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick(s.now())
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts every running ticker permanently
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Tick runs one scheduler step at the given instant. Exported so tests can
// drive the clock directly.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holds := s.ledger.Items()

	// fire expiry callbacks, once per (seat, expiry): a hold whose expiry
	// was extended gets a fresh shot, repeated ticks at zero do not re-fire
	for _, h := range holds {
		if h.Remaining(now) == 0 && !s.fired[h.SeatID].Equal(h.ExpiresAt) {
			s.fired[h.SeatID] = h.ExpiresAt
			if s.onExpire != nil {
				s.onExpire(h)
			}
		}
	}

	removed := s.ledger.EvictExpired(now)
	if len(removed) > 0 {
		metrics.HoldsExpired.Add(float64(len(removed)))
		slog.Info("Evicted expired holds", "count", len(removed))
		if s.onEvicted != nil {
			s.onEvicted(removed)
		}
	}

	// drop bookkeeping for seats no longer held
	current := make(map[int64]struct{}, len(holds))
	for _, h := range holds {
		current[h.SeatID] = struct{}{}
	}
	for seatID := range s.fired {
		if _, ok := current[seatID]; !ok {
			delete(s.fired, seatID)
		}
	}
}

// Remaining returns whole seconds left per held seat at the current instant
func (s *Scheduler) Remaining() map[int64]int {
	now := s.now()
	out := make(map[int64]int)
	for _, h := range s.ledger.Items() {
		out[h.SeatID] = h.Remaining(now)
	}
	return out
}
