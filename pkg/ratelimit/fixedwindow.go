// Package ratelimit implements a process-local fixed-window request counter.
//
// A fixed window admits at most limit requests per key between two resets.
// Bursts straddling a window boundary can see up to 2x limit; that is fine
// for abuse deterrence and is not meant for quota accounting. State is never
// shared between processes, so N replicas give N independent quotas.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired windows are dropped when no
// interval is configured.
const DefaultSweepInterval = 5 * time.Minute

// Clock returns the current time. Tests swap it for a fake.
type Clock func() time.Time

type record struct {
	count   int
	resetAt time.Time
}

// FixedWindow counts requests per key in fixed windows.
type FixedWindow struct {
	mu      sync.Mutex
	records map[string]*record
	now     Clock

	logger        *slog.Logger
	sweepInterval time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
	stopOnce      sync.Once
}

// Options configure a FixedWindow. Zero values pick sane defaults.
type Options struct {
	Clock         Clock
	SweepInterval time.Duration
	Logger        *slog.Logger
}

// New creates an empty limiter. Call Start to run the background sweep.
func New(opts Options) *FixedWindow {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &FixedWindow{
		records:       make(map[string]*record),
		now:           opts.Clock,
		logger:        opts.Logger,
		sweepInterval: opts.SweepInterval,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Check reports whether a request for key is admitted. A rejected request
// does not advance the counter.
func (l *FixedWindow) Check(key string, limit int, window time.Duration) bool {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Millisecond
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || now.After(rec.resetAt) {
		l.records[key] = &record{count: 1, resetAt: now.Add(window)}
		return true
	}

	if rec.count >= limit {
		return false
	}
	rec.count++
	return true
}

// RetryAfter returns how long until the window for key resets. Zero means the
// key has no live window.
func (l *FixedWindow) RetryAfter(key string) time.Duration {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || now.After(rec.resetAt) {
		return 0
	}
	return rec.resetAt.Sub(now)
}

// Sweep drops every record whose window has already reset and returns how
// many were removed.
func (l *FixedWindow) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, rec := range l.records {
		if now.After(rec.resetAt) {
			delete(l.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *FixedWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Start runs Sweep on a ticker until Stop is called. It does not block.
func (l *FixedWindow) Start() {
	go l.run()
	l.logger.Info("rate limit sweeper started", "interval", l.sweepInterval)
}

// Stop halts the sweeper and waits for it to exit. Safe to call more than
// once; calling it without Start is not.
func (l *FixedWindow) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		<-l.doneCh
		l.logger.Info("rate limit sweeper stopped")
	})
}

func (l *FixedWindow) run() {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("rate limit sweep", "removed", n, "remaining", l.Len())
			}
		case <-l.stopCh:
			return
		}
	}
}
