package camera

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFastInterval  = 10 * time.Second
	defaultSlowInterval  = 60 * time.Second
	defaultMaxConcurrent = 8
)

// DeviceLister returns the cameras to poll.
type DeviceLister interface {
	Devices() []*Device
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Devices      DeviceLister
	Clock        Clock
	FastInterval time.Duration
	SlowInterval time.Duration

	// MaxConcurrent bounds the cameras polled at once within a cycle.
	MaxConcurrent int
	Logger        Logger

	// AfterSlowCycle runs after every completed slow cycle.
	AfterSlowCycle func(ctx context.Context)
}

// Scheduler drives the fast and slow poll cycles.
//
// The slow cycle probes reachability and refreshes every attribute. The
// fast cycle only confirms active motion and retries pending writes.
// Polls of one camera never overlap: a slow refresh already in flight is
// joined rather than repeated, and a fast poll that finds the camera busy
// is dropped.
type Scheduler struct {
	devices        DeviceLister
	clock          Clock
	fast           time.Duration
	slow           time.Duration
	limit          int
	logger         Logger
	afterSlowCycle func(ctx context.Context)

	flight singleflight.Group

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a Scheduler. Zero options take defaults.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		devices:        opts.Devices,
		clock:          opts.Clock,
		fast:           opts.FastInterval,
		slow:           opts.SlowInterval,
		limit:          opts.MaxConcurrent,
		logger:         opts.Logger,
		afterSlowCycle: opts.AfterSlowCycle,
		done:           make(chan struct{}),
	}
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.fast <= 0 {
		s.fast = defaultFastInterval
	}
	if s.slow <= 0 {
		s.slow = defaultSlowInterval
	}
	if s.limit <= 0 {
		s.limit = defaultMaxConcurrent
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s
}

// Intervals returns the fast and slow cycle periods.
func (s *Scheduler) Intervals() (fast, slow time.Duration) {
	return s.fast, s.slow
}

// Start launches the fast and slow cycle loops.
func (s *Scheduler) Start(ctx context.Context) {
	fastTicker := s.clock.Ticker(s.fast)
	slowTicker := s.clock.Ticker(s.slow)

	s.wg.Add(2)
	go s.loop(ctx, fastTicker, s.FastCycle)
	go s.loop(ctx, slowTicker, s.SlowCycle)

	s.logger.Info("poll scheduler started",
		"fast_interval", s.fast.String(),
		"slow_interval", s.slow.String(),
		"max_concurrent", s.limit,
	)
}

// Stop ends the cycle loops and waits for in-flight polls.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, cycle func(context.Context)) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.Chan():
			cycle(ctx)
		}
	}
}

// FastCycle runs one fast poll across all cameras.
func (s *Scheduler) FastCycle(ctx context.Context) {
	s.forEach(ctx, func(ctx context.Context, d *Device) {
		if !d.opMu.TryLock() {
			s.logger.Debug("fast poll skipped, camera busy", "device_id", d.ID())
			return
		}
		defer d.opMu.Unlock()
		d.fastPoll(ctx)
	})
}

// SlowCycle runs one full refresh across all cameras.
func (s *Scheduler) SlowCycle(ctx context.Context) {
	s.forEach(ctx, s.Refresh)

	if s.afterSlowCycle != nil {
		s.afterSlowCycle(ctx)
	}
}

// Refresh runs the full query sequence for one camera, joining a refresh
// of the same camera that is already running.
func (s *Scheduler) Refresh(ctx context.Context, d *Device) {
	s.flight.Do(d.ID(), func() (any, error) {
		d.opMu.Lock()
		defer d.opMu.Unlock()
		d.refresh(ctx)
		return nil, nil
	})
}

// Probe refreshes a newly known camera in the background.
func (s *Scheduler) Probe(ctx context.Context, d *Device) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Refresh(ctx, d)
	}()
}

// forEach runs fn for every camera with bounded concurrency. Failures are
// handled per camera, so the group never cancels.
func (s *Scheduler) forEach(ctx context.Context, fn func(context.Context, *Device)) {
	if s.devices == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, d := range s.devices.Devices() {
		g.Go(func() error {
			fn(gctx, d)
			return nil
		})
	}
	_ = g.Wait()
}
