package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-engine/internal/logger"
)

// ExpiryReleaser runs one sweep pass.  SeatService implements it.
type ExpiryReleaser interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

// SweeperStatus is a snapshot of the sweeper state.
type SweeperStatus struct {
	IsRunning     bool      `json:"is_running"`
	Interval      string    `json:"interval"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	LastRun       time.Time `json:"last_run,omitempty"`
	LastReleased  int       `json:"last_released"`
	TotalReleased int64     `json:"total_released"`
	Runs          int64     `json:"runs"`
	ErrorCount    int64     `json:"error_count"`
	LastError     string    `json:"last_error,omitempty"`
}

// SweeperConfig controls the sweep schedule.
type SweeperConfig struct {
	Interval        time.Duration // period between passes
	PassTimeout     time.Duration // upper bound for one pass
	ShutdownTimeout time.Duration // max time Stop waits for the loop
}

// Sweeper periodically reclaims expired holds.  A failed pass is logged and
// counted; the schedule itself only ends through Stop or cancellation of the
// context given to Start.
type Sweeper struct {
	releaser ExpiryReleaser
	log      logger.Logger
	cfg      SweeperConfig

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup

	lastRun       time.Time
	lastReleased  int
	totalReleased int64
	runs          int64
	errorCount    int64
	lastError     string
}

// NewSweeper constructs a stopped Sweeper.  Zero config values fall back to
// a one minute interval, a 30 second pass timeout and a 10 second shutdown
// timeout.
func NewSweeper(releaser ExpiryReleaser, log logger.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Sweeper{releaser: releaser, log: log, cfg: cfg}
}

// Start runs one pass immediately in the background and then one per
// interval.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return errors.New("sweeper is already running")
	}
	s.isRunning = true
	s.startedAt = time.Now().UTC()
	s.stopCh = make(chan struct{})

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)
	s.log.Info("expiry sweeper started", "interval", s.cfg.Interval.String())
	return nil
}

// Stop signals the loop and waits for an in-flight pass to finish, up to
// the shutdown timeout.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return errors.New("sweeper is not running")
	}
	close(s.stopCh)
	s.isRunning = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("expiry sweeper stopped")
	case <-time.After(s.cfg.ShutdownTimeout):
		s.log.Warn("expiry sweeper shutdown timeout exceeded")
	}
	return nil
}

func (s *Sweeper) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass and records its outcome.  It never panics
// the caller and never returns an error: failures are logged and retried on
// the next tick.
func (s *Sweeper) RunOnce(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, s.cfg.PassTimeout)
	defer cancel()

	started := time.Now()
	n, err := s.pass(pctx)

	s.mu.Lock()
	s.lastRun = started.UTC()
	s.runs++
	if err != nil {
		s.errorCount++
		s.lastError = err.Error()
	} else {
		s.lastReleased = n
		s.totalReleased += int64(n)
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.log.Info("expired holds released", "count", n, "duration_ms", time.Since(started).Milliseconds())
	} else {
		s.log.Debug("expiry sweep found nothing to release")
	}
}

func (s *Sweeper) pass(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("sweep pass panicked")
			s.log.Error("expiry sweep panic", "panic", r)
		}
	}()
	return s.releaser.ReleaseExpired(ctx)
}

// Status returns a snapshot of the sweeper state.
func (s *Sweeper) Status() SweeperStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SweeperStatus{
		IsRunning:     s.isRunning,
		Interval:      s.cfg.Interval.String(),
		StartedAt:     s.startedAt,
		LastRun:       s.lastRun,
		LastReleased:  s.lastReleased,
		TotalReleased: s.totalReleased,
		Runs:          s.runs,
		ErrorCount:    s.errorCount,
		LastError:     s.lastError,
	}
}
