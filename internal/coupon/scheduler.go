package coupon

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the distribution engine on a fixed interval with an
// immediate first run. Independent of the ledger session's lifecycle.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
	firstWG sync.WaitGroup
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Engine   *Engine
	Interval time.Duration // Default: 1h
	Logger   *log.Logger
}

// NewScheduler creates a coupon scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	interval := opts.Interval
	if interval == 0 {
		interval = time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		engine:   opts.Engine,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the recurring check. The first run happens immediately;
// later runs fire on the interval. Idempotent while running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.engine.RunAll(runCtx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule coupon check: %w", err)
	}

	s.cron = c
	s.cancel = cancel
	s.running = true

	s.logger.Printf("coupon scheduler started, checking every %s", s.interval)

	// Immediate first run so a restart never waits a full interval.
	s.firstWG.Add(1)
	go func() {
		defer s.firstWG.Done()
		s.engine.RunAll(runCtx)
	}()
	c.Start()
	return nil
}

// Stop halts the recurring check and waits for in-flight runs to
// finish, the immediate first run included. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	cancel()
	<-c.Stop().Done()
	s.firstWG.Wait()
	s.logger.Println("coupon scheduler stopped")
}
