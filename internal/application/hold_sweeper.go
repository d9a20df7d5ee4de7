package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// HoldSweepFunc releases expired holds across every reachable store and
// reports how many were transitioned.
type HoldSweepFunc func(ctx context.Context) (int64, error)

// HoldSweeper periodically expires holds whose timeout has elapsed. Holds are
// released eagerly on commit and cancel; the sweeper covers sessions that
// were simply abandoned.
type HoldSweeper struct {
	spec    string
	sweep   HoldSweepFunc
	timeout time.Duration
	logger  *slog.Logger
	cron    *cron.Cron
}

// NewHoldSweeper builds a sweeper on the given cron spec, e.g. "@every 1m".
func NewHoldSweeper(spec string, sweep HoldSweepFunc, logger *slog.Logger) *HoldSweeper {
	if spec == "" {
		spec = "@every 1m"
	}
	return &HoldSweeper{
		spec:    spec,
		sweep:   sweep,
		timeout: 30 * time.Second,
		logger:  defaultLogger(logger),
	}
}

// Start schedules the sweep and begins running it in the background.
func (s *HoldSweeper) Start() error {
	if s == nil || s.sweep == nil {
		return fmt.Errorf("hold sweep function not configured")
	}

	runner := cron.New()
	if _, err := runner.AddFunc(s.spec, s.runOnce); err != nil {
		return fmt.Errorf("schedule hold sweep %q: %w", s.spec, err)
	}
	s.cron = runner
	runner.Start()
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *HoldSweeper) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *HoldSweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	released, err := s.sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "hold sweep failed", "error", err)
		return
	}
	if released > 0 {
		s.logger.InfoContext(ctx, "expired holds released", "count", released)
	}
}
