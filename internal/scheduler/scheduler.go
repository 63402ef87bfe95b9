package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// RefreshRunner fetches fresh bars and recomputes indicators for every
// enabled instrument.
type RefreshRunner interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Scheduler runs the periodic full-refresh cycle.
type Scheduler struct {
	Cron   *cron.Cron
	Runner RefreshRunner
	Ctx    context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner RefreshRunner) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds()),
		Runner: runner,
		Ctx:    ctx,
	}
}

// Register registers the refresh task with the given cron spec.
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunRefreshNow executes the refresh task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunRefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) refreshTask() {
	log.Println("[INFO] running scheduled refresh")
	refreshed, err := s.Runner.RefreshAll(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] scheduled refresh: %v", err)
	}
	log.Printf("[INFO] scheduled refresh done, %d pairs refreshed", refreshed)
}
