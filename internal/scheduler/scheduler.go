// Package scheduler triggers the usage report on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ReportFunc builds and emits one usage report.
type ReportFunc func(ctx context.Context) error

// Scheduler runs a ReportFunc on a cron schedule (UTC). A run still in
// progress when the next one is due causes that next run to be skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	report ReportFunc
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates spec and registers report. Nothing runs until Start.
func New(spec string, report ReportFunc) (*Scheduler, error) {
	if report == nil {
		return nil, errors.New("scheduler: report function is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(log.Default()))),
		),
		spec:   spec,
		report: report,
		ctx:    ctx,
		cancel: cancel,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	log.Println("🕘 Triggered usage report")
	if err := s.report(s.ctx); err != nil {
		log.Printf("❌ Usage report failed: %v", err)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("📅 Scheduler started - usage reports on %q (UTC), next at %s", s.spec, s.Next().Format(time.RFC3339))
}

// Stop waits for a running report and cancels its context afterwards.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	log.Println("📅 Scheduler stopped")
}

// Next returns when the report runs next, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
