package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic rescan job in serve mode. It wraps robfig/cron
// and tracks the single job so its next run can be reported.
type Scheduler struct {
	mu       sync.RWMutex
	c        *cron.Cron
	entryID  cron.EntryID
	cronExpr string
}

// New creates a stopped Scheduler. Call Start to activate it.
func New() *Scheduler {
	return &Scheduler{
		c: cron.New(),
	}
}

// Validate reports whether expr is a standard five-field cron expression.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// SetJob replaces the current job with fn on the given expression. An empty
// expression removes the job. Takes effect immediately if already started.
func (s *Scheduler) SetJob(expr string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expr != "" {
		if err := Validate(expr); err != nil {
			return err
		}
	}
	if s.entryID != 0 {
		s.c.Remove(s.entryID)
		s.entryID = 0
	}
	s.cronExpr = expr
	if expr == "" {
		slog.Info("scheduler: rescans disabled")
		return nil
	}

	id, err := s.c.AddFunc(expr, fn)
	if err != nil {
		return fmt.Errorf("add job %q: %w", expr, err)
	}
	s.entryID = id
	slog.Info("scheduler: rescan job set", "cron", expr)
	return nil
}

// Start begins the cron loop.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the cron loop, waiting for a running job callback to return.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// NextRunAt returns the next scheduled time, or nil if no job is set or the
// scheduler has not been started.
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.c.Entry(s.entryID)
	if entry.ID == 0 || entry.Next.IsZero() {
		return nil
	}
	t := entry.Next
	return &t
}

// CronExpr returns the current cron expression.
func (s *Scheduler) CronExpr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cronExpr
}
