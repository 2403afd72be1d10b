package scheduler

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	if err := Validate("0 3 * * 0"); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}
	if err := Validate("every sunday"); err == nil {
		t.Error("Validate(invalid) = nil")
	}
}

func TestSetJobAndNextRun(t *testing.T) {
	s := New()
	if err := s.SetJob("not a cron", func() {}); err == nil {
		t.Fatal("expected error for bad expression")
	}
	if s.CronExpr() != "" {
		t.Errorf("CronExpr after failed SetJob = %q", s.CronExpr())
	}

	if err := s.SetJob("*/5 * * * *", func() {}); err != nil {
		t.Fatalf("SetJob: %v", err)
	}
	s.Start()
	defer s.Stop()

	// The cron loop computes Next asynchronously after Start.
	deadline := time.Now().Add(2 * time.Second)
	var next *time.Time
	for next == nil && time.Now().Before(deadline) {
		next = s.NextRunAt()
		time.Sleep(10 * time.Millisecond)
	}
	if next == nil {
		t.Fatal("NextRunAt = nil after Start")
	}
	if until := time.Until(*next); until <= 0 || until > 5*time.Minute {
		t.Errorf("next run in %v, want within 5m", until)
	}

	if err := s.SetJob("", nil); err != nil {
		t.Fatalf("SetJob(\"\"): %v", err)
	}
	if s.NextRunAt() != nil || s.CronExpr() != "" {
		t.Error("job not cleared")
	}
}
