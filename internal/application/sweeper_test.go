package application

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingSweep struct {
	evict int
	calls int
}

func (c *countingSweep) Sweep(time.Time) int {
	c.calls++
	return c.evict
}

func TestSweeperRunOnce(t *testing.T) {
	jobs := &countingSweep{evict: 2}
	sessions := &countingSweep{evict: 3}
	s, err := NewSweeper("@every 1m", map[string]Sweepable{"jobs": jobs, "sessions": sessions}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	if n := s.RunOnce(); n != 5 {
		t.Fatalf("RunOnce = %d, want 5", n)
	}
	if jobs.calls != 1 || sessions.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", jobs.calls, sessions.calls)
	}
	s.Start()
	s.Stop()
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	if _, err := NewSweeper("every minute", nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
