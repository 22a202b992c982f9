package application

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweepable evicts state that expired before now and reports how much.
type Sweepable interface {
	Sweep(now time.Time) int
}

// Sweeper runs eviction passes over in-memory state on a cron schedule.
type Sweeper struct {
	c       *cron.Cron
	targets map[string]Sweepable
	now     func() time.Time
	log     *zap.Logger
}

// NewSweeper schedules eviction with a robfig/cron spec such as "@every 1m".
func NewSweeper(spec string, targets map[string]Sweepable, log *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		c:       cron.New(),
		targets: targets,
		now:     time.Now,
		log:     log,
	}
	if _, err := s.c.AddFunc(spec, func() { s.RunOnce() }); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce performs one eviction pass and returns the total evicted.
func (s *Sweeper) RunOnce() int {
	now := s.now()
	total := 0
	for name, t := range s.targets {
		n := t.Sweep(now)
		if n > 0 {
			s.log.Debug("sweep", zap.String("target", name), zap.Int("evicted", n))
		}
		total += n
	}
	return total
}

// Start begins the schedule.
func (s *Sweeper) Start() { s.c.Start() }

// Stop halts the schedule and waits for a running pass.
func (s *Sweeper) Stop() {
	<-s.c.Stop().Done()
}
