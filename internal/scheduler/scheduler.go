package scheduler

import (
	"context"
	"time"

	"vigil/internal/logger"
)

// IntervalScheduler fires a task on a fixed cadence aligned to the wall
// clock, so a 5m cycle runs at :00/:05/:10 instead of drifting from process
// start time.
type IntervalScheduler struct {
	Name           string
	Interval       time.Duration
	RunImmediately bool

	ctx   context.Context
	nowFn func() time.Time
}

func NewIntervalScheduler(ctx context.Context, interval time.Duration) *IntervalScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &IntervalScheduler{
		Interval: interval,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks until the context is cancelled, invoking task on each tick.
func (s *IntervalScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("scheduler[%s]: invalid interval=%s, exit", s.Name, s.Interval)
		return
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	if s.RunImmediately {
		task()
	}

	for {
		now := s.nowFn().UTC()
		next := now.Truncate(s.Interval).Add(s.Interval)
		logger.Debugf("scheduler[%s]: next run at %s (in %s)",
			s.Name, next.Format(time.RFC3339), next.Sub(now).Truncate(time.Second))
		if !s.waitUntil(next) {
			return
		}
		task()
	}
}

func (s *IntervalScheduler) waitUntil(target time.Time) bool {
	wait := target.Sub(s.nowFn().UTC())
	if wait <= 0 {
		select {
		case <-s.ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(wait)
	select {
	case <-s.ctx.Done():
		timer.Stop()
		logger.Infof("scheduler[%s]: context done, exit", s.Name)
		return false
	case <-timer.C:
		return true
	}
}
