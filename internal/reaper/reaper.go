package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/taleroom/internal/metrics"
	"github.com/jason-s-yu/taleroom/internal/models"
	"github.com/sirupsen/logrus"
)

// Store is the part of the session store the reaper sweeps.
type Store interface {
	DeleteInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteStaleWaitingSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper periodically deletes sessions idle longer than the timeout. Connected
// players are not notified; their next call finds the session gone.
type Reaper struct {
	store        Store
	interval     time.Duration
	timeout      time.Duration
	storeTimeout time.Duration
	log          *logrus.Logger

	now func() time.Time
}

func New(store Store, interval, timeout, storeTimeout time.Duration, logger *logrus.Logger) *Reaper {
	return &Reaper{
		store:        store,
		interval:     interval,
		timeout:      timeout,
		storeTimeout: storeTimeout,
		log:          logger,
		now:          time.Now,
	}
}

// Run sweeps every interval until ctx is done. Sweep failures are logged and the
// loop continues.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.WithFields(logrus.Fields{"interval": r.interval, "timeout": r.timeout}).Info("reaper started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return

		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, r.storeTimeout)
			n, err := r.Sweep(sweepCtx)
			cancel()
			if err != nil {
				r.log.WithError(err).Error("session sweep failed")
				continue
			}
			if n > 0 {
				r.log.Infof("reaped %d inactive sessions", n)
			}
		}
	}
}

// Sweep runs one pass and returns the number of sessions deleted. Without a
// last-activity column it falls back to waiting sessions by creation time.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	cutoff := r.now().Add(-r.timeout)
	n, err := r.store.DeleteInactiveSessions(ctx, cutoff)
	if errors.Is(err, models.ErrUnsupported) {
		r.log.WithError(err).Warn("last-activity sweep unsupported, falling back to stale waiting sessions")
		n, err = r.store.DeleteStaleWaitingSessions(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("fallback sweep: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("inactivity sweep: %w", err)
	}

	metrics.SessionsDeleted.WithLabelValues(metrics.ReasonReaped).Add(float64(n))
	return n, nil
}
