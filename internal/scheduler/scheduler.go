// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Musing-io/musing-protocol/internal/bond"
	"github.com/Musing-io/musing-protocol/internal/events"
)

// Source lists the economies to snapshot.
type Source interface {
	Economies(ctx context.Context) ([]bond.State, error)
}

// Scheduler periodically snapshots every economy's reserve, supply and price.
type Scheduler struct {
	cron      *cron.Cron
	source    Source
	publisher bond.Publisher
	metrics   bond.MetricsRecorder
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New registers the snapshot job on schedule (standard five-field cron or a
// descriptor such as "@every 1m"). An empty schedule disables the job; RunNow
// still works. metrics may be nil.
func New(schedule string, source Source, publisher bond.Publisher, metrics bond.MetricsRecorder, logger *zap.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:      cron.New(),
		source:    source,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.Named("scheduler"),
		now:       func() time.Time { return time.Now().UTC() },
		ctx:       ctx,
		cancel:    cancel,
	}
	if schedule == "" {
		return s, nil
	}
	if _, err := s.cron.AddFunc(schedule, s.snapshotTask); err != nil {
		cancel()
		return nil, fmt.Errorf("register snapshot task: %w", err)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels a running snapshot and waits for it, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) snapshotTask() {
	if err := s.RunNow(s.ctx); err != nil {
		s.logger.Error("Snapshot failed", zap.Error(err))
	}
}

// RunNow snapshots every economy immediately and returns how the publish went.
func (s *Scheduler) RunNow(ctx context.Context) error {
	states, err := s.source.Economies(ctx)
	if err != nil {
		return fmt.Errorf("list economies: %w", err)
	}

	taken := s.now()
	var failed int
	for _, st := range states {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordEconomy(st.ID.String(), st.Reserve, st.PricePPM)
		}
		ev := events.SnapshotEvent{
			BaseEvent: events.BaseEvent{EventType: events.SnapshotTaken, EventTime: taken},
			Token:     st.ID,
			Reserve:   st.Reserve,
			Supply:    st.CurrentSupply,
			PricePPM:  st.PricePPM,
		}
		if err := s.publisher.Publish(ev); err != nil {
			failed++
			s.logger.Warn("Failed to publish snapshot",
				zap.String("token", st.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Debug("Snapshot taken",
		zap.Int("economies", len(states)),
		zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d snapshots not published", failed, len(states))
	}
	return nil
}
