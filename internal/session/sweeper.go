package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultSweepSchedule = "@every 5m"

// Sweeper periodically evicts idle sessions from a Store. It covers calls
// whose end-of-call status event never arrived.
type Sweeper struct {
	store    *Store
	schedule string
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewSweeper creates a Sweeper for store. An empty schedule runs every five
// minutes.
func NewSweeper(store *Store, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("session: store must not be nil")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}, nil
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runOnce); err != nil {
		return fmt.Errorf("session: schedule sweep %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("session sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("session sweeper stopped")
}

func (s *Sweeper) runOnce() {
	if n := s.store.Sweep(time.Now()); n > 0 {
		s.logger.Info("evicted idle sessions", "count", n, "remaining", s.store.Len())
	}
}
