package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"gearshelf/internal/config"
)

// Cleaner deletes catalog rows inactive for more than olderThanDays
type Cleaner interface {
	Cleanup(ctx context.Context, olderThanDays int) (int64, error)
}

// RetentionJobManager schedules the inactive-plugin cleanup sweep
type RetentionJobManager struct {
	cron    *cron.Cron
	cleaner Cleaner
	config  config.RetentionConfig
	timeout time.Duration
	logger  zerolog.Logger
	entryID cron.EntryID
}

// NewRetentionJobManager creates a manager; nothing runs until Start
func NewRetentionJobManager(cleaner Cleaner, cfg config.RetentionConfig, logger zerolog.Logger) *RetentionJobManager {
	return &RetentionJobManager{
		cron:    cron.New(),
		cleaner: cleaner,
		config:  cfg,
		timeout: 5 * time.Minute,
		logger:  logger,
	}
}

// Start registers the sweep on the configured schedule and starts the
// scheduler. A disabled retention config is a no-op.
func (m *RetentionJobManager) Start() error {
	if !m.config.Enabled {
		m.logger.Info().Msg("Retention sweep disabled")
		return nil
	}

	id, err := m.cron.AddFunc(m.config.Schedule, m.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep %q: %w", m.config.Schedule, err)
	}
	m.entryID = id
	m.cron.Start()

	m.logger.Info().
		Str("schedule", m.config.Schedule).
		Int("days", m.config.Days).
		Time("next_run", m.NextRun()).
		Msg("Retention sweep scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish or ctx to expire
func (m *RetentionJobManager) Stop(ctx context.Context) {
	done := m.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn().Msg("Retention sweep still running at shutdown")
	}
}

// NextRun reports when the sweep fires next; zero when not scheduled
func (m *RetentionJobManager) NextRun() time.Time {
	if m.entryID == 0 {
		return time.Time{}
	}
	return m.cron.Entry(m.entryID).Next
}

// RunOnce performs one sweep with the configured age
func (m *RetentionJobManager) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	deleted, err := m.cleaner.Cleanup(ctx, m.config.Days)
	if err != nil {
		m.logger.Error().Err(err).Int("days", m.config.Days).Msg("Retention sweep failed")
		return 0, err
	}

	m.logger.Info().
		Int64("deleted", deleted).
		Int("days", m.config.Days).
		Dur("duration", time.Since(start)).
		Msg("Retention sweep complete")
	return deleted, nil
}

func (m *RetentionJobManager) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	_, _ = m.RunOnce(ctx)
}
