package reliability

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/risklens/risklens/internal/modules/portfolio"
	"github.com/risklens/risklens/internal/tasks"
)

// Task results are polled shortly after submission; anything older is
// abandoned.
const taskRetention = 24 * time.Hour

const backupRetentionDays = 30

// Maintenance runs the recurring housekeeping jobs: hourly task garbage
// collection and, when a backup target is configured, a daily snapshot
// upload with rotation.
type Maintenance struct {
	cron       *cron.Cron
	store      *tasks.Store
	portfolios *portfolio.Repository
	backup     *BackupService

	// portfolioRetention of zero keeps saved portfolios forever.
	portfolioRetention time.Duration

	log zerolog.Logger
}

func NewMaintenance(store *tasks.Store, portfolios *portfolio.Repository, backup *BackupService, portfolioRetention time.Duration, logger zerolog.Logger) *Maintenance {
	return &Maintenance{
		cron:               cron.New(),
		store:              store,
		portfolios:         portfolios,
		backup:             backup,
		portfolioRetention: portfolioRetention,
		log:                logger.With().Str("component", "maintenance").Logger(),
	}
}

// Start registers the jobs and starts the scheduler.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("@hourly", m.collectGarbage); err != nil {
		return err
	}
	if m.backup != nil {
		if _, err := m.cron.AddFunc("@daily", m.runBackup); err != nil {
			return err
		}
	}
	m.cron.Start()
	m.log.Info().Bool("backup_enabled", m.backup != nil).Msg("maintenance scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info().Msg("maintenance scheduler stopped")
}

func (m *Maintenance) collectGarbage() {
	if n, err := m.store.DeleteOlderThan(time.Now().Add(-taskRetention)); err != nil {
		m.log.Error().Err(err).Msg("task garbage collection failed")
	} else if n > 0 {
		m.log.Info().Int64("deleted", n).Msg("expired tasks removed")
	}

	if m.portfolios != nil && m.portfolioRetention > 0 {
		if n, err := m.portfolios.PurgeOlderThan(time.Now().Add(-m.portfolioRetention)); err != nil {
			m.log.Error().Err(err).Msg("portfolio purge failed")
		} else if n > 0 {
			m.log.Info().Int64("deleted", n).Msg("stale portfolios removed")
		}
	}
}

func (m *Maintenance) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := m.backup.CreateAndUploadBackup(ctx); err != nil {
		m.log.Error().Err(err).Msg("scheduled backup failed")
		return
	}
	if err := m.backup.RotateOldBackups(ctx, backupRetentionDays); err != nil {
		m.log.Error().Err(err).Msg("backup rotation failed")
	}
}
