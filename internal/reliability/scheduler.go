package reliability

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler drives the periodic maintenance and backup jobs.
type Scheduler struct {
	cron        *cron.Cron
	maintenance *MaintenanceService
	backup      *BackupService
	retention   int
	log         zerolog.Logger
}

// NewScheduler creates the job scheduler. backup may be nil when no
// backup target is configured.
func NewScheduler(maintenance *MaintenanceService, backup *BackupService, retention int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		maintenance: maintenance,
		backup:      backup,
		retention:   retention,
		log:         log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the jobs and starts the cron loop. Maintenance runs
// nightly at 02:00, backups at 03:00 so they see a checkpointed WAL.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 2 * * *", s.runMaintenance); err != nil {
		return err
	}

	if s.backup != nil {
		if _, err := s.cron.AddFunc("0 3 * * *", s.runBackup); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info().Bool("backup_enabled", s.backup != nil).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) runMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := s.maintenance.Run(ctx); err != nil {
		s.log.Error().Err(err).Msg("Maintenance run failed")
	}
}

func (s *Scheduler) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := s.backup.CreateAndUpload(ctx); err != nil {
		s.log.Error().Err(err).Msg("Backup run failed")
		return
	}
	if err := s.backup.RotateOldBackups(ctx, s.retention); err != nil {
		s.log.Error().Err(err).Msg("Backup rotation failed")
	}
}
