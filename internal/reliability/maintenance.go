package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/ekurt/finassist/internal/database"
)

// diskSpaceMinimumBytes halts maintenance when free space on the data
// volume drops below it.
const diskSpaceMinimumBytes = 100 * 1024 * 1024

// CacheSweeper is what maintenance needs from the price cache.
type CacheSweeper interface {
	Sweep() int
}

// MaintenanceService runs the periodic housekeeping pass: integrity
// check, WAL checkpoint, disk space verification and cache sweep.
type MaintenanceService struct {
	db      *database.DB
	cache   CacheSweeper
	dataDir string
	log     zerolog.Logger
}

// NewMaintenanceService creates the maintenance service.
func NewMaintenanceService(db *database.DB, cache CacheSweeper, dataDir string, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		db:      db,
		cache:   cache,
		dataDir: dataDir,
		log:     log.With().Str("service", "maintenance").Logger(),
	}
}

// Run executes one maintenance pass. Integrity failure aborts the pass;
// checkpoint failure is logged and skipped.
func (m *MaintenanceService) Run(ctx context.Context) error {
	m.log.Info().Msg("Starting maintenance")
	start := time.Now()

	if err := m.db.HealthCheck(ctx); err != nil {
		m.log.Error().Err(err).Msg("Database integrity check failed")
		return fmt.Errorf("integrity check failed: %w", err)
	}

	if err := m.db.WALCheckpoint("TRUNCATE"); err != nil {
		m.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := m.checkDiskSpace(); err != nil {
		return err
	}

	if m.cache != nil {
		removed := m.cache.Sweep()
		m.log.Debug().Int("removed", removed).Msg("Swept expired cache entries")
	}

	m.log.Info().Dur("duration", time.Since(start)).Msg("Maintenance completed")
	return nil
}

func (m *MaintenanceService) checkDiskSpace() error {
	usage, err := disk.Usage(m.dataDir)
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to read disk usage")
		return nil
	}

	if usage.Free < diskSpaceMinimumBytes {
		m.log.Error().
			Uint64("free_bytes", usage.Free).
			Float64("used_percent", usage.UsedPercent).
			Msg("CRITICAL: Disk space low")
		return fmt.Errorf("disk space critical: %d bytes free", usage.Free)
	}
	return nil
}
