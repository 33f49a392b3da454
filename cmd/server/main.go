// Package main is the entry point for the finassist personal portfolio
// service. It resolves prices for funds, equities, currencies and gold
// through a cascade of external sources, and keeps a FIFO lot ledger of
// the portfolio with an append-only transaction trail.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ekurt/finassist/internal/clients/goldweb"
	"github.com/ekurt/finassist/internal/clients/tefas"
	"github.com/ekurt/finassist/internal/clients/tefasweb"
	"github.com/ekurt/finassist/internal/clients/yahoo"
	"github.com/ekurt/finassist/internal/config"
	"github.com/ekurt/finassist/internal/database"
	"github.com/ekurt/finassist/internal/ledger"
	"github.com/ekurt/finassist/internal/pricing"
	"github.com/ekurt/finassist/internal/ratelimit"
	"github.com/ekurt/finassist/internal/reliability"
	"github.com/ekurt/finassist/internal/server"
	"github.com/ekurt/finassist/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting finassist")

	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	// Pricing stack: per-source rate limiter, TTL cache, source cascade.
	limiter := ratelimit.New(cfg.RateLimits, cfg.FallbackLimit, log)
	cache := pricing.NewQuoteCache(cfg.PriceCacheTTL)

	yahooClient := yahoo.NewClient(log)
	resolver := pricing.NewResolver(pricing.ResolverConfig{
		Cache:        cache,
		Limiter:      limiter,
		FundSources:  []pricing.Source{tefas.NewClient(log), tefasweb.NewClient(log)},
		MarketSource: yahooClient,
		FX:           yahooClient,
		GoldFallback: goldweb.NewClient(log),
		Log:          log,
	})

	// Ledger stack.
	ledgerRepo := ledger.NewRepository(db.Conn(), log)
	ledgerService := ledger.NewService(db, ledgerRepo, log)

	// Maintenance and backups.
	maintenance := reliability.NewMaintenanceService(db, cache, cfg.DataDir, log)

	var backupService *reliability.BackupService
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup client")
		}
		backupService = reliability.NewBackupService(db, s3Client, cfg.DataDir, log)
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Cloud backups enabled")
	} else {
		log.Info().Msg("Cloud backups disabled (no bucket configured)")
	}

	scheduler := reliability.NewScheduler(maintenance, backupService, cfg.Backup.Retention, log)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DB:        db,
		Prices:    resolver,
		Portfolio: ledgerService,
		Limiter:   limiter,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
