package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ekurt/finassist/internal/database"
	"github.com/ekurt/finassist/internal/ratelimit"
)

// SystemHandlers serves health and introspection endpoints.
type SystemHandlers struct {
	db      *database.DB
	limiter *ratelimit.Limiter
	log     zerolog.Logger
	started time.Time
}

// NewSystemHandlers creates the system handlers.
func NewSystemHandlers(db *database.DB, limiter *ratelimit.Limiter, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:      db,
		limiter: limiter,
		log:     log.With().Str("handler", "system").Logger(),
		started: time.Now(),
	}
}

// RegisterRoutes registers the system routes.
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/system/ratelimits/{resource}", h.HandleRateLimitStatus)
}

// HandleHealth reports process and database health. The database check
// is a quick ping; the full integrity check belongs to maintenance.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	if err := h.db.QuickCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}

	resp := map[string]interface{}{
		"status":         status,
		"database":       dbStatus,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		resp["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		resp["memory_percent"] = memStat.UsedPercent
	}
	if diskStat, err := disk.Usage(h.db.Path()); err == nil {
		resp["disk_percent"] = diskStat.UsedPercent
	}
	if stats, err := h.db.GetStats(); err == nil {
		resp["database_bytes"] = stats.SizeBytes
		resp["wal_bytes"] = stats.WALSizeBytes
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// HandleRateLimitStatus exposes one source's token bucket.
func (h *SystemHandlers) HandleRateLimitStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.limiter.Status(chi.URLParam(r, "resource")))
}
