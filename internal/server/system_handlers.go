package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/adpulse/adpulse/internal/database"
	"github.com/adpulse/adpulse/internal/scheduler"
)

// SystemHandlers serves operational endpoints: process status, database
// stats, and manual job triggers.
type SystemHandlers struct {
	dataDir   string
	dbs       []*database.DB
	scheduler *scheduler.Scheduler
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates system handlers over the given databases and
// scheduler.
func NewSystemHandlers(log zerolog.Logger, dataDir string, sched *scheduler.Scheduler, dbs ...*database.DB) *SystemHandlers {
	return &SystemHandlers{
		dataDir:   dataDir,
		dbs:       dbs,
		scheduler: sched,
		startedAt: time.Now(),
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStatus handles GET /api/system/status.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, memPercent := h.systemStats()

	databases := make([]map[string]interface{}, 0, len(h.dbs))
	healthy := true
	for _, db := range h.dbs {
		status := "ok"
		if err := db.HealthCheck(r.Context()); err != nil {
			status = "error"
			healthy = false
		}
		databases = append(databases, map[string]interface{}{
			"name":    db.Name(),
			"status":  status,
			"size_mb": fileSizeMB(db.Path()),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"healthy":        healthy,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":    cpuAvg,
		"memory_percent": memPercent,
		"databases":      databases,
		"jobs":           h.scheduler.JobNames(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// HandleDatabaseStats handles GET /api/system/database/stats.
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{}, len(h.dbs))
	for _, db := range h.dbs {
		dbStats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to collect database stats")
			stats[db.Name()] = map[string]string{"error": err.Error()}
			continue
		}
		stats[db.Name()] = dbStats
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases": stats,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}: runs a registered
// job immediately, outside its schedule.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.log.Info().Str("job", name).Msg("Manual job trigger")

	if err := h.scheduler.RunByName(name); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Job " + name + " completed",
	})
}

// systemStats samples CPU and RAM usage. The 100ms CPU window keeps the
// endpoint fast at the cost of a coarser reading.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}

func fileSizeMB(path string) float64 {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
