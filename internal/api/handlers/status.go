package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/eargollo/thlocate/internal/scan"
	"github.com/eargollo/thlocate/internal/scheduler"
)

// StatusHandler handles GET /api/status.
type StatusHandler struct {
	DB      *sql.DB
	Manager *scan.Manager
	Sched   *scheduler.Scheduler
	Version string
}

type statusResponse struct {
	Version           string           `json:"version"`
	ActiveScan        *activeScanInfo  `json:"active_scan"`
	Schedule          scheduleInfo     `json:"schedule"`
	LastCompletedScan *scan.ScanRecord `json:"last_completed_scan"`
}

type activeScanInfo struct {
	ID          int64            `json:"id"`
	StartedAt   time.Time        `json:"started_at"`
	TriggeredBy string           `json:"triggered_by"`
	Progress    scanProgressInfo `json:"progress"`
}

type scanProgressInfo struct {
	DirsScanned   int64 `json:"dirs_scanned"`
	FilesSeen     int64 `json:"files_seen"`
	Candidates    int64 `json:"candidates"`
	Hashed        int64 `json:"hashed"`
	BytesHashed   int64 `json:"bytes_hashed"`
	CacheHits     int64 `json:"cache_hits"`
	Matched       int64 `json:"matched"`
	Errors        int64 `json:"errors"`
	ActiveWorkers int64 `json:"active_workers"`
}

type scheduleInfo struct {
	Cron      string     `json:"cron"`
	NextRunAt *time.Time `json:"next_run_at"`
}

// ServeHTTP returns the system status as JSON.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:    h.Version,
		ActiveScan: h.activeScan(),
	}
	if h.Sched != nil {
		resp.Schedule = scheduleInfo{Cron: h.Sched.CronExpr(), NextRunAt: h.Sched.NextRunAt()}
	}
	last, err := scan.LastCompletedScan(r.Context(), h.DB)
	if err != nil {
		slog.Error("status: query last scan", "error", err)
	}
	resp.LastCompletedScan = last
	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) activeScan() *activeScanInfo {
	a := h.Manager.ActiveScan()
	if a == nil {
		return nil
	}
	p := a.Progress
	return &activeScanInfo{
		ID:          a.ID,
		StartedAt:   a.StartedAt.UTC(),
		TriggeredBy: a.TriggeredBy,
		Progress: scanProgressInfo{
			DirsScanned:   p.DirsScanned.Load(),
			FilesSeen:     p.FilesSeen.Load(),
			Candidates:    p.Candidates.Load(),
			Hashed:        p.Hashed.Load(),
			BytesHashed:   p.BytesHashed.Load(),
			CacheHits:     p.CacheHits.Load(),
			Matched:       p.Matched.Load(),
			Errors:        p.Errors.Load(),
			ActiveWorkers: p.ActiveWorkers.Load(),
		},
	}
}
