package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eargollo/thlocate/internal/scan"
)

// ScansHandler handles scan-related API endpoints.
type ScansHandler struct {
	DB      *sql.DB
	Manager *scan.Manager
}

// Create handles POST /api/scans: triggers a manual scan.
func (h *ScansHandler) Create(w http.ResponseWriter, r *http.Request) {
	active, err := h.Manager.Start("manual")
	if err != nil {
		if errors.Is(err, scan.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "SCAN_ALREADY_RUNNING", "A scan is already in progress")
			return
		}
		slog.Error("scans: start", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to start scan")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":           active.ID,
		"status":       "running",
		"started_at":   active.StartedAt.UTC().Format(time.RFC3339),
		"triggered_by": active.TriggeredBy,
	})
}

// List handles GET /api/scans: returns scan history newest first.
func (h *ScansHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	recs, total, err := scan.ListScans(r.Context(), h.DB, limit, offset)
	if err != nil {
		slog.Error("scans list", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[scan.ScanRecord]{
		Items:  recs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

type scanDetail struct {
	scan.ScanRecord
	ErrorList []scan.ScanError `json:"error_list"`
}

// Get handles GET /api/scans/{id}.
func (h *ScansHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := scanID(w, r)
	if !ok {
		return
	}
	rec, err := scan.GetScan(r.Context(), h.DB, id)
	if errors.Is(err, scan.ErrScanNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Scan not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	errs, err := scan.ScanErrors(r.Context(), h.DB, id, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scanDetail{ScanRecord: *rec, ErrorList: errs})
}

// gamesResponse is the body of both games endpoints.
type gamesResponse struct {
	ScanID     int64        `json:"scan_id"`
	FinishedAt *time.Time   `json:"finished_at"`
	Games      scan.Results `json:"games"`
}

// Games handles GET /api/scans/{id}/games.
func (h *ScansHandler) Games(w http.ResponseWriter, r *http.Request) {
	id, ok := scanID(w, r)
	if !ok {
		return
	}
	rec, err := scan.GetScan(r.Context(), h.DB, id)
	if errors.Is(err, scan.ErrScanNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Scan not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	h.writeGames(w, r, rec)
}

// Latest handles GET /api/games: games found by the last completed scan.
func (h *ScansHandler) Latest(w http.ResponseWriter, r *http.Request) {
	rec, err := scan.LastCompletedScan(r.Context(), h.DB)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "NO_COMPLETED_SCAN", "No scan has completed yet")
		return
	}
	h.writeGames(w, r, rec)
}

func (h *ScansHandler) writeGames(w http.ResponseWriter, r *http.Request, rec *scan.ScanRecord) {
	games, err := scan.ScanResults(r.Context(), h.DB, rec.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, gamesResponse{
		ScanID:     rec.ID,
		FinishedAt: rec.FinishedAt,
		Games:      games,
	})
}

func scanID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid scan ID")
		return 0, false
	}
	return id, true
}
