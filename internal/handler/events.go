package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"lanepilot/internal/dto"
	"lanepilot/internal/logger"
	"lanepilot/internal/repository"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// EventsHandler returns recent journal events. The run defaults to the
// current one; run=all lists every run.
func EventsHandler(currentRun string, events repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := atoiDefault(q.Get("limit"), defaultEventLimit)
		if limit > maxEventLimit {
			limit = maxEventLimit
		}
		runID := runParam(q.Get("run"), currentRun)

		list, err := events.GetRecent(runID, limit)
		if err != nil {
			logger.Error("Error querying events from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.EventsData{
			RunID:  runID,
			Events: list,
			Length: len(list),
			Limit:  limit,
		})
	}
}

// EventStatsHandler returns per-kind event counts.
func EventStatsHandler(currentRun string, events repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := runParam(r.URL.Query().Get("run"), currentRun)

		counts, err := events.CountByKind(runID)
		if err != nil {
			logger.Error("Error counting events: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, dto.EventStats{RunID: runID, Counts: counts})
	}
}

// ClearEventsHandler deletes every journal event.
func ClearEventsHandler(events repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := events.DeleteAll(); err != nil {
			logger.Error("Error clearing events: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		logger.Info("Journal events cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}

// RunsHandler lists recorded drive sessions.
func RunsHandler(runs repository.RunRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := runs.GetAll()
		if err != nil {
			logger.Error("Error querying runs: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, http.StatusOK, list)
	}
}

func runParam(v, current string) string {
	switch v {
	case "":
		return current
	case "all":
		return ""
	default:
		return v
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
