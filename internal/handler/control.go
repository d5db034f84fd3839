package handler

import (
	"net/http"

	"lanepilot/internal/dto"
	"lanepilot/internal/logger"
	"lanepilot/internal/service/pilot"
)

// CommandSource exposes the latest drive-loop command.
type CommandSource interface {
	LastCommand() pilot.Command
}

// OverrideHandler handles POST /api/override?dir=left|right.
func OverrideHandler(overrides OverrideRequester, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		o, err := pilot.ParseOverride(r.URL.Query().Get("dir"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := overrides.RequestOverride(o); err != nil {
			logger.Warning("Override %s rejected: %v", o, err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		logger.Info("Operator requested override: %s", o)
		writeJSON(w, logger, http.StatusAccepted, dto.OverrideResult{Status: "queued", Direction: string(o)})
	}
}

// StatusHandler returns the latest drive-loop command.
func StatusHandler(commands CommandSource, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, commands.LastCommand())
	}
}
