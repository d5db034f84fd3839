package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"lanepilot/internal/config"
	"lanepilot/internal/logger"
)

// LogLevels are the log files the console can show and clear.
var LogLevels = []string{"info", "warning", "error"}

// ShowLogsHandler serves <level>.log as text/plain.
func ShowLogsHandler(cfg *config.Config, level string) http.HandlerFunc {
	filename := level + ".log"
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := filepath.Join(cfg.LogDirectory, filename)

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + filename))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates <level>.log.
func ClearLogsHandler(logger *logger.Logger, level string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.CleanLogs(level + ".log")
		w.WriteHeader(http.StatusNoContent)
	}
}
