package route

import (
	"net/http"
	"os"
	"path/filepath"

	"lanepilot/internal/config"
	"lanepilot/internal/handler"
	"lanepilot/internal/logger"
	"lanepilot/internal/middleware"
	"lanepilot/internal/repository"
	"lanepilot/internal/service/pilot"
	ws "lanepilot/internal/service/websocket"
)

// Deps are the services the HTTP routes talk to.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger
	Hub    *ws.HubService
	Pilot  *pilot.Pilot
	Events repository.EventRepository
	Runs   repository.RunRepository
	RunID  string
}

// dynamicHTMLHandler serves /path as <staticDir>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the operator console endpoints and wraps the mux
// with the authentication middleware.
func SetupRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(d.Config.StaticDirectory))))

	// Drive loop
	mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(d.Hub, d.Pilot, d.Logger))
	mux.HandleFunc("/api/override", handler.OverrideHandler(d.Pilot, d.Logger))
	mux.HandleFunc("/api/status", handler.StatusHandler(d.Pilot, d.Logger))

	// Journal
	mux.HandleFunc("/api/events", handler.EventsHandler(d.RunID, d.Events, d.Logger))
	mux.HandleFunc("/api/events/stats", handler.EventStatsHandler(d.RunID, d.Events, d.Logger))
	mux.HandleFunc("/api/events/clear", handler.ClearEventsHandler(d.Events, d.Logger))
	mux.HandleFunc("/api/runs", handler.RunsHandler(d.Runs, d.Logger))

	// Logs
	for _, level := range handler.LogLevels {
		mux.HandleFunc("/logs/"+level, handler.ShowLogsHandler(d.Config, level))
		mux.HandleFunc("/logs/"+level+"/clear", handler.ClearLogsHandler(d.Logger, level))
	}

	// Auth
	mux.HandleFunc("/auth/login", handler.LoginHandler(d.Config, d.Logger))
	mux.HandleFunc("/auth/logout", handler.LogoutHandler)

	// /login -> static/login.html, / -> static/index.html
	mux.HandleFunc("/", dynamicHTMLHandler(d.Config.StaticDirectory))

	return middleware.AuthMiddleware(mux)
}
