package handler

import (
	"net/http"
	"strings"

	"lanepilot/internal/logger"
	"lanepilot/internal/service/pilot"
	ws "lanepilot/internal/service/websocket"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// OverrideRequester accepts operator overrides for the drive loop.
type OverrideRequester interface {
	RequestOverride(o pilot.Override) error
}

// ViewWebsocketHandler registers an operator console with the hub so it
// receives the drive-loop view. Text messages "left" and "right" from the
// console request manual overrides.
func ViewWebsocketHandler(hub *ws.HubService, overrides OverrideRequester, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		logger.Info("Viewer connected")

		for {
			messageType, data, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Error("Viewer disconnected with error: %v", err)
				}
				break
			}
			if messageType != websocket.TextMessage {
				continue
			}

			o, err := pilot.ParseOverride(strings.TrimSpace(string(data)))
			if err != nil {
				logger.Warning("Ignoring viewer message: %v", err)
				continue
			}
			if err := overrides.RequestOverride(o); err != nil {
				logger.Warning("Override %s rejected: %v", o, err)
				continue
			}
			logger.Info("Viewer requested override: %s", o)
		}
	}
}
