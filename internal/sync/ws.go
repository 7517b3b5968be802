package sync

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the route sits behind the admin guard, which already checked the
	// session cookie
	CheckOrigin: func(r *http.Request) bool { return true },
}

func WSHandler(hub *Hub, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "events"))
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome","transport":"websocket"}`))
		hub.AddWS(ws)
		logger.Debug("events client connected", slog.String("client", c.ClientIP()))

		// incoming messages are ignored; reading detects disconnects
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		logger.Debug("events client disconnected", slog.String("client", c.ClientIP()))
	}
}
