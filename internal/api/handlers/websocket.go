package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/playpool/snooker/internal/ws"
)

// HandleWebSocket attaches the authenticated player to the event hub
func HandleWebSocket(hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request, c.GetString("player"))
	}
}
