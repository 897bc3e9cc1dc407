package handlers

import (
	"github.com/OVERFORGE/DeDen/internal/services"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler upgrades the connection and registers the client with
// the hub for live booking status updates
func WebSocketHandler(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		userType := c.GetString("userType")
		services.HandleWebSocket(hub, c.Writer, c.Request, userId, userType)
	}
}
