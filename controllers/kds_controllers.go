package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/table-orders/kds"
	"github.com/yeremiapane/table-orders/middlewares"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type KDSController struct {
	Hub *kds.Hub
}

func NewKDSController(hub *kds.Hub) *KDSController {
	return &KDSController{Hub: hub}
}

// KDSHandler -> websocket endpoint for kitchen and floor screens
func (kc *KDSController) KDSHandler(c *gin.Context) {
	// RoleCheck has already matched :role against the token
	role := c.Param("role")
	if !kds.Roles[role] {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if _, ok := c.Get(middlewares.ContextRole); !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	kc.Hub.Register(ws, role)

	// drain client frames until the connection closes
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	kc.Hub.Unregister(ws)
}
