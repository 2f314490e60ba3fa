package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/schedule-gin/internal/auth"
)

var upgrader = gorillaWS.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 跨域限制由 CORS 中间件负责
		return true
	},
}

// WebSocketHandler 订阅项目排程变更
// 浏览器无法为 WebSocket 设置请求头,Token 通过 query 参数传入
func WebSocketHandler(hub *Hub, validator *auth.TokenValidator, allowHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("project_id")

		var userID, orgID string
		if token := c.Query("token"); token != "" && validator != nil {
			claims, err := validator.ValidateToken(token)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			userID, orgID = claims.Subject, claims.OrganizationID
		} else if allowHeader {
			orgID = c.Query("organization_id")
			if orgID == "" {
				orgID = c.GetHeader(auth.HeaderOrganizationID)
			}
			userID = c.GetHeader(auth.HeaderUserID)
		}
		if orgID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.WithError(err).Warn("failed to upgrade connection")
			return
		}

		client := NewClient(uuid.New().String(), userID, orgID, projectID, hub, conn)
		select {
		case hub.Register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.ReadPump()
		go client.WritePump()
	}
}
