package server

import (
	"encoding/json"
	"log"
	"time"

	"propertyhub/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// feedWelcome is the first frame every feed client receives.
type feedWelcome struct {
	Type    string    `json:"type"`
	AdminID uint      `json:"admin_id"`
	At      time.Time `json:"at"`
}

// PropertyFeedHandler handles GET /api/ws/properties: a server-to-client stream of
// property.created/updated/deleted events.
// @Summary Property event feed
// @Description WebSocket upgrade; streams property mutation events as JSON text frames
// @Tags realtime
// @Security BearerAuth
// @Success 101
// @Failure 426 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/properties [get]
func (s *Server) PropertyFeedHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		adminID, ok := conn.Locals("adminID").(uint)
		if !ok {
			log.Printf("property feed: unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(adminID, conn)
		if err != nil {
			log.Printf("property feed: failed to register admin %d: %v", adminID, err)
			payload, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			_ = conn.Close()
			return
		}

		if welcome, err := json.Marshal(feedWelcome{Type: "connected", AdminID: adminID, At: time.Now().UTC()}); err == nil {
			client.TrySend(welcome)
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if s.hub == nil {
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				&models.AppError{Code: models.CodeInternal, Message: "Property feed unavailable"})
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		return upgrade(c)
	}
}
