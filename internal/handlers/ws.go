package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"pairchat/internal/hub"
	"pairchat/internal/logger"
	"pairchat/internal/models"
	"pairchat/internal/services"
)

// WebSocketHandler runs the chat session protocol over one websocket
// connection. A client resuming within the disconnect grace window passes
// its previous session id as ?session_id= and keeps its subscriptions.
func WebSocketHandler(chatService *services.ChatService, h *hub.Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		number := c.Locals("number").(string)

		sessionID := c.Query("session_id")
		if sessionID == "" || !h.Resume(sessionID, c) {
			sessionID = h.Register(c)
		}

		// The transport dropping does not evict immediately; the hub
		// waits out the grace window first.
		defer h.ScheduleDisconnect(sessionID)

		_ = h.SendTo(sessionID, models.WSMessage{
			Event:   models.EventConnected,
			Session: sessionID,
		})

		for {
			msgType, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Get().WithError(err).WithField("session", sessionID).Warn("websocket read failed")
				}
				break
			}

			HandleMessage(msgType, msg, chatService, h, sessionID, number)
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT and checks it is still on the user's
// token list before letting the request through.
func AuthMiddleware(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Token from query param `access_token` or Authorization header.
		token := c.Query("access_token")
		if token == "" {
			authHeader := c.Get("Authorization")
			if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
				token = authHeader[7:]
			}
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing token")
		}

		number, err := authService.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}
		ok, err := authService.HasToken(c.Context(), number, token)
		if err != nil || !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
		}

		c.Locals("number", number)
		return c.Next()
	}
}
