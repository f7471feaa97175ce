package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"pairchat/internal/blob"
	"pairchat/internal/hub"
	"pairchat/internal/logger"
	"pairchat/internal/models"
	"pairchat/internal/roomkey"
	"pairchat/internal/services"
	"pairchat/internal/store"
)

const requestTimeout = 15 * time.Second

// HandleMessage dispatches one inbound websocket event. Every failure is
// reported back to the requesting session only and never tears down the
// session or the process.
func HandleMessage(msgType int, raw []byte, chatService *services.ChatService, h *hub.Hub, sessionID, number string) {
	if msgType != websocket.TextMessage {
		return
	}

	var msg models.WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		sendError(h, sessionID, "invalid message payload")
		return
	}
	if msg.Sender == "" {
		msg.Sender = number
	}

	switch msg.Event {
	case models.EventJoinRoom:
		handleJoin(chatService, h, sessionID, &msg)
	case models.EventSend:
		handleSend(chatService, h, sessionID, &msg)
	case models.EventGetMessages:
		handleGetMessages(chatService, h, sessionID, &msg)
	case models.EventDeleteMessages:
		handleDeleteMessages(chatService, h, sessionID, &msg)
	default:
		logger.Get().WithField("event", msg.Event).Debug("unknown event")
	}
}

func handleJoin(chatService *services.ChatService, h *hub.Hub, sessionID string, msg *models.WSMessage) {
	if _, err := chatService.Join(sessionID, msg.Sender, msg.Recipient); err != nil {
		sendError(h, sessionID, err.Error())
	}
}

func handleSend(chatService *services.ChatService, h *hub.Hub, sessionID string, msg *models.WSMessage) {
	req := services.SendRequest{
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Body:      msg.Message,
	}

	if msg.Image != "" {
		payload, name, err := decodeAttachment(msg.Image)
		if err != nil {
			sendError(h, sessionID, err.Error())
			return
		}
		req.Attachment = payload
		req.AttachmentName = name
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := chatService.Send(ctx, req); err != nil {
		logger.Get().WithError(err).WithField("session", sessionID).Error("send failed")
		switch {
		case errors.Is(err, roomkey.ErrEmptyParticipant), errors.Is(err, services.ErrEmptyMessage):
			sendError(h, sessionID, err.Error())
		case errors.Is(err, blob.ErrUpload):
			sendError(h, sessionID, "image upload failed")
		default:
			sendError(h, sessionID, "failed to send message")
		}
	}
}

func handleGetMessages(chatService *services.ChatService, h *hub.Hub, sessionID string, msg *models.WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	messages, err := chatService.Fetch(ctx, msg.Sender, msg.Recipient)
	if err != nil {
		logger.Get().WithError(err).WithField("session", sessionID).Error("fetch failed")
		sendError(h, sessionID, "failed to retrieve messages")
		return
	}

	key, _ := roomkey.Derive(msg.Sender, msg.Recipient)
	_ = h.SendTo(sessionID, models.WSMessage{
		Event:    models.EventMessages,
		Room:     key,
		Messages: messages,
	})
}

func handleDeleteMessages(chatService *services.ChatService, h *hub.Hub, sessionID string, msg *models.WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	err := chatService.Clear(ctx, msg.Room)
	if errors.Is(err, store.ErrRoomNotFound) {
		_ = h.SendTo(sessionID, models.WSMessage{
			Event: models.EventDeleteError,
			Room:  msg.Room,
			Error: "Chat room not found",
		})
		return
	}
	if err != nil {
		logger.Get().WithError(err).WithField("room", msg.Room).Error("clear failed")
		_ = h.SendTo(sessionID, models.WSMessage{
			Event: models.EventDeleteError,
			Room:  msg.Room,
			Error: "An error occurred while deleting messages",
		})
		return
	}

	_ = h.SendTo(sessionID, models.WSMessage{
		Event: models.EventMessagesDeleted,
		Room:  msg.Room,
	})
}

func sendError(h *hub.Hub, sessionID, message string) {
	_ = h.SendTo(sessionID, models.WSMessage{
		Event: models.EventError,
		Error: message,
	})
}

// decodeAttachment accepts a data URI ("data:image/png;base64,...") or bare
// base64 and returns the payload plus a generated object name.
func decodeAttachment(encoded string) ([]byte, string, error) {
	ext := "bin"
	if strings.HasPrefix(encoded, "data:") {
		header, rest, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, "", fmt.Errorf("malformed data uri")
		}
		if mime, found := strings.CutPrefix(header, "data:image/"); found {
			ext = strings.TrimSuffix(mime, ";base64")
		}
		encoded = rest
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("image must be base64 encoded")
	}
	return payload, fmt.Sprintf("%s.%s", uuid.New().String(), ext), nil
}
