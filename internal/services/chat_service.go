package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pairchat/internal/blob"
	"pairchat/internal/hub"
	"pairchat/internal/metrics"
	"pairchat/internal/models"
	"pairchat/internal/roomkey"
	"pairchat/internal/store"
)

// ErrEmptyMessage is returned when a send carries neither text nor an
// attachment.
var ErrEmptyMessage = errors.New("message must have text or an attachment")

// ChatService implements the session protocol: join, send, fetch and clear,
// always through the canonical room key.
type ChatService struct {
	store store.Store
	hub   *hub.Hub
	blobs blob.Store
}

func NewChatService(st store.Store, h *hub.Hub, blobs blob.Store) *ChatService {
	return &ChatService{store: st, hub: h, blobs: blobs}
}

// SendRequest is one send operation. Attachment, when present, is the raw
// payload to hand to the blob store before anything is persisted.
type SendRequest struct {
	Sender         string
	Recipient      string
	Body           string
	Attachment     []byte
	AttachmentName string
}

// Join subscribes the session to the pair's canonical room and returns the
// room key. One key serves both orderings of the pair, so a single
// subscription is enough for the session to observe every broadcast.
func (s *ChatService) Join(sessionID, sender, recipient string) (string, error) {
	key, err := roomkey.Derive(sender, recipient)
	if err != nil {
		return "", err
	}
	s.hub.Subscribe(sessionID, key)
	return key, nil
}

// Send stores a message and fans it out to every subscriber of the room.
//
// An attachment is uploaded first; if the upload fails the send fails as a
// whole and nothing is persisted or broadcast. Broadcast failures after a
// successful append are absorbed by the hub: the message is durable and the
// receiver catches up via Fetch.
func (s *ChatService) Send(ctx context.Context, req SendRequest) (models.Message, error) {
	key, err := roomkey.Derive(req.Sender, req.Recipient)
	if err != nil {
		return models.Message{}, err
	}
	if req.Body == "" && len(req.Attachment) == 0 {
		return models.Message{}, ErrEmptyMessage
	}

	var imageURL string
	if len(req.Attachment) > 0 {
		name := req.AttachmentName
		if name == "" {
			name = uuid.New().String()
		}
		imageURL, err = s.blobs.Upload(ctx, name, bytes.NewReader(req.Attachment))
		if err != nil {
			return models.Message{}, fmt.Errorf("upload attachment: %w", err)
		}
	}

	msg, err := s.store.AppendMessage(ctx, key, models.Message{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Message:   req.Body,
		Image:     imageURL,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("persist message: %w", err)
	}

	metrics.MessagesSent.Inc()
	s.hub.Publish(key, models.WSMessage{
		Event:     models.EventMessage,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Message:   msg.Message,
		Image:     msg.Image,
		Room:      key,
		Timestamp: msg.Timestamp.UnixMilli(),
	})
	return msg, nil
}

// Fetch returns the room's messages in append order. A pair that never
// exchanged a message yields an empty slice.
func (s *ChatService) Fetch(ctx context.Context, sender, recipient string) ([]models.Message, error) {
	key, err := roomkey.Derive(sender, recipient)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, key)
}

// Clear empties a room's message log. The room itself survives.
func (s *ChatService) Clear(ctx context.Context, key string) error {
	return s.store.ClearMessages(ctx, key)
}
