package models

// Client -> server events.
const (
	EventJoinRoom       = "joinRoom"
	EventSend           = "send"
	EventGetMessages    = "getMessages"
	EventDeleteMessages = "deleteMessages"
)

// Server -> client events.
const (
	EventConnected       = "connected"
	EventMessage         = "message"
	EventMessages        = "messages"
	EventMessagesDeleted = "messagesDeleted"
	EventDeleteError     = "deleteError"
	EventError           = "error"
)

// WSMessage is the JSON envelope for every websocket event, both directions.
type WSMessage struct {
	Event     string    `json:"event"`
	Sender    string    `json:"sender,omitempty"`
	Recipient string    `json:"recipient,omitempty"`
	Message   string    `json:"message,omitempty"`
	Image     string    `json:"image,omitempty"`
	Room      string    `json:"room,omitempty"`
	Session   string    `json:"session,omitempty"`
	Timestamp int64     `json:"timestamp,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	Error     string    `json:"error,omitempty"`
}
