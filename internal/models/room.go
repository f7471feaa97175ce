package models

import "time"

// Message is one entry in a room's append-only log. Immutable once stored.
type Message struct {
	Sender    string    `bson:"sender" json:"sender"`
	Recipient string    `bson:"recipient" json:"recipient"`
	Message   string    `bson:"message,omitempty" json:"message,omitempty"`
	Image     string    `bson:"image,omitempty" json:"image,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Room is a persisted 1:1 conversation keyed by the canonical pair key.
// Exactly one room exists per key.
type Room struct {
	Key      string    `bson:"room" json:"room"`
	Messages []Message `bson:"messages" json:"messages"`
}
