package models

import "time"

// Contact is one entry in a user's contact list.
type Contact struct {
	ContactUserID string `bson:"contact_user_id" json:"contact_user_id"`
	Number        string `bson:"number" json:"number"`
	Name          string `bson:"name" json:"name"`
}

// ContactList is the per-user contacts document, created on first add.
type ContactList struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	Contacts  []Contact `bson:"contacts" json:"contacts"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type AddContactRequest struct {
	Number        string `json:"number" validate:"required,numeric"`
	ContactNumber string `json:"contact_number" validate:"required,numeric"`
	ContactName   string `json:"contact_name" validate:"required"`
}
