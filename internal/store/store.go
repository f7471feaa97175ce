// Package store persists rooms, users and contact lists. Three backends
// implement the same Store interface: MongoDB, PostgreSQL and an in-memory
// one used by tests and local development.
package store

import (
	"context"
	"errors"
	"time"

	"pairchat/internal/models"
)

var (
	ErrRoomNotFound = errors.New("chat room not found")
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	ErrNoContacts   = errors.New("no contacts found")
)

// Store is implemented by every persistence backend.
//
// All room mutations are atomic with respect to a single room key. Room
// creation goes through an atomic find-or-insert; there is no separate
// existence-check-then-write path, so concurrent first-sends to the same
// key can never produce duplicate rooms.
type Store interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// Rooms. AppendMessage assigns the server timestamp, creates the room
	// when absent, and returns the stored message. ListMessages on a
	// never-created room returns an empty slice, not an error.
	// ClearMessages empties the log in place and returns ErrRoomNotFound
	// when no room exists for the key; the room itself survives a clear.
	GetOrCreateRoom(ctx context.Context, key string) (*models.Room, error)
	AppendMessage(ctx context.Context, key string, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, key string) ([]models.Message, error)
	ClearMessages(ctx context.Context, key string) error

	// Users.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByNumber(ctx context.Context, number string) (*models.User, error)
	SetOTP(ctx context.Context, number, otpHash string, expiry time.Time) error
	ClearOTP(ctx context.Context, number string) error
	AppendToken(ctx context.Context, number, token string) error
	HasToken(ctx context.Context, number, token string) (bool, error)
	UpsertProfile(ctx context.Context, number, name, bio, email string) (*models.User, error)
	SetImageURL(ctx context.Context, number, url string) error

	// Contacts. AddContact creates the owner's list document on first use.
	AddContact(ctx context.Context, ownerID string, contact models.Contact) error
	ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error)
}
