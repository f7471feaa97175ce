package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pairchat/internal/models"
)

// MemoryStore keeps everything in process memory. It backs tests and
// DB_DRIVER=memory development runs.
type MemoryStore struct {
	mu       sync.Mutex
	rooms    map[string]*models.Room
	lastTS   map[string]time.Time
	users    map[string]*models.User // keyed by number
	contacts map[string]*models.ContactList
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]*models.Room),
		lastTS:   make(map[string]time.Time),
		users:    make(map[string]*models.User),
		contacts: make(map[string]*models.ContactList),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error  { return nil }
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func (s *MemoryStore) GetOrCreateRoom(ctx context.Context, key string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.roomLocked(key)
	cp := models.Room{Key: room.Key, Messages: make([]models.Message, len(room.Messages))}
	copy(cp.Messages, room.Messages)
	return &cp, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, key string, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Timestamps are non-decreasing within a room.
	ts := time.Now().UTC()
	if last := s.lastTS[key]; ts.Before(last) {
		ts = last
	}
	s.lastTS[key] = ts
	msg.Timestamp = ts

	room := s.roomLocked(key)
	room.Messages = append(room.Messages, msg)
	return msg, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, key string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[key]
	if !ok {
		return []models.Message{}, nil
	}
	out := make([]models.Message, len(room.Messages))
	copy(out, room.Messages)
	return out, nil
}

func (s *MemoryStore) ClearMessages(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[key]
	if !ok {
		return ErrRoomNotFound
	}
	room.Messages = room.Messages[:0]
	return nil
}

// RoomCount reports how many rooms exist; tests use it to assert the
// no-duplicates invariant.
func (s *MemoryStore) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *MemoryStore) roomLocked(key string) *models.Room {
	room, ok := s.rooms[key]
	if !ok {
		room = &models.Room{Key: key, Messages: []models.Message{}}
		s.rooms[key] = room
	}
	return room
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Number]; ok {
		return ErrUserExists
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now().UTC()
	cp := *user
	s.users[user.Number] = &cp
	return nil
}

func (s *MemoryStore) GetUserByNumber(ctx context.Context, number string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[number]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) SetOTP(ctx context.Context, number, otpHash string, expiry time.Time) error {
	return s.mutateUser(number, func(u *models.User) {
		u.OTPHash = otpHash
		u.OTPExpiry = expiry
	})
}

func (s *MemoryStore) ClearOTP(ctx context.Context, number string) error {
	return s.mutateUser(number, func(u *models.User) {
		u.OTPHash = ""
		u.OTPExpiry = time.Time{}
	})
}

func (s *MemoryStore) AppendToken(ctx context.Context, number, token string) error {
	return s.mutateUser(number, func(u *models.User) {
		u.Tokens = append(u.Tokens, token)
	})
}

func (s *MemoryStore) HasToken(ctx context.Context, number, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[number]
	if !ok {
		return false, nil
	}
	for _, t := range user.Tokens {
		if t == token {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UpsertProfile(ctx context.Context, number, name, bio, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[number]
	if !ok {
		user = &models.User{
			ID:        uuid.New().String(),
			Number:    number,
			CreatedAt: time.Now().UTC(),
		}
		s.users[number] = user
	}
	user.Name, user.Bio, user.Email = name, bio, email
	cp := *user
	return &cp, nil
}

func (s *MemoryStore) SetImageURL(ctx context.Context, number, url string) error {
	return s.mutateUser(number, func(u *models.User) { u.ImageURL = url })
}

func (s *MemoryStore) mutateUser(number string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[number]
	if !ok {
		return ErrUserNotFound
	}
	fn(user)
	return nil
}

func (s *MemoryStore) AddContact(ctx context.Context, ownerID string, contact models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.contacts[ownerID]
	if !ok {
		list = &models.ContactList{UserID: ownerID, CreatedAt: time.Now().UTC()}
		s.contacts[ownerID] = list
	}
	list.Contacts = append(list.Contacts, contact)
	return nil
}

func (s *MemoryStore) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.contacts[ownerID]
	if !ok {
		return nil, ErrNoContacts
	}
	out := make([]models.Contact, len(list.Contacts))
	copy(out, list.Contacts)
	return out, nil
}
