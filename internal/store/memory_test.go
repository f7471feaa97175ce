package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/models"
)

func TestConcurrentFirstSendsCreateOneRoom(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.AppendMessage(ctx, "111-222", models.Message{
				Sender:    "111",
				Recipient: "222",
				Message:   "hi",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.RoomCount())
	msgs, err := s.ListMessages(ctx, "111-222")
	require.NoError(t, err)
	assert.Len(t, msgs, writers)
}

func TestGetOrCreateRoomIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r1, err := s.GetOrCreateRoom(ctx, "111-222")
	require.NoError(t, err)
	assert.Equal(t, "111-222", r1.Key)
	assert.Empty(t, r1.Messages)

	r2, err := s.GetOrCreateRoom(ctx, "111-222")
	require.NoError(t, err)
	assert.Equal(t, r1.Key, r2.Key)
	assert.Equal(t, 1, s.RoomCount())
}

func TestAppendAssignsNonDecreasingTimestamps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.AppendMessage(ctx, "111-222", models.Message{Sender: "111", Recipient: "222", Message: "m"})
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, "111-222")
	require.NoError(t, err)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
}

func TestListMessagesOnMissingRoomIsEmpty(t *testing.T) {
	s := NewMemoryStore()

	msgs, err := s.ListMessages(context.Background(), "000-999")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestClearMessagesKeepsRoom(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.AppendMessage(ctx, "111-222", models.Message{Sender: "111", Recipient: "222", Message: "hi"})
	require.NoError(t, err)

	require.NoError(t, s.ClearMessages(ctx, "111-222"))

	// Room survives, log is empty, and a second clear still succeeds.
	assert.Equal(t, 1, s.RoomCount())
	msgs, err := s.ListMessages(ctx, "111-222")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NoError(t, s.ClearMessages(ctx, "111-222"))
}

func TestClearMessagesOnMissingRoom(t *testing.T) {
	s := NewMemoryStore()
	assert.ErrorIs(t, s.ClearMessages(context.Background(), "000-999"), ErrRoomNotFound)
}

func TestUserLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	user := &models.User{Number: "1234567890"}
	require.NoError(t, s.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Number: "1234567890"}), ErrUserExists)

	require.NoError(t, s.AppendToken(ctx, "1234567890", "tok-1"))
	ok, err := s.HasToken(ctx, "1234567890", "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasToken(ctx, "1234567890", "tok-2")
	require.NoError(t, err)
	assert.False(t, ok)

	updated, err := s.UpsertProfile(ctx, "1234567890", "Ada", "bio", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.Name)

	// Upsert on an unknown number creates the profile.
	created, err := s.UpsertProfile(ctx, "0987654321", "Bob", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestContacts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.ListContacts(ctx, "owner")
	assert.ErrorIs(t, err, ErrNoContacts)

	require.NoError(t, s.AddContact(ctx, "owner", models.Contact{Number: "111", Name: "Ada"}))
	contacts, err := s.ListContacts(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada", contacts[0].Name)
}
