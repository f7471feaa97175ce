package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairchat/internal/blob"
	"pairchat/internal/hub"
	"pairchat/internal/models"
	"pairchat/internal/roomkey"
	"pairchat/internal/store"
)

type fakeConn struct {
	mu     sync.Mutex
	events []models.WSMessage
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := v.(models.WSMessage); ok {
		f.events = append(f.events, msg)
	}
	return nil
}

func (f *fakeConn) received() []models.WSMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.WSMessage, len(f.events))
	copy(out, f.events)
	return out
}

type fakeBlob struct {
	url      string
	err      error
	uploaded int
}

func (f *fakeBlob) Upload(ctx context.Context, name string, payload io.Reader) (string, error) {
	f.uploaded++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func newChatFixture(t *testing.T, blobs blob.Store) (*ChatService, *store.MemoryStore, *hub.Hub) {
	t.Helper()
	st := store.NewMemoryStore()
	h := hub.New(time.Second)
	return NewChatService(st, h, blobs), st, h
}

func TestJoinDerivesCanonicalKeyForBothOrderings(t *testing.T) {
	svc, _, h := newChatFixture(t, &fakeBlob{})

	s1 := h.Register(&fakeConn{})
	s2 := h.Register(&fakeConn{})

	k1, err := svc.Join(s1, "111", "222")
	require.NoError(t, err)
	k2, err := svc.Join(s2, "222", "111")
	require.NoError(t, err)

	assert.Equal(t, "111-222", k1)
	assert.Equal(t, k1, k2)
}

func TestJoinRejectsEmptyParticipant(t *testing.T) {
	svc, _, h := newChatFixture(t, &fakeBlob{})
	sess := h.Register(&fakeConn{})

	_, err := svc.Join(sess, "", "222")
	assert.ErrorIs(t, err, roomkey.ErrEmptyParticipant)
}

func TestSendPersistsAndBroadcastsToAllSubscribers(t *testing.T) {
	svc, st, h := newChatFixture(t, &fakeBlob{})

	c1, c2 := &fakeConn{}, &fakeConn{}
	s1 := h.Register(c1)
	s2 := h.Register(c2)
	_, err := svc.Join(s1, "111", "222")
	require.NoError(t, err)
	_, err = svc.Join(s2, "222", "111")
	require.NoError(t, err)

	msg, err := svc.Send(context.Background(), SendRequest{
		Sender:    "111",
		Recipient: "222",
		Body:      "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "111", msg.Sender)
	assert.Equal(t, "222", msg.Recipient)
	assert.False(t, msg.Timestamp.IsZero())

	stored, err := st.ListMessages(context.Background(), "111-222")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "hi", stored[0].Message)
	assert.Equal(t, 1, st.RoomCount())

	// Both subscribers observe the same payload.
	require.Len(t, c1.received(), 1)
	require.Len(t, c2.received(), 1)
	assert.Equal(t, c1.received()[0], c2.received()[0])

	event := c1.received()[0]
	assert.Equal(t, models.EventMessage, event.Event)
	assert.Equal(t, "111-222", event.Room)
	assert.Equal(t, "hi", event.Message)
}

func TestSendRequiresTextOrAttachment(t *testing.T) {
	svc, st, _ := newChatFixture(t, &fakeBlob{})

	_, err := svc.Send(context.Background(), SendRequest{Sender: "111", Recipient: "222"})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, st.RoomCount())
}

func TestSendWithAttachmentUploadsFirst(t *testing.T) {
	blobs := &fakeBlob{url: "https://cdn.example.com/img.png"}
	svc, st, _ := newChatFixture(t, blobs)

	msg, err := svc.Send(context.Background(), SendRequest{
		Sender:         "111",
		Recipient:      "222",
		Attachment:     []byte{0x89, 0x50},
		AttachmentName: "img.png",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, blobs.uploaded)
	assert.Equal(t, "https://cdn.example.com/img.png", msg.Image)

	stored, err := st.ListMessages(context.Background(), "111-222")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "https://cdn.example.com/img.png", stored[0].Image)
}

func TestSendFailedUploadPersistsNothing(t *testing.T) {
	blobs := &fakeBlob{err: blob.ErrUpload}
	svc, st, h := newChatFixture(t, blobs)

	c := &fakeConn{}
	sess := h.Register(c)
	_, err := svc.Join(sess, "111", "222")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), SendRequest{
		Sender:     "111",
		Recipient:  "222",
		Body:       "with image",
		Attachment: []byte{0x01},
	})
	assert.ErrorIs(t, err, blob.ErrUpload)

	// No room, no message, no broadcast.
	assert.Equal(t, 0, st.RoomCount())
	assert.Empty(t, c.received())
}

func TestFetchNeverCreatedRoomIsEmpty(t *testing.T) {
	svc, _, _ := newChatFixture(t, &fakeBlob{})

	msgs, err := svc.Fetch(context.Background(), "111", "222")
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestClearThenFetchYieldsEmptyNotNotFound(t *testing.T) {
	svc, _, _ := newChatFixture(t, &fakeBlob{})
	ctx := context.Background()

	_, err := svc.Send(ctx, SendRequest{Sender: "111", Recipient: "222", Body: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "111-222"))

	msgs, err := svc.Fetch(ctx, "111", "222")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestClearUnknownRoom(t *testing.T) {
	svc, _, _ := newChatFixture(t, &fakeBlob{})
	err := svc.Clear(context.Background(), "000-999")
	assert.ErrorIs(t, err, store.ErrRoomNotFound)
}

func TestSendOrderingPerRoom(t *testing.T) {
	svc, _, h := newChatFixture(t, &fakeBlob{})

	c := &fakeConn{}
	sess := h.Register(c)
	_, err := svc.Join(sess, "111", "222")
	require.NoError(t, err)

	bodies := []string{"one", "two", "three"}
	for _, b := range bodies {
		_, err := svc.Send(context.Background(), SendRequest{Sender: "111", Recipient: "222", Body: b})
		require.NoError(t, err)
	}

	events := c.received()
	require.Len(t, events, len(bodies))
	for i, b := range bodies {
		assert.Equal(t, b, events[i].Message)
	}

	msgs, err := svc.Fetch(context.Background(), "111", "222")
	require.NoError(t, err)
	require.Len(t, msgs, len(bodies))
	for i, b := range bodies {
		assert.Equal(t, b, msgs[i].Message)
	}
}

func TestConcurrentFirstSendsSingleRoom(t *testing.T) {
	svc, st, _ := newChatFixture(t, &fakeBlob{})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < len(errs); i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = svc.Send(context.Background(), SendRequest{
				Sender:    "111",
				Recipient: "222",
				Body:      "hi",
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, st.RoomCount())

	msgs, err := svc.Fetch(context.Background(), "111", "222")
	require.NoError(t, err)
	assert.Len(t, msgs, len(errs))
}

func TestSelfChatRoom(t *testing.T) {
	svc, _, _ := newChatFixture(t, &fakeBlob{})

	msg, err := svc.Send(context.Background(), SendRequest{Sender: "111", Recipient: "111", Body: "note"})
	require.NoError(t, err)
	assert.Equal(t, "111", msg.Sender)

	msgs, err := svc.Fetch(context.Background(), "111", "111")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
