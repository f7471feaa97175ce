package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pairchat/internal/models"
)

const (
	colRooms    = "rooms"
	colUsers    = "users"
	colContacts = "contacts"
)

// MongoStore is the primary backend. Rooms are single documents holding the
// full message array, mirroring the unique-key + embedded-log layout the
// chat protocol relies on.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(dbName)}
}

// EnsureIndexes creates the unique indexes the atomicity guarantees depend
// on: one room per canonical key, one user per number, one contact-list
// document per owner.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := func(col, field string) error {
		_, err := s.db.Collection(col).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("create %s.%s index: %w", col, field, err)
		}
		return nil
	}
	if err := unique(colRooms, "room"); err != nil {
		return err
	}
	if err := unique(colUsers, "number"); err != nil {
		return err
	}
	return unique(colContacts, "user_id")
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) GetOrCreateRoom(ctx context.Context, key string) (*models.Room, error) {
	filter := bson.M{"room": key}
	update := bson.M{"$setOnInsert": bson.M{"room": key, "messages": bson.A{}}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var room models.Room
	if err := s.db.Collection(colRooms).FindOneAndUpdate(ctx, filter, update, opts).Decode(&room); err != nil {
		return nil, fmt.Errorf("upsert room %q: %w", key, err)
	}
	return &room, nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, key string, msg models.Message) (models.Message, error) {
	msg.Timestamp = time.Now().UTC()

	// A single upsert both creates the room when absent and appends the
	// message, so a partial write is never observable.
	filter := bson.M{"room": key}
	update := bson.M{
		"$setOnInsert": bson.M{"room": key},
		"$push":        bson.M{"messages": msg},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := s.db.Collection(colRooms).UpdateOne(ctx, filter, update, opts); err != nil {
		return models.Message{}, fmt.Errorf("append message to room %q: %w", key, err)
	}
	return msg, nil
}

func (s *MongoStore) ListMessages(ctx context.Context, key string) ([]models.Message, error) {
	var room models.Room
	err := s.db.Collection(colRooms).FindOne(ctx, bson.M{"room": key}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find room %q: %w", key, err)
	}
	if room.Messages == nil {
		room.Messages = []models.Message{}
	}
	return room.Messages, nil
}

func (s *MongoStore) ClearMessages(ctx context.Context, key string) error {
	res, err := s.db.Collection(colRooms).UpdateOne(ctx,
		bson.M{"room": key},
		bson.M{"$set": bson.M{"messages": bson.A{}}},
	)
	if err != nil {
		return fmt.Errorf("clear room %q: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now().UTC()

	if _, err := s.db.Collection(colUsers).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user %q: %w", user.Number, err)
	}
	return nil
}

func (s *MongoStore) GetUserByNumber(ctx context.Context, number string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(colUsers).FindOne(ctx, bson.M{"number": number}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", number, err)
	}
	return &user, nil
}

func (s *MongoStore) SetOTP(ctx context.Context, number, otpHash string, expiry time.Time) error {
	return s.updateUser(ctx, number, bson.M{"$set": bson.M{"otp_hash": otpHash, "otp_expiry": expiry}})
}

func (s *MongoStore) ClearOTP(ctx context.Context, number string) error {
	return s.updateUser(ctx, number, bson.M{"$unset": bson.M{"otp_hash": "", "otp_expiry": ""}})
}

func (s *MongoStore) AppendToken(ctx context.Context, number, token string) error {
	return s.updateUser(ctx, number, bson.M{"$push": bson.M{"tokens": token}})
}

func (s *MongoStore) HasToken(ctx context.Context, number, token string) (bool, error) {
	err := s.db.Collection(colUsers).
		FindOne(ctx, bson.M{"number": number, "tokens": token}).
		Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token for %q: %w", number, err)
	}
	return true, nil
}

func (s *MongoStore) UpsertProfile(ctx context.Context, number, name, bio, email string) (*models.User, error) {
	filter := bson.M{"number": number}
	update := bson.M{
		"$set": bson.M{"name": name, "bio": bio, "email": email},
		"$setOnInsert": bson.M{
			"_id":        uuid.New().String(),
			"number":     number,
			"created_at": time.Now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var user models.User
	if err := s.db.Collection(colUsers).FindOneAndUpdate(ctx, filter, update, opts).Decode(&user); err != nil {
		return nil, fmt.Errorf("upsert profile %q: %w", number, err)
	}
	return &user, nil
}

func (s *MongoStore) SetImageURL(ctx context.Context, number, url string) error {
	return s.updateUser(ctx, number, bson.M{"$set": bson.M{"image_url": url}})
}

func (s *MongoStore) updateUser(ctx context.Context, number string, update bson.M) error {
	res, err := s.db.Collection(colUsers).UpdateOne(ctx, bson.M{"number": number}, update)
	if err != nil {
		return fmt.Errorf("update user %q: %w", number, err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *MongoStore) AddContact(ctx context.Context, ownerID string, contact models.Contact) error {
	filter := bson.M{"user_id": ownerID}
	update := bson.M{
		"$push":        bson.M{"contacts": contact},
		"$setOnInsert": bson.M{"user_id": ownerID, "created_at": time.Now().UTC()},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := s.db.Collection(colContacts).UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("add contact for %q: %w", ownerID, err)
	}
	return nil
}

func (s *MongoStore) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	var list models.ContactList
	err := s.db.Collection(colContacts).FindOne(ctx, bson.M{"user_id": ownerID}).Decode(&list)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoContacts
	}
	if err != nil {
		return nil, fmt.Errorf("find contacts for %q: %w", ownerID, err)
	}
	return list.Contacts, nil
}
