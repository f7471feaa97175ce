package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairchat/internal/models"
)

// PostgresStore is the relational backend. The embedded message array of
// the document model becomes a messages table ordered by a bigserial id.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rooms (
	key        TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS messages (
	id         BIGSERIAL PRIMARY KEY,
	room_key   TEXT NOT NULL REFERENCES rooms(key) ON DELETE CASCADE,
	sender     TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	body       TEXT,
	image      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages (room_key, id);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	number     TEXT NOT NULL UNIQUE,
	name       TEXT,
	bio        TEXT,
	email      TEXT,
	image_url  TEXT,
	otp_hash   TEXT,
	otp_expiry TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_tokens (
	number TEXT NOT NULL REFERENCES users(number) ON DELETE CASCADE,
	token  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	owner_id        TEXT NOT NULL,
	contact_user_id TEXT NOT NULL,
	number          TEXT NOT NULL,
	name            TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetOrCreateRoom(ctx context.Context, key string) (*models.Room, error) {
	// ON CONFLICT makes concurrent first-sends collapse into one row.
	_, err := s.pool.Exec(ctx, `INSERT INTO rooms (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return nil, fmt.Errorf("upsert room %q: %w", key, err)
	}
	msgs, err := s.ListMessages(ctx, key)
	if err != nil {
		return nil, err
	}
	return &models.Room{Key: key, Messages: msgs}, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, key string, msg models.Message) (models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO rooms (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key); err != nil {
		return models.Message{}, fmt.Errorf("upsert room %q: %w", key, err)
	}

	query := `
		INSERT INTO messages (room_key, sender, recipient, body, image)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, query, key, msg.Sender, msg.Recipient, msg.Message, msg.Image).
		Scan(&msg.Timestamp); err != nil {
		return models.Message{}, fmt.Errorf("insert message into %q: %w", key, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Message{}, fmt.Errorf("commit append: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, key string) ([]models.Message, error) {
	query := `
		SELECT sender, recipient, COALESCE(body, ''), COALESCE(image, ''), created_at
		FROM messages
		WHERE room_key = $1
		ORDER BY id
	`
	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("list messages for %q: %w", key, err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.Sender, &msg.Recipient, &msg.Message, &msg.Image, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *PostgresStore) ClearMessages(ctx context.Context, key string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT key FROM rooms WHERE key = $1 FOR UPDATE`, key).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("check room %q: %w", key, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE room_key = $1`, key); err != nil {
		return fmt.Errorf("clear room %q: %w", key, err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	query := `
		INSERT INTO users (id, number, name, bio, email)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (number) DO NOTHING
		RETURNING created_at
	`
	err := s.pool.QueryRow(ctx, query, user.ID, user.Number, user.Name, user.Bio, user.Email).
		Scan(&user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user %q: %w", user.Number, err)
	}
	return nil
}

func (s *PostgresStore) GetUserByNumber(ctx context.Context, number string) (*models.User, error) {
	query := `
		SELECT id, number, COALESCE(name, ''), COALESCE(bio, ''), COALESCE(email, ''),
		       COALESCE(image_url, ''), COALESCE(otp_hash, ''), otp_expiry, created_at
		FROM users
		WHERE number = $1
	`
	var user models.User
	var expiry *time.Time
	err := s.pool.QueryRow(ctx, query, number).Scan(
		&user.ID, &user.Number, &user.Name, &user.Bio, &user.Email,
		&user.ImageURL, &user.OTPHash, &expiry, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", number, err)
	}
	if expiry != nil {
		user.OTPExpiry = *expiry
	}
	return &user, nil
}

func (s *PostgresStore) SetOTP(ctx context.Context, number, otpHash string, expiry time.Time) error {
	return s.updateUser(ctx, number,
		`UPDATE users SET otp_hash = $2, otp_expiry = $3 WHERE number = $1`, otpHash, expiry)
}

func (s *PostgresStore) ClearOTP(ctx context.Context, number string) error {
	return s.updateUser(ctx, number,
		`UPDATE users SET otp_hash = NULL, otp_expiry = NULL WHERE number = $1`)
}

func (s *PostgresStore) AppendToken(ctx context.Context, number, token string) error {
	if _, err := s.pool.Exec(ctx, `INSERT INTO user_tokens (number, token) VALUES ($1, $2)`, number, token); err != nil {
		return fmt.Errorf("append token for %q: %w", number, err)
	}
	return nil
}

func (s *PostgresStore) HasToken(ctx context.Context, number, token string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM user_tokens WHERE number = $1 AND token = $2)`,
		number, token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check token for %q: %w", number, err)
	}
	return exists, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, number, name, bio, email string) (*models.User, error) {
	query := `
		INSERT INTO users (id, number, name, bio, email)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (number) DO UPDATE
		SET name = EXCLUDED.name, bio = EXCLUDED.bio, email = EXCLUDED.email
		RETURNING id, number, COALESCE(name, ''), COALESCE(bio, ''), COALESCE(email, ''),
		          COALESCE(image_url, ''), created_at
	`
	var user models.User
	err := s.pool.QueryRow(ctx, query, uuid.New().String(), number, name, bio, email).Scan(
		&user.ID, &user.Number, &user.Name, &user.Bio, &user.Email, &user.ImageURL, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile %q: %w", number, err)
	}
	return &user, nil
}

func (s *PostgresStore) SetImageURL(ctx context.Context, number, url string) error {
	return s.updateUser(ctx, number, `UPDATE users SET image_url = $2 WHERE number = $1`, url)
}

func (s *PostgresStore) updateUser(ctx context.Context, number, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, append([]any{number}, args...)...)
	if err != nil {
		return fmt.Errorf("update user %q: %w", number, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) AddContact(ctx context.Context, ownerID string, contact models.Contact) error {
	query := `
		INSERT INTO contacts (owner_id, contact_user_id, number, name)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, ownerID, contact.ContactUserID, contact.Number, contact.Name); err != nil {
		return fmt.Errorf("add contact for %q: %w", ownerID, err)
	}
	return nil
}

func (s *PostgresStore) ListContacts(ctx context.Context, ownerID string) ([]models.Contact, error) {
	query := `
		SELECT contact_user_id, number, name
		FROM contacts
		WHERE owner_id = $1
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts for %q: %w", ownerID, err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ContactUserID, &c.Number, &c.Name); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, ErrNoContacts
	}
	return contacts, nil
}
