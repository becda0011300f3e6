package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/inletchat/inlet/internal/models"
)

var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile already exists")
	ErrEmptyContent         = errors.New("message content is empty")
	ErrSelfMessage          = errors.New("sender and recipient must differ")
)

type PostgresDB struct {
	*sql.DB
}

func NewPostgresDB(connStr string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresDB{db}, nil
}

func (db *PostgresDB) CreateProfile(username, email, passwordHash string) (*models.Profile, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM profiles WHERE username = $1 OR email = $2",
		username, email).Scan(&count)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, ErrProfileAlreadyExists
	}

	profile := &models.Profile{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
		LastSeen:     time.Now().UTC(),
	}

	_, err = db.Exec(
		"INSERT INTO profiles (id, username, email, password_hash, created_at, last_seen) VALUES ($1, $2, $3, $4, $5, $6)",
		profile.ID, profile.Username, profile.Email, profile.PasswordHash, profile.CreatedAt, profile.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	return profile, nil
}

func (db *PostgresDB) GetProfileByEmail(email string) (*models.Profile, error) {
	return db.getProfile("email = $1", email)
}

func (db *PostgresDB) GetProfileByID(id uuid.UUID) (*models.Profile, error) {
	return db.getProfile("id = $1", id)
}

func (db *PostgresDB) GetProfileByUsername(username string) (*models.Profile, error) {
	return db.getProfile("username = $1", username)
}

func (db *PostgresDB) getProfile(where string, arg interface{}) (*models.Profile, error) {
	var profile models.Profile
	err := db.QueryRow(`
		SELECT id, username, email, password_hash,
		       COALESCE(display_name, ''), COALESCE(avatar_url, ''),
		       created_at, last_seen
		FROM profiles WHERE `+where,
		arg).Scan(
		&profile.ID,
		&profile.Username,
		&profile.Email,
		&profile.PasswordHash,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.CreatedAt,
		&profile.LastSeen,
	)

	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (db *PostgresDB) UpdateLastSeen(profileID uuid.UUID) error {
	result, err := db.Exec("UPDATE profiles SET last_seen = $1 WHERE id = $2",
		time.Now().UTC(), profileID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (db *PostgresDB) GetAllProfiles(excludeProfileID uuid.UUID) ([]*models.Profile, error) {
	query := `
		SELECT id, username, email, password_hash,
		       COALESCE(display_name, ''), COALESCE(avatar_url, ''),
		       created_at, last_seen
		FROM profiles
		WHERE id != $1
		ORDER BY username
	`

	rows, err := db.Query(query, excludeProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		var profile models.Profile

		err := rows.Scan(
			&profile.ID,
			&profile.Username,
			&profile.Email,
			&profile.PasswordHash,
			&profile.DisplayName,
			&profile.AvatarURL,
			&profile.CreatedAt,
			&profile.LastSeen,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}

		profiles = append(profiles, &profile)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}

	return profiles, nil
}

func (db *PostgresDB) InsertMessage(senderID, recipientID uuid.UUID, content string, aiGenerated bool) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if senderID == recipientID {
		return nil, ErrSelfMessage
	}

	sender, err := db.GetProfileByID(senderID)
	if err != nil {
		return nil, err
	}

	recipient, err := db.GetProfileByID(recipientID)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ID:            uuid.New(),
		SenderID:      senderID,
		RecipientID:   recipientID,
		Content:       content,
		Read:          false,
		IsAIGenerated: aiGenerated,
		CreatedAt:     time.Now().UTC(),
		Sender:        sender,
		Recipient:     recipient,
	}

	_, err = db.Exec(
		"INSERT INTO user_messages (id, sender_id, recipient_id, content, read, is_ai_generated, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		message.ID, message.SenderID, message.RecipientID, message.Content, message.Read, message.IsAIGenerated, message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return message, nil
}

// messageColumns selects a message row plus sender and recipient profile
// snapshots in one pass.
const messageColumns = `
	m.id, m.sender_id, m.recipient_id, m.content, m.read, m.is_ai_generated, m.created_at,
	s.username, COALESCE(s.display_name, ''), COALESCE(s.avatar_url, ''),
	r.username, COALESCE(r.display_name, ''), COALESCE(r.avatar_url, '')`

const messageJoins = `
	FROM user_messages m
	JOIN profiles s ON s.id = m.sender_id
	JOIN profiles r ON r.id = m.recipient_id`

func scanMessage(rows *sql.Rows) (*models.Message, error) {
	var msg models.Message
	sender := &models.Profile{}
	recipient := &models.Profile{}

	err := rows.Scan(
		&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Content,
		&msg.Read, &msg.IsAIGenerated, &msg.CreatedAt,
		&sender.Username, &sender.DisplayName, &sender.AvatarURL,
		&recipient.Username, &recipient.DisplayName, &recipient.AvatarURL,
	)
	if err != nil {
		return nil, err
	}

	sender.ID = msg.SenderID
	recipient.ID = msg.RecipientID
	msg.Sender = sender
	msg.Recipient = recipient

	return &msg, nil
}

func (db *PostgresDB) queryMessages(query string, args ...interface{}) ([]*models.Message, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// MessagesForViewer returns every message the viewer sent or received,
// newest first, with equal timestamps ordered by message id so the result
// is deterministic.
func (db *PostgresDB) MessagesForViewer(viewerID uuid.UUID) ([]*models.Message, error) {
	return db.queryMessages(
		"SELECT"+messageColumns+messageJoins+`
		WHERE m.sender_id = $1 OR m.recipient_id = $1
		ORDER BY m.created_at DESC, m.id ASC`,
		viewerID,
	)
}

// Thread returns all messages between the pair in either direction, oldest
// first for top-to-bottom rendering.
func (db *PostgresDB) Thread(viewerID, counterpartID uuid.UUID) ([]*models.Message, error) {
	return db.queryMessages(
		"SELECT"+messageColumns+messageJoins+`
		WHERE (m.sender_id = $1 AND m.recipient_id = $2) OR (m.sender_id = $2 AND m.recipient_id = $1)
		ORDER BY m.created_at ASC, m.id ASC`,
		viewerID, counterpartID,
	)
}

// MarkConversationRead flips every unread message from counterpart to viewer
// to read, scoped by the unread predicate at update time so a message that
// lands after this statement's snapshot stays unread. Returns the number of
// rows actually changed; zero is not an error.
func (db *PostgresDB) MarkConversationRead(viewerID, counterpartID uuid.UUID) (int64, error) {
	result, err := db.Exec(
		"UPDATE user_messages SET read = true WHERE sender_id = $1 AND recipient_id = $2 AND read = false",
		counterpartID, viewerID,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (db *PostgresDB) Close() error {
	return db.DB.Close()
}

func (db *PostgresDB) Exec(query string, args ...interface{}) (ExecResult, error) {
	return db.DB.Exec(query, args...)
}
