package database

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/inletchat/inlet/internal/models"
)

type DBInterface interface {
	// Profile methods
	CreateProfile(username, email, passwordHash string) (*models.Profile, error)
	GetProfileByEmail(email string) (*models.Profile, error)
	GetProfileByID(id uuid.UUID) (*models.Profile, error)
	GetProfileByUsername(username string) (*models.Profile, error)
	UpdateLastSeen(profileID uuid.UUID) error
	GetAllProfiles(excludeProfileID uuid.UUID) ([]*models.Profile, error)

	// Message methods
	InsertMessage(senderID, recipientID uuid.UUID, content string, aiGenerated bool) (*models.Message, error)
	MessagesForViewer(viewerID uuid.UUID) ([]*models.Message, error)
	Thread(viewerID, counterpartID uuid.UUID) ([]*models.Message, error)
	MarkConversationRead(viewerID, counterpartID uuid.UUID) (int64, error)

	// Common methods
	Exec(query string, args ...interface{}) (ExecResult, error)
	Close() error
}

type ExecResult interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgres"
	MySQL      DatabaseType = "mysql"
)

func NewDatabase(dbType DatabaseType, connStr string) (DBInterface, error) {
	switch dbType {
	case PostgreSQL:
		return NewPostgresDB(connStr)
	case MySQL:
		return nil, fmt.Errorf("MySQL implementation not available yet")
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
