package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/database"
	"github.com/charlesng35/mentorlink/internal/models"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	autoMigrate bool
}

// WithAutoMigrate enables automatic schema migration after opening the test database.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.autoMigrate = true
	}
}

// MustOpenTestDB opens a private in-memory SQLite database for tests, applying optional migrations.
// The returned connection is automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	// A single connection keeps concurrent goroutines (websocket loops, dispatchers) from
	// tripping over SQLite's shared-cache table locks.
	dsn := fmt.Sprintf("file:test-%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1})
	require.NoError(t, err)

	if cfg.autoMigrate {
		require.NoError(t, database.AutoMigrate(db))
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// MustCreateUser inserts a user with the given role. The name doubles as the email local part.
func MustCreateUser(t *testing.T, db *gorm.DB, name, role string) *models.User {
	t.Helper()

	user := &models.User{
		Name:      name,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "-" + uuid.NewString()[:8] + "@example.com",
		AvatarURL: "https://cdn.example.com/avatars/" + strings.ToLower(strings.ReplaceAll(name, " ", "-")) + ".png",
		Role:      role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// MustCreateRequest inserts a mentorship request in the given status.
func MustCreateRequest(t *testing.T, db *gorm.DB, mentorID, menteeID, status string) *models.MentorshipRequest {
	t.Helper()

	req := &models.MentorshipRequest{MentorID: mentorID, MenteeID: menteeID, Status: status}
	require.NoError(t, db.Create(req).Error)
	return req
}

// MustCreateMessage inserts a message directly, bypassing the service layer.
func MustCreateMessage(t *testing.T, db *gorm.DB, req *models.MentorshipRequest, senderID, content string, createdAt time.Time) *models.Message {
	t.Helper()

	msg := &models.Message{
		Content:    content,
		SenderID:   senderID,
		ReceiverID: req.OtherParticipant(senderID),
		RequestID:  req.ID,
	}
	if !createdAt.IsZero() {
		msg.CreatedAt = createdAt
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}
