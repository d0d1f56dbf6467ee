package services

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/database/testutil"
	"github.com/charlesng35/mentorlink/internal/models"
	"github.com/charlesng35/mentorlink/pkg/mail"
)

type conversationFixture struct {
	db       *gorm.DB
	mentor   *models.User
	mentee   *models.User
	outsider *models.User
	request  *models.MentorshipRequest
}

func newConversationFixture(t *testing.T) conversationFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	mentor := testutil.MustCreateUser(t, db, "Bea Mentor", models.RoleMentor)
	mentee := testutil.MustCreateUser(t, db, "Ada Mentee", models.RoleMentee)
	outsider := testutil.MustCreateUser(t, db, "Cy Outsider", models.RoleMentee)
	request := testutil.MustCreateRequest(t, db, mentor.ID, mentee.ID, models.RequestAccepted)

	return conversationFixture{db: db, mentor: mentor, mentee: mentee, outsider: outsider, request: request}
}

// storeDispatcher persists through the store and records what it dispatched.
type storeDispatcher struct {
	store *NotificationService

	mu         sync.Mutex
	dispatched []NotificationDTO
}

func (d *storeDispatcher) Dispatch(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	dto, err := d.store.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.dispatched = append(d.dispatched, *dto)
	d.mu.Unlock()
	return dto, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}
