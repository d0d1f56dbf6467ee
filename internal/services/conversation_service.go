package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/models"
	apperrors "github.com/charlesng35/mentorlink/pkg/errors"
)

// ConversationService derives a user's conversation list from accepted mentorship requests.
type ConversationService struct {
	db *gorm.DB
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB) (*ConversationService, error) {
	if db == nil {
		return nil, errors.New("conversation service: db is required")
	}
	return &ConversationService{db: db}, nil
}

type conversationRow struct {
	ID          string
	MentorID    string
	MenteeID    string
	UpdatedAt   time.Time
	UnreadCount int64
}

// ListForUser returns every accepted request the user takes part in, most recently active first,
// with the other participant and the number of messages still unread by the user. Unread counts
// are computed live with a correlated sub-select.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]ConversationDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var rows []conversationRow
	if err := s.db.WithContext(ctx).
		Model(&models.MentorshipRequest{}).
		Select(
			"mentorship_requests.id, mentorship_requests.mentor_id, mentorship_requests.mentee_id, mentorship_requests.updated_at, "+
				"(SELECT COUNT(*) FROM messages WHERE messages.request_id = mentorship_requests.id AND messages.receiver_id = ? AND messages.is_read = ?) AS unread_count",
			userID, false,
		).
		Where("mentorship_requests.status = ?", models.RequestAccepted).
		Where("(mentorship_requests.mentor_id = ? OR mentorship_requests.mentee_id = ?)", userID, userID).
		Order("mentorship_requests.updated_at DESC").
		Order("mentorship_requests.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("conversation service: list conversations: %w", err)
	}

	conversations := make([]ConversationDTO, 0, len(rows))
	if len(rows) == 0 {
		return conversations, nil
	}

	otherIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		otherIDs = append(otherIDs, otherParticipant(row, userID))
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", otherIDs).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("conversation service: load participants: %w", err)
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	for _, row := range rows {
		participant := summarizeUser(byID[otherParticipant(row, userID)])
		if participant == nil {
			participant = &UserSummary{ID: otherParticipant(row, userID)}
		}
		conversations = append(conversations, ConversationDTO{
			RequestID:   row.ID,
			Participant: participant,
			UnreadCount: row.UnreadCount,
			UpdatedAt:   row.UpdatedAt.UTC(),
		})
	}
	return conversations, nil
}

func otherParticipant(row conversationRow, userID string) string {
	if row.MentorID == userID {
		return row.MenteeID
	}
	return row.MentorID
}
