package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/models"
	apperrors "github.com/charlesng35/mentorlink/pkg/errors"
)

// DefaultMaxMessageLength bounds message content, counted in runes.
const DefaultMaxMessageLength = 4000

// timestampResolution is the coarsest precision among the supported drivers (MySQL datetime(3)).
const timestampResolution = time.Millisecond

// CreateMessageInput carries the payload required to post a chat message.
type CreateMessageInput struct {
	Content    string
	SenderID   string
	ReceiverID string
	RequestID  string
}

// MessageServiceOption customises a MessageService.
type MessageServiceOption func(*MessageService)

// WithMaxMessageLength overrides DefaultMaxMessageLength.
func WithMaxMessageLength(limit int) MessageServiceOption {
	return func(s *MessageService) {
		if limit > 0 {
			s.maxLength = limit
		}
	}
}

// WithMessageClock overrides the clock used to stamp new messages.
func WithMessageClock(clock func() time.Time) MessageServiceOption {
	return func(s *MessageService) {
		if clock != nil {
			s.timeNow = clock
		}
	}
}

// MessageService persists chat messages scoped to a mentorship request.
type MessageService struct {
	db        *gorm.DB
	maxLength int
	timeNow   func() time.Time
}

// NewMessageService constructs a MessageService.
func NewMessageService(db *gorm.DB, opts ...MessageServiceOption) (*MessageService, error) {
	if db == nil {
		return nil, errors.New("message service: db is required")
	}
	svc := &MessageService{
		db:        db,
		maxLength: DefaultMaxMessageLength,
		timeNow:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateMessage validates and persists a message, returning it with the sender's public identity.
// The sender must be a participant of an accepted request and the receiver the other participant.
func (s *MessageService) CreateMessage(ctx context.Context, input CreateMessageInput) (*MessageDTO, error) {
	ctx = ensureContext(ctx)

	content := input.Content
	senderID := strings.TrimSpace(input.SenderID)
	receiverID := strings.TrimSpace(input.ReceiverID)
	requestID := strings.TrimSpace(input.RequestID)
	if strings.TrimSpace(content) == "" || senderID == "" || receiverID == "" || requestID == "" {
		return nil, apperrors.NewBadRequest("Missing data for creating a message")
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("Message content exceeds %d characters", s.maxLength))
	}

	var message models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.MentorshipRequest
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("Mentorship request not found")
			}
			return fmt.Errorf("load request: %w", err)
		}
		if !request.HasParticipant(senderID) || request.Status != models.RequestAccepted {
			return apperrors.NewForbidden("You are not allowed to send messages in this conversation")
		}
		if request.OtherParticipant(senderID) != receiverID {
			return apperrors.NewBadRequest("Receiver is not part of this conversation")
		}

		createdAt, err := s.nextTimestamp(tx, requestID)
		if err != nil {
			return err
		}

		message = models.Message{
			Content:    content,
			SenderID:   senderID,
			ReceiverID: receiverID,
			RequestID:  requestID,
		}
		message.CreatedAt = createdAt
		message.UpdatedAt = createdAt
		if err := tx.Create(&message).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		// Conversation lists sort by request activity.
		if err := tx.Model(&models.MentorshipRequest{}).
			Where("id = ?", requestID).
			UpdateColumn("updated_at", createdAt).Error; err != nil {
			return fmt.Errorf("touch request: %w", err)
		}

		var sender models.User
		if err := tx.First(&sender, "id = ?", senderID).Error; err != nil {
			return fmt.Errorf("load sender: %w", err)
		}
		message.Sender = &sender
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("message service: create message: %w", err)
	}

	dto := mapMessage(message)
	return &dto, nil
}

// nextTimestamp returns the current time, nudged past the conversation's latest message so that
// created_at strictly increases within a conversation even when clocks collide.
func (s *MessageService) nextTimestamp(tx *gorm.DB, requestID string) (time.Time, error) {
	now := s.timeNow().UTC().Truncate(timestampResolution)

	var latest []models.Message
	if err := tx.Select("id", "created_at").
		Where("request_id = ?", requestID).
		Order("created_at DESC").
		Limit(1).
		Find(&latest).Error; err != nil {
		return time.Time{}, fmt.Errorf("load latest message: %w", err)
	}
	if len(latest) == 1 {
		last := latest[0].CreatedAt.UTC().Truncate(timestampResolution)
		if !now.After(last) {
			now = last.Add(timestampResolution)
		}
	}
	return now, nil
}

// GetMessagesForRequest returns the full history of a conversation, oldest first, together with
// both participants. Only the mentor or mentee may read it.
func (s *MessageService) GetMessagesForRequest(ctx context.Context, requestID, callerID string) (*ConversationHistory, error) {
	ctx = ensureContext(ctx)
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, apperrors.NewBadRequest("Request ID is required")
	}

	var request models.MentorshipRequest
	if err := s.db.WithContext(ctx).
		Preload("Mentor").
		Preload("Mentee").
		First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Mentorship request not found")
		}
		return nil, fmt.Errorf("message service: load request: %w", err)
	}
	if !request.HasParticipant(strings.TrimSpace(callerID)) {
		return nil, apperrors.NewForbidden("You are not authorized to view these messages")
	}

	var rows []models.Message
	if err := s.db.WithContext(ctx).
		Preload("Sender").
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("message service: list messages: %w", err)
	}

	return &ConversationHistory{
		Messages: mapMessageRows(rows),
		Participants: Participants{
			Mentor: summarizeUser(request.Mentor),
			Mentee: summarizeUser(request.Mentee),
		},
	}, nil
}

// MarkMessagesAsRead flips every unread message addressed to callerID in the conversation and
// returns how many changed. Messages the caller sent are never touched.
func (s *MessageService) MarkMessagesAsRead(ctx context.Context, requestID, callerID string) (int64, error) {
	ctx = ensureContext(ctx)
	requestID = strings.TrimSpace(requestID)
	callerID = strings.TrimSpace(callerID)
	if requestID == "" || callerID == "" {
		return 0, apperrors.NewBadRequest("Request ID is required")
	}

	result := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("request_id = ? AND receiver_id = ? AND is_read = ?", requestID, callerID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("message service: mark read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountUnread returns the number of unread messages across all conversations.
func (s *MessageService) CountUnread(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("is_read = ?", false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("message service: count unread: %w", err)
	}
	return count, nil
}
