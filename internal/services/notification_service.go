package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/models"
	apperrors "github.com/charlesng35/mentorlink/pkg/errors"
)

// DefaultNotificationLimit caps how many notifications a single listing returns.
const DefaultNotificationLimit = 50

// Notification kinds produced by the platform.
const (
	NotificationKindGeneral         = "general"
	NotificationKindRequestReceived = "request.received"
	NotificationKindRequestAccepted = "request.accepted"
	NotificationKindRequestRejected = "request.rejected"
	NotificationKindRoleChanged     = "role.changed"
	NotificationKindSessionBooked   = "session.booked"
)

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID   string         `json:"user_id" validate:"required"`
	Kind     string         `json:"kind" validate:"omitempty,max=64"`
	Message  string         `json:"message" validate:"notblank,max=1000"`
	Link     string         `json:"link" validate:"omitempty,max=2048"`
	Metadata map[string]any `json:"metadata"`
}

// NotificationServiceOption customises a NotificationService.
type NotificationServiceOption func(*NotificationService)

// WithNotificationLimit overrides DefaultNotificationLimit.
func WithNotificationLimit(limit int) NotificationServiceOption {
	return func(s *NotificationService) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// NotificationService manages user in-app notifications. It only persists; realtime delivery is
// the dispatcher's job.
type NotificationService struct {
	db      *gorm.DB
	limit   int
	timeNow func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, opts ...NotificationServiceOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	svc := &NotificationService{db: db, limit: DefaultNotificationLimit, timeNow: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ListForUser returns the user's most recent notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(s.limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	return mapNotificationRows(rows), nil
}

// Create persists a new notification.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("Notification recipient is required")
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, apperrors.NewBadRequest("Notification message is required")
	}

	notification := models.Notification{
		UserID:  userID,
		Kind:    defaultIfEmpty(strings.TrimSpace(input.Kind), NotificationKindGeneral),
		Message: message,
		Link:    strings.TrimSpace(input.Link),
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	dto := mapNotification(notification)
	return &dto, nil
}

// MarkRead sets the read flag on a notification owned by userID. Ownership is part of the lookup,
// so a foreign notification is indistinguishable from a missing one.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return nil, apperrors.NewBadRequest("Notification ID is required")
	}

	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, strings.TrimSpace(userID)).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Notification not found")
		}
		return nil, fmt.Errorf("notification service: load notification: %w", err)
	}

	if notification.IsRead {
		dto := mapNotification(notification)
		return &dto, nil
	}

	now := s.timeNow().UTC()
	if err := s.db.WithContext(ctx).Model(&notification).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return nil, fmt.Errorf("notification service: mark read: %w", err)
	}

	notification.IsRead = true
	notification.ReadAt = &now
	dto := mapNotification(notification)
	return &dto, nil
}

// CountUnread returns the number of unread notifications across all users.
func (s *NotificationService) CountUnread(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("is_read = ?", false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
