package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorlink/internal/models"
	apperrors "github.com/charlesng35/mentorlink/pkg/errors"
	"github.com/charlesng35/mentorlink/pkg/logger"
	"github.com/charlesng35/mentorlink/pkg/mail"
)

// NotificationDispatcher is the single write path for notifications: persist, then push.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error)
}

// RequestServiceOption customises a MentorshipRequestService.
type RequestServiceOption func(*MentorshipRequestService)

// WithRequestMailer sends an email alongside each request notification.
func WithRequestMailer(mailer mail.Mailer) RequestServiceOption {
	return func(s *MentorshipRequestService) {
		s.mailer = mailer
	}
}

// MentorshipRequestService owns the request lifecycle that opens conversations.
type MentorshipRequestService struct {
	db         *gorm.DB
	dispatcher NotificationDispatcher
	mailer     mail.Mailer
	log        *zap.Logger
}

// NewMentorshipRequestService constructs a MentorshipRequestService.
func NewMentorshipRequestService(db *gorm.DB, dispatcher NotificationDispatcher, opts ...RequestServiceOption) (*MentorshipRequestService, error) {
	if db == nil {
		return nil, errors.New("request service: db is required")
	}
	if dispatcher == nil {
		return nil, errors.New("request service: notification dispatcher is required")
	}
	svc := &MentorshipRequestService{
		db:         db,
		dispatcher: dispatcher,
		log:        logger.WithModule("services"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create opens a PENDING request from a mentee to a mentor and notifies the mentor.
func (s *MentorshipRequestService) Create(ctx context.Context, menteeID, mentorID string) (*MentorshipRequestDTO, error) {
	ctx = ensureContext(ctx)
	menteeID = strings.TrimSpace(menteeID)
	mentorID = strings.TrimSpace(mentorID)

	if mentorID == "" {
		return nil, apperrors.NewBadRequest("Mentor ID is required")
	}
	if mentorID == menteeID {
		return nil, apperrors.NewBadRequest("You cannot send a mentorship request to yourself")
	}

	var mentor models.User
	if err := s.db.WithContext(ctx).First(&mentor, "id = ?", mentorID).Error; err != nil || mentor.Role != models.RoleMentor {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("request service: load mentor: %w", err)
		}
		return nil, apperrors.NewNotFound("Mentor not found or user is not a mentor")
	}

	var mentee models.User
	if err := s.db.WithContext(ctx).First(&mentee, "id = ?", menteeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Mentee profile not found")
		}
		return nil, fmt.Errorf("request service: load mentee: %w", err)
	}

	var pending int64
	if err := s.db.WithContext(ctx).
		Model(&models.MentorshipRequest{}).
		Where("mentee_id = ? AND mentor_id = ? AND status = ?", menteeID, mentorID, models.RequestPending).
		Count(&pending).Error; err != nil {
		return nil, fmt.Errorf("request service: check pending: %w", err)
	}
	if pending > 0 {
		return nil, apperrors.NewConflict("A pending request to this mentor already exists")
	}

	request := models.MentorshipRequest{
		MentorID: mentorID,
		MenteeID: menteeID,
		Status:   models.RequestPending,
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return nil, fmt.Errorf("request service: create request: %w", err)
	}
	request.Mentor = &mentor
	request.Mentee = &mentee

	s.sendEmail(ctx, mail.Message{
		To:      []string{mentor.Email},
		Subject: "You have a new mentorship request!",
		HTML: fmt.Sprintf("<p>Hi %s, you have a new request from %s. Please log in to respond.</p>",
			html.EscapeString(mentor.Name), html.EscapeString(mentee.Name)),
	})
	if _, err := s.dispatcher.Dispatch(ctx, NewRequestReceivedNotification(&request, &mentee)); err != nil {
		s.log.Warn("request notification failed", zap.String("request_id", request.ID), zap.Error(err))
	}

	dto := mapRequest(request)
	return &dto, nil
}

// Respond accepts or rejects a PENDING request. Only the addressed mentor may respond; accepting
// opens the conversation.
func (s *MentorshipRequestService) Respond(ctx context.Context, mentorID, requestID, status string) (*MentorshipRequestDTO, error) {
	ctx = ensureContext(ctx)
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != models.RequestAccepted && status != models.RequestRejected {
		return nil, apperrors.NewBadRequest("Invalid status provided. Must be ACCEPTED or REJECTED")
	}

	var request models.MentorshipRequest
	if err := s.db.WithContext(ctx).
		Preload("Mentor").
		Preload("Mentee").
		First(&request, "id = ?", strings.TrimSpace(requestID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Request not found")
		}
		return nil, fmt.Errorf("request service: load request: %w", err)
	}
	if request.MentorID != strings.TrimSpace(mentorID) {
		return nil, apperrors.NewForbidden("You are not authorized to update this request")
	}
	if request.Status != models.RequestPending {
		return nil, apperrors.NewConflict("This request has already been actioned.")
	}

	// Guarded on the previous status so two concurrent responses cannot both win.
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.MentorshipRequest{}).
		Where("id = ? AND status = ?", request.ID, models.RequestPending).
		Updates(map[string]any{"status": status, "updated_at": now})
	if result.Error != nil {
		return nil, fmt.Errorf("request service: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.NewConflict("This request has already been actioned.")
	}
	request.Status = status
	request.UpdatedAt = now

	if request.Mentee != nil && request.Mentor != nil {
		body := fmt.Sprintf("<p>Hi %s, your request to %s has been %s.</p>",
			html.EscapeString(request.Mentee.Name), html.EscapeString(request.Mentor.Name), status)
		if status == models.RequestAccepted {
			body += "<p>You can now log in to book a session!</p>"
		}
		s.sendEmail(ctx, mail.Message{
			To:      []string{request.Mentee.Email},
			Subject: fmt.Sprintf("Your mentorship request has been %s", strings.ToLower(status)),
			HTML:    body,
		})
		if _, err := s.dispatcher.Dispatch(ctx, NewRequestRespondedNotification(&request, request.Mentor)); err != nil {
			s.log.Warn("request notification failed", zap.String("request_id", request.ID), zap.Error(err))
		}
	}

	dto := mapRequest(request)
	return &dto, nil
}

// ListSent returns the requests a mentee has sent, newest first.
func (s *MentorshipRequestService) ListSent(ctx context.Context, menteeID string) ([]MentorshipRequestDTO, error) {
	return s.list(ctx, "mentee_id = ?", menteeID, "Mentor")
}

// ListReceived returns the requests addressed to a mentor, newest first.
func (s *MentorshipRequestService) ListReceived(ctx context.Context, mentorID string) ([]MentorshipRequestDTO, error) {
	return s.list(ctx, "mentor_id = ?", mentorID, "Mentee")
}

func (s *MentorshipRequestService) list(ctx context.Context, predicate, userID, preload string) ([]MentorshipRequestDTO, error) {
	ctx = ensureContext(ctx)
	var rows []models.MentorshipRequest
	if err := s.db.WithContext(ctx).
		Preload(preload).
		Where(predicate, strings.TrimSpace(userID)).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("request service: list requests: %w", err)
	}

	items := make([]MentorshipRequestDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRequest(row))
	}
	return items, nil
}

// sendEmail delivers best-effort; the in-app notification is the durable record.
func (s *MentorshipRequestService) sendEmail(ctx context.Context, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrDisabled) {
		s.log.Warn("request email failed", zap.Strings("to", msg.To), zap.Error(err))
	}
}
