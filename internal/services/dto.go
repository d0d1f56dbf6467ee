package services

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/charlesng35/mentorlink/internal/models"
)

// UserSummary is the public identity of a participant.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// MessageDTO is the wire form of a chat message, carrying the sender's identity.
type MessageDTO struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	SenderID   string       `json:"sender_id"`
	ReceiverID string       `json:"receiver_id"`
	RequestID  string       `json:"request_id"`
	IsRead     bool         `json:"is_read"`
	CreatedAt  time.Time    `json:"created_at"`
	Sender     *UserSummary `json:"sender,omitempty"`
}

// Participants identifies both sides of a conversation.
type Participants struct {
	Mentor *UserSummary `json:"mentor"`
	Mentee *UserSummary `json:"mentee"`
}

// ConversationHistory is the full message log of a conversation.
type ConversationHistory struct {
	Messages     []MessageDTO `json:"messages"`
	Participants Participants `json:"participants"`
}

// ConversationDTO is one entry of a user's conversation list.
type ConversationDTO struct {
	RequestID   string       `json:"request_id"`
	Participant *UserSummary `json:"participant"`
	UnreadCount int64        `json:"unread_count"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Kind      string         `json:"kind"`
	Message   string         `json:"message"`
	Link      string         `json:"link,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// MentorshipRequestDTO is the API form of a mentorship request.
type MentorshipRequestDTO struct {
	ID        string       `json:"id"`
	MentorID  string       `json:"mentor_id"`
	MenteeID  string       `json:"mentee_id"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Mentor    *UserSummary `json:"mentor,omitempty"`
	Mentee    *UserSummary `json:"mentee,omitempty"`
}

func summarizeUser(user *models.User) *UserSummary {
	if user == nil || user.ID == "" {
		return nil
	}
	return &UserSummary{ID: user.ID, Name: user.Name, AvatarURL: user.AvatarURL}
}

func mapMessage(row models.Message) MessageDTO {
	return MessageDTO{
		ID:         row.ID,
		Content:    row.Content,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		RequestID:  row.RequestID,
		IsRead:     row.IsRead,
		CreatedAt:  row.CreatedAt.UTC(),
		Sender:     summarizeUser(row.Sender),
	}
}

func mapMessageRows(rows []models.Message) []MessageDTO {
	items := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapMessage(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Kind:      row.Kind,
		Message:   row.Message,
		Link:      row.Link,
		Metadata:  decodeJSON(row.Metadata),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt.UTC(),
		ReadAt:    row.ReadAt,
	}
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapRequest(row models.MentorshipRequest) MentorshipRequestDTO {
	return MentorshipRequestDTO{
		ID:        row.ID,
		MentorID:  row.MentorID,
		MenteeID:  row.MenteeID,
		Status:    row.Status,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
		Mentor:    summarizeUser(row.Mentor),
		Mentee:    summarizeUser(row.Mentee),
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
