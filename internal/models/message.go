package models

// Message is a chat message inside a conversation. Rows are append-only; only IsRead changes.
type Message struct {
	BaseModel

	Content    string `gorm:"type:text;not null" json:"content"`
	SenderID   string `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID string `gorm:"type:uuid;not null;index:idx_messages_unread,priority:2" json:"receiver_id"`
	RequestID  string `gorm:"type:uuid;not null;index:idx_messages_unread,priority:1" json:"request_id"`
	IsRead     bool   `gorm:"not null;default:false;index:idx_messages_unread,priority:3" json:"is_read"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
