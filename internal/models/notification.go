package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification represents an in-app notification for a user.
type Notification struct {
	BaseModel

	UserID   string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Kind     string         `gorm:"type:varchar(64);not null;default:'general'" json:"kind"`
	Message  string         `gorm:"type:text;not null" json:"message"`
	Link     string         `gorm:"type:text" json:"link"`
	Metadata datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
