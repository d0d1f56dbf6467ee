package models

// Mentorship request states.
const (
	RequestPending  = "PENDING"
	RequestAccepted = "ACCEPTED"
	RequestRejected = "REJECTED"
)

// MentorshipRequest links a mentee to a mentor. Once ACCEPTED it doubles as the conversation
// between them; its ID is the conversation ID.
type MentorshipRequest struct {
	BaseModel

	MentorID string `gorm:"type:uuid;not null;index" json:"mentor_id"`
	MenteeID string `gorm:"type:uuid;not null;index" json:"mentee_id"`
	Status   string `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`

	Mentor *User `gorm:"foreignKey:MentorID" json:"mentor,omitempty"`
	Mentee *User `gorm:"foreignKey:MenteeID" json:"mentee,omitempty"`
}

// HasParticipant reports whether userID is the mentor or the mentee.
func (r *MentorshipRequest) HasParticipant(userID string) bool {
	return userID != "" && (r.MentorID == userID || r.MenteeID == userID)
}

// OtherParticipant returns the participant that is not userID, or "" when userID is not part of
// the request.
func (r *MentorshipRequest) OtherParticipant(userID string) string {
	switch userID {
	case r.MentorID:
		return r.MenteeID
	case r.MenteeID:
		return r.MentorID
	default:
		return ""
	}
}
