package models

// User roles recognised by the platform.
const (
	RoleAdmin  = "ADMIN"
	RoleMentor = "MENTOR"
	RoleMentee = "MENTEE"
)

// User is the minimal account record the messaging core needs: public identity plus role.
// Credentials and profile data are owned by the authentication service.
type User struct {
	BaseModel

	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	AvatarURL string `gorm:"type:text" json:"avatar_url"`
	Role      string `gorm:"type:varchar(16);not null;default:'MENTEE';index" json:"role"`
}
