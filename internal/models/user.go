package models

type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleEngineer   UserRole = "ENGINEER"
)

type User struct {
	Base
	Name         string   `gorm:"size:255;not null" json:"name"`
	Email        string   `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Role         UserRole `gorm:"type:varchar(20);not null" json:"role"`
	Timezone     string   `gorm:"size:64" json:"timezone,omitempty"`

	// сохранённая подпись инженера (base64 PNG), переиспользуется между отчётами
	Signature *string `gorm:"type:text" json:"-"`
}

func (u User) HasSignature() bool {
	return u.Signature != nil && *u.Signature != ""
}
