package models

import "time"

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// nil: действие без пользователя (системное)
	UserID *string `gorm:"type:varchar(36)" json:"userId"`
	User   *User   `json:"user,omitempty"`

	Entity   string `gorm:"size:50;not null" json:"entity"` // "report"
	EntityID string `gorm:"type:varchar(36);index" json:"entityId"`
	Action   string `gorm:"size:50;not null" json:"action"` // "create", "engineer_sign" и т.п.
	Details  string `gorm:"type:text" json:"details"`
}
