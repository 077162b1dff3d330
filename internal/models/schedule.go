package models

import "time"

type ScheduleStatus string

const (
	SchedulePending     ScheduleStatus = "PENDING"
	ScheduleCompleted   ScheduleStatus = "COMPLETED"
	ScheduleRescheduled ScheduleStatus = "RESCHEDULED"
)

// Schedule описывает запланированный выезд инженера
type Schedule struct {
	Base
	TaskName  string         `gorm:"size:255;not null" json:"taskName"`
	ExecuteAt time.Time      `json:"executeAt"`
	Status    ScheduleStatus `gorm:"type:varchar(20);not null;default:PENDING" json:"status"`

	EngineerID string `gorm:"type:varchar(36);index" json:"engineerId"`
	AdminID    string `gorm:"type:varchar(36)" json:"adminId"`
}
