package models

import "time"

type ReportStatus string
type ServiceStatus string
type SignatureStage string

const (
	ReportDraft  ReportStatus = "DRAFT"
	ReportReview ReportStatus = "REVIEW"
	ReportSigned ReportStatus = "SIGNED"

	ServiceFinished   ServiceStatus = "FINISHED"
	ServiceUnfinished ServiceStatus = "UNFINISHED"

	// какие подписи уже нанесены на PDF отчёта
	StageNone           SignatureStage = "NONE"
	StageEngineerSigned SignatureStage = "ENGINEER_SIGNED"
	StageDualSigned     SignatureStage = "DUAL_SIGNED"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case ReportDraft, ReportReview, ReportSigned:
		return true
	}
	return false
}

func (s ServiceStatus) Valid() bool {
	return s == ServiceFinished || s == ServiceUnfinished
}

type Report struct {
	Base

	ScheduleID string    `gorm:"type:varchar(36);index;not null" json:"scheduleId"`
	Schedule   *Schedule `json:"schedule,omitempty"`

	EngineerID string `gorm:"type:varchar(36);index;not null" json:"engineerId"`
	Engineer   *User  `json:"engineer,omitempty"`

	CustomerID string    `gorm:"type:varchar(36);index;not null" json:"customerId"`
	Customer   *Customer `json:"customer,omitempty"`

	CategoryID string    `gorm:"type:varchar(36);not null" json:"categoryId"`
	Category   *Category `json:"category,omitempty"`

	Services   []Service `gorm:"many2many:report_services;" json:"services,omitempty"`
	ServiceIDs []string  `gorm:"-" json:"serviceIds"`

	Problem             string        `gorm:"type:text;not null" json:"problem"`
	ProcessingTimeStart time.Time     `json:"processingTimeStart"`
	ProcessingTimeEnd   time.Time     `json:"processingTimeEnd"`
	ReportDate          time.Time     `json:"reportDate"`
	ServiceStatus       ServiceStatus `gorm:"type:varchar(20);not null" json:"serviceStatus"`
	AttachmentURL       string        `gorm:"type:text" json:"attachmentUrl"`

	Status         ReportStatus   `gorm:"type:varchar(20);not null" json:"status"`
	SignatureStage SignatureStage `gorm:"type:varchar(20);not null;default:NONE" json:"signatureStage"`
	EngineerSign   *string        `gorm:"type:text" json:"engineerSign"`
	CustomerSign   *string        `gorm:"type:text" json:"customerSign"`
}

// FillServiceIDs заполняет ServiceIDs по загруженной связи Services
func (r *Report) FillServiceIDs() {
	r.ServiceIDs = make([]string, 0, len(r.Services))
	for _, s := range r.Services {
		r.ServiceIDs = append(r.ServiceIDs, s.ID)
	}
}

// CreateReportInput: данные для создания отчёта инженером
type CreateReportInput struct {
	ScheduleID          string        `json:"scheduleId"`
	EngineerID          string        `json:"engineerId"`
	CustomerID          string        `json:"customerId"`
	ServiceIDs          []string      `json:"serviceIds"`
	CategoryID          string        `json:"categoryId"`
	Problem             string        `json:"problem"`
	ProcessingTimeStart *time.Time    `json:"processingTimeStart"`
	ProcessingTimeEnd   *time.Time    `json:"processingTimeEnd"`
	ReportDate          *time.Time    `json:"reportDate"`
	ServiceStatus       ServiceStatus `json:"serviceStatus"`
	AttachmentURL       string        `json:"attachmentUrl"`
	Status              ReportStatus  `json:"status"`
}

// UpdateReportInput: правка содержимого отчёта. nil означает «не менять»;
// ServiceIDs, если переданы, заменяют набор услуг целиком.
type UpdateReportInput struct {
	ScheduleID          *string        `json:"scheduleId"`
	CustomerID          *string        `json:"customerId"`
	CategoryID          *string        `json:"categoryId"`
	ServiceIDs          []string       `json:"serviceIds"`
	Problem             *string        `json:"problem"`
	ProcessingTimeStart *time.Time     `json:"processingTimeStart"`
	ProcessingTimeEnd   *time.Time     `json:"processingTimeEnd"`
	ReportDate          *time.Time     `json:"reportDate"`
	ServiceStatus       *ServiceStatus `json:"serviceStatus"`
	AttachmentURL       *string        `json:"attachmentUrl"`
}

func (in UpdateReportInput) Empty() bool {
	return in.ScheduleID == nil && in.CustomerID == nil && in.CategoryID == nil &&
		in.ServiceIDs == nil && in.Problem == nil && in.ProcessingTimeStart == nil &&
		in.ProcessingTimeEnd == nil && in.ReportDate == nil && in.ServiceStatus == nil &&
		in.AttachmentURL == nil
}

// SignatureUpdate: изменения, которые фиксируются после наложения подписи
type SignatureUpdate struct {
	EngineerSign *string
	CustomerSign *string
	Stage        SignatureStage
	Status       ReportStatus
}
