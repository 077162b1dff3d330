package database

import (
	"context"

	"field-service/internal/models"

	"gorm.io/gorm"
)

type AuditLog struct {
	db *gorm.DB
}

func NewAuditLog(db *gorm.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record пишет запись в журнал; ошибка возвращается вызывающему, который решает,
// критична ли она.
func (a *AuditLog) Record(ctx context.Context, userID, entity, entityID, action, details string) error {
	record := models.AuditLog{
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  details,
	}
	if userID != "" {
		record.UserID = &userID
	}
	return a.db.WithContext(ctx).Create(&record).Error
}

func (a *AuditLog) ForEntity(ctx context.Context, entity, entityID string) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := a.db.WithContext(ctx).
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Preload("User").
		Order("created_at asc, id asc").
		Find(&logs).Error
	return logs, err
}
