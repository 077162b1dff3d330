package database

import (
	"context"
	"errors"
	"fmt"

	"field-service/internal/apperrors"
	"field-service/internal/models"

	"gorm.io/gorm"
)

// Reports даёт доступ к отчётам и связанным с ними сущностям
type Reports struct {
	db *gorm.DB
}

func NewReports(db *gorm.DB) *Reports {
	return &Reports{db: db}
}

// Create сохраняет отчёт вместе со связями на услуги в одной транзакции:
// если хотя бы одна ссылка не находится, не создаётся ничего.
func (r *Reports) Create(ctx context.Context, in models.CreateReportInput) (*models.Report, error) {
	serviceIDs := uniqueStrings(in.ServiceIDs)

	var report models.Report
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var engineer models.User
		if err := tx.Where("id = ? AND role = ?", in.EngineerID, models.RoleEngineer).First(&engineer).Error; err != nil {
			return refError(err, "Invalid engineer or customer ID")
		}
		var customer models.Customer
		if err := tx.First(&customer, "id = ?", in.CustomerID).Error; err != nil {
			return refError(err, "Invalid engineer or customer ID")
		}
		var schedule models.Schedule
		if err := tx.First(&schedule, "id = ?", in.ScheduleID).Error; err != nil {
			return refError(err, "Invalid schedule ID")
		}
		var category models.Category
		if err := tx.First(&category, "id = ?", in.CategoryID).Error; err != nil {
			return refError(err, "Invalid category ID")
		}

		var services []models.Service
		if err := tx.Where("id IN ?", serviceIDs).Find(&services).Error; err != nil {
			return fmt.Errorf("load services: %w", err)
		}
		if len(services) != len(serviceIDs) {
			return apperrors.New(apperrors.ErrValidation, "Some service IDs are invalid")
		}

		report = models.Report{
			ScheduleID:          in.ScheduleID,
			EngineerID:          in.EngineerID,
			CustomerID:          in.CustomerID,
			CategoryID:          in.CategoryID,
			Services:            services,
			Problem:             in.Problem,
			ProcessingTimeStart: *in.ProcessingTimeStart,
			ProcessingTimeEnd:   *in.ProcessingTimeEnd,
			ReportDate:          *in.ReportDate,
			ServiceStatus:       in.ServiceStatus,
			AttachmentURL:       in.AttachmentURL,
			Status:              in.Status,
			SignatureStage:      models.StageNone,
		}

		// сами услуги не трогаем, пишем только строки связи
		if err := tx.Omit("Services.*").Create(&report).Error; err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.FillServiceIDs()
	return &report, nil
}

// Update меняет содержимое отчёта в одной транзакции. Ссылки проверяются так же,
// как при создании; при resetSignatures отчёт возвращается в DRAFT без подписей.
func (r *Reports) Update(ctx context.Context, id string, in models.UpdateReportInput, resetSignatures bool) (*models.Report, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.Report
		if err := tx.First(&report, "id = ?", id).Error; err != nil {
			return notFound(err)
		}

		changes := map[string]interface{}{}
		if in.CustomerID != nil {
			var customer models.Customer
			if err := tx.First(&customer, "id = ?", *in.CustomerID).Error; err != nil {
				return refError(err, "Invalid engineer or customer ID")
			}
			changes["customer_id"] = *in.CustomerID
		}
		if in.ScheduleID != nil {
			var schedule models.Schedule
			if err := tx.First(&schedule, "id = ?", *in.ScheduleID).Error; err != nil {
				return refError(err, "Invalid schedule ID")
			}
			changes["schedule_id"] = *in.ScheduleID
		}
		if in.CategoryID != nil {
			var category models.Category
			if err := tx.First(&category, "id = ?", *in.CategoryID).Error; err != nil {
				return refError(err, "Invalid category ID")
			}
			changes["category_id"] = *in.CategoryID
		}

		if in.ServiceIDs != nil {
			serviceIDs := uniqueStrings(in.ServiceIDs)
			var count int64
			if err := tx.Model(&models.Service{}).Where("id IN ?", serviceIDs).Count(&count).Error; err != nil {
				return fmt.Errorf("count services: %w", err)
			}
			if int(count) != len(serviceIDs) {
				return apperrors.New(apperrors.ErrValidation, "Some service IDs are invalid")
			}

			// старые связи удаляем, новые пишем строками таблицы связи
			if err := tx.Exec("DELETE FROM report_services WHERE report_id = ?", id).Error; err != nil {
				return fmt.Errorf("clear report services: %w", err)
			}
			rows := make([]map[string]interface{}, 0, len(serviceIDs))
			for _, sid := range serviceIDs {
				rows = append(rows, map[string]interface{}{"report_id": id, "service_id": sid})
			}
			if err := tx.Table("report_services").Create(&rows).Error; err != nil {
				return fmt.Errorf("link report services: %w", err)
			}
		}

		if in.Problem != nil {
			changes["problem"] = *in.Problem
		}
		if in.ProcessingTimeStart != nil {
			changes["processing_time_start"] = *in.ProcessingTimeStart
		}
		if in.ProcessingTimeEnd != nil {
			changes["processing_time_end"] = *in.ProcessingTimeEnd
		}
		if in.ReportDate != nil {
			changes["report_date"] = *in.ReportDate
		}
		if in.ServiceStatus != nil {
			changes["service_status"] = *in.ServiceStatus
		}
		if in.AttachmentURL != nil {
			changes["attachment_url"] = *in.AttachmentURL
		}
		if resetSignatures {
			changes["status"] = models.ReportDraft
			changes["signature_stage"] = models.StageNone
			changes["engineer_sign"] = nil
			changes["customer_sign"] = nil
		}

		if len(changes) == 0 {
			return nil
		}
		if err := tx.Model(&models.Report{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *Reports) FindByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).
		Preload("Engineer").
		Preload("Customer").
		Preload("Category").
		Preload("Services").
		First(&report, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	report.FillServiceIDs()
	return &report, nil
}

// FindForRender грузит отчёт со всеми связями, которые нужны шаблону PDF.
func (r *Reports) FindForRender(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).
		Preload("Engineer").
		Preload("Customer.Products").
		Preload("Schedule").
		Preload("Services").
		Preload("Category").
		First(&report, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	report.FillServiceIDs()
	return &report, nil
}

// FindOwned ищет отчёт только среди отчётов указанного инженера.
func (r *Reports) FindOwned(ctx context.Context, id, engineerID string) (*models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).
		Where("id = ? AND engineer_id = ?", id, engineerID).
		First(&report).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (r *Reports) List(ctx context.Context) ([]models.Report, error) {
	return r.list(ctx, r.db)
}

func (r *Reports) ListByEngineer(ctx context.Context, engineerID string) ([]models.Report, error) {
	return r.list(ctx, r.db.Where("engineer_id = ?", engineerID))
}

func (r *Reports) list(ctx context.Context, q *gorm.DB) ([]models.Report, error) {
	var reports []models.Report
	err := q.WithContext(ctx).
		Preload("Engineer").
		Preload("Customer").
		Preload("Category").
		Preload("Services").
		Order("report_date desc").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	for i := range reports {
		reports[i].FillServiceIDs()
	}
	return reports, nil
}

// ApplySignatures фиксирует результат подписания. Пустые поля не меняются.
func (r *Reports) ApplySignatures(ctx context.Context, id string, upd models.SignatureUpdate) error {
	changes := map[string]interface{}{}
	if upd.EngineerSign != nil {
		changes["engineer_sign"] = *upd.EngineerSign
	}
	if upd.CustomerSign != nil {
		changes["customer_sign"] = *upd.CustomerSign
	}
	if upd.Stage != "" {
		changes["signature_stage"] = upd.Stage
	}
	if upd.Status != "" {
		changes["status"] = upd.Status
	}
	if len(changes) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.ErrNotFound, "Report not found.")
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrNotFound, "Report not found.", err)
	}
	return err
}

func refError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.New(apperrors.ErrValidation, msg)
	}
	return err
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
