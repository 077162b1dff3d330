// Package reports ведёт PDF сервисных отчётов: рендер, подписи инженера и клиента,
// рассылка и переходы статусов.
package reports

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"field-service/internal/apperrors"
	"field-service/internal/lock"
	"field-service/internal/metrics"
	"field-service/internal/models"
	"field-service/internal/notify"

	"go.uber.org/zap"
)

const (
	auditEntity     = "report"
	auditEntityUser = "user"

	ActionCreate           = "create"
	ActionUpdate           = "update"
	ActionEngineerSign     = "engineer_sign"
	ActionSignatureRequest = "signature_request"
	ActionCustomerSign     = "customer_sign"
	ActionSignDirect       = "sign_direct"
	ActionSignatureUpdate  = "signature_update"

	attachmentEngineerSigned = "Service_Report.pdf"
	attachmentFinal          = "Signed_Service_Report.pdf"
)

type Repository interface {
	Create(ctx context.Context, in models.CreateReportInput) (*models.Report, error)
	Update(ctx context.Context, id string, in models.UpdateReportInput, resetSignatures bool) (*models.Report, error)
	FindByID(ctx context.Context, id string) (*models.Report, error)
	FindOwned(ctx context.Context, id, engineerID string) (*models.Report, error)
	List(ctx context.Context) ([]models.Report, error)
	ListByEngineer(ctx context.Context, engineerID string) ([]models.Report, error)
	ApplySignatures(ctx context.Context, id string, upd models.SignatureUpdate) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateSignature(ctx context.Context, id, signature string) error
}

type AuditTrail interface {
	Record(ctx context.Context, userID, entity, entityID, action, details string) error
	ForEntity(ctx context.Context, entity, entityID string) ([]models.AuditLog, error)
}

// Archiver копирует итоговый PDF во внешнее хранилище.
type Archiver interface {
	Archive(ctx context.Context, reportID, path string) error
}

type Deps struct {
	Reports    Repository
	Users      UserRepository
	Store      *Store
	Compositor *Compositor
	Notifier   notify.Sender
	Locker     lock.Locker
	Archiver   Archiver
	Audit      AuditTrail
	Metrics    *metrics.Metrics
	Log        *zap.Logger

	AdminEmail       string
	SignaturePageURL string
}

// Manager ведёт отчёт по жизненному циклу DRAFT -> REVIEW -> SIGNED.
type Manager struct {
	reports    Repository
	users      UserRepository
	store      *Store
	compositor *Compositor
	notifier   notify.Sender
	locker     lock.Locker
	archiver   Archiver
	audit      AuditTrail
	metrics    *metrics.Metrics
	log        *zap.Logger

	adminEmail       string
	signaturePageURL string
}

func NewManager(d Deps) *Manager {
	m := &Manager{
		reports:          d.Reports,
		users:            d.Users,
		store:            d.Store,
		compositor:       d.Compositor,
		notifier:         d.Notifier,
		locker:           d.Locker,
		archiver:         d.Archiver,
		audit:            d.Audit,
		metrics:          d.Metrics,
		log:              d.Log,
		adminEmail:       d.AdminEmail,
		signaturePageURL: strings.TrimRight(d.SignaturePageURL, "/"),
	}
	if m.locker == nil {
		m.locker = lock.NewKeyedMutex()
	}
	if m.compositor == nil {
		m.compositor = NewCompositor(nil)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

// canTransition: допустимые переходы статуса отчёта. SIGNED конечный.
func canTransition(from, to models.ReportStatus) bool {
	switch from {
	case models.ReportDraft:
		return to == models.ReportReview || to == models.ReportSigned
	case models.ReportReview:
		return to == models.ReportReview || to == models.ReportSigned
	default:
		return false
	}
}

func (m *Manager) Create(ctx context.Context, in models.CreateReportInput, actorID string) (report *models.Report, err error) {
	defer func() { m.metrics.Operation(ActionCreate, err) }()

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	report, err = m.reports.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	m.record(ctx, actorID, auditEntity, report.ID, ActionCreate,
		fmt.Sprintf("status=%s services=%d", report.Status, len(report.ServiceIDs)))
	return report, nil
}

func validateCreate(in models.CreateReportInput) error {
	var missing []string
	check := func(name string, empty bool) {
		if empty {
			missing = append(missing, name)
		}
	}
	check("scheduleId", in.ScheduleID == "")
	check("engineerId", in.EngineerID == "")
	check("customerId", in.CustomerID == "")
	check("serviceIds", len(in.ServiceIDs) == 0)
	check("categoryId", in.CategoryID == "")
	check("problem", strings.TrimSpace(in.Problem) == "")
	check("processingTimeStart", in.ProcessingTimeStart == nil)
	check("processingTimeEnd", in.ProcessingTimeEnd == nil)
	check("reportDate", in.ReportDate == nil)
	check("serviceStatus", in.ServiceStatus == "")
	check("status", in.Status == "")
	if len(missing) > 0 {
		return apperrors.New(apperrors.ErrValidation, "Missing required fields: "+strings.Join(missing, ", "))
	}

	for _, id := range in.ServiceIDs {
		if id == "" {
			return apperrors.New(apperrors.ErrValidation, "Some service IDs are invalid")
		}
	}
	if !in.ServiceStatus.Valid() {
		return apperrors.New(apperrors.ErrValidation, "Invalid serviceStatus")
	}
	if !in.Status.Valid() {
		return apperrors.New(apperrors.ErrValidation, "Invalid status")
	}
	// SIGNED выставляется только после наложения обеих подписей
	if in.Status == models.ReportSigned {
		return apperrors.New(apperrors.ErrValidation, "A new report cannot be SIGNED")
	}
	if in.ProcessingTimeEnd.Before(*in.ProcessingTimeStart) {
		return apperrors.New(apperrors.ErrValidation, "processingTimeEnd is before processingTimeStart")
	}
	return nil
}

// Update меняет поля неподписанного отчёта. Если инженер уже подписал отчёт,
// подписи сбрасываются и отчёт возвращается в DRAFT. Старые PDF удаляются,
// следующий запрос перерисует их по новым данным.
func (m *Manager) Update(ctx context.Context, reportID string, in models.UpdateReportInput, actorID string) (report *models.Report, err error) {
	defer func() { m.metrics.Operation(ActionUpdate, err) }()

	if reportID == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "Report ID is required")
	}
	if err := validateUpdate(in); err != nil {
		return nil, err
	}

	unlock, err := m.locker.Lock(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("lock report %s: %w", reportID, err)
	}
	defer unlock()

	current, err := m.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.ReportSigned {
		return nil, apperrors.New(apperrors.ErrConflict, "Report is already signed")
	}

	start, end := current.ProcessingTimeStart, current.ProcessingTimeEnd
	if in.ProcessingTimeStart != nil {
		start = *in.ProcessingTimeStart
	}
	if in.ProcessingTimeEnd != nil {
		end = *in.ProcessingTimeEnd
	}
	if end.Before(start) {
		return nil, apperrors.New(apperrors.ErrValidation, "processingTimeEnd is before processingTimeStart")
	}

	reset := current.SignatureStage != models.StageNone
	report, err = m.reports.Update(ctx, reportID, in, reset)
	if err != nil {
		return nil, err
	}

	if err := m.store.Remove(reportID); err != nil {
		m.log.Warn("failed to remove stale report artifacts", zap.String("report_id", reportID), zap.Error(err))
	}

	m.record(ctx, actorID, auditEntity, reportID, ActionUpdate,
		fmt.Sprintf("services=%d signatures_reset=%t", len(report.ServiceIDs), reset))
	return report, nil
}

func validateUpdate(in models.UpdateReportInput) error {
	if in.Empty() {
		return apperrors.New(apperrors.ErrValidation, "No fields to update")
	}

	blank := func(p *string) bool { return p != nil && strings.TrimSpace(*p) == "" }
	switch {
	case blank(in.ScheduleID):
		return apperrors.New(apperrors.ErrValidation, "Invalid schedule ID")
	case blank(in.CustomerID):
		return apperrors.New(apperrors.ErrValidation, "Invalid engineer or customer ID")
	case blank(in.CategoryID):
		return apperrors.New(apperrors.ErrValidation, "Invalid category ID")
	case blank(in.Problem):
		return apperrors.New(apperrors.ErrValidation, "problem must not be empty")
	}

	// nil значит "не менять", пустой список не допускается
	if in.ServiceIDs != nil {
		if len(in.ServiceIDs) == 0 {
			return apperrors.New(apperrors.ErrValidation, "serviceIds must not be empty")
		}
		for _, id := range in.ServiceIDs {
			if id == "" {
				return apperrors.New(apperrors.ErrValidation, "Some service IDs are invalid")
			}
		}
	}
	if in.ServiceStatus != nil && !in.ServiceStatus.Valid() {
		return apperrors.New(apperrors.ErrValidation, "Invalid serviceStatus")
	}
	return nil
}

// EngineerSign накладывает подпись инженера на базовый PDF и переводит отчёт в REVIEW.
func (m *Manager) EngineerSign(ctx context.Context, reportID, signature, actorID string) (path string, err error) {
	defer func() { m.metrics.Operation(ActionEngineerSign, err) }()

	if reportID == "" || signature == "" {
		return "", apperrors.New(apperrors.ErrValidation, "Report ID and signature are required")
	}
	if _, err := DecodeSignature(signature); err != nil {
		return "", err
	}

	unlock, err := m.locker.Lock(ctx, reportID)
	if err != nil {
		return "", fmt.Errorf("lock report %s: %w", reportID, err)
	}
	defer unlock()

	return m.engineerSign(ctx, reportID, signature, actorID)
}

// engineerSign вызывается под блокировкой отчёта.
func (m *Manager) engineerSign(ctx context.Context, reportID, signature, actorID string) (string, error) {
	report, err := m.reports.FindByID(ctx, reportID)
	if err != nil {
		return "", err
	}
	if err := ensureMutable(report, models.ReportReview); err != nil {
		return "", err
	}

	base, err := m.store.EnsureBase(ctx, reportID)
	if err != nil {
		return "", err
	}

	signed := m.store.PathFor(reportID, VariantEngineerSigned)
	if err := m.compositor.Overlay(base, signed, signature, SlotEngineer); err != nil {
		return "", err
	}
	m.metrics.Signature(string(SlotEngineer))

	err = m.reports.ApplySignatures(ctx, reportID, models.SignatureUpdate{
		EngineerSign: &signature,
		Stage:        models.StageEngineerSigned,
		Status:       models.ReportReview,
	})
	if err != nil {
		return "", fmt.Errorf("save engineer signature: %w", err)
	}

	m.recordArtifact(ctx, actorID, reportID, ActionEngineerSign, signed, VariantEngineerSigned)
	m.log.Info("engineer signature applied", zap.String("report_id", reportID), zap.String("path", signed))
	return signed, nil
}

// RequestCustomerSignature подписывает отчёт инженером и отправляет клиенту
// письмо со ссылкой на страницу подписи и PDF во вложении.
func (m *Manager) RequestCustomerSignature(ctx context.Context, reportID, signature, customerEmail, actorID string) (err error) {
	defer func() { m.metrics.Operation(ActionSignatureRequest, err) }()

	if reportID == "" || signature == "" || customerEmail == "" {
		return apperrors.New(apperrors.ErrValidation, "Report ID, signature, and customer email are required")
	}
	if err := validateEmail(customerEmail); err != nil {
		return err
	}
	if _, err := DecodeSignature(signature); err != nil {
		return err
	}

	unlock, err := m.locker.Lock(ctx, reportID)
	if err != nil {
		return fmt.Errorf("lock report %s: %w", reportID, err)
	}
	defer unlock()

	signed, err := m.engineerSign(ctx, reportID, signature, actorID)
	if err != nil {
		return err
	}

	report, err := m.reports.FindByID(ctx, reportID)
	if err != nil {
		return err
	}

	pdf, err := os.ReadFile(signed)
	if err != nil {
		return fmt.Errorf("read signed report: %w", err)
	}

	err = m.send(ctx, notify.Message{
		To:       []string{customerEmail},
		Template: notify.TemplateSignatureRequest,
		Values: map[string]string{
			"customer_name": customerName(report),
			"signature_url": m.signaturePageURL + "/" + reportID,
		},
		Attachments: []notify.Attachment{{Name: attachmentEngineerSigned, Content: pdf}},
	})
	if err != nil {
		return err
	}

	m.record(ctx, actorID, auditEntity, reportID, ActionSignatureRequest, "to="+customerEmail)
	return nil
}

// CustomerSign накладывает подпись клиента на PDF, подписанный инженером,
// рассылает итог клиенту и администратору и закрывает отчёт.
func (m *Manager) CustomerSign(ctx context.Context, reportID, customerSignature, customerEmail, actorID string) (err error) {
	defer func() { m.metrics.Operation(ActionCustomerSign, err) }()

	if reportID == "" || customerSignature == "" || customerEmail == "" {
		return apperrors.New(apperrors.ErrValidation, "Report ID, customer signature, and customer email are required")
	}
	if err := validateEmail(customerEmail); err != nil {
		return err
	}
	if _, err := DecodeSignature(customerSignature); err != nil {
		return err
	}

	unlock, err := m.locker.Lock(ctx, reportID)
	if err != nil {
		return fmt.Errorf("lock report %s: %w", reportID, err)
	}
	defer unlock()

	report, err := m.reports.FindByID(ctx, reportID)
	if err != nil {
		return err
	}
	if err := ensureMutable(report, models.ReportSigned); err != nil {
		return err
	}

	// без подписи инженера перерисовывать нечего: базовый PDF клиенту не отдаём
	if report.SignatureStage == models.StageNone || !m.store.Exists(reportID, VariantEngineerSigned) {
		return apperrors.New(apperrors.ErrNotFound, "Report not found!")
	}

	signed := m.store.PathFor(reportID, VariantEngineerSigned)
	final := m.store.PathFor(reportID, VariantFinal)
	if err := m.compositor.Overlay(signed, final, customerSignature, SlotCustomer); err != nil {
		return err
	}
	m.metrics.Signature(string(SlotCustomer))

	err = m.reports.ApplySignatures(ctx, reportID, models.SignatureUpdate{
		CustomerSign: &customerSignature,
		Stage:        models.StageDualSigned,
	})
	if err != nil {
		return fmt.Errorf("save customer signature: %w", err)
	}

	pdf, err := os.ReadFile(final)
	if err != nil {
		return fmt.Errorf("read final report: %w", err)
	}

	recipients := []string{customerEmail}
	if m.adminEmail != "" && !strings.EqualFold(m.adminEmail, customerEmail) {
		recipients = append(recipients, m.adminEmail)
	}
	err = m.send(ctx, notify.Message{
		To:       recipients,
		Template: notify.TemplateFinalReport,
		Values: map[string]string{
			"customer_name": customerName(report),
			"report_id":     reportID,
		},
		Attachments: []notify.Attachment{{Name: attachmentFinal, Content: pdf}},
	})
	if err != nil {
		return err
	}

	// SIGNED только после того, как итог ушёл адресатам
	if err := m.reports.ApplySignatures(ctx, reportID, models.SignatureUpdate{Status: models.ReportSigned}); err != nil {
		return fmt.Errorf("mark report signed: %w", err)
	}

	m.archive(ctx, reportID, final)
	m.recordArtifact(ctx, actorID, reportID, ActionCustomerSign, final, VariantFinal)
	m.log.Info("customer signature applied", zap.String("report_id", reportID), zap.String("path", final))
	return nil
}

// SignDirectly: инженер и клиент подписывают на месте. Подпись инженера
// берётся из его профиля.
func (m *Manager) SignDirectly(ctx context.Context, reportID, customerSignature, engineerID string) (path string, err error) {
	defer func() { m.metrics.Operation(ActionSignDirect, err) }()

	if reportID == "" || customerSignature == "" {
		return "", apperrors.New(apperrors.ErrValidation, "Report ID and customer signature are required")
	}
	if _, err := DecodeSignature(customerSignature); err != nil {
		return "", err
	}

	unlock, err := m.locker.Lock(ctx, reportID)
	if err != nil {
		return "", fmt.Errorf("lock report %s: %w", reportID, err)
	}
	defer unlock()

	report, err := m.reports.FindOwned(ctx, reportID, engineerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.Wrap(apperrors.ErrUnauthorized, "Report not found or you are not assigned to it", err)
		}
		return "", err
	}
	if err := ensureMutable(report, models.ReportSigned); err != nil {
		return "", err
	}

	engineer, err := m.users.FindByID(ctx, engineerID)
	if err != nil {
		return "", err
	}
	if !engineer.HasSignature() {
		return "", apperrors.New(apperrors.ErrValidation, "Engineer signature not found.")
	}
	engineerSignature := *engineer.Signature

	base, err := m.store.EnsureBase(ctx, reportID)
	if err != nil {
		return "", err
	}

	signed := m.store.PathFor(reportID, VariantEngineerSigned)
	if err := m.compositor.Overlay(base, signed, engineerSignature, SlotEngineer); err != nil {
		return "", err
	}
	m.metrics.Signature(string(SlotEngineer))

	final := m.store.PathFor(reportID, VariantFinal)
	if err := m.compositor.Overlay(signed, final, customerSignature, SlotCustomer); err != nil {
		return "", err
	}
	m.metrics.Signature(string(SlotCustomer))

	err = m.reports.ApplySignatures(ctx, reportID, models.SignatureUpdate{
		EngineerSign: &engineerSignature,
		CustomerSign: &customerSignature,
		Stage:        models.StageDualSigned,
		Status:       models.ReportSigned,
	})
	if err != nil {
		return "", fmt.Errorf("save signatures: %w", err)
	}

	m.archive(ctx, reportID, final)
	m.recordArtifact(ctx, engineerID, reportID, ActionSignDirect, final, VariantFinal)
	m.log.Info("report signed on site", zap.String("report_id", reportID), zap.String("path", final))
	return final, nil
}

// Preview перерисовывает базовый PDF по текущим данным отчёта.
func (m *Manager) Preview(ctx context.Context, reportID string) (path string, err error) {
	defer func() { m.metrics.Operation("preview", err) }()

	if reportID == "" {
		return "", apperrors.New(apperrors.ErrValidation, "Report ID is required")
	}

	unlock, err := m.locker.Lock(ctx, reportID)
	if err != nil {
		return "", fmt.Errorf("lock report %s: %w", reportID, err)
	}
	defer unlock()

	path, err = m.store.Regenerate(ctx, reportID)
	if err != nil {
		return "", err
	}
	if info, statErr := os.Stat(path); statErr == nil {
		m.metrics.ArtifactSize(string(VariantBase), info.Size())
	}
	return path, nil
}

func (m *Manager) Get(ctx context.Context, reportID string) (*models.Report, error) {
	return m.reports.FindByID(ctx, reportID)
}

func (m *Manager) List(ctx context.Context) ([]models.Report, error) {
	return m.reports.List(ctx)
}

func (m *Manager) ListByEngineer(ctx context.Context, engineerID string) ([]models.Report, error) {
	return m.reports.ListByEngineer(ctx, engineerID)
}

// History возвращает журнал действий по отчёту, от старых к новым.
func (m *Manager) History(ctx context.Context, reportID string) ([]models.AuditLog, error) {
	if _, err := m.reports.FindByID(ctx, reportID); err != nil {
		return nil, err
	}
	return m.audit.ForEntity(ctx, auditEntity, reportID)
}

// UpdateStoredSignature сохраняет подпись инженера для SignDirectly.
func (m *Manager) UpdateStoredSignature(ctx context.Context, userID, signature string) (err error) {
	defer func() { m.metrics.Operation(ActionSignatureUpdate, err) }()

	if signature == "" {
		return apperrors.New(apperrors.ErrValidation, "Signature is required")
	}
	if _, err := DecodeSignature(signature); err != nil {
		return err
	}
	if err := m.users.UpdateSignature(ctx, userID, signature); err != nil {
		return err
	}

	m.record(ctx, userID, auditEntityUser, userID, ActionSignatureUpdate, "")
	return nil
}

// ensureMutable: подписанный отчёт заморожен, остальные переходы сверяются с canTransition.
func ensureMutable(report *models.Report, to models.ReportStatus) error {
	if report.Status == models.ReportSigned {
		return apperrors.New(apperrors.ErrConflict, "Report is already signed")
	}
	if !canTransition(report.Status, to) {
		return apperrors.New(apperrors.ErrConflict,
			fmt.Sprintf("Cannot change report status from %s to %s", report.Status, to))
	}
	return nil
}

func (m *Manager) send(ctx context.Context, msg notify.Message) error {
	if m.notifier == nil {
		return apperrors.New(apperrors.ErrDependency, "Email delivery is not configured")
	}
	err := m.notifier.Send(ctx, msg)
	m.metrics.Email(msg.Template, err)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDependency, "Failed to send email. Please try again later.", err)
	}
	return nil
}

func (m *Manager) archive(ctx context.Context, reportID, path string) {
	if m.archiver == nil {
		return
	}
	if err := m.archiver.Archive(ctx, reportID, path); err != nil {
		// архив вспомогательный, отчёт уже подписан
		m.log.Warn("failed to archive final report", zap.String("report_id", reportID), zap.Error(err))
	}
}

func (m *Manager) recordArtifact(ctx context.Context, actorID, reportID, action, path string, v Variant) {
	digest, size, err := Digest(path)
	if err != nil {
		m.log.Warn("failed to hash artifact", zap.String("path", path), zap.Error(err))
		m.record(ctx, actorID, auditEntity, reportID, action, "artifact="+filepath.Base(path))
		return
	}
	m.metrics.ArtifactSize(string(v), size)
	m.record(ctx, actorID, auditEntity, reportID, action,
		fmt.Sprintf("artifact=%s blake3=%s", filepath.Base(path), digest))
}

func (m *Manager) record(ctx context.Context, actorID, entity, entityID, action, details string) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Record(ctx, actorID, entity, entityID, action, details); err != nil {
		m.log.Warn("failed to write audit log",
			zap.String("entity_id", entityID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func validateEmail(addr string) error {
	if _, err := mail.ParseAddress(addr); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "Invalid customer email", err)
	}
	return nil
}

func customerName(r *models.Report) string {
	if r.Customer == nil || r.Customer.Name == "" {
		return "Customer"
	}
	return r.Customer.Name
}
