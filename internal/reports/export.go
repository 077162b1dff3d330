package reports

import (
	"context"
	"fmt"
	"io"
	"strings"

	"field-service/internal/models"

	"github.com/xuri/excelize/v2"
)

const registerSheet = "Reports"

var registerHeader = []interface{}{
	"Report ID", "Report date", "Customer", "Company", "Engineer",
	"Category", "Services", "Service status", "Status", "Signature stage",
}

// Export пишет реестр отчётов в xlsx.
func (m *Manager) Export(ctx context.Context, w io.Writer) error {
	reports, err := m.reports.List(ctx)
	if err != nil {
		return err
	}
	return WriteRegister(w, reports)
}

func WriteRegister(w io.Writer, reports []models.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetSheetRow(registerSheet, "A1", &registerHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(registerSheet, "A1", "J1", header); err != nil {
		return err
	}
	if err := f.SetColWidth(registerSheet, "A", "J", 20); err != nil {
		return err
	}

	for i, r := range reports {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.ID,
			r.ReportDate.Format("2006-01-02"),
			customerField(r.Customer, func(c *models.Customer) string { return c.Name }),
			customerField(r.Customer, func(c *models.Customer) string { return c.Company }),
			engineerName(r.Engineer),
			categoryName(r.Category),
			serviceNames(r.Services),
			string(r.ServiceStatus),
			string(r.Status),
			string(r.SignatureStage),
		}
		if err := f.SetSheetRow(registerSheet, cell, &row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func customerField(c *models.Customer, get func(*models.Customer) string) string {
	if c == nil {
		return ""
	}
	return get(c)
}

func engineerName(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Name
}

func categoryName(c *models.Category) string {
	if c == nil {
		return ""
	}
	return c.Name
}

func serviceNames(services []models.Service) string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}
