package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sparkleclean/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

// Exporter writes booking listings to xlsx workbooks under a configured
// directory.
type Exporter struct {
	path   string
	logger *zerolog.Logger
}

func NewExporter(path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{path: path, logger: logger}
}

// BookingsWorkbook renders one row per booking and saves the file, returning
// its path.
func (e *Exporter) BookingsWorkbook(bookings []models.Booking, titleFor func(string) string) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	if titleFor == nil {
		titleFor = func(id string) string { return id }
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{
		"ID", "Booking #", "Name", "Email", "Phone", "Address",
		"Service", "Date", "Time", "Notes", "Status", "Created",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, b := range bookings {
		row := i + 2
		values := []any{
			b.ID, b.BookingNumber, b.Name, b.Email, b.Phone, b.Address,
			titleFor(b.Service), b.Date, b.Time, b.Notes, b.Status,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		if styleID, err := statusStyle(f, b.Status); err == nil {
			cell, _ := excelize.CoordinatesToCellName(11, row)
			_ = f.SetCellStyle(sheetName, cell, cell, styleID)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 12)
	_ = f.SetColWidth(sheetName, "C", "F", 22)
	_ = f.SetColWidth(sheetName, "G", "L", 16)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_export_%s.xlsx", time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("bookings workbook created")
	return filePath, nil
}

func statusStyle(f *excelize.File, status string) (int, error) {
	var color string
	switch status {
	case models.StatusConfirmed:
		color = "#C6EFCE"
	case models.StatusRejected:
		color = "#FFC7CE"
	default:
		color = "#FFEB9C"
	}
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
}
