package export

import (
	"os"
	"testing"
	"time"

	"sparkleclean/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBookingsWorkbook(t *testing.T) {
	logger := zerolog.New(os.Stdout)
	exporter := NewExporter(t.TempDir(), &logger)

	bookings := []models.Booking{
		{
			ID: 1, BookingNumber: "SPKA1B2C3", Name: "Jane Doe", Email: "jane@example.com",
			Phone: "203-424-9033", Address: "12 Main St", Service: "deep-cleaning",
			Date: "2024-08-01", Time: "10:00", Status: models.StatusPending,
			CreatedAt: time.Date(2024, 7, 20, 9, 30, 0, 0, time.UTC),
		},
		{
			ID: 2, BookingNumber: "SPKZZ99XX", Name: "John Roe", Email: "john@example.com",
			Phone: "555-0000", Address: "4 Oak Ave", Service: "window-cleaning",
			Date: "2024-08-02", Time: "14:00", Status: models.StatusConfirmed,
			CreatedAt: time.Date(2024, 7, 21, 11, 0, 0, 0, time.UTC),
		},
	}

	titleFor := func(id string) string {
		if id == "deep-cleaning" {
			return "Deep Cleaning"
		}
		return id
	}

	path, err := exporter.BookingsWorkbook(bookings, titleFor)
	require.NoError(t, err)
	require.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	// Header plus one row per booking.
	require.Len(t, rows, 3)
	assert.Equal(t, "Booking #", rows[0][1])
	assert.Equal(t, "SPKA1B2C3", rows[1][1])
	assert.Equal(t, "Deep Cleaning", rows[1][6])
	assert.Equal(t, models.StatusConfirmed, rows[2][10])
}

func TestBookingsWorkbookEmpty(t *testing.T) {
	logger := zerolog.New(os.Stdout)
	exporter := NewExporter(t.TempDir(), &logger)

	path, err := exporter.BookingsWorkbook(nil, nil)
	require.NoError(t, err)
	require.FileExists(t, path)
}
