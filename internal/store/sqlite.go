package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sparkleclean/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore is the local durable backend.
type SQLiteStore struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewSQLiteStore(path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.seedPasswords(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to seed passwords: %w", err)
	}

	logger.Info().Str("path", path).Msg("sqlite store initialized")
	return s, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_number TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            phone TEXT NOT NULL,
            address TEXT NOT NULL,
            service TEXT NOT NULL,
            date TEXT NOT NULL,
            time TEXT NOT NULL,
            notes TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS admin_passwords (
            password TEXT PRIMARY KEY
        )`,
		`CREATE TABLE IF NOT EXISTS notify_tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            last_error TEXT,
            retry_count INTEGER NOT NULL DEFAULT 0,
            next_retry DATETIME,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_number ON bookings(booking_number)`,
		`CREATE INDEX IF NOT EXISTS idx_notify_tasks_status ON notify_tasks(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// seedPasswords installs the default password set on a brand new database so
// the admin view is reachable before any password management happened.
func (s *SQLiteStore) seedPasswords(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_passwords`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, p := range models.DefaultAdminPasswords() {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO admin_passwords (password) VALUES (?)`, p); err != nil {
			return err
		}
	}
	return nil
}

const bookingColumns = `id, booking_number, name, email, phone, address, service, date, time, notes, status, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	var notes sql.NullString
	err := row.Scan(
		&b.ID,
		&b.BookingNumber,
		&b.Name,
		&b.Email,
		&b.Phone,
		&b.Address,
		&b.Service,
		&b.Date,
		&b.Time,
		&notes,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Notes = notes.String
	return &b, nil
}

func (s *SQLiteStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (s *SQLiteStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

	b, err := scanBooking(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *SQLiteStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	query := `
        INSERT INTO bookings (booking_number, name, email, phone, address, service, date, time, notes, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	result, err := s.db.ExecContext(ctx, query,
		booking.BookingNumber,
		booking.Name,
		booking.Email,
		booking.Phone,
		booking.Address,
		booking.Service,
		booking.Date,
		booking.Time,
		booking.Notes,
		booking.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	booking.ID = id
	return nil
}

func (s *SQLiteStore) UpdateBookingStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetBooking(ctx, id)
}

func (s *SQLiteStore) DeleteBooking(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) GetPasswords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT password FROM admin_passwords ORDER BY password`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passwords []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		passwords = append(passwords, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return passwords, nil
}

func (s *SQLiteStore) AddPassword(ctx context.Context, password string) (bool, error) {
	if strings.TrimSpace(password) == "" {
		return false, nil
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO admin_passwords (password) VALUES (?)`, password)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) DeletePassword(ctx context.Context, password string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_passwords`).Scan(&count); err != nil {
		return false, err
	}
	if count <= 1 {
		// The set must never become empty.
		return false, nil
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM admin_passwords WHERE password = ?`, password)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// CreateNotifyTask persists a pending notification task for the worker.
func (s *SQLiteStore) CreateNotifyTask(ctx context.Context, task *models.NotifyTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO notify_tasks (booking_id, payload, status, created_at)
        VALUES (?, ?, ?, ?)`,
		task.BookingID, taskPayload(task), task.Status, task.CreatedAt)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	task.ID = id
	return nil
}

// GetPendingNotifyTasks returns queued tasks whose retry time has passed.
func (s *SQLiteStore) GetPendingNotifyTasks(ctx context.Context, limit int) ([]models.NotifyTask, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, booking_id, payload, status, COALESCE(last_error, ''), retry_count, next_retry, created_at
        FROM notify_tasks
        WHERE status IN ('pending', 'retry') AND (next_retry IS NULL OR next_retry <= ?)
        ORDER BY id LIMIT ?`,
		time.Now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.NotifyTask
	for rows.Next() {
		var t models.NotifyTask
		var payload string
		var nextRetry sql.NullTime
		// next_retry must be selected as the bare column: the driver only
		// converts TEXT to time.Time when the declared column type is a
		// datetime, which an SQL expression does not carry.
		if err := rows.Scan(&t.ID, &t.BookingID, &payload, &t.Status, &t.LastError, &t.RetryCount, &nextRetry, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.NextRetry = t.CreatedAt
		if nextRetry.Valid {
			t.NextRetry = nextRetry.Time
		}
		t.Booking = decodeTaskPayload(payload)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateNotifyTaskStatus records the task outcome and optional retry schedule.
func (s *SQLiteStore) UpdateNotifyTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetry *time.Time) error {
	if nextRetry != nil {
		_, err := s.db.ExecContext(ctx, `
            UPDATE notify_tasks SET status = ?, last_error = ?, retry_count = retry_count + 1, next_retry = ?
            WHERE id = ?`, status, lastError, nextRetry.UTC(), id)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
        UPDATE notify_tasks SET status = ?, last_error = ? WHERE id = ?`, status, lastError, id)
	return err
}

func taskPayload(task *models.NotifyTask) string {
	data, err := json.Marshal(task.Booking)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeTaskPayload(raw string) *models.Booking {
	var b models.Booking
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil
	}
	return &b
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
