// Package storage keeps the WhatsApp outreach registry in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"wedding-rsvp/internal/models"
)

// ErrGuestNotFound is returned for phone numbers that were never invited.
var ErrGuestNotFound = errors.New("guest not found")

const schema = `
CREATE TABLE IF NOT EXISTS guests (
	phone_number TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	token        TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	invited_at   TEXT NOT NULL,
	replied_at   TEXT NOT NULL DEFAULT '',
	last_reply   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS guests_status ON guests(status);
CREATE INDEX IF NOT EXISTS guests_token ON guests(token);
`

const guestColumns = `phone_number, name, token, status, invited_at, replied_at, last_reply`

type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// NewStorage opens (or creates) the registry at path.
func NewStorage(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate storage: %w", err)
	}
	return &Storage{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// AddGuest registers an invited guest. Re-inviting keeps the original invite
// date and any reply already recorded.
func (s *Storage) AddGuest(ctx context.Context, guest models.Guest) error {
	if guest.InvitedDate.IsZero() {
		guest.InvitedDate = s.now()
	}
	if guest.Status == "" {
		guest.Status = models.OutreachPending
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO guests (phone_number, name, token, status, invited_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(phone_number) DO UPDATE SET
	name = excluded.name,
	token = CASE WHEN excluded.token <> '' THEN excluded.token ELSE guests.token END`,
		guest.PhoneNumber, guest.Name, guest.Token, string(guest.Status), formatTime(guest.InvitedDate))
	if err != nil {
		return fmt.Errorf("failed to add guest: %w", err)
	}
	return nil
}

// GetGuest retrieves a guest by phone number.
func (s *Storage) GetGuest(ctx context.Context, phoneNumber string) (*models.Guest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guests WHERE phone_number = ?`, phoneNumber)
	guest, err := scanGuest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGuestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}
	return guest, nil
}

// RecordReply stores the outcome of a guest's reply.
func (s *Storage) RecordReply(ctx context.Context, phoneNumber string, status models.OutreachStatus, reply string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE guests SET status = ?, replied_at = ?, last_reply = ? WHERE phone_number = ?`,
		string(status), formatTime(s.now()), reply, phoneNumber)
	if err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrGuestNotFound
	}
	return nil
}

// GetAllGuests returns all guests in invitation order.
func (s *Storage) GetAllGuests(ctx context.Context) ([]models.Guest, error) {
	return s.query(ctx, `SELECT `+guestColumns+` FROM guests ORDER BY invited_at, phone_number`)
}

// GetGuestsByStatus returns guests filtered by outreach status.
func (s *Storage) GetGuestsByStatus(ctx context.Context, status models.OutreachStatus) ([]models.Guest, error) {
	return s.query(ctx, `SELECT `+guestColumns+` FROM guests WHERE status = ? ORDER BY invited_at, phone_number`, string(status))
}

func (s *Storage) query(ctx context.Context, q string, args ...any) ([]models.Guest, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list guests: %w", err)
	}
	defer rows.Close()

	var guests []models.Guest
	for rows.Next() {
		guest, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		guests = append(guests, *guest)
	}
	return guests, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGuest(row scanner) (*models.Guest, error) {
	var (
		g                  models.Guest
		status             string
		invited, repliedAt string
	)
	if err := row.Scan(&g.PhoneNumber, &g.Name, &g.Token, &status, &invited, &repliedAt, &g.LastReply); err != nil {
		return nil, err
	}
	g.Status = models.OutreachStatus(status)
	g.InvitedDate = parseTime(invited)
	g.ReplyDate = parseTime(repliedAt)
	return &g, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
