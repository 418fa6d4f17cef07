package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"homecare-visit-bot/pkg"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository wraps the archive tables: the raw inbound message history and
// the finished visit reports.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// InsertInboundMessage records one inbound message.  Media bytes are not
// archived, only whether the message carried any.
func (r *Repository) InsertInboundMessage(ctx context.Context, ev pkg.Event) error {
	receivedAt := ev.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO inbound_messages (id, sender_id, chat_id, message_id, kind, body, has_media, received_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), ev.SenderID, ev.ChatID, ev.MessageID, string(ev.Kind), ev.Body, ev.Kind != pkg.KindText, receivedAt,
	)
	return err
}

// InsertReport stores a finished report and returns its id.
func (r *Repository) InsertReport(ctx context.Context, senderID string, notes, files int, report *pkg.Report) (string, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	id := uuid.New()
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO visit_reports (id, sender_id, notes_count, files_count, report)
         VALUES ($1, $2, $3, $4, $5)`,
		id, senderID, notes, files, payload,
	)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ListReports returns the most recent reports, newest first.
func (r *Repository) ListReports(ctx context.Context, limit int) ([]pkg.ArchivedReport, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, sender_id, notes_count, files_count, report, created_at
         FROM visit_reports
         ORDER BY created_at DESC
         LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.ArchivedReport
	for rows.Next() {
		a, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// GetReport loads one report by id.
func (r *Repository) GetReport(ctx context.Context, id string) (*pkg.ArchivedReport, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, sender_id, notes_count, files_count, report, created_at
         FROM visit_reports
         WHERE id = $1`, parsed)
	a, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(s scanner) (*pkg.ArchivedReport, error) {
	var a pkg.ArchivedReport
	var raw []byte
	if err := s.Scan(&a.ID, &a.SenderID, &a.NotesCount, &a.FilesCount, &raw, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Report = &pkg.Report{}
	if err := json.Unmarshal(raw, a.Report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", a.ID, err)
	}
	return &a, nil
}
