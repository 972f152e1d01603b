package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/port/recorder"
)

var (
	// ErrAlreadyRecorded is returned when a session id was written before.
	ErrAlreadyRecorded = errors.New("session already recorded")
	// ErrRecordNotFound is returned by Get for unknown session ids.
	ErrRecordNotFound = errors.New("session record not found")
)

// DB is the subset of *pgxpool.Pool the sink uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ recorder.Sink = (*RecordSink)(nil)

// RecordSink stores finished sessions in the session_records table. The
// summary columns are copied out of the record for querying; the full record
// is kept as JSONB.
type RecordSink struct {
	db DB
}

// NewRecordSink creates a RecordSink on the given pool.
func NewRecordSink(db DB) *RecordSink {
	return &RecordSink{db: db}
}

// Write inserts the record in a single statement. A second write for the
// same session changes nothing and returns ErrAlreadyRecorded.
func (s *RecordSink) Write(ctx context.Context, rec *session.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	m := &rec.Metadata
	tag, err := s.db.Exec(ctx,
		`INSERT INTO session_records (session_id, task_id, context_id, end_reason, started_at, ended_at, completion_percentage, total_turns, api_calls_made, record)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id) DO NOTHING`,
		m.SessionID, m.TaskID, m.ContextID, string(m.EndReason), m.StartTime, m.EndTime,
		m.CompletionPercentage, m.TotalTurns, m.APICallsMade, data)
	if err != nil {
		return fmt.Errorf("insert session record %s: %w", m.SessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", m.SessionID, ErrAlreadyRecorded)
	}
	return nil
}

// Get loads a stored record.
func (s *RecordSink) Get(ctx context.Context, sessionID string) (*session.Record, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT record FROM session_records WHERE session_id = $1`, sessionID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session record %s: %w", sessionID, err)
	}
	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session record %s: %w", sessionID, err)
	}
	return &rec, nil
}
