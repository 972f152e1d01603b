// Package filerecord writes finished session records as JSON files.
package filerecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/port/recorder"
)

var _ recorder.Sink = (*Sink)(nil)

// Sink writes one file per session into a directory.
type Sink struct {
	dir string
	now func() time.Time
}

// New creates a Sink writing into dir. The directory is created on first write.
func New(dir string) *Sink {
	return &Sink{dir: dir, now: time.Now}
}

// FileName returns healthcare_session_<YYYYmmdd_HHMMSS>_<first 8 of id>.json.
func FileName(sessionID string, at time.Time) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("healthcare_session_%s_%s.json", at.Format("20060102_150405"), short)
}

// Write stores the record atomically: it is written to a temp file in the
// same directory and renamed into place, so readers never see a partial
// file. An existing file for the same name is never replaced.
func (s *Sink) Write(ctx context.Context, rec *session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	path := filepath.Join(s.dir, FileName(rec.Metadata.SessionID, s.now()))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("session record %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat session record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".healthcare_session_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }() // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename session record: %w", err)
	}
	return nil
}
