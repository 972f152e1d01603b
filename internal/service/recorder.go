package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	cfotel "github.com/Strob0t/careline/internal/adapter/otel"
	"github.com/Strob0t/careline/internal/domain/gate"
	"github.com/Strob0t/careline/internal/domain/session"
	"github.com/Strob0t/careline/internal/domain/task"
	"github.com/Strob0t/careline/internal/port/recorder"
)

// Recorder persists each finished session exactly once.
type Recorder struct {
	sink     recorder.Sink
	sinkName string
	metrics  *cfotel.Metrics
	now      func() time.Time
}

// NewRecorder creates a Recorder writing to sink. metrics may be nil.
func NewRecorder(sink recorder.Sink, sinkName string, metrics *cfotel.Metrics) *Recorder {
	return &Recorder{sink: sink, sinkName: sinkName, metrics: metrics, now: time.Now}
}

// Claim marks a closed session as recorded and reports whether the caller
// owns its record. It runs on the working copy of the closing turn, so the
// mark commits together with the close and a failed commit claims nothing.
func (r *Recorder) Claim(sess *session.Session) bool {
	if !sess.Closed || sess.Recorded {
		return false
	}
	sess.Recorded = true
	return true
}

// Record writes the record of a claimed session. It is called once, after the
// claiming commit; a failed write is logged and never retried.
func (r *Recorder) Record(ctx context.Context, t *task.Task, sess *session.Session) error {
	rec := BuildRecord(t, sess, r.now())

	ctx, span := cfotel.StartRecordSpan(ctx, sess.ID, r.sinkName)
	err := r.sink.Write(ctx, rec)
	cfotel.EndSpan(span, err)
	if err != nil {
		slog.ErrorContext(ctx, "session record write failed", "session_id", sess.ID, "sink", r.sinkName, "error", err)
		return fmt.Errorf("record session %s: %w", sess.ID, err)
	}

	r.metrics.RecordSession(ctx, string(sess.EndReason), sess.Duration(r.now()))
	slog.InfoContext(ctx, "session recorded",
		"session_id", sess.ID,
		"sink", r.sinkName,
		"completion_percentage", rec.Metadata.CompletionPercentage,
		"turns", rec.Metadata.TotalTurns,
		"api_calls", rec.Metadata.APICallsMade,
		"end_reason", sess.EndReason,
	)
	return nil
}

// BuildRecord assembles the complete record in memory.
func BuildRecord(t *task.Task, sess *session.Session, now time.Time) *session.Record {
	end := sess.EndedAt
	if end.IsZero() {
		end = now.UTC()
	}
	duration := end.Sub(sess.StartedAt).Seconds()

	transcript := make([]session.TranscriptEntry, 0, len(t.History))
	for i := range t.History {
		m := &t.History[i]
		role := "user"
		if m.Role == task.RoleAgent {
			role = "assistant"
		}
		transcript = append(transcript, session.TranscriptEntry{
			TurnNumber: i + 1,
			Role:       role,
			Message:    m.Text(),
			MessageID:  m.MessageID,
		})
	}

	calls := append([]session.CallRecord(nil), sess.Calls...)
	if calls == nil {
		calls = []session.CallRecord{}
	}

	return &session.Record{
		Metadata: session.RecordMetadata{
			SessionID:            sess.ID,
			TaskID:               t.ID,
			ContextID:            t.ContextID,
			StartTime:            sess.StartedAt,
			EndTime:              end,
			DurationSeconds:      duration,
			DurationMinutes:      math.Round(duration/60*100) / 100,
			CompletionPercentage: gate.CompletionPercentage(sess.Data),
			TotalTurns:           len(t.History),
			APICallsMade:         len(sess.Calls),
			EndReason:            sess.EndReason,
		},
		PatientData:         sess.Data.Snapshot(),
		ConversationHistory: transcript,
		APICallLog:          calls,
	}
}
