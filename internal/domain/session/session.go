package session

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"time"
)

// EndReason explains why a session closed.
type EndReason string

const (
	EndFarewell  EndReason = "farewell"
	EndCompleted EndReason = "completed"
	EndAborted   EndReason = "aborted"
)

// CallRecord is one entry of the external call log.
type CallRecord struct {
	Capability string         `json:"capability"`
	Operation  string         `json:"operation"`
	Request    map[string]any `json:"request,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
	LatencyMs  int64          `json:"latency_ms"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Session is the intake state that travels alongside one task.
type Session struct {
	ID                string       `json:"id"`
	Data              Data         `json:"data"`
	ConsecutiveErrors int          `json:"consecutive_errors"`
	Turns             int          `json:"turns"`
	TriageAttempts    int          `json:"triage_attempts"`
	TriageExhausted   bool         `json:"triage_exhausted"`
	TriageComplete    bool         `json:"triage_complete"`
	TriageNotes       string       `json:"triage_notes,omitempty"`
	TriageCompletedAt time.Time    `json:"triage_completed_at,omitzero"`
	DiscoveryFired    bool         `json:"discovery_fired"`
	EligibilityFired  bool         `json:"eligibility_fired"`
	Calls             []CallRecord `json:"calls"`
	StartedAt         time.Time    `json:"started_at"`
	EndedAt           time.Time    `json:"ended_at,omitzero"`
	EndReason         EndReason    `json:"end_reason,omitempty"`
	Closed            bool         `json:"closed"`
	Recorded          bool         `json:"recorded"`
}

// New starts an empty session.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Data:      make(Data),
		StartedAt: now,
	}
}

// Clone returns a deep copy through a JSON round trip.
func (s *Session) Clone() (*Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var c Session
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Data == nil {
		c.Data = make(Data)
	}
	return &c, nil
}

// AddCall appends a record to the call log.
func (s *Session) AddCall(rec CallRecord) {
	s.Calls = append(s.Calls, rec)
}

// Close marks the session finished. Closing twice keeps the first reason.
func (s *Session) Close(reason EndReason, now time.Time) {
	if s.Closed {
		return
	}
	s.Closed = true
	s.EndReason = reason
	s.EndedAt = now
}

// Duration is the session length; open sessions are measured up to now.
func (s *Session) Duration(now time.Time) time.Duration {
	end := s.EndedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(s.StartedAt)
}

const confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ConfirmationCodeLength is the number of characters in a confirmation code.
const ConfirmationCodeLength = 6

// NewConfirmationCode returns a random uppercase alphanumeric code.
func NewConfirmationCode() string {
	b := make([]byte, ConfirmationCodeLength)
	limit := big.NewInt(int64(len(confirmationAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		b[i] = confirmationAlphabet[n.Int64()]
	}
	return string(b)
}
