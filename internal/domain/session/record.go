package session

import "time"

// RecordMetadata summarizes a finished session.
type RecordMetadata struct {
	SessionID            string    `json:"session_id"`
	TaskID               string    `json:"task_id"`
	ContextID            string    `json:"context_id"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	DurationSeconds      float64   `json:"duration_seconds"`
	DurationMinutes      float64   `json:"duration_minutes"`
	CompletionPercentage float64   `json:"completion_percentage"`
	TotalTurns           int       `json:"total_turns"`
	APICallsMade         int       `json:"api_calls_made"`
	EndReason            EndReason `json:"end_reason"`
}

// TranscriptEntry is one line of the recorded conversation.
type TranscriptEntry struct {
	TurnNumber int    `json:"turn_number"`
	Role       string `json:"role"`
	Message    string `json:"message"`
	MessageID  string `json:"message_id,omitempty"`
}

// Record is the immutable persisted form of a finished session.
type Record struct {
	Metadata            RecordMetadata    `json:"metadata"`
	PatientData         map[string]string `json:"patient_data"`
	ConversationHistory []TranscriptEntry `json:"conversation_history"`
	APICallLog          []CallRecord      `json:"api_call_log"`
}
