// Package capability defines the contracts of the external services a
// conversation turn depends on: field extraction, medical triage and
// insurance verification. Adapters wrap transport failures in
// domain.ErrCapabilityUnavailable or domain.ErrExtractionParse.
package capability

import "context"

// HistoryLine is one recent transcript line handed to extraction.
type HistoryLine struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ExtractionRequest is the input of one extraction call.
type ExtractionRequest struct {
	Utterance string            `json:"utterance"`
	Snapshot  map[string]string `json:"snapshot"`
	History   []HistoryLine     `json:"history,omitempty"`
}

// Extraction is the structured reading of a caller utterance.
type Extraction struct {
	Reply      string         `json:"reply"`
	Fields     map[string]any `json:"fields,omitempty"` //nolint:gosec // validated against the session schema by the caller
	NextAction string         `json:"next_action,omitempty"`
	NeedTriage bool           `json:"need_triage"`
	Done       bool           `json:"done"`
}

// Extractor turns an utterance into a reply and extracted fields.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (Extraction, error)
}

// TriageState is the progress signal of a triage sub-dialog.
type TriageState string

const (
	TriageInProgress    TriageState = "in_progress"
	TriagePresentResult TriageState = "present_result"
	TriagePostResult    TriageState = "post_result"
	TriageFailed        TriageState = "failed"
	TriageCanceled      TriageState = "canceled"
)

// Terminal reports whether the sub-dialog is over.
func (s TriageState) Terminal() bool {
	return s != TriageInProgress
}

// TriageRef correlates follow-up answers with the remote triage task.
type TriageRef struct {
	TaskID    string `json:"taskId"`
	ContextID string `json:"contextId"`
}

// TriageStart opens a triage sub-dialog.
type TriageStart struct {
	Age       int    `json:"age"`
	Sex       string `json:"sex"`
	Complaint string `json:"complaint"`
}

// Assessment is the triage outcome.
type Assessment struct {
	UrgencyLevel string `json:"urgency_level"`
	DoctorType   string `json:"doctor_type"`
	Notes        string `json:"notes,omitempty"`
}

// TriageTurn is the result of Start or Continue. Question is set while the
// sub-dialog is in progress; Summary and Assessment once it has a result.
type TriageTurn struct {
	Ref        TriageRef   `json:"ref"`
	State      TriageState `json:"state"`
	Question   string      `json:"question,omitempty"`
	Summary    string      `json:"summary,omitempty"`
	Assessment *Assessment `json:"assessment,omitempty"`
}

// Triage runs the nested medical triage dialog.
type Triage interface {
	Start(ctx context.Context, req TriageStart) (TriageTurn, error)
	Continue(ctx context.Context, ref TriageRef, answer string) (TriageTurn, error)
}

// DiscoveryRequest asks which insurance covers a patient.
type DiscoveryRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	State       string `json:"state"`
}

// DiscoveryResult is the payer and member id found for a patient.
type DiscoveryResult struct {
	Payer    string `json:"payer"`
	MemberID string `json:"member_id"`
	Raw      string `json:"raw,omitempty"`
}

// EligibilityRequest asks what the patient's plan covers for a provider.
type EligibilityRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	MemberID    string `json:"member_id"`
	Payer       string `json:"payer"`
	Provider    string `json:"provider"`
}

// EligibilityResult carries the copay found, if any.
type EligibilityResult struct {
	Copay string `json:"copay"`
	Raw   string `json:"raw,omitempty"`
}

// Insurance verifies coverage.
type Insurance interface {
	Discovery(ctx context.Context, req DiscoveryRequest) (DiscoveryResult, error)
	Eligibility(ctx context.Context, req EligibilityRequest) (EligibilityResult, error)
}
