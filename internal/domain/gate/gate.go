// Package gate decides whether enough session data is present for an
// external call to fire. All functions are pure and never modify their input.
package gate

import "github.com/Strob0t/careline/internal/domain/session"

// Requirement is an ordered list of fields that must all be non-empty.
type Requirement []session.Field

// Fixed requirements per call type.
var (
	Triage       = Requirement{session.FieldReason}
	Discovery    = Requirement{session.FieldName, session.FieldDateOfBirth, session.FieldState}
	Eligibility  = Requirement{session.FieldName, session.FieldDateOfBirth, session.FieldMemberID, session.FieldPayer, session.FieldProviderName}
	Confirmation = Requirement{session.FieldName, session.FieldPreferredDate}

	// Overall is the reporting set behind CompletionPercentage. It never
	// gates a call.
	Overall = Requirement{
		session.FieldName, session.FieldPhone, session.FieldReason, session.FieldDateOfBirth,
		session.FieldState, session.FieldProviderName, session.FieldPreferredDate, session.FieldPreferredTime,
	}
)

// Result is the outcome of Evaluate. Missing keeps the requirement's order.
type Result struct {
	Ready   bool
	Missing []session.Field
}

// Evaluate reports whether every required field is present in data.
func Evaluate(required Requirement, data session.Data) Result {
	var missing []session.Field
	for _, f := range required {
		if !data.Has(f) {
			missing = append(missing, f)
		}
	}
	return Result{Ready: len(missing) == 0, Missing: missing}
}

// CompletionPercentage is the share of the Overall set that is filled, in
// the range [0, 100]. It is computed from data on every call.
func CompletionPercentage(data session.Data) float64 {
	if len(Overall) == 0 {
		return 0
	}
	filled := 0
	for _, f := range Overall {
		if data.Has(f) {
			filled++
		}
	}
	return float64(filled) / float64(len(Overall)) * 100
}
