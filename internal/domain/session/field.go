// Package session defines the patient intake data collected during a
// conversation and the per-session turn bookkeeping.
package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field names one entry of the closed SessionData schema.
type Field string

// Fields collected from the caller by extraction.
const (
	FieldName          Field = "name"
	FieldPhone         Field = "phone"
	FieldReason        Field = "reason"
	FieldDateOfBirth   Field = "date_of_birth"
	FieldState         Field = "state"
	FieldProviderName  Field = "provider_name"
	FieldPreferredDate Field = "preferred_date"
	FieldPreferredTime Field = "preferred_time"
	FieldSex           Field = "sex"
)

// Fields derived from capability results or generated by the orchestrator.
const (
	FieldPayer            Field = "payer"
	FieldMemberID         Field = "member_id"
	FieldCopay            Field = "copay"
	FieldUrgencyLevel     Field = "urgency_level"
	FieldDoctorType       Field = "doctor_type"
	FieldConfirmationCode Field = "confirmation_code"
)

var collected = map[Field]bool{
	FieldName: true, FieldPhone: true, FieldReason: true, FieldDateOfBirth: true,
	FieldState: true, FieldProviderName: true, FieldPreferredDate: true,
	FieldPreferredTime: true, FieldSex: true,
}

var derived = map[Field]bool{
	FieldPayer: true, FieldMemberID: true, FieldCopay: true,
	FieldUrgencyLevel: true, FieldDoctorType: true, FieldConfirmationCode: true,
}

// CollectedFields lists the fields extraction may write, in the order the
// caller is asked for them.
func CollectedFields() []Field {
	return []Field{
		FieldName, FieldPhone, FieldReason, FieldDateOfBirth, FieldState,
		FieldProviderName, FieldPreferredDate, FieldPreferredTime, FieldSex,
	}
}

// Collected reports whether f may be written by extraction.
func (f Field) Collected() bool { return collected[f] }

// Known reports whether f belongs to the schema at all.
func (f Field) Known() bool { return collected[f] || derived[f] }

// FromExtraction converts an untyped extraction payload into schema fields.
// Keys outside the collected set are returned in rejected (sorted) so the
// caller can log them. Empty values are skipped.
func FromExtraction(raw map[string]any) (fields map[Field]string, rejected []string) {
	fields = make(map[Field]string, len(raw))
	for k, v := range raw {
		f := Field(strings.ToLower(strings.TrimSpace(k)))
		if !f.Collected() {
			rejected = append(rejected, k)
			continue
		}
		s := stringify(v)
		if s == "" {
			continue
		}
		fields[f] = s
	}
	sort.Strings(rejected)
	return fields, rejected
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
