package session

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestFromExtraction(t *testing.T) {
	raw := map[string]any{
		"name":              "Jane Doe",
		"Date_Of_Birth":     "01/02/1990",
		"phone":             5551234,
		"reason":            "  ",
		"insurance_company": "Acme",
		"confirmation_code": "HACKED",
		"state":             nil,
	}

	fields, rejected := FromExtraction(raw)

	want := map[Field]string{
		FieldName:        "Jane Doe",
		FieldDateOfBirth: "01/02/1990",
		FieldPhone:       "5551234",
	}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("fields = %v, want %v", fields, want)
	}
	wantRejected := []string{"confirmation_code", "insurance_company"}
	if !reflect.DeepEqual(rejected, wantRejected) {
		t.Errorf("rejected = %v, want %v", rejected, wantRejected)
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name    string
		initial Data
		updates map[Field]string
		want    Data
		changes []Change
	}{
		{
			name:    "fills empty field",
			initial: Data{},
			updates: map[Field]string{FieldName: "Jane"},
			want:    Data{FieldName: "Jane"},
			changes: []Change{{Field: FieldName, Old: "", New: "Jane"}},
		},
		{
			name:    "same value is not a change",
			initial: Data{FieldName: "Jane"},
			updates: map[Field]string{FieldName: " Jane "},
			want:    Data{FieldName: "Jane"},
			changes: nil,
		},
		{
			name:    "explicit change is logged",
			initial: Data{FieldState: "CA"},
			updates: map[Field]string{FieldState: "NY"},
			want:    Data{FieldState: "NY"},
			changes: []Change{{Field: FieldState, Old: "CA", New: "NY"}},
		},
		{
			name:    "empty never clears",
			initial: Data{FieldPhone: "555"},
			updates: map[Field]string{FieldPhone: ""},
			want:    Data{FieldPhone: "555"},
			changes: nil,
		},
		{
			name:    "unknown field ignored",
			initial: Data{},
			updates: map[Field]string{Field("favorite_color"): "blue"},
			want:    Data{},
			changes: nil,
		},
		{
			name:    "changes sorted by field",
			initial: Data{},
			updates: map[Field]string{FieldState: "TX", FieldName: "Jo"},
			want:    Data{FieldState: "TX", FieldName: "Jo"},
			changes: []Change{{Field: FieldName, New: "Jo"}, {Field: FieldState, New: "TX"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.initial.Clone()
			got := d.Merge(tt.updates)
			if !reflect.DeepEqual(got, tt.changes) {
				t.Errorf("changes = %+v, want %+v", got, tt.changes)
			}
			if !reflect.DeepEqual(d, tt.want) {
				t.Errorf("data = %v, want %v", d, tt.want)
			}
		})
	}
}

func TestSessionCloseKeepsFirstReason(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s := New("s1", start)

	s.Close(EndFarewell, start.Add(time.Minute))
	s.Close(EndAborted, start.Add(2*time.Minute))

	if s.EndReason != EndFarewell {
		t.Errorf("expected farewell, got %s", s.EndReason)
	}
	if got := s.Duration(start.Add(time.Hour)); got != time.Minute {
		t.Errorf("expected 1m duration, got %v", got)
	}
}

func TestSessionJSON(t *testing.T) {
	s := New("s1", time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	s.Data[FieldName] = "Jane"
	s.AddCall(CallRecord{Capability: "insurance", Operation: "discovery", Success: true})

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var got Session
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Data.Get(FieldName) != "Jane" || len(got.Calls) != 1 {
		t.Errorf("unexpected decoded session %+v", got)
	}
}

func TestNewConfirmationCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		code := NewConfirmationCode()
		if len(code) != ConfirmationCodeLength {
			t.Fatalf("unexpected length %d for %q", len(code), code)
		}
		for _, r := range code {
			if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				t.Fatalf("unexpected character %q in %q", r, code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("codes should vary")
	}
}

func TestDateOfBirth(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in    string
		norm  string
		age   int
		ageOK bool
	}{
		{"03/15/1990", "1990-03-15", 36, true},
		{"1990-12-01", "1990-12-01", 35, true},
		{"October 15, 2000", "2000-10-15", 26, true},
		{"sometime in spring", "sometime in spring", 0, false},
		{"01/01/2099", "2099-01-01", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeDateOfBirth(tt.in); got != tt.norm {
				t.Errorf("NormalizeDateOfBirth = %q, want %q", got, tt.norm)
			}
			age, ok := AgeAt(tt.in, now)
			if ok != tt.ageOK || age != tt.age {
				t.Errorf("AgeAt = (%d, %v), want (%d, %v)", age, ok, tt.age, tt.ageOK)
			}
		})
	}
}
