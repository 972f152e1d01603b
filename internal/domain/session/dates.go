package session

import (
	"strings"
	"time"
)

var dobLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
}

// ParseDateOfBirth accepts the date formats callers commonly dictate.
func ParseDateOfBirth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDateOfBirth returns s as YYYY-MM-DD when it parses, else s unchanged.
func NormalizeDateOfBirth(s string) string {
	if t, ok := ParseDateOfBirth(s); ok {
		return t.Format("2006-01-02")
	}
	return strings.TrimSpace(s)
}

// AgeAt returns the age in whole years at now, or false if dob does not parse
// or lies in the future.
func AgeAt(dob string, now time.Time) (int, bool) {
	born, ok := ParseDateOfBirth(dob)
	if !ok || born.After(now) {
		return 0, false
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age, true
}
