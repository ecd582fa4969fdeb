package domain

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// SearchByPhone returns the entries whose phone number contains term as a
// literal substring. An empty term matches every entry. The result is in
// reverse insertion order: most recently created first. The input slice is
// expected in insertion order and is not modified.
func SearchByPhone(entries []LoanEntry, term string) []LoanEntry {
	matched := make([]LoanEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if strings.Contains(entries[i].PhoneNumber, term) {
			matched = append(matched, entries[i])
		}
	}
	return matched
}

// DueBefore returns the entries whose end date has already passed as of the
// given date. The comparison is strict and calendar-date only: an entry due
// exactly on asOf is not included. Entries with an unparseable end date are
// skipped.
func DueBefore(entries []LoanEntry, asOf time.Time) []LoanEntry {
	cutoff := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	due := make([]LoanEntry, 0)
	for _, e := range entries {
		end, err := time.ParseInLocation(dateLayout, e.EndDate, time.UTC)
		if err != nil {
			continue
		}
		if end.Before(cutoff) {
			due = append(due, e)
		}
	}
	return due
}
