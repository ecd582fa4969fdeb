package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// MonthLabel formats a time as the human-readable payment month label,
// e.g. "January 2006".
func MonthLabel(t time.Time) string {
	return t.Format("January 2006")
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// DateOnly truncates a time to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
