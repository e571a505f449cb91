package datefmt

import (
	"fmt"
	"time"
)

// Layouts used by the portal's consumption endpoints and payloads.
const (
	LayoutDateISO   = "2006-01-02"
	LayoutYearMonth = "2006-01"
)

// FormatDateISO renders a date the way the portal expects it in URL parameters.
func FormatDateISO(t time.Time) string {
	return t.Format(LayoutDateISO)
}

// FormatYearMonth renders the current-month parameter (YYYY-MM).
func FormatYearMonth(t time.Time) string {
	return t.Format(LayoutYearMonth)
}

// LastDayOfMonth returns the last calendar day of t's month, at midnight.
func LastDayOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)

	return firstOfNext.AddDate(0, 0, -1)
}

// ParsePortalTimestamp attempts to parse a portal timestamp with multiple formats.
// The consumption endpoints return full timestamps, not bare dates.
func ParsePortalTimestamp(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05", // portal consumption rows
		time.RFC3339,          // Standard RFC3339
		"2006-01-02 15:04:05",
		LayoutDateISO,
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", dateStr, lastErr)
}
