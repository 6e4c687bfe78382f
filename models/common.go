package models

import (
	"time"
)

// TimestampLayout is the canonical on-disk timestamp format: fixed-width
// nanosecond UTC, so that lexicographic order equals chronological order and
// the same instant always renders to the same bytes. This matters because
// timestamps participate in the integrity hash and in the (timestamp, id)
// store ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders a time in the canonical layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a canonical timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// DateRange represents a half-open time window used by audit review filters.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDays returns a range covering the past n days up to now.
func LastDays(n int) DateRange {
	now := time.Now().UTC()
	return DateRange{Start: now.AddDate(0, 0, -n), End: now}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// HasErrors returns true if there are validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// GetMessages returns all error messages as a slice of strings
func (ve ValidationErrors) GetMessages() []string {
	messages := make([]string, len(ve))
	for i, err := range ve {
		messages[i] = err.Message
	}
	return messages
}
