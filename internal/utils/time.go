package utils

import "time"

// ParseTime copes with the timestamp formats the storage layer emits:
// RFC3339 (what the chat path writes) and the plain SQL form that
// CURRENT_TIMESTAMP defaults produce.
func ParseTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
