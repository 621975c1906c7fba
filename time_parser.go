package main

import (
	"fmt"
	"strings"
	"time"
)

// ParseStartTime parses the release time of a limited drop. All formats are
// read as UTC:
//   - "2025-01-15 16:00"          (YYYY-MM-DD HH:MM)
//   - "2025-01-15T16:00:00Z"      (RFC3339)
//   - "2025-01-15 16:00 UTC"      (YYYY-MM-DD HH:MM UTC)
//   - "2025-01-15 16:00:00"       (YYYY-MM-DD HH:MM:SS)
func ParseStartTime(timeStr string) (time.Time, error) {
	timeStr = strings.TrimSpace(timeStr)
	timeStr = strings.TrimSuffix(timeStr, "UTC")
	timeStr = strings.TrimSpace(timeStr)

	if t, err := time.Parse(time.RFC3339, timeStr); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, timeStr, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid time format '%s'. Use format: YYYY-MM-DD HH:MM (e.g., 2025-01-15 16:00). Time is assumed to be UTC", timeStr)
}
