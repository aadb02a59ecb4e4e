package schedule

import (
	"strings"
	"time"
)

const (
	// Commercial sessions (online/presential) are always one hour.
	commercialMinutes = 60
	// Personal activities without an explicit length or recognized tag.
	defaultPersonalMinutes = 30
)

// durationTags maps personal-activity duration tags to minutes.
var durationTags = map[string]int{
	"2h":   120,
	"120m": 120,
	"1h30": 90,
	"90m":  90,
	"1h":   60,
	"60m":  60,
}

// ResolveDuration determines a slot's length in minutes. Commercial
// bookings are fixed at 60 minutes regardless of category; personal
// activities honor an explicit start/end pair first, then a recognized
// duration tag, then fall back to 30 minutes. It never fails.
func ResolveDuration(eventType *EventType, category *string, start, end *time.Time) int {
	if eventType == nil || *eventType != EventPersonal {
		return commercialMinutes
	}
	if start != nil && end != nil && end.After(*start) {
		ms := end.Sub(*start).Milliseconds()
		if mins := int((ms + 30_000) / 60_000); mins > 0 {
			return mins
		}
	}
	if category != nil {
		if mins, ok := durationTags[strings.ToLower(strings.TrimSpace(*category))]; ok {
			return mins
		}
	}
	return defaultPersonalMinutes
}

// stripDurationTag removes a trailing recognized duration tag from a
// personal activity label, so "Supervisão 1h30" is stored as "Supervisão".
func stripDurationTag(label string) string {
	trimmed := strings.TrimSpace(label)
	for tag := range durationTags {
		if strings.HasSuffix(strings.ToLower(trimmed), " "+tag) {
			return strings.TrimSpace(trimmed[:len(trimmed)-len(tag)-1])
		}
	}
	return trimmed
}
