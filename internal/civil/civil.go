// Package civil implements date and time-of-day arithmetic under the
// practice's fixed UTC-3 civil offset. All day-boundary math in the
// scheduling core goes through these helpers so that overlap checks,
// recurrence previews and the renewal job agree on what "a day" is.
package civil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const offsetSeconds = -3 * 60 * 60

// Zone is the fixed civil offset. No daylight saving, no tzdata lookups.
var Zone = time.FixedZone("-03", offsetSeconds)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	minutesPerDay = 24 * 60
)

// ParseDate parses a "YYYY-MM-DD" date as midnight in the civil zone.
func ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, date, Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	return t, nil
}

// ToInstant combines a "YYYY-MM-DD" date and an "HH:MM" local time into
// an absolute instant.
func ToInstant(date, hhmm string) (time.Time, error) {
	midnight, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	mins, err := MinutesOf(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return midnight.Add(time.Duration(mins) * time.Minute), nil
}

// DateOf projects an instant back onto its civil date.
func DateOf(t time.Time) string {
	return t.In(Zone).Format(dateLayout)
}

// TimeOf projects an instant back onto its civil "HH:MM" time of day.
func TimeOf(t time.Time) string {
	return t.In(Zone).Format(timeLayout)
}

// MinutesOf converts an "HH:MM" string into minutes since midnight.
func MinutesOf(hhmm string) (int, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", hhmm)
	}
	return h*60 + m, nil
}

// AddMinutes adds mins to an "HH:MM" time of day, wrapping within the day.
// The input must be a valid time string; a zero value is returned otherwise.
func AddMinutes(hhmm string, mins int) string {
	base, err := MinutesOf(hhmm)
	if err != nil {
		return "00:00"
	}
	total := ((base+mins)%minutesPerDay + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// DayWindow returns the half-open instant range [00:00, next midnight)
// covering the given civil date. The fixed offset makes the 24h add safe.
func DayWindow(date string) (time.Time, time.Time, error) {
	start, err := ParseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(24 * time.Hour), nil
}

// AddDays steps a "YYYY-MM-DD" date forward by n calendar days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return DateOf(t.AddDate(0, 0, n)), nil
}

// AddMonths steps a "YYYY-MM-DD" date forward by n calendar months,
// following time.AddDate's normalization (Jan 31 + 1 month = Mar 2/3).
func AddMonths(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return DateOf(t.AddDate(0, n, 0)), nil
}

// FormatMinutes renders a duration in minutes as "2h", "1h30m" or "45m".
func FormatMinutes(mins int) string {
	h := mins / 60
	m := mins % 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
