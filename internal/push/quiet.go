package push

import (
	"fmt"
	"time"

	"github.com/yahel-nav/yahel/internal/model"
)

// InQuietHours reports whether t falls inside the user's quiet-hours window.
// The window may wrap midnight (22:00–07:00); start equal to end means the
// window covers the entire day. Quiet hours suppress delivery regardless of
// category. Malformed or missing times disable suppression rather than
// blocking all delivery.
func InQuietHours(prefs *model.NotificationPreferences, t time.Time) bool {
	if prefs == nil || !prefs.QuietHoursEnabled {
		return false
	}

	start, err := parseClock(prefs.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := parseClock(prefs.QuietHoursEnd)
	if err != nil {
		return false
	}

	now := t.Hour()*60 + t.Minute()

	switch {
	case start == end:
		return true
	case start < end:
		return now >= start && now < end
	default:
		return now >= start || now < end
	}
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}
