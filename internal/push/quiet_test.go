package push

import (
	"testing"
	"time"

	"github.com/yahel-nav/yahel/internal/model"
)

func quietPrefs(enabled bool, start, end string) *model.NotificationPreferences {
	return &model.NotificationPreferences{
		UserID:            "alice",
		QuietHoursEnabled: enabled,
		QuietHoursStart:   start,
		QuietHoursEnd:     end,
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 30, hour, minute, 0, 0, time.UTC)
}

func TestInQuietHours(t *testing.T) {
	cases := []struct {
		name  string
		prefs *model.NotificationPreferences
		now   time.Time
		want  bool
	}{
		{"nil prefs", nil, at(23, 0), false},
		{"disabled", quietPrefs(false, "22:00", "07:00"), at(23, 0), false},
		{"same-day window inside", quietPrefs(true, "13:00", "15:00"), at(14, 0), true},
		{"same-day window outside", quietPrefs(true, "13:00", "15:00"), at(16, 0), false},
		{"same-day window at start", quietPrefs(true, "13:00", "15:00"), at(13, 0), true},
		{"same-day window at end", quietPrefs(true, "13:00", "15:00"), at(15, 0), false},
		{"midnight wrap evening", quietPrefs(true, "22:00", "07:00"), at(23, 30), true},
		{"midnight wrap morning", quietPrefs(true, "22:00", "07:00"), at(6, 59), true},
		{"midnight wrap daytime", quietPrefs(true, "22:00", "07:00"), at(12, 0), false},
		{"start equals end covers whole day", quietPrefs(true, "08:00", "08:00"), at(3, 0), true},
		{"malformed start disables window", quietPrefs(true, "late", "07:00"), at(23, 0), false},
		{"out-of-range clock disables window", quietPrefs(true, "25:00", "07:00"), at(23, 0), false},
		{"empty times disable window", quietPrefs(true, "", ""), at(23, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InQuietHours(tc.prefs, tc.now); got != tc.want {
				t.Errorf("InQuietHours = %v, want %v", got, tc.want)
			}
		})
	}
}
