package model

import "time"

// CategoryKey identifies a notification category. The set of valid keys is
// owned by the server-side catalog; clients treat it as read-only.
type CategoryKey string

const (
	CategoryUrgentFailures       CategoryKey = "urgent_failures"
	CategoryMaintenanceReminders CategoryKey = "maintenance_reminders"
	CategoryJessicaUpdates       CategoryKey = "jessica_updates"
	CategorySystemStatus         CategoryKey = "system_status"
	CategoryGeneral              CategoryKey = "general"
)

// CategoryPolicy is the declarative per-category policy served by the
// categories endpoint: display strings, default opt-in, and urgency styling.
type CategoryPolicy struct {
	Label               string `json:"label"`
	LabelHe             string `json:"label_he"`
	Description         string `json:"description"`
	DescriptionHe       string `json:"description_he"`
	DefaultEnabled      bool   `json:"default_enabled"`
	RequiresInteraction bool   `json:"requires_interaction"`
	VibrationPattern    []int  `json:"vibration_pattern"`
}

// PushSubscription is a stored copy of a browser-issued push credential,
// keyed by user. The endpoint is globally unique; re-subscribing the same
// endpoint updates the keys in place.
type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}

// WebPushSubscription is the wire shape of a subscription as the platform
// hands it out and as the subscribe endpoint receives it.
type WebPushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys carries the base64url-encoded message encryption keys.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// NotificationPreferences is the per-user delivery preference record.
// It is written whole (last write wins); there is no server-side merge.
type NotificationPreferences struct {
	UserID            string               `json:"user_id"`
	Categories        map[CategoryKey]bool `json:"categories"`
	QuietHoursEnabled bool                 `json:"quiet_hours_enabled"`
	QuietHoursStart   string               `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     string               `json:"quiet_hours_end,omitempty"`
	LanguageCode      string               `json:"language_code"`
	RTLSupport        bool                 `json:"rtl_support"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// CategoryEnabled reports whether delivery for the given category is on,
// falling back to the catalog default when the user has no explicit choice.
func (p *NotificationPreferences) CategoryEnabled(key CategoryKey, defaultEnabled bool) bool {
	if p == nil || p.Categories == nil {
		return defaultEnabled
	}
	enabled, ok := p.Categories[key]
	if !ok {
		return defaultEnabled
	}
	return enabled
}

// HistoryEntry records one delivered notification for a user.
type HistoryEntry struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	Title             string      `json:"title"`
	Body              string      `json:"body"`
	Category          CategoryKey `json:"category"`
	URL               string      `json:"url,omitempty"`
	DeliveryTimestamp time.Time   `json:"delivery_timestamp"`
}

// Permission is the platform notification-consent state. It is sourced from
// the platform and read-only to application code.
type Permission string

const (
	PermissionDefault     Permission = "default"
	PermissionGranted     Permission = "granted"
	PermissionDenied      Permission = "denied"
	PermissionUnsupported Permission = "unsupported"
)
