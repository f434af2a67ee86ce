package agent

import (
	"encoding/json"

	"github.com/yahel-nav/yahel/internal/model"
)

// Fixed fallback content shown when a push payload is absent or malformed.
// Decoding must never fail past this boundary.
const (
	FallbackTitle = "התרעה חדשה"
	FallbackBody  = "יש לך הודעה חדשה במערכת יהל"
)

const (
	defaultIcon  = "/icons/notification-icon.png"
	defaultBadge = "/icons/badge-icon.png"
	defaultLang  = "he"
)

var (
	urgentVibration  = []int{200, 100, 200, 100, 200}
	defaultVibration = []int{100, 50, 100}
)

// DecodePayload parses push payload bytes into a validated payload. Absent
// or malformed bytes yield the fixed fallback instead of an error.
func DecodePayload(data []byte) model.NotificationPayload {
	var p model.NotificationPayload
	if len(data) == 0 {
		return fallbackPayload()
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return fallbackPayload()
	}
	if p.Title == "" {
		p.Title = FallbackTitle
	}
	if p.Body == "" {
		p.Body = FallbackBody
	}
	return p
}

func fallbackPayload() model.NotificationPayload {
	return model.NotificationPayload{
		Title: FallbackTitle,
		Body:  FallbackBody,
	}
}

// BuildNotification derives the title and presentation options for a
// decoded payload. The urgent tier demands interaction and a long/short
// vibration pulse; maintenance reminders share a stable tag and renotify so
// repeats replace rather than stack silently.
func BuildNotification(p model.NotificationPayload) (string, Options) {
	tag := string(p.Category)
	if tag == "" {
		tag = string(model.CategoryGeneral)
	}

	icon := p.Icon
	if icon == "" {
		icon = defaultIcon
	}
	badge := p.Badge
	if badge == "" {
		badge = defaultBadge
	}
	lang := p.Lang
	if lang == "" {
		lang = defaultLang
	}
	dir := "ltr"
	if p.RTL {
		dir = "rtl"
	}

	viewTitle, dismissTitle := "View", "Dismiss"
	if p.RTL {
		viewTitle, dismissTitle = "צפייה", "סגירה"
	}

	opts := Options{
		Body:               p.Body,
		Icon:               icon,
		Badge:              badge,
		Tag:                tag,
		Data:               p.Data,
		RequireInteraction: p.Category == model.CategoryUrgentFailures,
		Dir:                dir,
		Lang:               lang,
		Vibrate:            defaultVibration,
		Actions: []Action{
			{Action: ActionView, Title: viewTitle, Icon: "/icons/view-icon.png"},
			{Action: ActionDismiss, Title: dismissTitle, Icon: "/icons/dismiss-icon.png"},
		},
	}

	switch p.Category {
	case model.CategoryUrgentFailures:
		opts.RequireInteraction = true
		opts.Silent = false
		opts.Vibrate = urgentVibration
	case model.CategoryMaintenanceReminders:
		opts.Tag = "maintenance"
		opts.Renotify = true
	}

	return p.Title, opts
}
