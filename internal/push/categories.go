package push

import "github.com/yahel-nav/yahel/internal/model"

var (
	urgentVibration  = []int{200, 100, 200, 100, 200}
	defaultVibration = []int{100, 50, 100}
)

// catalog is the server-owned category catalog. Clients read it through the
// categories endpoint and must not invent keys of their own.
var catalog = map[model.CategoryKey]model.CategoryPolicy{
	model.CategoryUrgentFailures: {
		Label:               "Urgent failures",
		LabelHe:             "כשלים דחופים",
		Description:         "Immediate alerts for urgent system failures",
		DescriptionHe:       "התראות מיידיות על כשלים דחופים במערכת",
		DefaultEnabled:      true,
		RequiresInteraction: true,
		VibrationPattern:    urgentVibration,
	},
	model.CategoryMaintenanceReminders: {
		Label:            "Maintenance reminders",
		LabelHe:          "תזכורות תחזוקה",
		Description:      "Reminders for scheduled maintenance work",
		DescriptionHe:    "תזכורות על עבודות תחזוקה מתוכננות",
		DefaultEnabled:   true,
		VibrationPattern: defaultVibration,
	},
	model.CategoryJessicaUpdates: {
		Label:            "Jessica updates",
		LabelHe:          "עדכוני ג'סיקה",
		Description:      "Updates and insights from the Jessica assistant",
		DescriptionHe:    "עדכונים ותובנות מהעוזרת ג'סיקה",
		DefaultEnabled:   true,
		VibrationPattern: defaultVibration,
	},
	model.CategorySystemStatus: {
		Label:            "System status",
		LabelHe:          "סטטוס מערכת",
		Description:      "General system status updates",
		DescriptionHe:    "עדכוני סטטוס כלליים של המערכת",
		DefaultEnabled:   false,
		VibrationPattern: defaultVibration,
	},
	model.CategoryGeneral: {
		Label:            "General",
		LabelHe:          "כללי",
		Description:      "General department messages",
		DescriptionHe:    "הודעות כלליות של המחלקה",
		DefaultEnabled:   true,
		VibrationPattern: defaultVibration,
	},
}

// Catalog returns a copy of the category catalog.
func Catalog() map[model.CategoryKey]model.CategoryPolicy {
	out := make(map[model.CategoryKey]model.CategoryPolicy, len(catalog))
	for k, v := range catalog {
		out[k] = v
	}
	return out
}

// Policy returns the policy for a category key. Unknown keys fall back to
// the general policy so a stale client can never crash delivery.
func Policy(key model.CategoryKey) model.CategoryPolicy {
	if p, ok := catalog[key]; ok {
		return p
	}
	return catalog[model.CategoryGeneral]
}

// KnownCategory reports whether key is part of the catalog.
func KnownCategory(key model.CategoryKey) bool {
	_, ok := catalog[key]
	return ok
}

// DefaultCategories returns the per-category enable map a user starts with,
// seeded from each policy's default_enabled flag.
func DefaultCategories() map[model.CategoryKey]bool {
	out := make(map[model.CategoryKey]bool, len(catalog))
	for k, v := range catalog {
		out[k] = v.DefaultEnabled
	}
	return out
}
