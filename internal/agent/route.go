package agent

import "github.com/yahel-nav/yahel/internal/model"

// categoryRoutes maps a notification category to its dashboard view.
var categoryRoutes = map[string]string{
	string(model.CategoryUrgentFailures):       "/?tab=failures",
	string(model.CategoryMaintenanceReminders): "/?tab=maintenance",
	string(model.CategoryJessicaUpdates):       "/?tab=ai-agent",
	string(model.CategorySystemStatus):         "/?tab=dashboard",
}

// ResolveTargetURL picks the in-app URL a clicked notification navigates
// to. An explicit data URL wins; otherwise the category maps to its view;
// anything else lands on the root view.
func ResolveTargetURL(data model.PayloadData) string {
	if data.URL != "" {
		return data.URL
	}
	if url, ok := categoryRoutes[data.Category]; ok {
		return url
	}
	return "/"
}
