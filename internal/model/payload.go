package model

// NotificationPayload is the JSON carried over the push transport. Payloads
// are transient; the delivery agent decodes them with a fallback and never
// persists them client-side.
type NotificationPayload struct {
	Title    string      `json:"title"`
	Body     string      `json:"body"`
	Icon     string      `json:"icon,omitempty"`
	Badge    string      `json:"badge,omitempty"`
	Category CategoryKey `json:"category,omitempty"`
	Data     PayloadData `json:"data,omitempty"`
	RTL      bool        `json:"rtl,omitempty"`
	Lang     string      `json:"lang,omitempty"`
}

// PayloadData is the structured data block attached to a notification. The
// URL, when present, wins over category-based routing on click.
type PayloadData struct {
	URL      string `json:"url,omitempty"`
	Category string `json:"category,omitempty"`
	Type     string `json:"type,omitempty"`
	RefID    string `json:"ref_id,omitempty"`
}
