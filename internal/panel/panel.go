package panel

import (
	"sort"

	"github.com/yahel-nav/yahel/internal/client"
	"github.com/yahel-nav/yahel/internal/model"
)

const maxHistoryRows = 20

// CategoryRow is one category toggle in the settings panel.
type CategoryRow struct {
	Key         model.CategoryKey `json:"key"`
	Label       string            `json:"label"`
	LabelHe     string            `json:"label_he"`
	Description string            `json:"description"`
	Enabled     bool              `json:"enabled"`
}

// State is everything the settings panel needs to render. It is computed
// from a controller snapshot; the panel itself holds no state.
type State struct {
	Visible    bool             `json:"visible"`
	Loading    bool             `json:"loading"`
	Subscribed bool             `json:"subscribed"`
	InFlight   bool             `json:"in_flight"`
	Permission model.Permission `json:"permission"`

	SubscribeEnabled bool   `json:"subscribe_enabled"`
	SubscribeLabel   string `json:"subscribe_label"`
	PermissionNote   string `json:"permission_note,omitempty"`
	UnsupportedNote  string `json:"unsupported_note,omitempty"`

	Categories []CategoryRow `json:"categories"`

	QuietHoursEnabled bool   `json:"quiet_hours_enabled"`
	ShowQuietEditor   bool   `json:"show_quiet_editor"`
	QuietHoursStart   string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd     string `json:"quiet_hours_end,omitempty"`

	CanSave     bool `json:"can_save"`
	CanDiscard  bool `json:"can_discard"`
	CanSendTest bool `json:"can_send_test"`

	History []model.HistoryEntry `json:"history"`

	Error string `json:"error,omitempty"`
}

// Build derives the panel state from a controller snapshot.
func Build(snap client.Snapshot) State {
	st := State{
		Visible:    snap.Phase != client.PhaseUnsupported,
		Loading:    snap.Phase == client.PhaseLoading,
		Permission: snap.Permission,
	}
	if !st.Visible {
		st.UnsupportedNote = "הדפדפן אינו תומך בהתרעות דחיפה. יש להשתמש ב-Chrome, Firefox או Edge."
		return st
	}

	st.Subscribed = snap.SubState == client.StateSubscribed
	st.InFlight = snap.SubState == client.StateSubscribing || snap.SubState == client.StateUnsubscribing

	st.SubscribeLabel = subscribeLabel(snap.SubState)
	// A denied permission is only reversible from platform settings, so
	// the control is disabled rather than offering a prompt that cannot
	// appear.
	st.SubscribeEnabled = snap.Phase == client.PhaseReady &&
		!st.InFlight &&
		snap.Permission != model.PermissionDenied
	if snap.Permission == model.PermissionDenied {
		st.PermissionNote = "ההתרעות חסומות. יש לאפשר התרעות בהגדרות הדפדפן."
	}

	st.Categories = categoryRows(snap)

	st.QuietHoursEnabled = snap.Preferences.QuietHoursEnabled
	st.ShowQuietEditor = snap.Preferences.QuietHoursEnabled
	st.QuietHoursStart = snap.Preferences.QuietHoursStart
	st.QuietHoursEnd = snap.Preferences.QuietHoursEnd

	st.CanSave = snap.Phase == client.PhaseReady && snap.Dirty
	st.CanDiscard = st.CanSave
	st.CanSendTest = st.Subscribed && !st.InFlight

	st.History = snap.History
	if len(st.History) > maxHistoryRows {
		st.History = st.History[:maxHistoryRows]
	}

	if snap.Err != nil {
		st.Error = snap.Err.Error()
	}
	return st
}

func subscribeLabel(state client.SubscribeState) string {
	switch state {
	case client.StateSubscribing:
		return "נרשם..."
	case client.StateSubscribed:
		return "בטל התרעות"
	case client.StateUnsubscribing:
		return "מבטל..."
	default:
		return "הפעל התרעות"
	}
}

// categoryRows orders the catalog deterministically: urgency tiers first,
// then alphabetical by key.
func categoryRows(snap client.Snapshot) []CategoryRow {
	rows := make([]CategoryRow, 0, len(snap.Categories))
	for key, policy := range snap.Categories {
		enabled := snap.Preferences.CategoryEnabled(key, policy.DefaultEnabled)
		rows = append(rows, CategoryRow{
			Key:         key,
			Label:       policy.Label,
			LabelHe:     policy.LabelHe,
			Description: policy.Description,
			Enabled:     enabled,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		ri, rj := categoryRank(rows[i].Key), categoryRank(rows[j].Key)
		if ri != rj {
			return ri < rj
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}

func categoryRank(key model.CategoryKey) int {
	switch key {
	case model.CategoryUrgentFailures:
		return 0
	case model.CategoryMaintenanceReminders:
		return 1
	case model.CategoryJessicaUpdates:
		return 2
	case model.CategorySystemStatus:
		return 3
	default:
		return 4
	}
}
