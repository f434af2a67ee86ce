package panel

import (
	"errors"
	"testing"

	"github.com/yahel-nav/yahel/internal/client"
	"github.com/yahel-nav/yahel/internal/model"
)

func readySnapshot() client.Snapshot {
	return client.Snapshot{
		Phase:      client.PhaseReady,
		SubState:   client.StateUnsubscribed,
		Permission: model.PermissionDefault,
		Categories: map[model.CategoryKey]model.CategoryPolicy{
			model.CategoryGeneral:        {Label: "General", DefaultEnabled: true},
			model.CategoryUrgentFailures: {Label: "Urgent Failures", DefaultEnabled: true},
			model.CategorySystemStatus:   {Label: "System Status", DefaultEnabled: false},
		},
		Preferences: model.NotificationPreferences{
			UserID:     "alice",
			Categories: map[model.CategoryKey]bool{},
		},
	}
}

func TestBuildUnsupportedHidesPanel(t *testing.T) {
	st := Build(client.Snapshot{Phase: client.PhaseUnsupported, Permission: model.PermissionUnsupported})
	if st.Visible {
		t.Error("panel must be hidden on unsupported platforms")
	}
	if st.UnsupportedNote == "" {
		t.Error("unsupported platforms must surface a browser-support explanation")
	}
}

func TestBuildDeniedDisablesSubscribe(t *testing.T) {
	snap := readySnapshot()
	snap.Permission = model.PermissionDenied
	st := Build(snap)

	if st.SubscribeEnabled {
		t.Error("subscribe control must be disabled when permission is denied")
	}
	if st.PermissionNote == "" {
		t.Error("denied permission must surface an explanation")
	}
}

func TestBuildInFlightDisablesSubscribe(t *testing.T) {
	snap := readySnapshot()
	snap.SubState = client.StateSubscribing
	st := Build(snap)

	if st.SubscribeEnabled {
		t.Error("subscribe control must be disabled mid-transition")
	}
	if !st.InFlight {
		t.Error("in-flight state must be reported")
	}
}

func TestBuildQuietEditorFollowsToggle(t *testing.T) {
	snap := readySnapshot()
	if st := Build(snap); st.ShowQuietEditor {
		t.Error("quiet-hours editor hidden while the feature is off")
	}

	snap.Preferences.QuietHoursEnabled = true
	snap.Preferences.QuietHoursStart = "22:00"
	snap.Preferences.QuietHoursEnd = "07:00"
	st := Build(snap)
	if !st.ShowQuietEditor {
		t.Error("quiet-hours editor shown while the feature is on")
	}
	if st.QuietHoursStart != "22:00" || st.QuietHoursEnd != "07:00" {
		t.Errorf("window = %s-%s", st.QuietHoursStart, st.QuietHoursEnd)
	}
}

func TestBuildSaveDiscardGatedOnDirty(t *testing.T) {
	snap := readySnapshot()
	if st := Build(snap); st.CanSave || st.CanDiscard {
		t.Error("save/discard must be disabled without staged edits")
	}

	snap.Dirty = true
	if st := Build(snap); !st.CanSave || !st.CanDiscard {
		t.Error("save/discard must be enabled with staged edits")
	}
}

func TestBuildTestSendOnlyWhileSubscribed(t *testing.T) {
	snap := readySnapshot()
	if st := Build(snap); st.CanSendTest {
		t.Error("test send must be disabled while unsubscribed")
	}

	snap.SubState = client.StateSubscribed
	if st := Build(snap); !st.CanSendTest {
		t.Error("test send must be enabled while subscribed")
	}
}

func TestBuildCategoryOrderAndDefaults(t *testing.T) {
	st := Build(readySnapshot())
	if len(st.Categories) != 3 {
		t.Fatalf("rows = %d, want 3", len(st.Categories))
	}
	if st.Categories[0].Key != model.CategoryUrgentFailures {
		t.Errorf("first row = %q, want urgent_failures", st.Categories[0].Key)
	}
	for _, row := range st.Categories {
		switch row.Key {
		case model.CategorySystemStatus:
			if row.Enabled {
				t.Error("system_status must default off")
			}
		default:
			if !row.Enabled {
				t.Errorf("%s must default on", row.Key)
			}
		}
	}
}

func TestBuildExplicitChoiceOverridesDefault(t *testing.T) {
	snap := readySnapshot()
	snap.Preferences.Categories[model.CategoryUrgentFailures] = false
	st := Build(snap)
	for _, row := range st.Categories {
		if row.Key == model.CategoryUrgentFailures && row.Enabled {
			t.Error("explicit opt-out must override the catalog default")
		}
	}
}

func TestBuildHistoryBounded(t *testing.T) {
	snap := readySnapshot()
	for i := 0; i < maxHistoryRows+10; i++ {
		snap.History = append(snap.History, model.HistoryEntry{ID: "e", UserID: "alice"})
	}
	st := Build(snap)
	if len(st.History) != maxHistoryRows {
		t.Errorf("history rows = %d, want %d", len(st.History), maxHistoryRows)
	}
}

func TestBuildErrorSurface(t *testing.T) {
	snap := readySnapshot()
	snap.Err = errors.New("boom")
	if st := Build(snap); st.Error != "boom" {
		t.Errorf("error = %q", st.Error)
	}
}
