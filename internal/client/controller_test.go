package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yahel-nav/yahel/internal/model"
)

// controllerStub is a full enough backend for the controller lifecycle:
// catalog, preferences, history, and subscribe routes.
type controllerStub struct {
	prefs          *model.NotificationPreferences
	savedCount     int
	categoriesCode int
}

func (b *controllerStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/notifications/vapid-key", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"public_key": "k"})
	})
	mux.HandleFunc("POST /api/notifications/subscribe", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"status": "subscribed"})
	})
	mux.HandleFunc("GET /api/notifications/categories", func(w http.ResponseWriter, r *http.Request) {
		if b.categoriesCode >= 400 {
			w.WriteHeader(b.categoriesCode)
			json.NewEncoder(w).Encode(map[string]string{"error": "catalog unavailable"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"categories": map[model.CategoryKey]model.CategoryPolicy{
				model.CategoryUrgentFailures: {Label: "Urgent Failures", DefaultEnabled: true},
				model.CategorySystemStatus:   {Label: "System Status", DefaultEnabled: false},
			},
		})
	})
	mux.HandleFunc("GET /api/notifications/preferences/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		p := b.prefs
		if p == nil {
			p = &model.NotificationPreferences{
				UserID:       r.PathValue("user_id"),
				Categories:   map[model.CategoryKey]bool{},
				LanguageCode: "he",
				RTLSupport:   true,
			}
		}
		json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("PUT /api/notifications/preferences/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		var p model.NotificationPreferences
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.UpdatedAt = time.Now().UTC()
		b.prefs = &p
		b.savedCount++
		json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("GET /api/notifications/history/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"history": []model.HistoryEntry{}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestController(t *testing.T, stub *controllerStub, platform *fakePlatform) *Controller {
	t.Helper()
	srv := stub.server(t)
	api := NewAPI(srv.URL)
	svc := NewService(platform, api, "alice", discardLogger())
	return NewController(svc, api, "alice", discardLogger())
}

func TestControllerLoadUnsupported(t *testing.T) {
	c := newTestController(t, &controllerStub{}, &fakePlatform{supported: false})
	c.Load(context.Background())

	snap := c.Snapshot()
	if snap.Phase != PhaseUnsupported {
		t.Errorf("phase = %q, want unsupported", snap.Phase)
	}
	if snap.Permission != model.PermissionUnsupported {
		t.Errorf("permission = %q, want unsupported", snap.Permission)
	}
}

func TestControllerLoadReady(t *testing.T) {
	platform := &fakePlatform{supported: true, permission: model.PermissionDefault}
	c := newTestController(t, &controllerStub{}, platform)
	c.Load(context.Background())

	snap := c.Snapshot()
	if snap.Phase != PhaseReady {
		t.Fatalf("phase = %q, err = %v", snap.Phase, snap.Err)
	}
	if snap.SubState != StateUnsubscribed {
		t.Errorf("sub state = %q, want unsubscribed", snap.SubState)
	}
	if len(snap.Categories) != 2 {
		t.Errorf("categories = %d, want 2", len(snap.Categories))
	}
}

func TestControllerLoadFailureSettlesReady(t *testing.T) {
	stub := &controllerStub{categoriesCode: http.StatusInternalServerError}
	platform := &fakePlatform{supported: true, permission: model.PermissionDefault}
	c := newTestController(t, stub, platform)
	c.Load(context.Background())

	snap := c.Snapshot()
	if snap.Phase != PhaseReady {
		t.Fatalf("phase = %q, want ready with a surfaced error", snap.Phase)
	}
	if snap.Err == nil {
		t.Fatal("failed load must retain the error")
	}

	c.ClearError()
	if snap := c.Snapshot(); snap.Err != nil || snap.Phase != PhaseReady {
		t.Errorf("phase = %q err = %v after ClearError, want ready and nil", snap.Phase, snap.Err)
	}
}

func TestControllerSubscribeSeedsDefaults(t *testing.T) {
	stub := &controllerStub{}
	platform := &fakePlatform{
		supported:     true,
		permission:    model.PermissionDefault,
		requestResult: model.PermissionGranted,
	}
	c := newTestController(t, stub, platform)
	c.Load(context.Background())
	c.Subscribe(context.Background())

	snap := c.Snapshot()
	if snap.Err != nil {
		t.Fatalf("err = %v", snap.Err)
	}
	if snap.SubState != StateSubscribed {
		t.Fatalf("sub state = %q, want subscribed", snap.SubState)
	}
	if stub.prefs == nil {
		t.Fatal("first subscribe must persist default preferences")
	}
	if !stub.prefs.Categories[model.CategoryUrgentFailures] {
		t.Error("urgent failures must default on")
	}
	if stub.prefs.Categories[model.CategorySystemStatus] {
		t.Error("system status must default off")
	}
}

func TestControllerStagedEditsNeedSave(t *testing.T) {
	stub := &controllerStub{
		prefs: &model.NotificationPreferences{
			UserID:       "alice",
			Categories:   map[model.CategoryKey]bool{model.CategoryGeneral: true},
			LanguageCode: "he",
			UpdatedAt:    time.Now().UTC(),
		},
	}
	c := newTestController(t, stub, &fakePlatform{supported: true, permission: model.PermissionGranted})
	c.Load(context.Background())

	c.SetCategory(model.CategoryGeneral, false)
	snap := c.Snapshot()
	if !snap.Dirty {
		t.Fatal("staged edit must mark the controller dirty")
	}
	if stub.savedCount != 0 {
		t.Fatal("staged edit must not hit the backend before Save")
	}

	c.Save(context.Background())
	snap = c.Snapshot()
	if snap.Dirty {
		t.Error("Save must clear the dirty flag")
	}
	if stub.savedCount != 1 {
		t.Errorf("savedCount = %d, want 1", stub.savedCount)
	}
	if stub.prefs.Categories[model.CategoryGeneral] {
		t.Error("saved record must carry the staged toggle")
	}
}

func TestControllerDiscardRestoresBaseline(t *testing.T) {
	stub := &controllerStub{
		prefs: &model.NotificationPreferences{
			UserID:            "alice",
			Categories:        map[model.CategoryKey]bool{model.CategoryGeneral: true},
			QuietHoursEnabled: false,
			UpdatedAt:         time.Now().UTC(),
		},
	}
	c := newTestController(t, stub, &fakePlatform{supported: true, permission: model.PermissionGranted})
	c.Load(context.Background())

	c.SetQuietHours(true, "22:00", "07:00")
	c.Discard()

	snap := c.Snapshot()
	if snap.Dirty {
		t.Error("Discard must clear the dirty flag")
	}
	if snap.Preferences.QuietHoursEnabled {
		t.Error("Discard must restore the saved baseline")
	}
	if stub.savedCount != 0 {
		t.Error("Discard must not hit the backend")
	}
}

func TestControllerErrorOverwritesAndClears(t *testing.T) {
	platform := &fakePlatform{supported: true, permission: model.PermissionDenied}
	c := newTestController(t, &controllerStub{}, platform)
	c.Load(context.Background())

	c.Subscribe(context.Background())
	if snap := c.Snapshot(); snap.Err == nil {
		t.Fatal("denied subscribe must surface an error")
	}

	c.ClearError()
	if snap := c.Snapshot(); snap.Err != nil {
		t.Errorf("err = %v after ClearError, want nil", snap.Err)
	}
}
