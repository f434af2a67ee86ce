package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/yahel-nav/yahel/internal/model"
	"github.com/yahel-nav/yahel/internal/push"
	"github.com/yahel-nav/yahel/internal/store"
)

var clockRegexp = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type PushHandler struct {
	subs       *store.PushStore
	prefs      *store.PreferenceStore
	history    *store.HistoryStore
	service    *push.Service
	dispatcher *push.Dispatcher
	logger     *slog.Logger
}

func NewPushHandler(subs *store.PushStore, prefs *store.PreferenceStore, history *store.HistoryStore, svc *push.Service, dispatcher *push.Dispatcher, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		subs:       subs,
		prefs:      prefs,
		history:    history,
		service:    svc,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// GetVAPIDKey handles GET /api/notifications/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

type subscribeRequest struct {
	UserID       string                    `json:"user_id"`
	Subscription model.WebPushSubscription `json:"subscription"`
}

// Subscribe handles POST /api/notifications/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	sub := req.Subscription
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint, p256dh, and auth are required"})
		return
	}

	stored, err := h.subs.CreateSubscription(req.UserID, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save subscription"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"status": "subscribed", "subscription": stored})
}

// Unsubscribe handles POST /api/notifications/unsubscribe
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	endpoint := r.URL.Query().Get("endpoint")
	if userID == "" || endpoint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and endpoint are required"})
		return
	}

	if err := h.subs.Delete(userID, endpoint); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete subscription"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// TestNotification handles POST /api/notifications/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	payload := model.NotificationPayload{
		Title:    "התרעת בדיקה",
		Body:     "התרעות הדחיפה פועלות כראוי",
		Category: model.CategoryGeneral,
		RTL:      true,
		Lang:     "he",
	}

	sent, err := h.dispatcher.SendToUser(r.Context(), userID, payload)
	if err != nil {
		h.logger.Error("test push send", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to send test notification"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

// GetPreferences handles GET /api/notifications/preferences/{user_id}
// A user who never saved preferences gets catalog defaults with a zero
// updated_at so clients can tell the record is synthesized.
func (h *PushHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	prefs, err := h.prefs.Get(userID)
	if err != nil {
		h.logger.Error("get notification preferences", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get preferences"})
		return
	}
	if prefs == nil {
		prefs = &model.NotificationPreferences{
			UserID:       userID,
			Categories:   push.DefaultCategories(),
			LanguageCode: "he",
			RTLSupport:   true,
		}
	}
	writeJSON(w, http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /api/notifications/preferences/{user_id}
// The record is replaced whole; there is no merge with the stored copy.
func (h *PushHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	var req model.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.UserID = userID

	// Category keys outside the catalog are dropped, not stored.
	for key := range req.Categories {
		if !push.KnownCategory(key) {
			delete(req.Categories, key)
		}
	}

	if req.QuietHoursEnabled {
		if !clockRegexp.MatchString(req.QuietHoursStart) || !clockRegexp.MatchString(req.QuietHoursEnd) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quiet hours must be HH:MM"})
			return
		}
	}
	if req.LanguageCode == "" {
		req.LanguageCode = "he"
	}

	stored, err := h.prefs.Put(&req)
	if err != nil {
		h.logger.Error("update notification preferences", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update preferences"})
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

// GetCategories handles GET /api/notifications/categories
func (h *PushHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": push.Catalog()})
}

// GetHistory handles GET /api/notifications/history/{user_id}
func (h *PushHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	entries, err := h.history.ListByUser(userID, limit)
	if err != nil {
		h.logger.Error("list notification history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list history"})
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

type sendRequest struct {
	UserID   string            `json:"user_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Category model.CategoryKey `json:"category"`
	Urgent   bool              `json:"urgent"`
	Data     model.PayloadData `json:"data"`
}

// SendNotification handles POST /api/notifications/send
// A user_id of "system" fans out to every subscribed user.
func (h *PushHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.UserID == "" || req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and title are required"})
		return
	}

	category := req.Category
	if req.Urgent && category == "" {
		category = model.CategoryUrgentFailures
	}
	if category != "" && !push.KnownCategory(category) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown category"})
		return
	}

	payload := model.NotificationPayload{
		Title:    req.Title,
		Body:     req.Body,
		Category: category,
		Data:     req.Data,
		RTL:      true,
		Lang:     "he",
	}
	if payload.Data.Category == "" {
		payload.Data.Category = string(category)
	}

	var (
		sent int
		err  error
	)
	if req.UserID == "system" {
		sent, err = h.dispatcher.Broadcast(r.Context(), payload)
	} else {
		sent, err = h.dispatcher.SendToUser(r.Context(), req.UserID, payload)
	}
	if err != nil {
		h.logger.Error("send notification", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to send notification"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
