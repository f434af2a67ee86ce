package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/yahel-nav/yahel/internal/model"
)

// API is the HTTP client for the notification backend.
type API struct {
	baseURL string
	client  *http.Client
	// serviceToken authorizes system-originated sends. Empty for
	// user-facing clients.
	serviceToken string
}

func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithServiceToken returns a copy of the API that attaches a bearer token
// to system send requests.
func (a *API) WithServiceToken(token string) *API {
	clone := *a
	clone.serviceToken = token
	return &clone
}

// SendRequest is a system-originated notification dispatch.
type SendRequest struct {
	UserID   string            `json:"user_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Category model.CategoryKey `json:"category"`
	Urgent   bool              `json:"urgent"`
	Data     model.PayloadData `json:"data,omitempty"`
}

// VAPIDPublicKey fetches the server's application key for subscribing.
// Failures come back as *KeyFetchError since they only block subscribing.
func (a *API) VAPIDPublicKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"public_key"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/notifications/vapid-key", nil, &resp); err != nil {
		return "", &KeyFetchError{Err: err}
	}
	if resp.PublicKey == "" {
		return "", &KeyFetchError{Err: fmt.Errorf("server returned empty key")}
	}
	return resp.PublicKey, nil
}

// Subscribe registers a platform subscription for the user.
func (a *API) Subscribe(ctx context.Context, userID string, sub model.WebPushSubscription) error {
	body := struct {
		UserID       string                    `json:"user_id"`
		Subscription model.WebPushSubscription `json:"subscription"`
	}{UserID: userID, Subscription: sub}
	return a.do(ctx, http.MethodPost, "/api/notifications/subscribe", body, nil)
}

// Unsubscribe removes the stored subscription for an endpoint. Removing an
// endpoint that is already gone succeeds.
func (a *API) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	q := url.Values{"user_id": {userID}, "endpoint": {endpoint}}
	return a.do(ctx, http.MethodPost, "/api/notifications/unsubscribe?"+q.Encode(), nil, nil)
}

// SendTest asks the server to push a test notification to the user.
func (a *API) SendTest(ctx context.Context, userID string) error {
	q := url.Values{"user_id": {userID}}
	return a.do(ctx, http.MethodPost, "/api/notifications/test?"+q.Encode(), nil, nil)
}

// Preferences fetches the user's stored preferences; a user who never saved
// any gets the server-synthesized defaults.
func (a *API) Preferences(ctx context.Context, userID string) (*model.NotificationPreferences, error) {
	var prefs model.NotificationPreferences
	if err := a.do(ctx, http.MethodGet, "/api/notifications/preferences/"+url.PathEscape(userID), nil, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// SavePreferences replaces the user's preference record and returns the
// stored copy.
func (a *API) SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) (*model.NotificationPreferences, error) {
	var stored model.NotificationPreferences
	path := "/api/notifications/preferences/" + url.PathEscape(prefs.UserID)
	if err := a.do(ctx, http.MethodPut, path, prefs, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// Categories fetches the server-owned category catalog.
func (a *API) Categories(ctx context.Context) (map[model.CategoryKey]model.CategoryPolicy, error) {
	var resp struct {
		Categories map[model.CategoryKey]model.CategoryPolicy `json:"categories"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/notifications/categories", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// History fetches the user's delivered-notification log, newest first.
func (a *API) History(ctx context.Context, userID string, limit int) ([]model.HistoryEntry, error) {
	path := "/api/notifications/history/" + url.PathEscape(userID)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		History []model.HistoryEntry `json:"history"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Send dispatches a system-originated notification.
func (a *API) Send(ctx context.Context, req SendRequest) error {
	return a.do(ctx, http.MethodPost, "/api/notifications/send", req, nil)
}

// SendFailureAlert pushes an urgent failure notification for a system.
func (a *API) SendFailureAlert(ctx context.Context, userID, systemName, description string) error {
	return a.Send(ctx, SendRequest{
		UserID:   userID,
		Title:    fmt.Sprintf("תקלה דחופה: %s", systemName),
		Body:     description,
		Category: model.CategoryUrgentFailures,
		Urgent:   true,
		Data:     model.PayloadData{Category: string(model.CategoryUrgentFailures), Type: "failure"},
	})
}

// SendMaintenanceReminder pushes a maintenance reminder for an item.
func (a *API) SendMaintenanceReminder(ctx context.Context, userID, itemName, dueDate string) error {
	return a.Send(ctx, SendRequest{
		UserID:   userID,
		Title:    "תזכורת תחזוקה",
		Body:     fmt.Sprintf("%s - יעד: %s", itemName, dueDate),
		Category: model.CategoryMaintenanceReminders,
		Data:     model.PayloadData{Category: string(model.CategoryMaintenanceReminders), Type: "maintenance"},
	})
}

// SendJessicaUpdate pushes a status update from the AI assistant.
func (a *API) SendJessicaUpdate(ctx context.Context, userID, message string) error {
	return a.Send(ctx, SendRequest{
		UserID:   userID,
		Title:    "עדכון מג'סיקה",
		Body:     message,
		Category: model.CategoryJessicaUpdates,
		Data:     model.PayloadData{Category: string(model.CategoryJessicaUpdates), Type: "jessica"},
	})
}

// do issues one request and decodes the response. Non-2xx responses become
// *BackendError with the server's error message when one was sent.
func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	var req *http.Request
	var err error
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.serviceToken)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &BackendError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
