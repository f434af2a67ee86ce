package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yahel-nav/yahel/internal/model"
	"github.com/yahel-nav/yahel/internal/store"
)

// Transport delivers a payload to a single subscription over Web Push.
// *Service is the production implementation.
type Transport interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload model.NotificationPayload) error
}

// LocalTransport delivers payload bytes to an in-process delivery agent
// instead of the Web Push wire. Used for kiosk subscriptions whose endpoint
// is not reachable through a push service.
type LocalTransport interface {
	Matches(endpoint string) bool
	Deliver(ctx context.Context, payload []byte) error
}

// Mailer escalates urgent alerts over email when push delivery reaches
// nobody. The zero value of any implementation may report unconfigured.
type Mailer interface {
	Configured() bool
	SendUrgentAlert(title, body string) error
}

// Dispatcher fans a notification out to a user's subscriptions, applying
// per-category preferences and quiet hours, recording delivery history, and
// purging endpoints the push service reports as gone.
type Dispatcher struct {
	transport Transport
	local     LocalTransport
	mailer    Mailer
	subs      *store.PushStore
	prefs     *store.PreferenceStore
	history   *store.HistoryStore
	now       func() time.Time
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. local and mailer may be nil.
func NewDispatcher(transport Transport, subs *store.PushStore, prefs *store.PreferenceStore, history *store.HistoryStore, local LocalTransport, mailer Mailer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		local:     local,
		mailer:    mailer,
		subs:      subs,
		prefs:     prefs,
		history:   history,
		now:       time.Now,
		logger:    logger,
	}
}

// SendToUser delivers a payload to every subscription of one user. It
// returns the number of successful deliveries. A category disabled by the
// user or an active quiet-hours window suppresses delivery entirely.
func (d *Dispatcher) SendToUser(ctx context.Context, userID string, payload model.NotificationPayload) (int, error) {
	if payload.Category == "" {
		payload.Category = model.CategoryGeneral
	}
	policy := Policy(payload.Category)

	prefs, err := d.prefs.Get(userID)
	if err != nil {
		return 0, fmt.Errorf("load preferences: %w", err)
	}

	if !prefs.CategoryEnabled(payload.Category, policy.DefaultEnabled) {
		d.logger.Debug("category disabled, skipping", "user_id", userID, "category", payload.Category)
		return 0, nil
	}
	if InQuietHours(prefs, d.now()) {
		d.logger.Debug("quiet hours active, suppressing", "user_id", userID, "category", payload.Category)
		return 0, nil
	}

	subs, err := d.subs.ListByUser(userID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	sent := 0
	for i := range subs {
		if err := d.deliver(ctx, &subs[i], payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if derr := d.subs.DeleteByEndpoint(subs[i].Endpoint); derr != nil {
					d.logger.Error("purge expired subscription", "error", derr)
				}
				continue
			}
			d.logger.Error("push delivery failed", "user_id", userID, "error", err)
			continue
		}
		sent++
	}

	if sent > 0 {
		entry := model.HistoryEntry{
			ID:                uuid.NewString(),
			UserID:            userID,
			Title:             payload.Title,
			Body:              payload.Body,
			Category:          payload.Category,
			URL:               payload.Data.URL,
			DeliveryTimestamp: d.now().UTC(),
		}
		if err := d.history.Record(entry); err != nil {
			d.logger.Error("record notification history", "error", err)
		}
	}

	if sent == 0 && payload.Category == model.CategoryUrgentFailures && d.mailer != nil && d.mailer.Configured() {
		if err := d.mailer.SendUrgentAlert(payload.Title, payload.Body); err != nil {
			d.logger.Error("urgent email escalation", "error", err)
		}
	}

	return sent, nil
}

// Broadcast delivers a payload to every user that has at least one
// subscription. Per-user failures are logged and do not stop the fan-out.
func (d *Dispatcher) Broadcast(ctx context.Context, payload model.NotificationPayload) (int, error) {
	userIDs, err := d.subs.ListUserIDs()
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	total := 0
	for _, uid := range userIDs {
		sent, err := d.SendToUser(ctx, uid, payload)
		if err != nil {
			d.logger.Error("broadcast to user", "user_id", uid, "error", err)
			continue
		}
		total += sent
	}
	return total, nil
}

func (d *Dispatcher) deliver(ctx context.Context, sub *model.PushSubscription, payload model.NotificationPayload) error {
	if d.local != nil && d.local.Matches(sub.Endpoint) {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		return d.local.Deliver(ctx, data)
	}
	return d.transport.Send(ctx, sub, payload)
}
