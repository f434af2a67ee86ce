package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yahel-nav/yahel/internal/model"
)

// Phase is the controller's load lifecycle.
type Phase string

const (
	PhaseLoading     Phase = "loading"
	PhaseReady       Phase = "ready"
	PhaseUnsupported Phase = "unsupported"
)

// SubscribeState tracks the subscription with explicit in-flight states so
// the panel can disable controls during transitions.
type SubscribeState string

const (
	StateUnsubscribed  SubscribeState = "unsubscribed"
	StateSubscribing   SubscribeState = "subscribing"
	StateSubscribed    SubscribeState = "subscribed"
	StateUnsubscribing SubscribeState = "unsubscribing"
)

const historyPageSize = 20

// Controller coordinates the subscription service, the preference editor,
// and the delivery history for one user. Preference edits are staged in
// memory and hit the backend only on Save; Discard throws them away.
//
// At most one error is retained at a time; a newer failure overwrites an
// older one.
type Controller struct {
	svc    *Service
	api    *API
	userID string
	logger *slog.Logger

	mu         sync.Mutex
	phase      Phase
	subState   SubscribeState
	categories map[model.CategoryKey]model.CategoryPolicy
	saved      *model.NotificationPreferences
	staged     *model.NotificationPreferences
	dirty      bool
	history    []model.HistoryEntry
	lastErr    error
}

func NewController(svc *Service, api *API, userID string, logger *slog.Logger) *Controller {
	return &Controller{
		svc:      svc,
		api:      api,
		userID:   userID,
		logger:   logger.With("component", "push_controller"),
		phase:    PhaseLoading,
		subState: StateUnsubscribed,
	}
}

// Snapshot is a point-in-time copy of the controller state for rendering.
type Snapshot struct {
	Phase       Phase
	SubState    SubscribeState
	Permission  model.Permission
	Categories  map[model.CategoryKey]model.CategoryPolicy
	Preferences model.NotificationPreferences
	Dirty       bool
	History     []model.HistoryEntry
	Err         error
}

// Load initializes the client and pulls catalog, preferences, subscription
// state, and history. On unsupported platforms it settles into the
// unsupported phase without any network traffic.
func (c *Controller) Load(ctx context.Context) {
	if !c.svc.Supported() {
		c.mu.Lock()
		c.phase = PhaseUnsupported
		c.mu.Unlock()
		return
	}

	if err := c.svc.Initialize(ctx); err != nil {
		c.fail(err)
		return
	}

	categories, err := c.api.Categories(ctx)
	if err != nil {
		c.fail(fmt.Errorf("load category catalog: %w", err))
		return
	}

	prefs, err := c.api.Preferences(ctx, c.userID)
	if err != nil {
		c.fail(fmt.Errorf("load preferences: %w", err))
		return
	}

	history, err := c.api.History(ctx, c.userID, historyPageSize)
	if err != nil {
		// History is informational; a failed load leaves it empty.
		c.logger.Warn("load history failed", "error", err)
		history = nil
	}

	subState := StateUnsubscribed
	if c.svc.GetSubscription(ctx) != nil {
		subState = StateSubscribed
	}

	c.mu.Lock()
	c.phase = PhaseReady
	c.subState = subState
	c.categories = categories
	c.saved = prefs
	c.staged = clonePrefs(prefs)
	c.dirty = false
	c.history = history
	c.mu.Unlock()
}

// Subscribe drives the full subscribe flow and, for a first-time
// subscriber, persists default preferences derived from the catalog.
func (c *Controller) Subscribe(ctx context.Context) {
	c.mu.Lock()
	if c.phase != PhaseReady || c.subState != StateUnsubscribed {
		c.mu.Unlock()
		return
	}
	c.subState = StateSubscribing
	c.mu.Unlock()

	if _, err := c.svc.Subscribe(ctx); err != nil {
		c.mu.Lock()
		c.subState = StateUnsubscribed
		c.lastErr = err
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	needDefaults := c.saved == nil || c.saved.UpdatedAt.IsZero()
	c.subState = StateSubscribed
	c.mu.Unlock()

	if needDefaults {
		c.seedDefaultPreferences(ctx)
	}
}

// Unsubscribe tears the subscription down. Stored preferences survive so a
// later resubscribe restores the user's choices.
func (c *Controller) Unsubscribe(ctx context.Context) {
	c.mu.Lock()
	if c.subState != StateSubscribed {
		c.mu.Unlock()
		return
	}
	c.subState = StateUnsubscribing
	c.mu.Unlock()

	if err := c.svc.Unsubscribe(ctx); err != nil {
		c.mu.Lock()
		c.subState = StateSubscribed
		c.lastErr = err
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.subState = StateUnsubscribed
	c.mu.Unlock()
}

// SetCategory stages a per-category toggle.
func (c *Controller) SetCategory(key model.CategoryKey, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged == nil {
		return
	}
	if c.staged.Categories == nil {
		c.staged.Categories = map[model.CategoryKey]bool{}
	}
	c.staged.Categories[key] = enabled
	c.dirty = true
}

// SetQuietHours stages the quiet-hours window.
func (c *Controller) SetQuietHours(enabled bool, start, end string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged == nil {
		return
	}
	c.staged.QuietHoursEnabled = enabled
	c.staged.QuietHoursStart = start
	c.staged.QuietHoursEnd = end
	c.dirty = true
}

// SetLanguage stages the display language and text direction.
func (c *Controller) SetLanguage(code string, rtl bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staged == nil {
		return
	}
	c.staged.LanguageCode = code
	c.staged.RTLSupport = rtl
	c.dirty = true
}

// Save persists the staged preferences whole. The stored copy returned by
// the server becomes the new baseline.
func (c *Controller) Save(ctx context.Context) {
	c.mu.Lock()
	if !c.dirty || c.staged == nil {
		c.mu.Unlock()
		return
	}
	outgoing := clonePrefs(c.staged)
	c.mu.Unlock()

	stored, err := c.api.SavePreferences(ctx, outgoing)
	if err != nil {
		c.fail(fmt.Errorf("save preferences: %w", err))
		return
	}

	c.mu.Lock()
	c.saved = stored
	c.staged = clonePrefs(stored)
	c.dirty = false
	c.mu.Unlock()
}

// Discard drops staged edits and restores the last saved baseline.
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = clonePrefs(c.saved)
	c.dirty = false
}

// SendTest asks the server to push a test notification and refreshes the
// history so the test shows up immediately.
func (c *Controller) SendTest(ctx context.Context) {
	c.mu.Lock()
	subscribed := c.subState == StateSubscribed
	c.mu.Unlock()
	if !subscribed {
		return
	}

	if err := c.api.SendTest(ctx, c.userID); err != nil {
		c.fail(fmt.Errorf("send test notification: %w", err))
		return
	}
	c.RefreshHistory(ctx)
}

// RefreshHistory re-fetches the delivery log.
func (c *Controller) RefreshHistory(ctx context.Context) {
	history, err := c.api.History(ctx, c.userID, historyPageSize)
	if err != nil {
		c.logger.Warn("refresh history failed", "error", err)
		return
	}
	c.mu.Lock()
	c.history = history
	c.mu.Unlock()
}

// ClearError drops the retained error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
}

// Snapshot copies the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Phase:      c.phase,
		SubState:   c.subState,
		Permission: c.svc.Permission(),
		Categories: c.categories,
		Dirty:      c.dirty,
		History:    append([]model.HistoryEntry(nil), c.history...),
		Err:        c.lastErr,
	}
	if c.staged != nil {
		snap.Preferences = *clonePrefs(c.staged)
	}
	return snap
}

// seedDefaultPreferences writes a first preference record using the
// catalog's default_enabled flags.
func (c *Controller) seedDefaultPreferences(ctx context.Context) {
	c.mu.Lock()
	categories := map[model.CategoryKey]bool{}
	for key, policy := range c.categories {
		categories[key] = policy.DefaultEnabled
	}
	defaults := &model.NotificationPreferences{
		UserID:       c.userID,
		Categories:   categories,
		LanguageCode: "he",
		RTLSupport:   true,
	}
	c.mu.Unlock()

	stored, err := c.api.SavePreferences(ctx, defaults)
	if err != nil {
		c.fail(fmt.Errorf("seed default preferences: %w", err))
		return
	}

	c.mu.Lock()
	c.saved = stored
	c.staged = clonePrefs(stored)
	c.dirty = false
	c.mu.Unlock()
}

// fail records err and settles the phase: unsupported is terminal, any
// other failure still lands in ready so the panel shows a dismissible
// error instead of loading forever. Retrying is up to the user.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	if errors.Is(err, ErrUnsupported) {
		c.phase = PhaseUnsupported
		return
	}
	c.phase = PhaseReady
}

func clonePrefs(p *model.NotificationPreferences) *model.NotificationPreferences {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Categories != nil {
		clone.Categories = make(map[model.CategoryKey]bool, len(p.Categories))
		for k, v := range p.Categories {
			clone.Categories[k] = v
		}
	}
	return &clone
}
