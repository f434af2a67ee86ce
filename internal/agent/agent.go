package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultCacheName is the versioned asset cache the agent owns. Bumping the
// version invalidates every previously cached asset on activation.
const DefaultCacheName = "yahel-push-notifications-v1"

var defaultAssets = []string{
	"/",
	"/static/js/bundle.js",
	"/static/css/main.css",
	"/icons/notification-icon.png",
	"/icons/badge-icon.png",
}

// Config wires the delivery agent's platform capabilities.
type Config struct {
	CacheName string
	Assets    []string

	Caches  CacheStore
	Present Presenter
	Windows WindowLocator

	// SkipWaiting promotes a pending agent version to active. Optional.
	SkipWaiting func()
}

// Agent receives pushed notifications and user interactions on behalf of
// the dashboard. Each lifecycle handler is isolated: a failure in one never
// breaks the others, and push handling in particular never surfaces an
// error past DecodePayload's fallback.
type Agent struct {
	cacheName   string
	assets      []string
	caches      CacheStore
	present     Presenter
	windows     WindowLocator
	skipWaiting func()
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Agent {
	name := cfg.CacheName
	if name == "" {
		name = DefaultCacheName
	}
	assets := cfg.Assets
	if len(assets) == 0 {
		assets = defaultAssets
	}
	return &Agent{
		cacheName:   name,
		assets:      assets,
		caches:      cfg.Caches,
		present:     cfg.Present,
		windows:     cfg.Windows,
		skipWaiting: cfg.SkipWaiting,
		logger:      logger.With("component", "delivery_agent"),
	}
}

// guard runs a handler body with panic isolation so one handler cannot take
// down its siblings.
func (a *Agent) guard(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", name, r)
			a.logger.Error("handler panicked", "handler", name, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		a.logger.Error("handler failed", "handler", name, "error", err)
		return err
	}
	return nil
}

// HandleInstall pre-caches the core dashboard assets and requests immediate
// activation. Immediate activation means an updated agent takes over open
// windows mid-session, trading update safety for freshness.
func (a *Agent) HandleInstall(ctx context.Context) error {
	return a.guard("install", func() error {
		if err := a.caches.AddAll(ctx, a.cacheName, a.assets); err != nil {
			return fmt.Errorf("pre-cache assets: %w", err)
		}
		if a.skipWaiting != nil {
			a.skipWaiting()
		}
		a.logger.Info("agent installed", "cache", a.cacheName, "assets", len(a.assets))
		return nil
	})
}

// HandleActivate deletes caches from older agent versions and claims every
// open window so notifications route through this version immediately.
func (a *Agent) HandleActivate(ctx context.Context) error {
	return a.guard("activate", func() error {
		names, err := a.caches.Names(ctx)
		if err != nil {
			return fmt.Errorf("list caches: %w", err)
		}
		for _, name := range names {
			if name == a.cacheName {
				continue
			}
			if err := a.caches.Delete(ctx, name); err != nil {
				return fmt.Errorf("delete stale cache %q: %w", name, err)
			}
			a.logger.Info("deleted stale cache", "cache", name)
		}
		if err := a.windows.Claim(ctx); err != nil {
			return fmt.Errorf("claim windows: %w", err)
		}
		return nil
	})
}

// HandlePush decodes the pushed bytes and presents a notification. A
// malformed payload degrades to the fallback notification rather than being
// dropped.
func (a *Agent) HandlePush(ctx context.Context, data []byte) error {
	return a.guard("push", func() error {
		payload := DecodePayload(data)
		title, opts := BuildNotification(payload)
		if err := a.present.Show(ctx, title, opts); err != nil {
			return fmt.Errorf("show notification: %w", err)
		}
		a.logger.Info("notification shown", "category", payload.Category, "tag", opts.Tag)
		return nil
	})
}

// HandleClick dismisses the notification and, unless the dismiss action was
// chosen, focuses an existing dashboard window on the target view or opens
// one window if none exists.
func (a *Agent) HandleClick(ctx context.Context, ev ClickEvent) error {
	return a.guard("click", func() error {
		if ev.CloseNotification != nil {
			ev.CloseNotification()
		}
		if ev.Action == ActionDismiss {
			a.logger.Info("notification dismissed", "tag", ev.Tag)
			return nil
		}

		target := ResolveTargetURL(ev.Data)
		windows, err := a.windows.Windows(ctx)
		if err != nil {
			return fmt.Errorf("enumerate windows: %w", err)
		}
		for _, w := range windows {
			if !w.CanNavigate() {
				continue
			}
			if err := w.Navigate(ctx, target); err != nil {
				return fmt.Errorf("navigate window: %w", err)
			}
			if err := w.Focus(ctx); err != nil {
				return fmt.Errorf("focus window: %w", err)
			}
			a.logger.Info("focused existing window", "url", target)
			return nil
		}
		if err := a.windows.OpenWindow(ctx, target); err != nil {
			return fmt.Errorf("open window: %w", err)
		}
		a.logger.Info("opened new window", "url", target)
		return nil
	})
}

// HandleClose observes a notification dismissed without interaction.
func (a *Agent) HandleClose(ctx context.Context, ev CloseEvent) error {
	return a.guard("close", func() error {
		a.logger.Debug("notification closed", "tag", ev.Tag)
		return nil
	})
}

// HandleMessage processes cross-context control messages. Unknown message
// types are ignored.
func (a *Agent) HandleMessage(ctx context.Context, msg Message) error {
	return a.guard("message", func() error {
		if msg.Type == MessageSkipWaiting && a.skipWaiting != nil {
			a.skipWaiting()
			a.logger.Info("skip waiting requested")
		}
		return nil
	})
}
