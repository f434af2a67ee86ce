package agent

import (
	"context"

	"github.com/yahel-nav/yahel/internal/model"
)

// CacheStore is the origin-scoped asset cache the agent owns. Cache names
// are versioned; activation deletes every cache not matching the current
// version.
type CacheStore interface {
	AddAll(ctx context.Context, cacheName string, urls []string) error
	Names(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Presenter renders a system notification. Show must not return until the
// notification is visible; the push handler's completion is tied to it.
type Presenter interface {
	Show(ctx context.Context, title string, opts Options) error
}

// Window is one open application window at this origin.
type Window interface {
	CanNavigate() bool
	Navigate(ctx context.Context, url string) error
	Focus(ctx context.Context) error
}

// WindowLocator enumerates and controls application windows so click
// handling can focus an existing window instead of opening duplicates.
type WindowLocator interface {
	Windows(ctx context.Context) ([]Window, error)
	OpenWindow(ctx context.Context, url string) error
	// Claim takes control of already-open windows on activation.
	Claim(ctx context.Context) error
}

// Action is a button offered on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// Options is the full presentation configuration for one notification.
type Options struct {
	Body               string            `json:"body"`
	Icon               string            `json:"icon"`
	Badge              string            `json:"badge"`
	Tag                string            `json:"tag"`
	Data               model.PayloadData `json:"data"`
	RequireInteraction bool              `json:"require_interaction"`
	Silent             bool              `json:"silent"`
	Renotify           bool              `json:"renotify"`
	Dir                string            `json:"dir"`
	Lang               string            `json:"lang"`
	Vibrate            []int             `json:"vibrate"`
	Actions            []Action          `json:"actions"`
}

// ClickEvent describes a user interaction with a shown notification.
// CloseNotification, when set, dismisses the rendered notification.
type ClickEvent struct {
	Action            string
	Data              model.PayloadData
	Tag               string
	CloseNotification func()
}

// CloseEvent fires when a notification is dismissed without a click.
type CloseEvent struct {
	Tag string
}

// Message is a cross-context control message.
type Message struct {
	Type string
}

// The two notification actions always offered.
const (
	ActionView    = "view"
	ActionDismiss = "dismiss"
)

// MessageSkipWaiting forces a pending agent update to activate immediately.
const MessageSkipWaiting = "SKIP_WAITING"
