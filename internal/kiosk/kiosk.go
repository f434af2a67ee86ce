// Package kiosk hosts the notification delivery agent inside the server
// process for the wheelhouse display. The display has no push service
// reachable from the outside, so its subscriptions carry a local endpoint
// scheme and payloads are routed straight to the in-process agent, which
// presents them through the WebSocket hub to whatever dashboard windows are
// connected.
package kiosk

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/yahel-nav/yahel/internal/agent"
	"github.com/yahel-nav/yahel/internal/model"
	"github.com/yahel-nav/yahel/internal/websocket"
)

// EndpointScheme prefixes kiosk subscription endpoints. The dispatcher
// routes anything under it to the local agent instead of the Web Push wire.
const EndpointScheme = "yahel-kiosk://"

// UserID is the fixed identity the wheelhouse display subscribes under.
const UserID = "kiosk"

// Kiosk is the always-on push platform for the wheelhouse display. It
// satisfies the client Platform contract: support and permission are
// unconditional, and subscriptions are held in memory for the process
// lifetime.
type Kiosk struct {
	agent  *agent.Agent
	hub    *websocket.Hub
	logger *slog.Logger

	mu  sync.Mutex
	sub *model.WebPushSubscription
}

func New(hub *websocket.Hub, logger *slog.Logger) *Kiosk {
	k := &Kiosk{
		hub:    hub,
		logger: logger.With("component", "kiosk"),
	}
	k.agent = agent.New(agent.Config{
		Caches:  NewMemoryCacheStore(),
		Present: &HubPresenter{hub: hub},
		Windows: &HubWindows{hub: hub, logger: k.logger},
	}, logger)
	return k
}

// Agent exposes the hosted delivery agent for click and message routing.
func (k *Kiosk) Agent() *agent.Agent { return k.agent }

func (k *Kiosk) Supported() bool { return true }

// Register installs and activates the hosted agent.
func (k *Kiosk) Register(ctx context.Context) error {
	if err := k.agent.HandleInstall(ctx); err != nil {
		return fmt.Errorf("install kiosk agent: %w", err)
	}
	if err := k.agent.HandleActivate(ctx); err != nil {
		return fmt.Errorf("activate kiosk agent: %w", err)
	}
	return nil
}

func (k *Kiosk) Permission() model.Permission { return model.PermissionGranted }

func (k *Kiosk) RequestPermission(context.Context) (model.Permission, error) {
	return model.PermissionGranted, nil
}

// Subscribe mints a local-scheme subscription. The keys are random and
// unused; local delivery bypasses message encryption.
func (k *Kiosk) Subscribe(_ context.Context, _ string) (model.WebPushSubscription, error) {
	sub := model.WebPushSubscription{
		Endpoint: EndpointScheme + uuid.NewString(),
		Keys: model.SubscriptionKeys{
			P256dh: randomKey(65),
			Auth:   randomKey(16),
		},
	}
	k.mu.Lock()
	k.sub = &sub
	k.mu.Unlock()
	k.logger.Info("kiosk subscribed", "endpoint", sub.Endpoint)
	return sub, nil
}

func (k *Kiosk) Subscription(context.Context) (*model.WebPushSubscription, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sub, nil
}

func (k *Kiosk) Unsubscribe(_ context.Context, endpoint string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.sub != nil && k.sub.Endpoint == endpoint {
		k.sub = nil
	}
	return nil
}

// Matches reports whether an endpoint belongs to the local scheme.
func (k *Kiosk) Matches(endpoint string) bool {
	return strings.HasPrefix(endpoint, EndpointScheme)
}

// Deliver hands payload bytes to the hosted agent's push handler.
func (k *Kiosk) Deliver(ctx context.Context, payload []byte) error {
	return k.agent.HandlePush(ctx, payload)
}

func randomKey(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// MemoryCacheStore is an in-memory asset cache. The kiosk serves its own
// assets, so caching is bookkeeping for the agent lifecycle rather than an
// offline store.
type MemoryCacheStore struct {
	mu     sync.Mutex
	caches map[string][]string
}

func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{caches: make(map[string][]string)}
}

func (m *MemoryCacheStore) AddAll(_ context.Context, name string, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = append(m.caches[name], urls...)
	return nil
}

func (m *MemoryCacheStore) Names(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	return names, nil
}

func (m *MemoryCacheStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, name)
	return nil
}

// HubPresenter renders notifications by broadcasting them to every
// connected dashboard window.
type HubPresenter struct {
	hub *websocket.Hub
}

func (p *HubPresenter) Show(_ context.Context, title string, opts agent.Options) error {
	p.hub.Broadcast(websocket.NotificationMessage(title, opts))
	return nil
}

// HubWindows treats each connected WebSocket client as an application
// window. The kiosk display manager owns window creation, so OpenWindow can
// only ask already-connected windows to navigate.
type HubWindows struct {
	hub    *websocket.Hub
	logger *slog.Logger
}

func (h *HubWindows) Windows(context.Context) ([]agent.Window, error) {
	clients := h.hub.Clients()
	windows := make([]agent.Window, 0, len(clients))
	for _, c := range clients {
		windows = append(windows, &hubWindow{client: c})
	}
	return windows, nil
}

func (h *HubWindows) OpenWindow(_ context.Context, url string) error {
	if h.hub.ClientCount() == 0 {
		h.logger.Warn("no kiosk window connected, navigation dropped", "url", url)
		return nil
	}
	h.hub.Broadcast(websocket.NavigateMessage(url))
	return nil
}

func (h *HubWindows) Claim(context.Context) error { return nil }

type hubWindow struct {
	client *websocket.Client
}

func (w *hubWindow) CanNavigate() bool { return true }

func (w *hubWindow) Navigate(_ context.Context, url string) error {
	if !w.client.Send(websocket.NavigateMessage(url)) {
		return fmt.Errorf("window send buffer full")
	}
	return nil
}

func (w *hubWindow) Focus(_ context.Context) error {
	if !w.client.Send(websocket.FocusMessage()) {
		return fmt.Errorf("window send buffer full")
	}
	return nil
}
