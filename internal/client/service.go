package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yahel-nav/yahel/internal/model"
)

// Platform abstracts the runtime's push machinery: feature detection,
// permission prompts, agent registration, and the raw subscription objects.
type Platform interface {
	Supported() bool
	Register(ctx context.Context) error
	Permission() model.Permission
	RequestPermission(ctx context.Context) (model.Permission, error)
	Subscribe(ctx context.Context, vapidPublicKey string) (model.WebPushSubscription, error)
	Subscription(ctx context.Context) (*model.WebPushSubscription, error)
	Unsubscribe(ctx context.Context, endpoint string) error
}

type lifecycleState int

const (
	stateUninitialized lifecycleState = iota
	stateInitializing
	stateReady
)

// Service drives the client side of the subscription lifecycle. All
// operations fail fast with ErrUnsupported on platforms without push, and
// nothing touches the network before that check.
type Service struct {
	platform Platform
	api      *API
	userID   string
	logger   *slog.Logger

	mu       sync.Mutex
	state    lifecycleState
	vapidKey string
}

func NewService(platform Platform, api *API, userID string, logger *slog.Logger) *Service {
	return &Service{
		platform: platform,
		api:      api,
		userID:   userID,
		logger:   logger.With("component", "push_client"),
	}
}

// Supported reports whether the platform can deliver push at all.
func (s *Service) Supported() bool { return s.platform.Supported() }

// Permission returns the current consent state, or unsupported when the
// platform has no push machinery.
func (s *Service) Permission() model.Permission {
	if !s.platform.Supported() {
		return model.PermissionUnsupported
	}
	return s.platform.Permission()
}

// Initialize registers the delivery agent and caches the server's VAPID
// public key. It is safe to call more than once; only the first call does
// work. A key fetch failure surfaces as *KeyFetchError and leaves the
// service uninitialized so a later call can retry.
func (s *Service) Initialize(ctx context.Context) error {
	if !s.platform.Supported() {
		return ErrUnsupported
	}

	s.mu.Lock()
	if s.state == stateReady {
		s.mu.Unlock()
		return nil
	}
	if s.state == stateInitializing {
		s.mu.Unlock()
		return fmt.Errorf("initialization already in progress")
	}
	s.state = stateInitializing
	s.mu.Unlock()

	fail := func(err error) error {
		s.mu.Lock()
		s.state = stateUninitialized
		s.mu.Unlock()
		return err
	}

	if err := s.platform.Register(ctx); err != nil {
		return fail(fmt.Errorf("register delivery agent: %w", err))
	}

	key, err := s.api.VAPIDPublicKey(ctx)
	if err != nil {
		return fail(err)
	}

	s.mu.Lock()
	s.state = stateReady
	s.vapidKey = key
	s.mu.Unlock()
	s.logger.Info("push client initialized", "user_id", s.userID)
	return nil
}

// RequestPermission triggers the platform consent prompt once. A hard
// refusal maps to ErrPermissionDenied; closing the prompt without deciding
// maps to ErrPermissionDismissed, which callers may retry later.
func (s *Service) RequestPermission(ctx context.Context) error {
	if !s.platform.Supported() {
		return ErrUnsupported
	}
	perm, err := s.platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	switch perm {
	case model.PermissionGranted:
		return nil
	case model.PermissionDenied:
		return ErrPermissionDenied
	default:
		return ErrPermissionDismissed
	}
}

// Subscribe obtains notification permission if needed, creates a platform
// subscription with the cached VAPID key, and registers it with the
// backend. A backend rejection rolls the platform subscription back so the
// two sides never disagree.
func (s *Service) Subscribe(ctx context.Context) (*model.WebPushSubscription, error) {
	if !s.platform.Supported() {
		return nil, ErrUnsupported
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	key := s.vapidKey
	s.mu.Unlock()

	switch s.platform.Permission() {
	case model.PermissionDenied:
		return nil, ErrPermissionDenied
	case model.PermissionDefault:
		if err := s.RequestPermission(ctx); err != nil {
			return nil, err
		}
	}

	sub, err := s.platform.Subscribe(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("create platform subscription: %w", err)
	}

	if err := s.api.Subscribe(ctx, s.userID, sub); err != nil {
		if rbErr := s.platform.Unsubscribe(ctx, sub.Endpoint); rbErr != nil {
			s.logger.Error("rollback platform subscription failed", "error", rbErr)
		}
		var be *BackendError
		if errors.As(err, &be) {
			return nil, fmt.Errorf("%w: %v", ErrSubscriptionRejected, err)
		}
		return nil, fmt.Errorf("register subscription: %w", err)
	}

	s.logger.Info("subscribed", "user_id", s.userID)
	return &sub, nil
}

// Unsubscribe tears down both the platform subscription and the backend
// record. It is idempotent: unsubscribing while unsubscribed succeeds.
func (s *Service) Unsubscribe(ctx context.Context) error {
	if !s.platform.Supported() {
		return ErrUnsupported
	}

	sub, err := s.platform.Subscription(ctx)
	if err != nil {
		return fmt.Errorf("read platform subscription: %w", err)
	}
	if sub == nil {
		return nil
	}

	if err := s.platform.Unsubscribe(ctx, sub.Endpoint); err != nil {
		return fmt.Errorf("remove platform subscription: %w", err)
	}

	if err := s.api.Unsubscribe(ctx, s.userID, sub.Endpoint); err != nil {
		var be *BackendError
		// A record the server already lost counts as removed.
		if errors.As(err, &be) && be.Status == 404 {
			return nil
		}
		return fmt.Errorf("remove backend subscription: %w", err)
	}

	s.logger.Info("unsubscribed", "user_id", s.userID)
	return nil
}

// GetSubscription returns the current platform subscription, or nil when
// there is none or the platform cannot say. It never returns an error.
func (s *Service) GetSubscription(ctx context.Context) *model.WebPushSubscription {
	if !s.platform.Supported() {
		return nil
	}
	sub, err := s.platform.Subscription(ctx)
	if err != nil {
		s.logger.Warn("read platform subscription failed", "error", err)
		return nil
	}
	return sub
}
