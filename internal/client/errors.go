package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for the subscription lifecycle. Callers branch on these
// with errors.Is to pick the right user-facing message.
var (
	// ErrUnsupported means the platform cannot deliver push notifications
	// at all. Every operation short-circuits on it before touching the
	// network.
	ErrUnsupported = errors.New("push notifications not supported on this platform")

	// ErrPermissionDenied means the user has blocked notifications. Only
	// the user can reverse this from platform settings.
	ErrPermissionDenied = errors.New("notification permission denied")

	// ErrPermissionDismissed means the permission prompt was closed
	// without a decision. Asking again later is allowed.
	ErrPermissionDismissed = errors.New("notification permission dismissed")

	// ErrSubscriptionRejected means the backend refused to store an
	// otherwise valid platform subscription. The platform subscription is
	// rolled back before this is returned.
	ErrSubscriptionRejected = errors.New("backend rejected subscription")
)

// KeyFetchError wraps a failure to obtain the server's VAPID public key,
// which blocks subscribing but nothing else.
type KeyFetchError struct {
	Err error
}

func (e *KeyFetchError) Error() string {
	return fmt.Sprintf("fetch VAPID public key: %v", e.Err)
}

func (e *KeyFetchError) Unwrap() error { return e.Err }

// BackendError is a non-2xx response from the notification API.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}
