package notify

import (
	"context"
	"time"
)

// Notification is a one-shot, user-facing message about a failed cart operation.
type Notification struct {
	SessionID string    `json:"session_id,omitempty"`
	Op        string    `json:"op"`
	ProductID int64     `json:"product_id,omitempty"`
	Message   string    `json:"message"`
	Cause     string    `json:"cause,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers notifications. Implementations must not block the caller
// for long and never report delivery failures back.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}

// WithSession stamps every notification with the shopper session it belongs to.
func WithSession(next Notifier, sessionID string) Notifier {
	return sessionNotifier{next: next, sessionID: sessionID}
}

type sessionNotifier struct {
	next      Notifier
	sessionID string
}

func (s sessionNotifier) Notify(ctx context.Context, n Notification) {
	n.SessionID = s.sessionID
	s.next.Notify(ctx, n)
}
