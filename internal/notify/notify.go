// Package notify defines the one-way delivery boundary between a
// Notification row ingestion has already created and whatever external
// channel (SMTP, a message broker) actually gets it in front of a user.
//
// This is deliberately narrower than the teacher's channels.Channel
// interface: no Listen, no Status, no platform factories — a Sink only
// ever sends, and is told exactly what to send.
package notify

import (
	"context"
	"fmt"

	"github.com/lattani/trackwright/internal/store"
)

// Sink delivers one notification to one recipient. Implementations never
// retry internally; the delivery loop calling Send decides whether a
// failure is worth a later re-attempt.
type Sink interface {
	Send(ctx context.Context, n *store.Notification, recipientEmail string) error
}

// ErrSinkUnavailable is returned when the underlying transport (SMTP
// server, AMQP broker) could not be reached at all.
type ErrSinkUnavailable struct {
	Sink  string
	Cause error
}

func (e *ErrSinkUnavailable) Error() string {
	return fmt.Sprintf("notify: sink %s unavailable: %v", e.Sink, e.Cause)
}

func (e *ErrSinkUnavailable) Unwrap() error { return e.Cause }

// ErrRecipientInvalid is returned when the recipient address itself is
// unusable (empty, malformed) — a failure no retry will fix.
type ErrRecipientInvalid struct {
	Recipient string
}

func (e *ErrRecipientInvalid) Error() string {
	return fmt.Sprintf("notify: invalid recipient %q", e.Recipient)
}
