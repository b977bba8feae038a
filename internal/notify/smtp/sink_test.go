package smtp_test

import (
	"context"
	"testing"

	"github.com/lattani/trackwright/internal/notify"
	"github.com/lattani/trackwright/internal/notify/smtp"
	"github.com/lattani/trackwright/internal/store"
)

func TestSend_RejectsEmptyRecipient(t *testing.T) {
	s := smtp.New("localhost", 2525, "", "", "alerts@trackwright.test")

	err := s.Send(context.Background(), &store.Notification{Type: store.NotificationPrice, Message: "price dropped"}, "")
	if err == nil {
		t.Fatal("expected an error for an empty recipient")
	}
	var recipientErr *notify.ErrRecipientInvalid
	if !asErrRecipientInvalid(err, &recipientErr) {
		t.Fatalf("expected ErrRecipientInvalid, got %T: %v", err, err)
	}
}

func TestSend_UnreachableHostReturnsSinkUnavailable(t *testing.T) {
	// Port 1 is reserved and nothing will ever answer on it, so SendMail
	// fails fast on dial without touching the network stack's retry logic.
	s := smtp.New("127.0.0.1", 1, "", "", "alerts@trackwright.test")

	err := s.Send(context.Background(), &store.Notification{Type: store.NotificationStock, Message: "stock update"}, "shopper@example.com")
	if err == nil {
		t.Fatal("expected an error dialing an unreachable host")
	}
	var sinkErr *notify.ErrSinkUnavailable
	if !asErrSinkUnavailable(err, &sinkErr) {
		t.Fatalf("expected ErrSinkUnavailable, got %T: %v", err, err)
	}
}

func asErrRecipientInvalid(err error, target **notify.ErrRecipientInvalid) bool {
	if e, ok := err.(*notify.ErrRecipientInvalid); ok {
		*target = e
		return true
	}
	return false
}

func asErrSinkUnavailable(err error, target **notify.ErrSinkUnavailable) bool {
	if e, ok := err.(*notify.ErrSinkUnavailable); ok {
		*target = e
		return true
	}
	return false
}
