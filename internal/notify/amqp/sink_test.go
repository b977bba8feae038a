package amqp_test

import (
	"context"
	"os"
	"testing"

	"github.com/lattani/trackwright/internal/notify"
	"github.com/lattani/trackwright/internal/notify/amqp"
	"github.com/lattani/trackwright/internal/store"
)

// dialTestBroker requires TEST_AMQP_URL, since no in-process RabbitMQ
// fake exists in the example pack — skipped when it's unset, the same
// way dbopen's Postgres-backed tests skip without TEST_DATABASE_URL.
func dialTestBroker(t *testing.T) *amqp.Sink {
	t.Helper()
	url := os.Getenv("TEST_AMQP_URL")
	if url == "" {
		t.Skip("TEST_AMQP_URL not set; skipping broker-backed test")
	}
	s, err := amqp.Dial(url, "trackwright.notifications.test", "notification.test")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSend_PublishesWithoutError(t *testing.T) {
	s := dialTestBroker(t)

	n := &store.Notification{
		ID:        "11111111-1111-1111-1111-111111111111",
		Type:      store.NotificationRestock,
		ProductID: "22222222-2222-2222-2222-222222222222",
		Message:   "back in stock",
		OldStatus: "out_of_stock",
		NewStatus: "in_stock",
	}
	if err := s.Send(context.Background(), n, "shopper@example.com"); err != nil {
		t.Fatalf("send: %v", err)
	}
}

func TestSend_RejectsEmptyRecipient(t *testing.T) {
	s := dialTestBroker(t)

	err := s.Send(context.Background(), &store.Notification{Type: store.NotificationPrice}, "")
	if err == nil {
		t.Fatal("expected an error for an empty recipient")
	}
	if _, ok := err.(*notify.ErrRecipientInvalid); !ok {
		t.Fatalf("expected ErrRecipientInvalid, got %T: %v", err, err)
	}
}
