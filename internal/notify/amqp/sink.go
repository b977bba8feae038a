// Package amqp delivers notifications by publishing them onto a RabbitMQ
// exchange, leaving fanout to whatever queues are bound to it (a separate
// mail-sending consumer, a chat-bot bridge, an audit log). Dial/Channel/
// Publish shape follows the teacher pack's queue publisher idiom, adapted
// from a default-exchange/named-queue publish to an explicit named exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/lattani/trackwright/internal/notify"
	"github.com/lattani/trackwright/internal/store"
)

// Sink publishes one message per notification onto a durable topic exchange.
type Sink struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	routing  string
}

// Dial connects to the broker at url and declares exchange as a durable
// topic exchange. routing is used as the publish routing key for every
// message; a deployment that wants per-type routing can include the
// notification type in the key at the call site instead.
func Dial(url, exchange, routing string) (*Sink, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify/amqp: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify/amqp: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("notify/amqp: declare exchange: %w", err)
	}

	return &Sink{conn: conn, channel: ch, exchange: exchange, routing: routing}, nil
}

type message struct {
	NotificationID string    `json:"notification_id"`
	Type           string    `json:"type"`
	ProductID      string    `json:"product_id"`
	VariantID      string    `json:"variant_id,omitempty"`
	Recipient      string    `json:"recipient"`
	Message        string    `json:"message"`
	OldStatus      string    `json:"old_status,omitempty"`
	NewStatus      string    `json:"new_status,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Send publishes n as a JSON body onto the configured exchange. The broker,
// not this Sink, is responsible for getting it to a human.
func (s *Sink) Send(ctx context.Context, n *store.Notification, recipientEmail string) error {
	if recipientEmail == "" {
		return &notify.ErrRecipientInvalid{Recipient: recipientEmail}
	}

	body, err := json.Marshal(message{
		NotificationID: n.ID,
		Type:           string(n.Type),
		ProductID:      n.ProductID,
		VariantID:      n.VariantID,
		Recipient:      recipientEmail,
		Message:        n.Message,
		OldStatus:      n.OldStatus,
		NewStatus:      n.NewStatus,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("notify/amqp: marshal notification: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		s.exchange,
		s.routing,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return &notify.ErrSinkUnavailable{Sink: "amqp", Cause: err}
	}
	return nil
}

// Close releases the channel and connection.
func (s *Sink) Close() error {
	chErr := s.channel.Close()
	connErr := s.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}
