// Package smtp delivers notifications over plain SMTP using the standard
// library's net/smtp. No third-party mail-sending library appears anywhere
// in the example pack, so this is the one ambient concern in this repo
// built directly on the standard library rather than an ecosystem package.
package smtp

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/lattani/trackwright/internal/notify"
	"github.com/lattani/trackwright/internal/store"
)

// Sink sends one email per notification via a configured SMTP relay.
type Sink struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// New builds a Sink. No connection is opened until Send is called —
// net/smtp.SendMail dials per message, matching how a low-volume
// notification delivery loop is expected to use it.
func New(host string, port int, user, pass, from string) *Sink {
	return &Sink{Host: host, Port: port, User: user, Pass: pass, From: from}
}

// Send delivers n to recipientEmail. ctx is not used: net/smtp.SendMail has
// no context-aware variant, so a send cannot be cancelled once started.
func (s *Sink) Send(ctx context.Context, n *store.Notification, recipientEmail string) error {
	if strings.TrimSpace(recipientEmail) == "" {
		return &notify.ErrRecipientInvalid{Recipient: recipientEmail}
	}

	addr := net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	msg := buildMessage(s.From, recipientEmail, n)
	if err := smtp.SendMail(addr, auth, s.From, []string{recipientEmail}, msg); err != nil {
		return &notify.ErrSinkUnavailable{Sink: "smtp", Cause: err}
	}
	return nil
}

func buildMessage(from, to string, n *store.Notification) []byte {
	subject := subjectFor(n)
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(n.Message)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func subjectFor(n *store.Notification) string {
	switch n.Type {
	case store.NotificationRestock:
		return "Back in stock"
	case store.NotificationPrice:
		return "Price drop alert"
	default:
		return "Stock update"
	}
}
