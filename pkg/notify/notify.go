// Package notify delivers one-time codes to users out of band.
package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

// Channel identifies how a message is delivered.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is a single out-of-band notification.
type Message struct {
	Channel Channel
	To      string
	Subject string
	Body    string
}

// Sender delivers messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the request logger instead of delivering
// them. The body is only logged when RevealBody is set, which is meant for
// local development.
type LogSender struct {
	RevealBody bool
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	attrs := []any{
		slog.String("channel", string(msg.Channel)),
		slog.String("to", Mask(msg.To)),
		slog.String("subject", msg.Subject),
	}
	if s.RevealBody {
		attrs = append(attrs, slog.String("body", msg.Body))
	}
	slogx.FromContext(ctx).Info("notification sent", attrs...)
	return nil
}

// Mask hides most of an email local part or phone number, keeping enough for
// the user to recognise it: "alice@example.com" -> "a***e@example.com",
// "+61412345678" -> "********5678".
func Mask(dest string) string {
	if local, domain, ok := strings.Cut(dest, "@"); ok {
		switch len(local) {
		case 0:
			return "@" + domain
		case 1, 2:
			return local[:1] + "***@" + domain
		default:
			return local[:1] + "***" + local[len(local)-1:] + "@" + domain
		}
	}
	if len(dest) <= 4 {
		return strings.Repeat("*", len(dest))
	}
	return strings.Repeat("*", len(dest)-4) + dest[len(dest)-4:]
}
