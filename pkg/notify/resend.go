package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

const DefaultEmailFrom = "noreply@authflow.com"

// emailAPI is the part of the Resend client ResendSender uses.
type emailAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendSender delivers email through the Resend API.
type ResendSender struct {
	emails emailAPI
	from   string
}

// NewResendSender builds a sender for apiKey. An empty from falls back to
// DefaultEmailFrom.
func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, errors.New("notify: resend api key is required")
	}
	if from == "" {
		from = DefaultEmailFrom
	}
	return &ResendSender{emails: resend.NewClient(apiKey).Emails, from: from}, nil
}

func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if msg.Channel != ChannelEmail {
		return fmt.Errorf("%w %q", ErrNoSender, msg.Channel)
	}
	_, err := s.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

func (s *ResendSender) Supports(c Channel) bool { return c == ChannelEmail }
