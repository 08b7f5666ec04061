package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageAPI is the part of the Twilio client TwilioSender uses.
type messageAPI interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioSender delivers SMS through Twilio's Messages API.
type TwilioSender struct {
	messages messageAPI
	from     string
}

// NewTwilioSender builds a sender for the account. from is the Twilio
// phone number messages are sent from.
func NewTwilioSender(accountSID, authToken, from string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("notify: twilio account sid, auth token and from number are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{messages: client.Api, from: from}, nil
}

// Send posts the message. The Twilio client has no context support, so ctx
// is only checked before the call.
func (s *TwilioSender) Send(ctx context.Context, msg Message) error {
	if msg.Channel != ChannelSMS {
		return fmt.Errorf("%w %q", ErrNoSender, msg.Channel)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(s.from)
	params.SetBody(msg.Body)

	if _, err := s.messages.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	return nil
}

func (s *TwilioSender) Supports(c Channel) bool { return c == ChannelSMS }
