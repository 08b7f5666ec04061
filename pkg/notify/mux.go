package notify

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSender is returned for a channel nobody can deliver on.
var ErrNoSender = errors.New("notify: no sender for channel")

// Mux routes each channel to its own Sender. Channels without an entry are
// unsupported.
type Mux map[Channel]Sender

func (m Mux) Send(ctx context.Context, msg Message) error {
	s, ok := m[msg.Channel]
	if !ok {
		return fmt.Errorf("%w %q", ErrNoSender, msg.Channel)
	}
	return s.Send(ctx, msg)
}

func (m Mux) Supports(c Channel) bool {
	_, ok := m[c]
	return ok
}

// Supports reports whether s can deliver on c. Senders that do not say
// otherwise are assumed to handle every channel.
func Supports(s Sender, c Channel) bool {
	if s == nil {
		return false
	}
	if cs, ok := s.(interface{ Supports(Channel) bool }); ok {
		return cs.Supports(c)
	}
	return true
}
