package app

import (
	"log/slog"

	"github.com/aussiebroadwan/authflow/pkg/notify"
)

// NewSender picks a delivery provider per channel. In dev a channel without
// a provider falls back to logging; elsewhere it is left out, and MFA setup
// for that method is refused.
func NewSender(cfg Config, logger *slog.Logger) (notify.Mux, error) {
	mux := notify.Mux{}

	if cfg.ResendAPIKey != "" {
		s, err := notify.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
		if err != nil {
			return nil, err
		}
		mux[notify.ChannelEmail] = s
	}

	// Partial Twilio settings are a mistake, not a request to disable SMS.
	if cfg.TwilioAccountSID != "" || cfg.TwilioAuthToken != "" || cfg.TwilioFrom != "" {
		s, err := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
		if err != nil {
			return nil, err
		}
		mux[notify.ChannelSMS] = s
	}

	for _, c := range []notify.Channel{notify.ChannelEmail, notify.ChannelSMS} {
		if mux.Supports(c) {
			continue
		}
		if cfg.Env == "dev" {
			mux[c] = notify.LogSender{RevealBody: cfg.RevealNotificationBody}
			logger.Warn("no delivery provider configured, codes are only logged", "channel", c)
			continue
		}
		logger.Warn("no delivery provider configured, mfa method disabled", "channel", c)
	}
	return mux, nil
}
