package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/authflow/internal/auth/domain"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/idx"
	"github.com/aussiebroadwan/authflow/pkg/notify"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

const (
	DefaultChallengeTTL = 10 * time.Minute

	otpDigits       = 6
	totpPeriod      = 30
	totpSkew        = 1
	backupCodeCount = 10

	releaseTimeout = 2 * time.Second
)

var errChallengeTaken = errors.New("challenge_taken")

// MFAService runs the per-(user, method) challenge state machine:
// no challenge -> pending -> consumed, or pending -> expired. Setup always
// replaces the stored challenge, so only the newest one can be verified.
type MFAService struct {
	Store store.Store

	// Challenges keeps pending challenges outside Store, e.g. in redis.
	// When nil they live in Store and are consumed inside the same
	// transaction that records the factor.
	Challenges store.MFAChallenges
	Sender     notify.Sender

	// Issuer shown in authenticator apps.
	Issuer       string
	ChallengeTTL time.Duration
	Now          func() time.Time
}

func (s *MFAService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MFAService) challenges() store.MFAChallenges {
	if s.Challenges != nil {
		return s.Challenges
	}
	return s.Store.MFAChallenges()
}

func (s *MFAService) txChallenges(tx store.Tx) store.MFAChallenges {
	if s.Challenges != nil {
		return s.Challenges
	}
	return tx.MFAChallenges()
}

func (s *MFAService) ttl() time.Duration {
	if s.ChallengeTTL > 0 {
		return s.ChallengeTTL
	}
	return DefaultChallengeTTL
}

// Setup starts a new challenge for user and method, superseding any earlier
// one for the same method.
func (s *MFAService) Setup(ctx context.Context, user domain.User, method string) (domain.SetupPayload, error) {
	m, ok := domain.ParseMFAMethod(method)
	if !ok {
		return domain.SetupPayload{}, ErrUnsupportedMFAMethod
	}

	now := s.now()
	ch := domain.MFAChallenge{
		ID:        idx.NewAt(now).String(),
		UserID:    user.ID,
		Method:    m,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl()),
	}
	payload := domain.SetupPayload{Method: m, ExpiresAt: ch.ExpiresAt}

	var msg notify.Message
	switch m {
	case domain.MFAMethodTOTP:
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.Issuer,
			AccountName: user.Email,
			Period:      totpPeriod,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			return domain.SetupPayload{}, fmt.Errorf("generate totp key: %w", err)
		}
		ch.Secret = key.Secret()
		payload.Secret = key.Secret()
		payload.OTPAuthURL = key.URL()
		payload.Issuer = s.Issuer
		payload.Account = user.Email

	case domain.MFAMethodEmail, domain.MFAMethodSMS:
		channel, dest := notify.ChannelEmail, user.Email
		if m == domain.MFAMethodSMS {
			channel, dest = notify.ChannelSMS, user.PhoneNumber
		}
		if !notify.Supports(s.Sender, channel) {
			return domain.SetupPayload{}, ErrMFADeliveryUnavailable
		}
		if dest == "" {
			return domain.SetupPayload{}, ErrMFADestinationMissing
		}

		code, err := cryptox.GenerateNumericCode(otpDigits)
		if err != nil {
			return domain.SetupPayload{}, fmt.Errorf("generate code: %w", err)
		}
		ch.Secret = cryptox.FingerprintToken(code)
		payload.Delivery = string(channel)
		payload.Destination = notify.Mask(dest)
		msg = notify.Message{
			Channel: channel,
			To:      dest,
			Subject: "Your verification code",
			Body:    fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.ttl().Minutes())),
		}
	}

	if err := s.challenges().UpsertChallenge(ctx, ch); err != nil {
		return domain.SetupPayload{}, upstream("upsert challenge", err)
	}

	// Sent after the write so the code is already verifiable on arrival.
	if msg.To != "" {
		if err := s.Sender.Send(ctx, msg); err != nil {
			return domain.SetupPayload{}, upstream("send code", err)
		}
	}

	slogx.FromContext(ctx).Info("mfa challenge created",
		"user_id", user.ID,
		"method", string(m),
		"challenge_id", ch.ID,
	)
	return payload, nil
}

// Verify checks code against the pending challenge and, on success, marks
// the challenge consumed and records the factor on the user. Of several
// concurrent verifies with the right code exactly one succeeds.
func (s *MFAService) Verify(ctx context.Context, user domain.User, code, method string) (domain.VerifyResult, error) {
	m, ok := domain.ParseMFAMethod(method)
	if !ok {
		return domain.VerifyResult{}, ErrUnsupportedMFAMethod
	}

	now := s.now()
	ch, err := s.check(ctx, user.ID, m, code, now)
	if err != nil {
		return domain.VerifyResult{}, err
	}

	var secret *string
	if m == domain.MFAMethodTOTP {
		secret = &ch.Secret
	}

	var (
		backupCodes []string
		consumed    bool
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.consumeIn(ctx, tx, ch, now); err != nil {
			return err
		}
		consumed = true

		first, err := tx.Users().EnableMFA(ctx, user.ID, m, secret, now)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}

		codes, err := generateBackupCodes()
		if err != nil {
			return err
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, user.ID); err != nil {
			return err
		}
		for _, c := range codes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, user.ID, cryptox.FingerprintToken(c)); err != nil {
				return err
			}
		}
		backupCodes = codes
		return nil
	})
	if err != nil {
		if consumed {
			s.release(ctx, ch, now)
		}
		switch {
		case errors.Is(err, errChallengeTaken):
			return domain.VerifyResult{}, s.lostRace(ctx, ch)
		case errors.Is(err, store.ErrNotFound):
			return domain.VerifyResult{}, ErrUnknownUser
		default:
			return domain.VerifyResult{}, upstream("enable mfa", err)
		}
	}

	slogx.FromContext(ctx).Info("mfa verified",
		"user_id", user.ID,
		"method", string(m),
		"first_enablement", backupCodes != nil,
	)
	return domain.VerifyResult{Method: m, MFAEnabled: true, BackupCodes: backupCodes}, nil
}

// Disable turns MFA off. code may be a current TOTP code (TOTP users), a
// code from a fresh challenge of the enrolled method (email/sms users), or
// any unused backup code.
func (s *MFAService) Disable(ctx context.Context, user domain.User, code string) error {
	code = strings.TrimSpace(code)
	now := s.now()

	current, err := s.Store.Users().GetUserByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownUser
		}
		return upstream("get user", err)
	}
	if !current.MFAEnabled() {
		return ErrMFANotEnabled
	}

	accepted := false
	var pending *domain.MFAChallenge
	switch {
	case current.MFAMethod == domain.MFAMethodTOTP && current.MFASecret != nil:
		accepted = validTOTP(code, *current.MFASecret, now)
	case current.MFAMethod.IsOTP():
		ch, err := s.check(ctx, current.ID, current.MFAMethod, code, now)
		switch {
		case err == nil:
			pending = &ch
		case errors.Is(err, ErrUpstreamUnavailable):
			return err
		}
	}

	consumed := false
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if !accepted && pending != nil {
			err := s.consumeIn(ctx, tx, *pending, now)
			switch {
			case err == nil:
				accepted, consumed = true, true
			case !errors.Is(err, errChallengeTaken):
				return err
			}
		}
		if !accepted {
			ok, err := tx.BackupCodes().ConsumeBackupCode(ctx, current.ID, cryptox.FingerprintToken(code))
			if err != nil {
				return upstream("consume backup code", err)
			}
			if !ok {
				return ErrMFACodeMismatch
			}
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, current.ID); err != nil {
			return upstream("delete backup codes", err)
		}
		if err := tx.Users().DisableMFA(ctx, current.ID); err != nil {
			return upstream("disable mfa", err)
		}
		return nil
	})
	if err != nil {
		if consumed {
			s.release(ctx, *pending, now)
		}
		if errors.Is(err, ErrMFACodeMismatch) || errors.Is(err, ErrUpstreamUnavailable) {
			return err
		}
		return upstream("disable mfa", err)
	}

	slogx.FromContext(ctx).Info("mfa disabled", "user_id", current.ID)
	return nil
}

// PurgeExpired deletes challenges past their expiry. Verification never
// relies on it; expiry is evaluated on read.
func (s *MFAService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.challenges().DeleteExpiredChallenges(ctx, s.now())
	if err != nil {
		return 0, upstream("purge challenges", err)
	}
	return n, nil
}

// check matches code against the pending challenge without changing it.
func (s *MFAService) check(
	ctx context.Context,
	userID string,
	m domain.MFAMethod,
	code string,
	now time.Time,
) (domain.MFAChallenge, error) {
	code = strings.TrimSpace(code)

	ch, err := s.challenges().GetChallenge(ctx, userID, m)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAChallenge{}, ErrNoActiveChallenge
		}
		return domain.MFAChallenge{}, upstream("get challenge", err)
	}

	switch ch.State(now) {
	case domain.ChallengeConsumed:
		return domain.MFAChallenge{}, ErrMFAAlreadyConsumed
	case domain.ChallengeExpired:
		return domain.MFAChallenge{}, ErrMFAExpired
	}

	var match bool
	if m == domain.MFAMethodTOTP {
		match = validTOTP(code, ch.Secret, now)
	} else {
		match = cryptox.FingerprintMatches(code, ch.Secret)
	}
	if !match {
		return domain.MFAChallenge{}, ErrMFACodeMismatch
	}
	return ch, nil
}

// consumeIn performs the pending -> consumed transition for a checked
// challenge inside tx. errChallengeTaken means another caller got there
// first or a new setup replaced it.
func (s *MFAService) consumeIn(ctx context.Context, tx store.Tx, ch domain.MFAChallenge, now time.Time) error {
	won, err := s.txChallenges(tx).ConsumeChallenge(ctx, ch.UserID, ch.Method, ch.ID, now)
	if err != nil {
		return upstream("consume challenge", err)
	}
	if !won {
		return errChallengeTaken
	}
	return nil
}

// lostRace re-reads a challenge whose consume did not apply and reports
// why.
func (s *MFAService) lostRace(ctx context.Context, ch domain.MFAChallenge) error {
	cur, err := s.challenges().GetChallenge(ctx, ch.UserID, ch.Method)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNoActiveChallenge
	case err != nil:
		return upstream("get challenge", err)
	case cur.ID == ch.ID && cur.ConsumedAt != nil:
		return ErrMFAAlreadyConsumed
	default:
		return ErrNoActiveChallenge
	}
}

// release puts back a challenge consumed outside the failed transaction,
// so the same code can be retried. A rolled back SQL transaction has
// already undone its own consume.
func (s *MFAService) release(ctx context.Context, ch domain.MFAChallenge, at time.Time) {
	if s.Challenges == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if _, err := s.Challenges.ReleaseChallenge(ctx, ch.UserID, ch.Method, ch.ID, at); err != nil {
		slogx.FromContext(ctx).Warn("failed to release mfa challenge",
			"user_id", ch.UserID,
			"challenge_id", ch.ID,
			"error", err,
		)
	}
}

func validTOTP(code, secret string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func generateBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range codes {
		c, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = c
	}
	return codes, nil
}
