package credentials

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
	"github.com/AncientDemagogue/natours-api/internal/sdk/sqldb"
	"github.com/AncientDemagogue/natours-api/internal/services/mailer"
)

const resetTokenLength = 32 // 32 bytes = 64 hex characters

var (
	ErrResetTokenInvalid = errors.New("invalid_or_expired_reset_token")
	ErrDeliveryFailed    = errors.New("reset_delivery_failed")
)

// Notifier is the outbound delivery contract the reset flow depends on.
type Notifier interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// ResetFlow runs the two-phase password-reset protocol: Request stores
// a token digest and mails the plaintext value, Consume trades a
// presented plaintext token for a new password.
type ResetFlow struct {
	store  *Store
	notify Notifier
	ttl    time.Duration
}

func NewResetFlow(store *Store, notify Notifier, ttl time.Duration) *ResetFlow {
	return &ResetFlow{
		store:  store,
		notify: notify,
		ttl:    ttl,
	}
}

// Request looks up the account, stores a reset-token digest with its
// expiry, and mails the plaintext token embedded in resetURLBase. The
// plaintext value is never persisted. If delivery fails the stored
// digest is rolled back before the error is reported, so no reset
// token outlives an unacknowledged delivery.
func (f *ResetFlow) Request(ctx context.Context, email, resetURLBase string) error {
	account, err := f.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	raw, err := generateResetToken()
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}

	digest := hashResetToken(raw)
	expiresAt := time.Now().Add(f.ttl)

	if err := f.store.db.SetResetToken(ctx, account.ID, digest, expiresAt); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	resetURL := strings.TrimRight(resetURLBase, "/") + "/" + raw
	msg := mailer.Message{
		To:      account.Email,
		Subject: fmt.Sprintf("Your password reset token (valid for %d min)", int(f.ttl.Minutes())),
		Body: fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\n"+
			"If you didn't forget your password, please ignore this email.", resetURL),
	}

	if err := f.notify.Send(ctx, msg); err != nil {
		if clearErr := f.store.db.ClearResetToken(ctx, account.ID); clearErr != nil {
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrDeliveryFailed, err, clearErr)
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return nil
}

// Consume validates the new password, digests the presented token and
// performs the single atomic find-matching-and-clear update. Wrong,
// expired and already-consumed tokens are indistinguishable to the
// caller. On success the account's reset fields are gone and the new
// hash is in place.
func (f *ResetFlow) Consume(ctx context.Context, rawToken, password, passwordConfirm string) (models.Account, error) {
	if err := validateNewPassword(password, passwordConfirm); err != nil {
		return models.Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	changedAt := now.Add(-passwordChangeBackdate)

	account, err := f.store.db.ConsumeResetToken(ctx, hashResetToken(rawToken), hash, changedAt, now)
	if err != nil {
		if sqldb.IsNotFound(err) {
			return models.Account{}, ErrResetTokenInvalid
		}
		return models.Account{}, err
	}

	return account, nil
}

// generateResetToken returns a high-entropy random value, hex encoded.
func generateResetToken() (string, error) {
	buf := make([]byte, resetTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// hashResetToken derives the stored digest from a plaintext token.
func hashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
