package credentials

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AncientDemagogue/natours-api/internal/sdk/sqldb/sqldbtest"
	"github.com/AncientDemagogue/natours-api/internal/services/mailer"
)

const resetBase = "https://natours.io/api/v1/users/resetPassword"

// fakeNotifier records sent messages and optionally fails delivery.
type fakeNotifier struct {
	sent []mailer.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

var resetTokenRe = regexp.MustCompile(`resetPassword/([0-9a-f]{64})`)

func (f *fakeNotifier) lastToken(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sent, "no reset mail was sent")
	m := resetTokenRe.FindStringSubmatch(f.sent[len(f.sent)-1].Body)
	require.Len(t, m, 2, "reset mail does not contain a token link")
	return m[1]
}

func newResetFixture(t *testing.T) (*sqldbtest.Store, *Store, *fakeNotifier, *ResetFlow) {
	t.Helper()
	db := sqldbtest.New()
	store := NewStore(db)
	notifier := &fakeNotifier{}
	flow := NewResetFlow(store, notifier, 10*time.Minute)

	_, err := store.Create(context.Background(), validSignup())
	require.NoError(t, err)

	return db, store, notifier, flow
}

func TestRequest_StoresDigestNotPlaintext(t *testing.T) {
	t.Parallel()

	_, store, notifier, flow := newResetFixture(t)

	require.NoError(t, flow.Request(context.Background(), "jonas@example.com", resetBase))

	raw := notifier.lastToken(t)
	account, err := store.FindByEmail(context.Background(), "jonas@example.com")
	require.NoError(t, err)

	require.NotNil(t, account.ResetTokenHash)
	require.NotNil(t, account.ResetTokenExpiresAt)
	assert.Equal(t, hashResetToken(raw), *account.ResetTokenHash)
	assert.NotEqual(t, raw, *account.ResetTokenHash, "plaintext token must never be stored")
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *account.ResetTokenExpiresAt, 5*time.Second)
}

func TestRequest_UnknownEmail(t *testing.T) {
	t.Parallel()

	_, _, _, flow := newResetFixture(t)

	err := flow.Request(context.Background(), "nobody@example.com", resetBase)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestRequest_DeliveryFailureRollsBack(t *testing.T) {
	t.Parallel()

	_, store, notifier, flow := newResetFixture(t)
	notifier.err = errors.New("smtp down")

	err := flow.Request(context.Background(), "jonas@example.com", resetBase)
	require.ErrorIs(t, err, ErrDeliveryFailed)

	account, err := store.FindByEmail(context.Background(), "jonas@example.com")
	require.NoError(t, err)
	assert.Nil(t, account.ResetTokenHash, "reset digest must be rolled back on delivery failure")
	assert.Nil(t, account.ResetTokenExpiresAt)
}

func TestConsume_SetsPasswordAndClearsToken(t *testing.T) {
	t.Parallel()

	_, store, notifier, flow := newResetFixture(t)
	require.NoError(t, flow.Request(context.Background(), "jonas@example.com", resetBase))
	raw := notifier.lastToken(t)

	account, err := flow.Consume(context.Background(), raw, "brandnew123", "brandnew123")
	require.NoError(t, err)

	assert.True(t, store.VerifyPassword(account, "brandnew123"))
	assert.False(t, store.VerifyPassword(account, "secret1234"))
	assert.Nil(t, account.ResetTokenHash)
	assert.Nil(t, account.ResetTokenExpiresAt)
	require.NotNil(t, account.PasswordChangedAt)
}

func TestConsume_SingleUse(t *testing.T) {
	t.Parallel()

	_, _, notifier, flow := newResetFixture(t)
	require.NoError(t, flow.Request(context.Background(), "jonas@example.com", resetBase))
	raw := notifier.lastToken(t)

	_, err := flow.Consume(context.Background(), raw, "brandnew123", "brandnew123")
	require.NoError(t, err)

	_, err = flow.Consume(context.Background(), raw, "anothernew123", "anothernew123")
	require.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestConsume_WrongToken(t *testing.T) {
	t.Parallel()

	_, _, _, flow := newResetFixture(t)
	require.NoError(t, flow.Request(context.Background(), "jonas@example.com", resetBase))

	_, err := flow.Consume(context.Background(), "deadbeef", "brandnew123", "brandnew123")
	require.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestConsume_Expired(t *testing.T) {
	t.Parallel()

	db, store, notifier, flow := newResetFixture(t)
	require.NoError(t, flow.Request(context.Background(), "jonas@example.com", resetBase))
	raw := notifier.lastToken(t)

	// Move the stored expiry into the past, as if 11 minutes went by.
	account, err := store.FindByEmail(context.Background(), "jonas@example.com")
	require.NoError(t, err)
	require.NoError(t, db.SetResetToken(context.Background(), account.ID, hashResetToken(raw), time.Now().Add(-time.Minute)))

	_, err = flow.Consume(context.Background(), raw, "brandnew123", "brandnew123")
	require.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestConsume_ConfirmMismatchKeepsToken(t *testing.T) {
	t.Parallel()

	_, _, notifier, flow := newResetFixture(t)
	require.NoError(t, flow.Request(context.Background(), "jonas@example.com", resetBase))
	raw := notifier.lastToken(t)

	_, err := flow.Consume(context.Background(), raw, "brandnew123", "different")
	require.ErrorIs(t, err, ErrPasswordMismatch)

	// The token was not consumed and still works.
	_, err = flow.Consume(context.Background(), raw, "brandnew123", "brandnew123")
	require.NoError(t, err)
}
