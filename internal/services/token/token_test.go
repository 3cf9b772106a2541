package token

import (
	"errors"
	"testing"
	"time"
)

func newTestCodec(secret string, validity time.Duration) *Codec {
	return New(Config{
		Secret:   []byte(secret),
		Issuer:   "natours-test",
		Validity: validity,
	})
}

func TestSignAndVerify_Success(t *testing.T) {
	t.Parallel()

	c := newTestCodec("super-secret", time.Hour)

	tok, err := c.Sign("account-123")
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	claims, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Subject != "account-123" {
		t.Fatalf("subject mismatch: got %q want %q", claims.Subject, "account-123")
	}
	if claims.IssuedAt == nil {
		t.Fatal("expected issued-at claim")
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	c := newTestCodec("secret", -1*time.Second)

	tok, err := c.Sign("a1")
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	_, err = c.Verify(tok)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := newTestCodec("right-secret", time.Hour).Sign("a2")
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	_, err = newTestCodec("wrong-secret", time.Hour).Verify(tok)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	_, err := newTestCodec("k", time.Hour).Verify("not.a.jwt")
	if !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()

	other := New(Config{Secret: []byte("k"), Issuer: "someone-else", Validity: time.Hour})
	tok, err := other.Sign("a3")
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	_, err = newTestCodec("k", time.Hour).Verify(tok)
	if !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected ErrInvalidClaims, got %v", err)
	}
}
