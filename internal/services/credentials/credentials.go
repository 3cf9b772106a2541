// Package credentials owns account records, password hashing and
// verification, and the password-reset protocol.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
	"github.com/AncientDemagogue/natours-api/internal/sdk/sqldb"
)

const (
	bcryptCost        = 12
	minPasswordLength = 8

	// A token can be issued in the same instant the new hash is being
	// written; backdating the change timestamp slightly keeps such a
	// token on the valid side of the cutoff.
	passwordChangeBackdate = 1 * time.Second
)

var (
	ErrPasswordMismatch = errors.New("password_mismatch")
	ErrPasswordTooShort = errors.New("password_too_short")
	ErrEmailInvalid     = errors.New("invalid_email")
	ErrNameRequired     = errors.New("name_required")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrAccountExists    = errors.New("account_already_exists")
	ErrAccountNotFound  = errors.New("account_not_found")
)

// SignupInput is the raw signup payload. PasswordConfirm is checked and
// discarded; it is never persisted.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Role            string
}

// Store wraps the persistence collaborator with hashing, validation and
// email normalization. Soft-deleted accounts are invisible through
// every lookup here.
type Store struct {
	db sqldb.Service
}

func NewStore(db sqldb.Service) *Store {
	return &Store{db: db}
}

// Create validates the signup input, hashes the password and persists
// the account. The role defaults to user.
func (s *Store) Create(ctx context.Context, in SignupInput) (models.Account, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Account{}, ErrNameRequired
	}

	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return models.Account{}, err
	}

	if err := validateNewPassword(in.Password, in.PasswordConfirm); err != nil {
		return models.Account{}, err
	}

	role := models.RoleUser
	if in.Role != "" {
		role, err = models.ParseRole(in.Role)
		if err != nil {
			return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidRole, err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hashing password: %w", err)
	}

	account, err := s.db.CreateAccount(ctx, models.NewAccount{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Password: hash,
		Role:     role,
	})
	if err != nil {
		if errors.Is(err, sqldb.ErrDBDuplicatedEntry) {
			return models.Account{}, ErrAccountExists
		}
		return models.Account{}, err
	}

	return account, nil
}

// VerifyPassword compares a candidate against the stored hash. The
// comparison happens inside bcrypt and is safe against timing probes.
func (s *Store) VerifyPassword(account models.Account, candidate string) bool {
	return bcrypt.CompareHashAndPassword(account.Password, []byte(candidate)) == nil
}

// FindByID returns the active account with the given ID.
func (s *Store) FindByID(ctx context.Context, accountID string) (models.Account, error) {
	account, err := s.db.GetAccountByID(ctx, accountID)
	if err != nil {
		if sqldb.IsNotFound(err) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}

// FindByEmail returns the active account with the given email.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return models.Account{}, err
	}

	account, err := s.db.GetAccountByEmail(ctx, normalized)
	if err != nil {
		if sqldb.IsNotFound(err) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}

// SetPassword rehashes and stores a new password. The change timestamp
// is backdated by one second so tokens issued right after the change
// are never mistaken for stale ones.
func (s *Store) SetPassword(ctx context.Context, account models.Account, password, passwordConfirm string) (models.Account, error) {
	if err := validateNewPassword(password, passwordConfirm); err != nil {
		return models.Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("hashing password: %w", err)
	}

	changedAt := time.Now().Add(-passwordChangeBackdate)
	if err := s.db.UpdatePassword(ctx, account.ID, hash, changedAt); err != nil {
		if sqldb.IsNotFound(err) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}

	account.Password = hash
	account.PasswordChangedAt = &changedAt
	return account, nil
}

// Deactivate soft-deletes an account.
func (s *Store) Deactivate(ctx context.Context, accountID string) error {
	if err := s.db.DeactivateAccount(ctx, accountID); err != nil {
		if sqldb.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

// List returns all active accounts.
func (s *Store) List(ctx context.Context) ([]models.Account, error) {
	return s.db.ListAccounts(ctx)
}

// NormalizeEmail lowercases and validates an email address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrEmailInvalid
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrEmailInvalid
	}
	return email, nil
}

func validateNewPassword(password, passwordConfirm string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if password != passwordConfirm {
		return ErrPasswordMismatch
	}
	return nil
}

// IsValidationError reports whether the error is a client-fault
// validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrEmailInvalid) ||
		errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrInvalidRole)
}
