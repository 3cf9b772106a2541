// Package sqldbtest provides an in-memory sqldb.Service for tests.
package sqldbtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
	"github.com/AncientDemagogue/natours-api/internal/sdk/sqldb"
)

// Store implements sqldb.Service over a mutex-guarded map. Writes hold
// the lock for their full find-and-update sequence, which gives the
// same at-most-once reset-token consumption the Postgres conditional
// update provides.
type Store struct {
	mu       sync.Mutex
	accounts map[string]models.Account
}

var _ sqldb.Service = (*Store)(nil)

func New() *Store {
	return &Store{accounts: make(map[string]models.Account)}
}

func (s *Store) Health() map[string]string {
	return map[string]string{"status": "up"}
}

func (s *Store) Close() error { return nil }

func (s *Store) GetAccountByID(_ context.Context, accountID string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok || !account.Active {
		return models.Account{}, sqldb.ErrDBNotFound
	}
	return account, nil
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.Active && account.Email == email {
			return account, nil
		}
	}
	return models.Account{}, sqldb.ErrDBNotFound
}

func (s *Store) CreateAccount(_ context.Context, newAccount models.NewAccount) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if strings.EqualFold(existing.Email, newAccount.Email) {
			return models.Account{}, sqldb.ErrDBDuplicatedEntry
		}
	}

	now := time.Now().UTC()
	account := models.Account{
		ID:        uuid.NewString(),
		Name:      newAccount.Name,
		Email:     newAccount.Email,
		Photo:     "default.jpg",
		Password:  append([]byte(nil), newAccount.Password...),
		Role:      newAccount.Role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.accounts[account.ID] = account
	return account, nil
}

func (s *Store) ListAccounts(_ context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []models.Account
	for _, account := range s.accounts {
		if account.Active {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (s *Store) DeactivateAccount(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok || !account.Active {
		return sqldb.ErrDBNotFound
	}
	account.Active = false
	account.UpdatedAt = time.Now().UTC()
	s.accounts[accountID] = account
	return nil
}

func (s *Store) UpdatePassword(_ context.Context, accountID string, hash []byte, changedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok || !account.Active {
		return sqldb.ErrDBNotFound
	}
	account.Password = append([]byte(nil), hash...)
	account.PasswordChangedAt = &changedAt
	account.UpdatedAt = time.Now().UTC()
	s.accounts[accountID] = account
	return nil
}

func (s *Store) SetResetToken(_ context.Context, accountID string, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok || !account.Active {
		return sqldb.ErrDBNotFound
	}
	account.ResetTokenHash = &tokenHash
	account.ResetTokenExpiresAt = &expiresAt
	account.UpdatedAt = time.Now().UTC()
	s.accounts[accountID] = account
	return nil
}

func (s *Store) ClearResetToken(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return sqldb.ErrDBNotFound
	}
	account.ResetTokenHash = nil
	account.ResetTokenExpiresAt = nil
	account.UpdatedAt = time.Now().UTC()
	s.accounts[accountID] = account
	return nil
}

func (s *Store) ConsumeResetToken(_ context.Context, tokenHash string, newHash []byte, changedAt time.Time, now time.Time) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, account := range s.accounts {
		if !account.Active || account.ResetTokenHash == nil || account.ResetTokenExpiresAt == nil {
			continue
		}
		if *account.ResetTokenHash != tokenHash {
			continue
		}
		if !account.ResetTokenExpiresAt.After(now) {
			continue
		}
		account.Password = append([]byte(nil), newHash...)
		account.PasswordChangedAt = &changedAt
		account.ResetTokenHash = nil
		account.ResetTokenExpiresAt = nil
		account.UpdatedAt = time.Now().UTC()
		s.accounts[id] = account
		return account, nil
	}
	return models.Account{}, sqldb.ErrDBNotFound
}
