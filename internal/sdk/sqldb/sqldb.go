// Package sqldb provides database operations for the account service.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
	"github.com/AncientDemagogue/natours-api/internal/sdk/sqldb/migrations"
)

// lib/pq errorCodeNames
// https://github.com/lib/pq/blob/master/error.go#L178
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
	notNullViolation    = "23502"
)

var (
	ErrDBNotFound        = sql.ErrNoRows
	ErrDBDuplicatedEntry = errors.New("duplicated entry")
	ErrCheckViolation    = errors.New("check constraint violation")
	ErrNotNullViolation  = errors.New("not null violation")
)

// Service represents a service that interacts with the accounts store.
//
// All account lookups used by authentication exclude soft-deleted rows
// (active = false). ConsumeResetToken is the single atomic state
// transition for reset-token consumption: the update is conditioned on
// the stored reset fields still matching and being unexpired at write
// time, so concurrent consumers serialize at the row and at most one
// succeeds.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	// Close terminates the database connection.
	Close() error

	// Account operations
	GetAccountByID(ctx context.Context, accountID string) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
	CreateAccount(ctx context.Context, account models.NewAccount) (models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	DeactivateAccount(ctx context.Context, accountID string) error

	// Password operations
	UpdatePassword(ctx context.Context, accountID string, hash []byte, changedAt time.Time) error

	// Reset token operations. SetResetToken and ClearResetToken always
	// touch both reset fields together, never one without the other.
	SetResetToken(ctx context.Context, accountID string, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, accountID string) error
	ConsumeResetToken(ctx context.Context, tokenHash string, newHash []byte, changedAt time.Time, now time.Time) (models.Account, error)
}

type service struct {
	db *sql.DB
}

// Config holds the connection settings for the Postgres backend.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

// Open connects to Postgres and runs pending migrations.
func Open(ctx context.Context, cfg Config) (Service, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Schema)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, db, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &service{db: db}, nil
}

// Health checks the health of the database connection by pinging the
// database and reporting pool statistics.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	return s.db.Close()
}

// ---------------------------------------------
// Account operations
// ---------------------------------------------

const accountColumns = `
	id::text,
	name,
	email,
	photo,
	password,
	role,
	password_changed_at,
	reset_token_hash,
	reset_token_expires_at,
	active,
	created_at,
	updated_at`

// GetAccountByID retrieves an active account by its ID.
func (s *service) GetAccountByID(ctx context.Context, accountID string) (models.Account, error) {
	query := `
		SELECT` + accountColumns + `
		FROM accounts
		WHERE id = $1
		AND active
	`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, ErrDBNotFound
		}
		return models.Account{}, fmt.Errorf("selecting account: %w", err)
	}

	return account, nil
}

// GetAccountByEmail retrieves an active account by its email address.
func (s *service) GetAccountByEmail(ctx context.Context, email string) (models.Account, error) {
	query := `
		SELECT` + accountColumns + `
		FROM accounts
		WHERE email = $1
		AND active
	`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, ErrDBNotFound
		}
		return models.Account{}, fmt.Errorf("selecting account by email: %w", err)
	}

	return account, nil
}

// CreateAccount inserts a new account.
func (s *service) CreateAccount(ctx context.Context, newAccount models.NewAccount) (models.Account, error) {
	query := `
		INSERT INTO accounts (name, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING` + accountColumns

	account, err := scanAccount(s.db.QueryRowContext(ctx, query,
		newAccount.Name,
		newAccount.Email,
		newAccount.Password,
		newAccount.Role,
	))
	if err != nil {
		if isPgError(err, uniqueViolation) {
			return models.Account{}, ErrDBDuplicatedEntry
		}
		if isPgError(err, checkViolation) {
			return models.Account{}, ErrCheckViolation
		}
		return models.Account{}, fmt.Errorf("creating account: %w", err)
	}

	return account, nil
}

// ListAccounts retrieves all active accounts.
func (s *service) ListAccounts(ctx context.Context) ([]models.Account, error) {
	query := `
		SELECT` + accountColumns + `
		FROM accounts
		WHERE active
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}

// DeactivateAccount soft-deletes an account. The row stays in place but
// becomes invisible to every authentication lookup.
func (s *service) DeactivateAccount(ctx context.Context, accountID string) error {
	const query = `
		UPDATE accounts
		SET active = false,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		AND active
	`

	return s.execExpectingRow(ctx, query, "deactivating account", accountID)
}

// ---------------------------------------------
// Password operations
// ---------------------------------------------

// UpdatePassword stores a new password hash and the change timestamp.
func (s *service) UpdatePassword(ctx context.Context, accountID string, hash []byte, changedAt time.Time) error {
	const query = `
		UPDATE accounts
		SET password = $1,
		    password_changed_at = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		AND active
	`

	return s.execExpectingRow(ctx, query, "updating password", hash, changedAt, accountID)
}

// ---------------------------------------------
// Reset token operations
// ---------------------------------------------

// SetResetToken stores the digest of an outstanding reset token together
// with its expiry.
func (s *service) SetResetToken(ctx context.Context, accountID string, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE accounts
		SET reset_token_hash = $1,
		    reset_token_expires_at = $2,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
		AND active
	`

	return s.execExpectingRow(ctx, query, "setting reset token", tokenHash, expiresAt, accountID)
}

// ClearResetToken removes both reset-token fields.
func (s *service) ClearResetToken(ctx context.Context, accountID string) error {
	const query = `
		UPDATE accounts
		SET reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	return s.execExpectingRow(ctx, query, "clearing reset token", accountID)
}

// ConsumeResetToken sets the new password hash and clears the reset
// fields in one conditional update. The WHERE clause re-checks the
// stored digest and expiry at write time, so a token can be consumed at
// most once even under concurrent submissions.
func (s *service) ConsumeResetToken(ctx context.Context, tokenHash string, newHash []byte, changedAt time.Time, now time.Time) (models.Account, error) {
	query := `
		UPDATE accounts
		SET password = $1,
		    password_changed_at = $2,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    updated_at = CURRENT_TIMESTAMP
		WHERE reset_token_hash = $3
		AND reset_token_expires_at > $4
		AND active
		RETURNING` + accountColumns

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, newHash, changedAt, tokenHash, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, ErrDBNotFound
		}
		return models.Account{}, fmt.Errorf("consuming reset token: %w", err)
	}

	return account, nil
}

// ---------------------------------------------
// Helpers
// ---------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(scanner rowScanner) (models.Account, error) {
	var account models.Account
	var role string
	var changedAt, resetExpires sql.NullTime
	var resetHash sql.NullString
	if err := scanner.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.Photo,
		&account.Password,
		&role,
		&changedAt,
		&resetHash,
		&resetExpires,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return models.Account{}, err
	}

	account.Role = models.Role(role)
	account.PasswordChangedAt = TimePtr(changedAt)
	account.ResetTokenHash = StringPtr(resetHash)
	account.ResetTokenExpiresAt = TimePtr(resetExpires)

	return account, nil
}

func (s *service) execExpectingRow(ctx context.Context, query, action string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: checking rows affected: %w", action, err)
	}

	if rowsAffected == 0 {
		return ErrDBNotFound
	}

	return nil
}

// isPgError checks if the error is a PostgreSQL error with the given code.
func isPgError(err error, code string) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == code
	}
	return false
}

// StringPtr returns a pointer to a string from sql.NullString.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// TimePtr returns a pointer to a time.Time from sql.NullTime.
func TimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDBNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error.
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDBDuplicatedEntry)
}
