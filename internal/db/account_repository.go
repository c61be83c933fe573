package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talonchat/talon/internal/models"
)

// Account repository errors.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account for this server and email already exists")
)

// AccountRepository handles stored-login persistence.
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create adds a new account.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	capabilities, err := marshalCapabilities(account.Capabilities)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, server_url, email, api_key, server_version, capabilities,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		account.ID,
		account.ServerURL,
		account.Email,
		account.APIKey,
		account.ServerVersion,
		capabilities,
		account.CreatedAt.Format(time.RFC3339),
		account.UpdatedAt.Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// List retrieves all accounts, ordered by server and email.
func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, server_url, email, api_key, server_version, capabilities,
			created_at, updated_at
		FROM accounts
		ORDER BY server_url, email
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

// Get retrieves one account by ID.
func (r *AccountRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, server_url, email, api_key, server_version, capabilities,
			created_at, updated_at
		FROM accounts
		WHERE id = ?
	`, id)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

// GetByLogin retrieves one account by server URL and email.
func (r *AccountRepository) GetByLogin(ctx context.Context, serverURL, email string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, server_url, email, api_key, server_version, capabilities,
			created_at, updated_at
		FROM accounts
		WHERE server_url = ? AND email = ?
	`, serverURL, email)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

// UpdateServerInfo records the server version and capabilities detected
// at registration.
func (r *AccountRepository) UpdateServerInfo(ctx context.Context, id, serverVersion string, capabilities []string) error {
	caps, err := marshalCapabilities(capabilities)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET server_version = ?, capabilities = ?, updated_at = ?
		WHERE id = ?
	`, serverVersion, caps, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account      models.Account
		version      sql.NullString
		capabilities sql.NullString
		createdAt    string
		updatedAt    string
	)

	err := row.Scan(
		&account.ID,
		&account.ServerURL,
		&account.Email,
		&account.APIKey,
		&version,
		&capabilities,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.ServerVersion = version.String
	if capabilities.Valid && capabilities.String != "" {
		if err := json.Unmarshal([]byte(capabilities.String), &account.Capabilities); err != nil {
			return nil, fmt.Errorf("failed to decode capabilities: %w", err)
		}
	}

	if account.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if account.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &account, nil
}

func marshalCapabilities(capabilities []string) (*string, error) {
	if len(capabilities) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal capabilities: %w", err)
	}
	s := string(data)
	return &s, nil
}
