package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const accountColumns = `id, external_id, name, created_at`

// Repository handles account persistence in the ledger database.
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new account repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "accounts").Logger(),
	}
}

// EnsureByExternalID returns the account with externalID, registering it first
// if it does not exist yet.
func (r *Repository) EnsureByExternalID(ctx context.Context, externalID string) (Account, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Account{}, fmt.Errorf("%w: external id is empty", ErrInvalidAccount)
	}

	_, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO accounts (external_id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		externalID, externalID, time.Now().Unix(),
	)
	if err != nil {
		return Account{}, fmt.Errorf("failed to register account %s: %w", externalID, err)
	}

	acct, err := r.GetByExternalID(ctx, externalID)
	if err != nil {
		return Account{}, err
	}
	if acct == nil {
		return Account{}, fmt.Errorf("account %s vanished after registration", externalID)
	}
	return *acct, nil
}

// GetByExternalID returns the account, or nil if it is not registered.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*Account, error) {
	var a Account
	err := r.ledgerDB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE external_id = ?", externalID,
	).Scan(&a.ID, &a.ExternalID, &a.Name, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", externalID, err)
	}
	return &a, nil
}

// List returns all registered accounts ordered by external id.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY external_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}
