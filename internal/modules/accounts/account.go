// Package accounts manages the trading accounts whose extracts are ingested.
package accounts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAccount is returned for an account record that cannot be processed.
var ErrInvalidAccount = errors.New("invalid account")

// Account is a trading account known to the ledger.
type Account struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"created_at"`
}

// Validate checks that the account can own ledger rows and name an extract
// directory.
func (a Account) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("%w: id must be positive, got %d", ErrInvalidAccount, a.ID)
	}
	if strings.TrimSpace(a.ExternalID) == "" {
		return fmt.Errorf("%w: external id is empty", ErrInvalidAccount)
	}
	if strings.ContainsAny(a.ExternalID, `/\`) || a.ExternalID == "." || a.ExternalID == ".." {
		return fmt.Errorf("%w: external id %q is not a valid directory name", ErrInvalidAccount, a.ExternalID)
	}
	return nil
}
