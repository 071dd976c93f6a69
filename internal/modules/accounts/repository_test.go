package accounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/aristath/eodledger/internal/database"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// one connection, one in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := database.Schema("ledger")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)

	return db
}

func TestEnsureByExternalID(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.New(nil).Level(zerolog.Disabled))
	ctx := context.Background()

	first, err := repo.EnsureByExternalID(ctx, " U100 ")
	require.NoError(t, err)
	assert.Equal(t, "U100", first.ExternalID)
	assert.Positive(t, first.ID)

	again, err := repo.EnsureByExternalID(ctx, "U100")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	_, err = repo.EnsureByExternalID(ctx, "U200")
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "U100", all[0].ExternalID)
	assert.Equal(t, "U200", all[1].ExternalID)

	missing, err := repo.GetByExternalID(ctx, "U999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.EnsureByExternalID(ctx, "  ")
	assert.True(t, errors.Is(err, ErrInvalidAccount))
}

func TestAccountValidate(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		valid   bool
	}{
		{"valid", Account{ID: 1, ExternalID: "U1"}, true},
		{"zero id", Account{ExternalID: "U1"}, false},
		{"blank external id", Account{ID: 1, ExternalID: "  "}, false},
		{"path separator", Account{ID: 1, ExternalID: "../U1"}, false},
		{"dot dot", Account{ID: 1, ExternalID: ".."}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidAccount)
			}
		})
	}
}
