// Package ledger persists normalised extract rows into the per-domain ledger
// stores. Every write is an upsert on the row's natural business key, so
// re-ingesting identical input converges to identical state.
package ledger

import (
	"bytes"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// encodeRaw serialises a raw row for the raw_payload column. Keys are sorted
// so identical rows always produce identical bytes.
func encodeRaw(fields map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(fields); err != nil {
		return nil, fmt.Errorf("failed to encode raw payload: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRaw restores a raw row from its stored payload.
func DecodeRaw(payload []byte) (map[string]string, error) {
	var fields map[string]string
	if err := msgpack.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode raw payload: %w", err)
	}
	return fields, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func decimalPtr(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
