package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashRow(t *testing.T) {
	base := map[string]string{"execution_id": "E-1", "price": "100", "side": "BUY"}

	t.Run("stable across calls", func(t *testing.T) {
		assert.Equal(t, HashRow(base), HashRow(map[string]string{
			"side": "BUY", "price": "100", "execution_id": "E-1",
		}))
	})

	t.Run("ignores volatile fields", func(t *testing.T) {
		withVolatile := map[string]string{
			"execution_id": "E-1", "price": "100", "side": "BUY",
			"ingested_at": "2024-03-05T10:00:00Z", "_source_file": "x.csv", "_row_number": "7",
		}
		assert.Equal(t, HashRow(base), HashRow(withVolatile))
	})

	t.Run("value change changes hash", func(t *testing.T) {
		changed := map[string]string{"execution_id": "E-1", "price": "100.01", "side": "BUY"}
		assert.NotEqual(t, HashRow(base), HashRow(changed))
	})

	t.Run("extra column changes hash", func(t *testing.T) {
		extra := map[string]string{"execution_id": "E-1", "price": "100", "side": "BUY", "venue": "ARCA"}
		assert.NotEqual(t, HashRow(base), HashRow(extra))
	})

	assert.Len(t, HashRow(base), 64)
}

func TestArtifactHash(t *testing.T) {
	a := HashFileContent([]byte("balances"))
	b := HashFileContent([]byte("orders"))
	c := HashFileContent([]byte("executions"))

	t.Run("order independent", func(t *testing.T) {
		permutations := [][]string{{a, b, c}, {c, b, a}, {b, a, c}, {b, c, a}}
		want := ArtifactHash(permutations[0])
		for _, p := range permutations[1:] {
			assert.Equal(t, want, ArtifactHash(p))
		}
	})

	t.Run("one byte changes result", func(t *testing.T) {
		b2 := HashFileContent([]byte("ordErs"))
		assert.NotEqual(t, ArtifactHash([]string{a, b, c}), ArtifactHash([]string{a, b2, c}))
	})

	t.Run("does not mutate input", func(t *testing.T) {
		in := []string{c, a, b}
		_ = ArtifactHash(in)
		assert.Equal(t, []string{c, a, b}, in)
	})

	t.Run("empty input yields sentinel", func(t *testing.T) {
		assert.Equal(t, NoFilesArtifact, ArtifactHash(nil))
		assert.Equal(t, NoFilesArtifact, ArtifactHash([]string{""}))
	})
}

func TestFileAudit(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		fa := Missing("orders_U1_20240305.csv", "orders")
		assert.Equal(t, "orders_U1_20240305.csv", fa.Name)
		assert.Zero(t, fa.Bytes)
		assert.Zero(t, fa.RowCount)
		assert.Nil(t, fa.FileHash)
		assert.Equal(t, []string{"missing orders file"}, fa.Warnings)
		assert.False(t, fa.Present())
	})

	t.Run("with warning copies", func(t *testing.T) {
		fa := NewFileAudit("cash.csv", 42, "abc")
		fb := fa.WithWarning("row 2: missing amount").WithRowCount(3)

		assert.Empty(t, fa.Warnings)
		assert.Zero(t, fa.RowCount)
		assert.Equal(t, []string{"row 2: missing amount"}, fb.Warnings)
		assert.Equal(t, 3, fb.RowCount)
		require.NotNil(t, fb.FileHash)
		assert.Equal(t, "abc", *fb.FileHash)
		assert.True(t, fb.Present())
	})
}
