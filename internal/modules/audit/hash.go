// Package audit provides deterministic content hashing for extract rows, extract
// files and whole batches, plus the per-file audit record returned to callers.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// NoFilesArtifact is the artifact hash of a batch in which no extract file was present.
const NoFilesArtifact = "no-files-present"

// volatileFields never take part in a row hash: they describe the ingestion,
// not the row.
var volatileFields = map[string]struct{}{
	"ingested_at":  {},
	"_ingested_at": {},
	"raw_hash":     {},
	"_source_file": {},
	"_row_number":  {},
}

// HashRow returns a stable digest of a raw row. Keys are sorted and volatile
// fields are dropped before serialisation, so the same logical row always
// hashes the same regardless of map iteration order.
func HashRow(fields map[string]string) string {
	stable := make(map[string]string, len(fields))
	for k, v := range fields {
		if _, skip := volatileFields[k]; skip {
			continue
		}
		stable[k] = v
	}

	// encoding/json writes map keys in sorted order with no insignificant whitespace
	payload, err := json.Marshal(stable)
	if err != nil {
		// map[string]string always marshals
		panic(err)
	}
	return hashBytes(payload)
}

// HashFileContent returns the digest of a file's raw bytes.
func HashFileContent(content []byte) string {
	return hashBytes(content)
}

// ArtifactHash combines individual file hashes into one digest for the batch.
// The input is sorted first, so enumeration order does not matter.
// An empty input yields NoFilesArtifact.
func ArtifactHash(fileHashes []string) string {
	sorted := make([]string, 0, len(fileHashes))
	for _, h := range fileHashes {
		if h != "" {
			sorted = append(sorted, h)
		}
	}
	if len(sorted) == 0 {
		return NoFilesArtifact
	}
	sort.Strings(sorted)

	return hashBytes([]byte(strings.Join(sorted, "|")))
}

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
