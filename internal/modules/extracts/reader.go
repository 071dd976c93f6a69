package extracts

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/eodledger/internal/modules/audit"
	"github.com/rs/zerolog"
)

var (
	// ErrFileMissing is returned when a domain's extract file does not exist.
	ErrFileMissing = errors.New("extract file missing")
	// ErrUnreadableFile is returned when a file exists but cannot be read or parsed.
	ErrUnreadableFile = errors.New("extract file unreadable")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Record is one parsed data line keyed by trimmed, lower-cased header.
type Record struct {
	Number int // line in the file where the record starts; the header is line 1
	Fields map[string]string
}

// ExtractFile is the full content of one extract file plus its parsed records.
type ExtractFile struct {
	Kind    Kind
	Name    string
	Path    string
	Size    int64
	Hash    string
	Content []byte
	Records []Record
}

// Reader loads extract files from disk.
type Reader struct {
	log zerolog.Logger
}

// NewReader creates a new extract reader
func NewReader(log zerolog.Logger) *Reader {
	return &Reader{log: log.With().Str("component", "extract_reader").Logger()}
}

// ReadFile reads and parses the file at path. A missing file yields
// ErrFileMissing; any other failure yields an error wrapping ErrUnreadableFile.
func (r *Reader) ReadFile(kind Kind, path string) (*ExtractFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnreadableFile, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	records, err := parseRecords(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}

	r.log.Debug().
		Str("kind", kind.String()).
		Str("file", filepath.Base(path)).
		Int("records", len(records)).
		Int("bytes", len(content)).
		Msg("Read extract file")

	return &ExtractFile{
		Kind:    kind,
		Name:    filepath.Base(path),
		Path:    path,
		Size:    int64(len(content)),
		Hash:    audit.HashFileContent(content),
		Content: content,
		Records: records,
	}, nil
}

func parseRecords(content []byte) ([]Record, error) {
	cr := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var records []Record
	for {
		values, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		if blank(values) {
			continue
		}
		line, _ := cr.FieldPos(0)

		fields := make(map[string]string, len(header))
		for i, v := range values {
			v = strings.TrimSpace(v)
			if i < len(header) && header[i] != "" {
				fields[header[i]] = v
			} else if v != "" {
				fields["_extra_"+strconv.Itoa(i)] = v
			}
		}
		for _, h := range header {
			if _, ok := fields[h]; !ok && h != "" {
				fields[h] = ""
			}
		}

		records = append(records, Record{Number: line, Fields: fields})
	}

	return records, nil
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
