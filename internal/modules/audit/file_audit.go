package audit

// FileAudit is the per-file outcome of one batch run. Values are immutable:
// the With* helpers return modified copies.
type FileAudit struct {
	Name     string   `json:"name"`
	Bytes    int64    `json:"bytes"`
	RowCount int      `json:"row_count"`
	FileHash *string  `json:"file_hash"`
	Warnings []string `json:"warnings"`
}

// NewFileAudit records a file that was read successfully.
func NewFileAudit(name string, size int64, fileHash string) FileAudit {
	return FileAudit{
		Name:     name,
		Bytes:    size,
		FileHash: &fileHash,
		Warnings: []string{},
	}
}

// Missing records a domain whose file was absent for the date.
func Missing(name, kind string) FileAudit {
	return FileAudit{
		Name:     name,
		Warnings: []string{"missing " + kind + " file"},
	}
}

// Unreadable records a file that exists but could not be read.
func Unreadable(name, kind string, err error) FileAudit {
	return FileAudit{
		Name:     name,
		Warnings: []string{"unreadable " + kind + " file: " + err.Error()},
	}
}

// WithWarning returns a copy of a with msg appended to its warnings.
func (a FileAudit) WithWarning(msg string) FileAudit {
	warnings := make([]string, len(a.Warnings), len(a.Warnings)+1)
	copy(warnings, a.Warnings)
	a.Warnings = append(warnings, msg)
	return a
}

// WithRowCount returns a copy of a with the successful row count set.
func (a FileAudit) WithRowCount(n int) FileAudit {
	a.RowCount = n
	return a
}

// Present reports whether the file was read (it has a content hash).
func (a FileAudit) Present() bool {
	return a.FileHash != nil
}
