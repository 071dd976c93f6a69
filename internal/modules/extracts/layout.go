package extracts

import (
	"path/filepath"

	"github.com/aristath/eodledger/internal/utils"
)

// Layout is the on-disk location of one account-day of extracts:
//
//	{base}/{account}/{YYYY-MM-DD}/{kind}_{account}_{YYYYMMDD}.csv
type Layout struct {
	Dir     string
	Account string
	Date    utils.Date
}

// Locate resolves the extract layout for an external account id and date.
func Locate(baseDir, externalAccountID string, date utils.Date) Layout {
	return Layout{
		Dir:     filepath.Join(baseDir, externalAccountID, date.String()),
		Account: externalAccountID,
		Date:    date,
	}
}

// FileName returns the expected file name for kind.
func (l Layout) FileName(kind Kind) string {
	return kind.FilePrefix() + "_" + l.Account + "_" + l.Date.Compact() + ".csv"
}

// Path returns the expected full path for kind.
func (l Layout) Path(kind Kind) string {
	return filepath.Join(l.Dir, l.FileName(kind))
}
