// Package export turns query results into CSV or JSON byte chunks.
package export

import (
	"strings"

	"github.com/koustreak/sqlpilot/internal/errs"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat resolves a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !f.valid() {
		return "", unsupported(s)
	}
	return f, nil
}

func (f Format) valid() bool {
	return f == FormatCSV || f == FormatJSON
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Filename is the attachment name suggested to clients.
func (f Format) Filename() string {
	return "export." + string(f)
}

func unsupported(s string) *errs.Error {
	return errs.Newf(errs.ErrKindUnsupportedFormat, "unsupported export format %q (supported: csv, json)", s)
}
