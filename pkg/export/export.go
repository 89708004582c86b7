// Package export renders tabular data for download.
package export

import (
	"errors"
	"io"
)

// Format identifies an export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

var ErrNoColumns = errors.New("export: dataset has no columns")

// Column describes one exported field. Width is a relative weight used by PDF output.
type Column struct {
	Key   string
	Title string
	Width float64
}

// Dataset is an ordered table. Rows are keyed by Column.Key.
type Dataset struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
}

// Renderer writes a dataset in one format.
type Renderer interface {
	Render(w io.Writer, data Dataset) error
	ContentType() string
	Extension() string
}

// ForFormat returns the renderer for f, or false when f is unknown.
func ForFormat(f Format) (Renderer, bool) {
	switch f {
	case FormatCSV:
		return CSV{}, true
	case FormatPDF:
		return PDF{}, true
	default:
		return nil, false
	}
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		out[i] = row[col.Key]
	}
	return out
}
