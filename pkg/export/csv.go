package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSV renders datasets as RFC 4180 CSV with a header row of column titles.
type CSV struct{}

func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

func (CSV) Extension() string { return "csv" }

func (CSV) Render(w io.Writer, data Dataset) error {
	if len(data.Columns) == 0 {
		return ErrNoColumns
	}
	writer := csv.NewWriter(w)
	header := make([]string, len(data.Columns))
	for i, col := range data.Columns {
		header[i] = col.Title
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range data.Rows {
		if err := writer.Write(data.record(row)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
