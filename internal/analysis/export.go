package analysis

import (
	"bufio"
	"io"
	"strings"
)

// ExportHeader is the fixed column set of a records export.
var ExportHeader = []string{
	"Search Term",
	"Category",
	"Ad Group",
	"Positive Phrase",
	"Negative Phrase",
	"Competitor Brand",
	"Location Exclusion",
}

// WriteCSV writes header and rows with every field double-quoted and inner
// quotes doubled. encoding/csv only quotes fields that need it, which
// spreadsheet imports of phrase columns handle inconsistently.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	buf := bufio.NewWriter(w)
	if err := writeQuotedRow(buf, header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeQuotedRow(buf, row); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// ExportRecords writes records under ExportHeader.
func ExportRecords(w io.Writer, records []AnalysisRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.Fields())
	}
	return WriteCSV(w, ExportHeader, rows)
}

func writeQuotedRow(w *bufio.Writer, fields []string) error {
	for i, field := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(quoteField(field)); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

func quoteField(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
