package analysis

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText reads an uploaded search term file as text. UTF-8 with or without
// a byte order mark and UTF-16 with a byte order mark are accepted; invalid
// UTF-8 sequences are replaced. Binary content is rejected with ErrFileRead.
func DecodeText(r io.Reader) (string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	data, err := io.ReadAll(decoded)
	if err != nil {
		return "", wrap(ErrFileRead, err)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", wrap(ErrFileRead, errors.New("file looks binary"))
	}
	return string(data), nil
}

var termHeaders = map[string]struct{}{
	"search term":    {},
	"search terms":   {},
	"search query":   {},
	"search keyword": {},
	"search_term":    {},
	"searchterm":     {},
	"term":           {},
	"terms":          {},
	"keyword":        {},
	"keywords":       {},
	"query":          {},
	"queries":        {},
}

// CountTerms counts the data rows of a search term CSV, skipping blank rows and
// a recognised header row. Text that does not parse as CSV is counted by
// non-blank lines instead.
func CountTerms(text string) int {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		termCol         = 0
		headerProcessed bool
		count           int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return countLines(text)
		}
		if len(record) == 0 {
			continue
		}
		if !headerProcessed {
			headerProcessed = true
			if col := detectTermColumn(record); col >= 0 {
				termCol = col
				continue
			}
		}
		col := termCol
		if col >= len(record) {
			col = 0
		}
		value := strings.TrimSpace(strings.TrimPrefix(record[col], "\ufeff"))
		if value == "" {
			continue
		}
		count++
	}
	return count
}

func detectTermColumn(record []string) int {
	for idx, value := range record {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(value, "\ufeff")))
		if _, ok := termHeaders[normalized]; ok {
			return idx
		}
	}
	return -1
}

func countLines(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
