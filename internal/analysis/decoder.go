package analysis

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

type lineOutcome int

const (
	lineBlank lineOutcome = iota
	lineRecord
	lineFiltered
	lineIncomplete
	lineMalformed
)

// LineDecoder turns arbitrarily chunked newline-delimited JSON into records.
// A decoder is single use and not safe for concurrent callers.
type LineDecoder struct {
	buf       string
	log       logrus.FieldLogger
	lines     int
	discarded int
}

// NewLineDecoder returns a decoder that reports dropped lines to log.
func NewLineDecoder(log logrus.FieldLogger) *LineDecoder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LineDecoder{log: log}
}

// Write appends a fragment and returns every record completed by it.
func (d *LineDecoder) Write(chunk string) []AnalysisRecord {
	d.buf += chunk
	var out []AnalysisRecord
	for {
		line, rest, found := strings.Cut(d.buf, "\n")
		if !found {
			break
		}
		d.buf = rest
		if rec, ok := d.decode(line); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Flush decodes whatever is left once the stream has ended. The buffer is
// empty afterwards.
func (d *LineDecoder) Flush() []AnalysisRecord {
	rest := d.buf
	d.buf = ""
	if rec, ok := d.decode(rest); ok {
		return []AnalysisRecord{rec}
	}
	return nil
}

// Lines reports how many non-blank lines were seen.
func (d *LineDecoder) Lines() int {
	return d.lines
}

// Discarded reports how many non-blank lines did not produce a record.
func (d *LineDecoder) Discarded() int {
	return d.discarded
}

func (d *LineDecoder) decode(raw string) (AnalysisRecord, bool) {
	rec, outcome, err := decodeLine(raw)
	if outcome == lineBlank {
		return AnalysisRecord{}, false
	}
	d.lines++
	switch outcome {
	case lineRecord:
		return rec, true
	case lineMalformed:
		d.log.WithError(err).WithField("line", truncate(raw, 200)).Warn("discarding undecodable record line")
	case lineIncomplete:
		d.log.WithField("line", truncate(raw, 200)).Debug("discarding record without term or category")
	case lineFiltered:
		d.log.WithField("line", truncate(raw, 200)).Debug("skipping non-object line")
	}
	d.discarded++
	return AnalysisRecord{}, false
}

func decodeLine(raw string) (AnalysisRecord, lineOutcome, error) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return AnalysisRecord{}, lineBlank, nil
	}
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return AnalysisRecord{}, lineFiltered, nil
	}
	var rec AnalysisRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return AnalysisRecord{}, lineMalformed, err
	}
	if !rec.complete() {
		return AnalysisRecord{}, lineIncomplete, nil
	}
	return rec, lineRecord, nil
}

// truncate shortens value to max runes for log fields.
func truncate(value string, max int) string {
	cut := truncateRunes(value, max)
	if len(cut) == len(value) {
		return value
	}
	return cut + "..."
}
