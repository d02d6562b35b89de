package store

import (
	"encoding/json"
	"strings"
	"time"

	"search-term-analyzer/internal/analysis"
)

// Run lifecycle states.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// Run is one analysis request and its outcome.
type Run struct {
	ID              string `gorm:"primaryKey;size:36"`
	WebsiteURL      string `gorm:"size:512"`
	Location        string `gorm:"size:255"`
	ContextLocation string `gorm:"size:255"`
	CompetitorsJSON string `gorm:"type:text"`
	ServicesJSON    string `gorm:"type:text"`
	Filename        string `gorm:"size:255"`
	Status          string `gorm:"size:32;index"`
	ErrorKind       string `gorm:"size:32"`
	Message         string `gorm:"type:text"`
	TermCount       int
	RecordCount     int
	StartedAt       time.Time `gorm:"index"`
	FinishedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SetContext stores the business context the run was classified against.
func (r *Run) SetContext(bc analysis.BusinessContext) {
	r.ContextLocation = bc.Location
	r.CompetitorsJSON = encodeList(bc.Competitors)
	r.ServicesJSON = encodeList(bc.Services)
}

// Context returns the stored business context.
func (r *Run) Context() analysis.BusinessContext {
	return analysis.BusinessContext{
		Location:    r.ContextLocation,
		Competitors: decodeList(r.CompetitorsJSON),
		Services:    decodeList(r.ServicesJSON),
	}
}

// Active reports whether the run has not reached a final state.
func (r *Run) Active() bool {
	return r.Status == RunRunning
}

// Record is one classified search term of a run.
type Record struct {
	ID                uint      `gorm:"primaryKey"`
	RunID             string    `gorm:"size:36;index:idx_records_run_seq,priority:1"`
	Seq               int       `gorm:"index:idx_records_run_seq,priority:2"`
	Term              string    `gorm:"type:text"`
	Category          string    `gorm:"size:32;index"`
	AdGroup           string    `gorm:"size:255"`
	PositivePhrase    string    `gorm:"size:255"`
	NegativePhrase    string    `gorm:"size:255"`
	CompetitorBrand   string    `gorm:"size:255"`
	LocationExclusion string    `gorm:"size:255"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
}

// NewRecord builds the stored form of rec.
func NewRecord(runID string, seq int, rec analysis.AnalysisRecord) Record {
	return Record{
		RunID:             runID,
		Seq:               seq,
		Term:              rec.Term,
		Category:          rec.Category,
		AdGroup:           rec.AdGroup,
		PositivePhrase:    rec.PositivePhrase,
		NegativePhrase:    rec.NegativePhrase,
		CompetitorBrand:   rec.CompetitorBrand,
		LocationExclusion: rec.LocationExclusion,
	}
}

// Analysis converts the row back into an analysis record.
func (r Record) Analysis() analysis.AnalysisRecord {
	return analysis.AnalysisRecord{
		Term:              r.Term,
		Category:          r.Category,
		AdGroup:           r.AdGroup,
		PositivePhrase:    r.PositivePhrase,
		NegativePhrase:    r.NegativePhrase,
		CompetitorBrand:   r.CompetitorBrand,
		LocationExclusion: r.LocationExclusion,
	}
}

func encodeList(values []string) string {
	if values == nil {
		return "[]"
	}
	payload, _ := json.Marshal(values)
	return string(payload)
}

func decodeList(raw string) []string {
	out := []string{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}
