package api

import (
	"time"

	"search-term-analyzer/internal/analysis"
	"search-term-analyzer/internal/store"
)

// BusinessContextDTO is the API view of a resolved business context.
type BusinessContextDTO struct {
	Location    string   `json:"location"`
	Competitors []string `json:"competitors"`
	Services    []string `json:"services"`
}

// RecordDTO is a classified search term with its position in the run.
type RecordDTO struct {
	Seq int `json:"seq"`
	analysis.AnalysisRecord
}

// RunDTO is the API representation of a stored run.
type RunDTO struct {
	ID          string             `json:"id"`
	WebsiteURL  string             `json:"website_url"`
	Location    string             `json:"location"`
	Filename    string             `json:"filename"`
	Status      string             `json:"status"`
	ErrorKind   string             `json:"error_kind,omitempty"`
	Message     string             `json:"message,omitempty"`
	Context     BusinessContextDTO `json:"context"`
	TermCount   int                `json:"term_count"`
	RecordCount int                `json:"record_count"`
	Categories  map[string]int     `json:"categories,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  *time.Time         `json:"finished_at"`
	DurationMs  int64              `json:"duration_ms"`
}

// RunsResponse is the paginated response for runs.
type RunsResponse struct {
	Items []RunDTO `json:"items"`
	Total int64    `json:"total"`
}

// RecordsResponse is the paginated response for the records of one run.
type RecordsResponse struct {
	Items []RecordDTO `json:"items"`
	Total int64       `json:"total"`
}

// StartAnalysisResponse describes the asynchronous run kickoff payload.
type StartAnalysisResponse struct {
	RunID     string    `json:"run_id"`
	Terms     int       `json:"terms"`
	StartedAt time.Time `json:"started_at"`
}

// AnalysisStatusResponse describes the state of the active run.
type AnalysisStatusResponse struct {
	Running   bool   `json:"running"`
	RunID     string `json:"run_id"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	Terms     int    `json:"terms"`
	Processed int    `json:"processed"`
}

// ContextFromModel converts a business context into its DTO.
func ContextFromModel(bc analysis.BusinessContext) BusinessContextDTO {
	dto := BusinessContextDTO{
		Location:    bc.Location,
		Competitors: bc.Competitors,
		Services:    bc.Services,
	}
	if dto.Competitors == nil {
		dto.Competitors = []string{}
	}
	if dto.Services == nil {
		dto.Services = []string{}
	}
	return dto
}

// RunFromModel converts a store.Run into the DTO representation.
func RunFromModel(r store.Run) RunDTO {
	dto := RunDTO{
		ID:          r.ID,
		WebsiteURL:  r.WebsiteURL,
		Location:    r.Location,
		Filename:    r.Filename,
		Status:      r.Status,
		ErrorKind:   r.ErrorKind,
		Message:     r.Message,
		Context:     ContextFromModel(r.Context()),
		TermCount:   r.TermCount,
		RecordCount: r.RecordCount,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	if r.Active() {
		dto.DurationMs = time.Since(r.StartedAt).Milliseconds()
	} else if r.FinishedAt != nil {
		dto.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	return dto
}

// RecordFromModel converts a stored record into its DTO.
func RecordFromModel(r store.Record) RecordDTO {
	return RecordDTO{Seq: r.Seq, AnalysisRecord: r.Analysis()}
}
