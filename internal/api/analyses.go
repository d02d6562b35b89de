package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"search-term-analyzer/internal/analysis"
	"search-term-analyzer/internal/site"
)

// analysisForm carries the text fields of an analysis upload.
type analysisForm struct {
	WebsiteURL string `form:"website_url" binding:"omitempty,max=2048"`
	Location   string `form:"location" binding:"omitempty,max=256"`
}

type analysisUpload struct {
	request  analysis.Request
	filename string
}

// readUpload validates the multipart form and decodes the search term file.
// Every failure wraps one of the analysis sentinels.
func (s *Server) readUpload(c *gin.Context) (*analysisUpload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	var form analysisForm
	if err := c.ShouldBind(&form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: %w", analysis.ErrFileRead, err)
		}
		return nil, fmt.Errorf("%w: %w", analysis.ErrConfig, err)
	}
	req := analysis.Request{
		WebsiteURL: strings.TrimSpace(form.WebsiteURL),
		Location:   strings.TrimSpace(form.Location),
	}
	if req.WebsiteURL == "" && req.Location == "" {
		return nil, analysis.ErrConfig
	}
	if req.WebsiteURL != "" {
		normalized, err := site.NormalizeURL(req.WebsiteURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", analysis.ErrConfig, err)
		}
		req.WebsiteURL = normalized
	}

	header, err := c.FormFile("terms")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("%w: terms csv file is required", analysis.ErrNoTerms)
		}
		return nil, fmt.Errorf("%w: %w", analysis.ErrFileRead, err)
	}
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", analysis.ErrFileRead, err)
	}
	defer file.Close()

	text, err := analysis.DecodeText(file)
	if err != nil {
		return nil, err
	}
	req.CSV = text
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if analysis.CountTerms(text) == 0 {
		return nil, analysis.ErrNoTerms
	}
	return &analysisUpload{request: req, filename: header.Filename}, nil
}

func (s *Server) handleStartAnalysis(c *gin.Context) {
	upload, err := s.readUpload(c)
	if err != nil {
		s.renderError(c, statusForError(err), err)
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	job, err := s.startAnalysis(upload.request, upload.filename)
	if err != nil {
		s.renderError(c, statusForError(err), err)
		return
	}

	c.JSON(http.StatusAccepted, StartAnalysisResponse{
		RunID:     job.id,
		Terms:     job.terms,
		StartedAt: job.startedAt,
	})
}

// handleStreamAnalysis runs an analysis inside the request and writes every
// event as one JSON line. Errors after the stream has started are reported as
// events rather than status codes.
func (s *Server) handleStreamAnalysis(c *gin.Context) {
	upload, err := s.readUpload(c)
	if err != nil {
		s.renderError(c, statusForError(err), err)
		return
	}

	s.jobMu.Lock()
	job, ctx, err := s.reserveJob(c.Request.Context(), upload.request, upload.filename)
	s.jobMu.Unlock()
	if err != nil {
		s.renderError(c, statusForError(err), err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(c.Writer)
	emit := func(event AnalysisEvent) error {
		if err := encoder.Encode(event); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	s.jobs.Add(1)
	defer s.jobs.Done()
	s.executeRun(ctx, job, upload.request, emit)
	logrus.WithField("run", job.id).Debug("ndjson stream closed")
}
