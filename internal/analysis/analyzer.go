package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Request is the user input for one analysis run.
type Request struct {
	CSV        string
	WebsiteURL string
	Location   string
}

// Validate checks the request before any upstream call is made.
func (r Request) Validate() error {
	if strings.TrimSpace(r.WebsiteURL) == "" && strings.TrimSpace(r.Location) == "" {
		return ErrConfig
	}
	if strings.TrimSpace(r.CSV) == "" {
		return ErrNoTerms
	}
	return nil
}

// Sink receives the output of a run as it is produced.
type Sink interface {
	// Context is called once with the business context the prompt is built from.
	Context(BusinessContext)
	// Record is called for every classified term in arrival order. Returning an
	// error stops the run.
	Record(AnalysisRecord) error
}

// Summary describes a finished or aborted run.
type Summary struct {
	Context  BusinessContext
	Terms    int
	Records  int
	Duration time.Duration
}

// Analyzer ties the resolver, prompt builder and classifier into one run.
type Analyzer struct {
	resolver   *Resolver
	classifier *Classifier
	log        logrus.FieldLogger
}

// NewAnalyzer builds an analyzer.
func NewAnalyzer(resolver *Resolver, classifier *Classifier, log logrus.FieldLogger) *Analyzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyzer{resolver: resolver, classifier: classifier, log: log}
}

// Run executes one analysis. The business context is resolved only when a
// website URL is given; a manual location replaces the inferred one. Records
// delivered to sink before an error stay delivered.
func (a *Analyzer) Run(ctx context.Context, req Request, sink Sink) (Summary, error) {
	start := time.Now()
	summary := Summary{}
	if err := req.Validate(); err != nil {
		return summary, err
	}
	summary.Terms = CountTerms(req.CSV)
	if summary.Terms == 0 {
		return summary, ErrNoTerms
	}

	var bc BusinessContext
	if website := strings.TrimSpace(req.WebsiteURL); website != "" {
		resolved, err := a.resolver.Resolve(ctx, website)
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		bc = resolved
	}
	bc = bc.WithLocation(req.Location)
	summary.Context = bc
	sink.Context(bc)

	prompt := BuildPrompt(req.CSV, bc.Location, bc.Competitors, bc.Services)
	a.log.WithFields(logrus.Fields{
		"terms":        summary.Terms,
		"prompt_chars": len(prompt),
		"location":     bc.Location,
	}).Info("classification started")

	for rec, err := range a.classifier.Classify(ctx, prompt) {
		if err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		if err := sink.Record(rec); err != nil {
			summary.Duration = time.Since(start)
			return summary, fmt.Errorf("deliver record: %w", err)
		}
		summary.Records++
	}

	summary.Duration = time.Since(start)
	fields := logrus.Fields{
		"terms":    summary.Terms,
		"records":  summary.Records,
		"duration": summary.Duration.Round(time.Millisecond),
	}
	if summary.Records != summary.Terms {
		a.log.WithFields(fields).Warn("record count differs from term count")
	} else {
		a.log.WithFields(fields).Info("classification finished")
	}
	return summary, nil
}
