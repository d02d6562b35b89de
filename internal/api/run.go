package api

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"search-term-analyzer/internal/analysis"
	"search-term-analyzer/internal/store"
)

var errRunActive = errors.New("an analysis is already running")

// analysisJob tracks the state of the running analysis.
type analysisJob struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
	terms     int
	processed atomic.Int64
}

// emitFunc receives every event of a run in addition to the websocket broadcast.
type emitFunc func(AnalysisEvent) error

// reserveJob registers a new job as the active one. The caller must hold s.jobMu.
func (s *Server) reserveJob(parent context.Context, req analysis.Request, filename string) (*analysisJob, context.Context, error) {
	if s.activeJob != nil {
		return nil, nil, errRunActive
	}

	ctx, cancel := context.WithCancel(parent)
	job := &analysisJob{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now().UTC(),
		terms:     analysis.CountTerms(req.CSV),
	}

	run := &store.Run{
		ID:         job.id,
		WebsiteURL: req.WebsiteURL,
		Location:   req.Location,
		Filename:   filename,
		TermCount:  job.terms,
		StartedAt:  job.startedAt,
	}
	if err := s.db.CreateRun(run); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create run: %w", err)
	}

	s.activeJob = job
	return job, ctx, nil
}

// startAnalysis launches a run in the background. The caller must hold s.jobMu.
func (s *Server) startAnalysis(req analysis.Request, filename string) (*analysisJob, error) {
	job, ctx, err := s.reserveJob(context.Background(), req, filename)
	if err != nil {
		return nil, err
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.executeRun(ctx, job, req, nil)
	}()
	return job, nil
}

// cancelAnalysis aborts the active run if its id matches.
func (s *Server) cancelAnalysis(runID string) bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil || s.activeJob.id != runID {
		return false
	}
	s.activeJob.cancel()
	return true
}

// executeRun drives one run to its final state and releases the job slot.
func (s *Server) executeRun(ctx context.Context, job *analysisJob, req analysis.Request, emit emitFunc) {
	defer func() {
		job.cancel()
		s.jobMu.Lock()
		if s.activeJob == job {
			s.activeJob = nil
		}
		s.jobMu.Unlock()
	}()

	sink := &runSink{server: s, job: job, emit: emit}
	log := logrus.WithField("run", job.id)
	log.WithFields(logrus.Fields{
		"terms":    job.terms,
		"website":  req.WebsiteURL,
		"location": req.Location,
	}).Info("analysis run started")
	sink.publish(AnalysisEvent{Type: EventStarted, Terms: job.terms, Message: "analysis started"})

	summary, err := s.analyzer.Run(ctx, req, sink)
	duration := time.Since(job.startedAt).Round(time.Millisecond)

	switch {
	case err == nil:
		message := fmt.Sprintf("classified %d of %d terms in %s", summary.Records, job.terms, duration)
		s.finishRun(job.id, store.RunCompleted, "", message)
		sink.publish(AnalysisEvent{Type: EventComplete, Terms: job.terms, Processed: summary.Records, Message: message})
		log.WithFields(logrus.Fields{"records": summary.Records, "duration": duration}).Info("analysis run completed")
	case ctx.Err() != nil:
		message := fmt.Sprintf("cancelled after %d records", summary.Records)
		s.finishRun(job.id, store.RunCancelled, "", message)
		sink.publish(AnalysisEvent{Type: EventCancelled, Terms: job.terms, Processed: summary.Records, Message: message})
		log.WithField("records", summary.Records).Warn("analysis run cancelled")
	default:
		kind := analysis.Kind(err)
		s.finishRun(job.id, store.RunFailed, kind, err.Error())
		sink.publish(AnalysisEvent{Type: EventError, Terms: job.terms, Processed: summary.Records, Message: err.Error(), Kind: kind})
		log.WithError(err).WithFields(logrus.Fields{"kind": kind, "records": summary.Records}).Error("analysis run failed")
	}
}

func (s *Server) finishRun(runID, status, kind, message string) {
	if err := s.db.FinishRun(runID, status, kind, message); err != nil {
		logrus.WithError(err).WithField("run", runID).Warn("update run status")
	}
}

// runSink stores records, broadcasts them and forwards them to an optional emitter.
type runSink struct {
	server *Server
	job    *analysisJob
	emit   emitFunc
	seq    int
}

func (r *runSink) Context(bc analysis.BusinessContext) {
	if err := r.server.db.UpdateRunContext(r.job.id, bc); err != nil {
		logrus.WithError(err).WithField("run", r.job.id).Warn("store business context")
	}
	dto := ContextFromModel(bc)
	r.publish(AnalysisEvent{Type: EventContext, Terms: r.job.terms, Context: &dto})
}

func (r *runSink) Record(rec analysis.AnalysisRecord) error {
	seq := r.seq
	r.seq++
	if err := r.server.db.AppendRecord(r.job.id, seq, rec); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	processed := int(r.job.processed.Add(1))
	dto := RecordDTO{Seq: seq, AnalysisRecord: rec}
	return r.publish(AnalysisEvent{Type: EventRecord, Terms: r.job.terms, Processed: processed, Record: &dto})
}

func (r *runSink) publish(event AnalysisEvent) error {
	event.RunID = r.job.id
	event = r.server.notifier.Broadcast(event)
	if event.Final() {
		logrus.WithFields(logrus.Fields{
			"run":      event.RunID,
			"event":    event.Type,
			"watchers": r.server.notifier.Clients(),
		}).Debug("final run event broadcast")
	}
	if r.emit == nil {
		return nil
	}
	return r.emit(event)
}
