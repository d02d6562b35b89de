package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"search-term-analyzer/internal/analysis"
	"search-term-analyzer/internal/store"
)

const defaultMaxUploadBytes = 10 << 20

// Config defines server settings.
type Config struct {
	AllowedOrigins []string
	MaxUploadBytes int64
	Provider       string
	Model          string
	Grounding      bool
}

// Server wires HTTP handlers with the analyzer and the session store.
type Server struct {
	db             *store.Database
	analyzer       *analysis.Analyzer
	notifier       *AnalysisNotifier
	allowedOrigins []string
	maxUploadBytes int64
	provider       string
	model          string
	grounding      bool
	jobMu          sync.Mutex
	activeJob      *analysisJob
	jobs           sync.WaitGroup
}

// NewServer constructs the API server.
func NewServer(cfg Config, analyzer *analysis.Analyzer, db *store.Database) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer required")
	}
	if db == nil {
		return nil, errors.New("database required")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Server{
		db:             db,
		analyzer:       analyzer,
		notifier:       NewAnalysisNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		maxUploadBytes: maxUpload,
		provider:       cfg.Provider,
		model:          cfg.Model,
		grounding:      cfg.Grounding,
	}, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)

	api := r.Group("/api/analyses")
	{
		api.POST("", s.handleStartAnalysis)
		api.POST("/stream", s.handleStreamAnalysis)
		api.GET("", s.handleListRuns)
		api.GET("/status", s.handleStatus)
		api.GET("/ws", s.handleEvents)
		api.GET("/:id", s.handleGetRun)
		api.GET("/:id/records", s.handleRunRecords)
		api.GET("/:id/export.csv", s.handleExportCSV)
		api.GET("/:id/export.json", s.handleExportJSON)
		api.DELETE("/:id", s.handleDeleteRun)
	}

	return r, nil
}

// Shutdown cancels the active run and waits for background runs to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.activeJob != nil {
		s.activeJob.cancel()
	}
	s.jobMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logrus.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Millisecond),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"provider":         s.provider,
		"model":            s.model,
		"grounding":        s.grounding,
		"max_upload_bytes": s.maxUploadBytes,
		"categories": []string{
			analysis.CategoryPositive,
			analysis.CategoryNegative,
			analysis.CategoryCompetitor,
			analysis.CategoryGeneric,
		},
		"export_header": analysis.ExportHeader,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	offset, limit := pageParams(c, 25)
	rows, total, err := s.db.ListRuns(offset, limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]RunDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, RunFromModel(row))
	}
	c.JSON(http.StatusOK, RunsResponse{Items: dtos, Total: total})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	dto := RunFromModel(*run)
	counts, err := s.db.CountByCategory(run.ID)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dto.Categories = counts
	c.JSON(http.StatusOK, dto)
}

func (s *Server) handleRunRecords(c *gin.Context) {
	run, ok := s.lookupRun(c)
	if !ok {
		return
	}
	offset, limit := pageParams(c, 100)
	rows, total, err := s.db.ListRecords(run.ID, offset, limit)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	dtos := make([]RecordDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, RecordFromModel(row))
	}
	c.JSON(http.StatusOK, RecordsResponse{Items: dtos, Total: total})
}

func (s *Server) handleExportCSV(c *gin.Context) {
	run, records, ok := s.runRecords(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(run, "csv")))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := analysis.ExportRecords(c.Writer, records); err != nil {
		logrus.WithError(err).WithField("run", run.ID).Warn("write csv export")
	}
}

func (s *Server) handleExportJSON(c *gin.Context) {
	run, records, ok := s.runRecords(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename(run, "json")))
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleDeleteRun(c *gin.Context) {
	runID := strings.TrimSpace(c.Param("id"))
	if s.cancelAnalysis(runID) {
		logrus.WithField("run", runID).Info("analysis cancellation requested")
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
		return
	}
	if err := s.db.DeleteRun(runID); err != nil {
		s.renderError(c, statusForError(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	resp := AnalysisStatusResponse{Running: job != nil}
	if job != nil {
		resp.RunID = job.id
		resp.Terms = job.terms
		resp.Processed = int(job.processed.Load())
	}
	if status := s.notifier.LastStatus(); status != nil {
		resp.State = status.Type
		resp.Message = status.Message
		resp.Kind = status.Kind
		if job == nil {
			resp.RunID = status.RunID
			resp.Terms = status.Terms
			resp.Processed = status.Processed
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEvents(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket closed")
			} else {
				logrus.WithError(err).Warn("analysis websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) lookupRun(c *gin.Context) (*store.Run, bool) {
	runID := strings.TrimSpace(c.Param("id"))
	if runID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("run id required"))
		return nil, false
	}
	run, err := s.db.GetRun(runID)
	if err != nil {
		s.renderError(c, statusForError(err), err)
		return nil, false
	}
	return run, true
}

func (s *Server) runRecords(c *gin.Context) (*store.Run, []analysis.AnalysisRecord, bool) {
	run, ok := s.lookupRun(c)
	if !ok {
		return nil, nil, false
	}
	rows, _, err := s.db.ListRecords(run.ID, 0, 0)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return nil, nil, false
	}
	records := make([]analysis.AnalysisRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Analysis())
	}
	return run, records, true
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	body := gin.H{"error": err.Error()}
	if kind := analysis.Kind(err); kind != "" {
		body["kind"] = kind
	}
	c.JSON(status, body)
}

func statusForError(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errRunActive):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	switch analysis.Kind(err) {
	case "config", "file_read":
		return http.StatusBadRequest
	case "upstream", "stream":
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func pageParams(c *gin.Context, defaultSize int) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > 1000 {
		pageSize = 1000
	}
	return page * pageSize, pageSize
}

func exportFilename(run *store.Run, ext string) string {
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("search-terms-%s.%s", id, ext)
}
