package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"search-term-analyzer/internal/ai"
	"search-term-analyzer/internal/analysis"
	"search-term-analyzer/internal/api"
	"search-term-analyzer/internal/config"
	"search-term-analyzer/internal/logging"
	"search-term-analyzer/internal/site"
	"search-term-analyzer/internal/store"
)

func main() {
	cfg, err := config.FromEnvironment(os.Getenv)
	if err != nil {
		logrus.Fatalf("load configuration: %v", err)
	}

	closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator, err := ai.New(ctx, cfg.Provider())
	if err != nil {
		if errors.Is(err, ai.ErrDisabled) {
			logrus.Fatalf("ai provider %s has no api key: set GEMINI_API_KEY or OPENAI_API_KEY", cfg.AI.Provider)
		}
		logrus.Fatalf("create ai provider: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"provider":  generator.Name(),
		"model":     generator.Model(),
		"grounding": generator.Grounding(),
	}).Info("ai provider ready")

	analyzer := analysis.NewAnalyzer(
		analysis.NewResolver(generator, site.NewFetcher(cfg.Site.FetchTimeout), cfg.AI.ResolveTimeout, logrus.StandardLogger()),
		analysis.NewClassifier(generator, cfg.AI.StreamTimeout, logrus.StandardLogger()),
		logrus.StandardLogger(),
	)

	db, err := store.Open(store.SessionDSN, logrus.GetLevel() < logrus.DebugLevel)
	if err != nil {
		logrus.Fatalf("open session store: %v", err)
	}
	defer db.Close()

	server, err := api.NewServer(api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Provider:       generator.Name(),
		Model:          generator.Model(),
		Grounding:      generator.Grounding(),
	}, analyzer, db)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("starting search-term-analyzer on :%s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("active analysis did not stop in time")
	}
	if n, err := db.InterruptRunning("server shut down"); err != nil {
		logrus.WithError(err).Warn("mark interrupted runs")
	} else if n > 0 {
		logrus.WithField("runs", n).Warn("runs interrupted by shutdown")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
}
