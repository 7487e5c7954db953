package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/cloud-screener/internal/application"
	appscans "github.com/bryanwahyu/cloud-screener/internal/application/scans"
	"github.com/bryanwahyu/cloud-screener/internal/catalog"
	"github.com/bryanwahyu/cloud-screener/internal/config"
	domain "github.com/bryanwahyu/cloud-screener/internal/domain/scans"
	openaiadvisor "github.com/bryanwahyu/cloud-screener/internal/infra/ai/openai"
	"github.com/bryanwahyu/cloud-screener/internal/infra/broadcast"
	"github.com/bryanwahyu/cloud-screener/internal/infra/executor/screener"
	"github.com/bryanwahyu/cloud-screener/internal/infra/httpserver"
	"github.com/bryanwahyu/cloud-screener/internal/infra/registry"
	ssoinfra "github.com/bryanwahyu/cloud-screener/internal/infra/sso"
	minioStore "github.com/bryanwahyu/cloud-screener/internal/infra/storage"
	"github.com/bryanwahyu/cloud-screener/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := setupLogger(os.Getenv("DEBUG") != "")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	// init sso
	auth := ssoinfra.NewDeviceAuthClient(cfg.SSO.ClientName, logger)
	vendor := ssoinfra.NewVendor(auth, logger)

	// init job registry and live-progress hub
	jobs := registry.NewMemory()
	hub := broadcast.NewHub()

	// init runner
	runner := screener.NewRunner(cfg.Scanner.Command, cfg.Scanner.WorkDir, logger)

	// init minio (optional)
	var artifacts domain.ArtifactStore
	if cfg.ArtifactsEnabled() {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Fatalw("minio init error", "error", err)
		}
		artifacts = store
	}

	// init failure advisor (optional)
	var advisor domain.Advisor
	if cfg.AdvisorEnabled() {
		advisor = openaiadvisor.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}

	// init service
	svc := &appscans.Service{
		Registry:    jobs,
		Launcher:    runner,
		Broadcaster: hub,
		Auth:        auth,
		Vendor:      vendor,
		Artifacts:   artifacts,
		Advisor:     advisor,
		Clock:       application.SystemClock{},
		Log:         logger,
		ReportRoot:  cfg.Scanner.OutputRoot,
		Markers:     cfg.Scanner.ProgressMarkers,
		TailLines:   cfg.Scanner.TailLines,
	}

	credentialsPath := cfg.Profiles.CredentialsPath
	if credentialsPath == "" {
		credentialsPath = catalog.DefaultCredentialsPath()
	}

	// init router
	metrics := middleware.NewMetrics()
	mux := httpserver.NewRouter(svc, auth, vendor, cfg.Scanner.OutputRoot, credentialsPath, metrics, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// no write timeout: the event stream holds connections open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		logger.Infow("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server error", "error", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Infow("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warnw("shutdown error", "error", err)
	}
}

func setupLogger(debug bool) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
