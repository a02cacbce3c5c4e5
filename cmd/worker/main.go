package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/internal/infrastructure/config"
	"deal-catalog-service/internal/infrastructure/oauth"
	"deal-catalog-service/internal/infrastructure/persistence"
	"deal-catalog-service/internal/interface/handler"
	"deal-catalog-service/internal/interface/media"
	"deal-catalog-service/internal/interface/queue"
	mongoRepo "deal-catalog-service/internal/interface/repository"
	"deal-catalog-service/internal/usecase"
	"deal-catalog-service/pkg/logger"
	"deal-catalog-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger("deal-transcode-worker", cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Transcode Worker", "version", cfg.AppVersion)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword, "deal-transcode-worker")
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	db := persistence.GetDatabase(mongoClient, cfg.MongoDB)

	redisClient, err := persistence.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}

	storage, err := newMediaStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to set up media storage", "error", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("deal_catalog", registry)

	dealRepo := mongoRepo.NewMongoDealRepository(db)
	jobQueue := queue.NewRedisJobQueue(redisClient, cfg.TranscodeQueue)

	worker := usecase.NewTranscodeWorker(
		dealRepo,
		media.NewFFmpegTranscoder(cfg.FFmpegPath),
		storage,
		cfg.UploadTmpDir,
		cfg.TranscodeTimeout,
		m,
		log,
	)
	consumer := usecase.NewTranscodeConsumer(jobQueue, worker, cfg.TranscodeJobsPerInterval, cfg.TranscodeInterval, log)
	sweeper := usecase.NewStaleVideoSweeper(dealRepo, cfg.StaleVideoAfter, cfg.SweepInterval, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			log.Error("Transcode consumer exited", "error", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// Set up HTTP server for metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/health", handler.NewHealthHandler(map[string]repository.HealthCheck{
		"mongodb": persistence.MongoHealthCheck(mongoClient),
		"redis":   persistence.RedisHealthCheck(redisClient),
	}))

	server := &http.Server{
		Addr:    ":" + cfg.WorkerPort,
		Handler: mux,
	}

	go func() {
		log.Info("Starting metrics server", "port", cfg.WorkerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info("Received signal", "signal", sig)
	case <-ctx.Done():
	}

	// Let the current job finish so its status is written
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Error("Redis close error", "error", err)
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Transcode Worker stopped")
}

func newMediaStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.MediaStorage, error) {
	if cfg.MediaBackend != "gcs" {
		log.Info("Using local media storage", "dir", cfg.MediaLocalDir)
		return media.NewLocalStorage(cfg.MediaLocalDir, cfg.MediaPublicBaseURL), nil
	}

	googleOAuth := oauth.NewGoogleOAuth(
		cfg.GCSClientID,
		cfg.GCSClientSecret,
		cfg.GCSRefreshToken,
		oauth.StorageScopes,
		log,
	)
	log.Info("Using GCS media storage", "bucket", cfg.GCSBucket)
	return media.NewGCSStorage(ctx, googleOAuth.GetTokenSource(ctx), cfg.GCSBucket, "")
}
