package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/internal/infrastructure/config"
	"deal-catalog-service/internal/infrastructure/persistence"
	"deal-catalog-service/internal/infrastructure/router"
	"deal-catalog-service/internal/interface/handler"
	"deal-catalog-service/internal/interface/queue"
	mongoRepo "deal-catalog-service/internal/interface/repository"
	"deal-catalog-service/internal/interface/spreadsheet"
	"deal-catalog-service/internal/usecase"
	"deal-catalog-service/pkg/logger"
	"deal-catalog-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger("deal-catalog-api", cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting Deal Catalog API", "version", cfg.AppVersion)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword, "deal-catalog-api")
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	db := persistence.GetDatabase(mongoClient, cfg.MongoDB)

	// Set up Redis job queue
	redisClient, err := persistence.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	jobQueue := queue.NewRedisJobQueue(redisClient, cfg.TranscodeQueue)

	// PostgreSQL is optional: without it there is no airline enrichment and
	// no ingestion audit trail
	var airlineRepository repository.AirlineRepository
	var runRepository repository.IngestionRunRepository
	gormDB, err := persistence.NewGormDB(cfg.PostgresURI)
	if err != nil {
		log.Warn("PostgreSQL unavailable, continuing without airline names and ingestion audit", "error", err)
	} else {
		runRepo := mongoRepo.NewGormIngestionRunRepository(gormDB)
		if err := runRepo.Migrate(); err != nil {
			log.Error("Failed to migrate ingestion runs table", "error", err)
		}
		airlineRepository = mongoRepo.NewGormAirlineRepository(gormDB)
		runRepository = runRepo
	}

	// Set up repositories
	dealRepo := mongoRepo.NewMongoDealRepository(db)
	if err := dealRepo.EnsureIndexes(ctx); err != nil {
		log.Warn("Failed to create deal indexes", "error", err)
	}
	airportRepo := mongoRepo.NewMongoAirportRepository(db)
	hotelRepo := mongoRepo.NewMongoHotelRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("deal_catalog", registry)

	// Set up use cases
	resolver := usecase.NewReferenceResolver(airportRepo, hotelRepo, log)
	catalog := usecase.NewPriceCatalog(dealRepo, resolver, m, log)
	ingestion := usecase.NewPriceIngestion(
		catalog,
		spreadsheet.NewExcelPriceSheetReader(),
		airlineRepository,
		runRepository,
		m,
		log,
		usecase.IngestionOptions{IssueLimit: cfg.IngestIssueLimit, DefaultCountry: cfg.DefaultCountry},
	)
	uploader := usecase.NewVideoUploader(dealRepo, jobQueue, cfg.UploadTmpDir, m, log)

	dealHandler := handler.NewDealHandler(catalog, ingestion, uploader, int64(cfg.MaxUploadMB)<<20, log)
	health := handler.NewHealthHandler(map[string]repository.HealthCheck{
		"mongodb": persistence.MongoHealthCheck(mongoClient),
		"redis":   persistence.RedisHealthCheck(redisClient),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(dealHandler, health, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), cfg.CORSOrigins, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel()

	if err := redisClient.Close(); err != nil {
		log.Error("Redis close error", "error", err)
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Deal Catalog API stopped")
}
