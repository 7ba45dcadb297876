package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/adapters/blob_storage"
	"github.com/khoahotran/linkgraph/adapters/embedding"
	"github.com/khoahotran/linkgraph/adapters/event"
	httpAdapter "github.com/khoahotran/linkgraph/adapters/http"
	"github.com/khoahotran/linkgraph/adapters/persistence"
	"github.com/khoahotran/linkgraph/internal/application/service"
	ingestUC "github.com/khoahotran/linkgraph/internal/application/usecase/ingest"
	profileUC "github.com/khoahotran/linkgraph/internal/application/usecase/profile"
	searchUC "github.com/khoahotran/linkgraph/internal/application/usecase/search"
	uploadUC "github.com/khoahotran/linkgraph/internal/application/usecase/upload"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/auth"
	"github.com/khoahotran/linkgraph/pkg/logger"
	"github.com/khoahotran/linkgraph/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("FATAL: cannot load config: " + err.Error())
	}

	appLogger := logger.NewZapLogger(cfg.App.Env)
	defer appLogger.Sync()
	appLogger.Info("Starting LinkGraph API Server...")

	tp, err := tracing.NewTracerProvider(cfg, appLogger, "linkgraph-api")
	if err != nil {
		appLogger.Fatal("Failed to initialize tracer provider", err)
	}
	defer tp.Shutdown(context.Background())

	if cfg.DB.AutoMigrate {
		if err := persistence.Migrate(cfg.DB.DSN, cfg.DB.Migrations, appLogger); err != nil {
			appLogger.Fatal("Cannot migrate database", err)
		}
	}

	// Initialize dependencies
	dbPool, err := persistence.NewPostgresPool(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Cannot connect Postgres", err)
	}
	defer dbPool.Close()

	redisClient, err := persistence.NewRedisClient(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Cannot connect Redis", err)
	}
	defer redisClient.Close()

	kafkaClient, err := event.NewKafkaProducerClient(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Cannot init Kafka", err)
	}
	defer kafkaClient.Close()

	blobs, err := blob_storage.New(context.Background(), cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize blob store", err)
	}

	var embedder service.EmbeddingService
	if cfg.Ollama.Host != "" {
		if embedder, err = embedding.NewOllamaAdapter(cfg, appLogger); err != nil {
			appLogger.Fatal("Failed to initialize embedding adapter", err)
		}
	} else {
		appLogger.Warn("Ollama host not configured, semantic search disabled")
	}

	// Repositories
	profileRepo := persistence.NewPostgresProfileRepo(dbPool, appLogger)
	companyRepo := persistence.NewPostgresCompanyRepo(dbPool)
	institutionRepo := persistence.NewPostgresInstitutionRepo(dbPool)
	positionRepo := persistence.NewPostgresPositionRepo(dbPool)
	educationRepo := persistence.NewPostgresEducationRepo(dbPool)
	skillRepo := persistence.NewPostgresSkillRepo(dbPool)
	connectionRepo := persistence.NewPostgresConnectionRepo(dbPool)
	uploadRepo := persistence.NewPostgresUploadRepo(dbPool)
	searchRepo := persistence.NewPostgresSearchRepo(dbPool, appLogger)
	runStore := persistence.NewRedisRunStore(redisClient, cfg.Ingest.StatusTTL)
	searchCache := persistence.NewRedisSearchCache(redisClient)

	// Services
	jwtSvc := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenLifespan)

	// Use Cases
	resolver := ingestUC.NewIdentityResolver(profileRepo, appLogger)
	writer := ingestUC.NewGraphWriter(companyRepo, institutionRepo, positionRepo, educationRepo, skillRepo, connectionRepo, appLogger)
	ingestUseCase := ingestUC.NewIngestUseCase(profileRepo, resolver, writer, runStore, kafkaClient, appLogger,
		cfg.Ingest.MaxUploadBytes, cfg.Ingest.RunTimeout)
	uploadUseCase := uploadUC.NewUploadExportUseCase(blobs, uploadRepo, runStore, kafkaClient,
		cfg.Storage.Folder, cfg.Ingest.MaxUploadBytes, appLogger)
	runStatusUseCase := uploadUC.NewGetRunStatusUseCase(runStore)
	profileUseCase := profileUC.NewProfileUseCase(profileRepo, positionRepo, educationRepo, skillRepo,
		connectionRepo, writer, kafkaClient, appLogger)
	searchUseCase := searchUC.NewSearchUseCase(searchRepo, connectionRepo, embedder, searchCache,
		cfg.Search.CacheTTL, cfg.Search.DefaultLimit, appLogger)

	// HTTP Handlers
	handlers := httpAdapter.Handlers{
		Imports:  httpAdapter.NewImportHandler(ingestUseCase, uploadUseCase, runStatusUseCase, cfg.Ingest.MaxUploadBytes, appLogger),
		Profiles: httpAdapter.NewProfileHandler(profileUseCase, appLogger),
		Search:   httpAdapter.NewSearchHandler(searchUseCase, appLogger),
	}

	// Setup Gin router
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), httpAdapter.ErrorMiddleware(appLogger))
	httpAdapter.RegisterRoutes(router, handlers, httpAdapter.AuthMiddleware(jwtSvc, profileUseCase, appLogger))

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		appLogger.Info("Server running", zap.String("port", cfg.App.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Cannot run server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", err)
	}
}
