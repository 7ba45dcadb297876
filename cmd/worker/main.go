package main

import (
	"context"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/adapters/blob_storage"
	"github.com/khoahotran/linkgraph/adapters/embedding"
	"github.com/khoahotran/linkgraph/adapters/event"
	"github.com/khoahotran/linkgraph/adapters/notify"
	"github.com/khoahotran/linkgraph/adapters/persistence"
	indexUC "github.com/khoahotran/linkgraph/internal/application/usecase/index"
	ingestUC "github.com/khoahotran/linkgraph/internal/application/usecase/ingest"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
	"github.com/khoahotran/linkgraph/pkg/tracing"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("FATAL: cannot load config: " + err.Error())
	}

	appLogger := logger.NewZapLogger(cfg.App.Env)
	defer appLogger.Sync()
	appLogger.Info("Starting LinkGraph Worker...")

	tp, err := tracing.NewTracerProvider(cfg, appLogger, "linkgraph-worker")
	if err != nil {
		appLogger.Fatal("Failed to initialize tracer provider", err)
	}
	defer tp.Shutdown(context.Background())

	// Database
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

	embedder, err := embedding.NewOllamaAdapter(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize embedding adapter", err)
	}

	// Repositories
	profileRepo := persistence.NewPostgresProfileRepo(dbPool, appLogger)
	positionRepo := persistence.NewPostgresPositionRepo(dbPool)
	skillRepo := persistence.NewPostgresSkillRepo(dbPool)
	connectionRepo := persistence.NewPostgresConnectionRepo(dbPool)
	searchRepo := persistence.NewPostgresSearchRepo(dbPool, appLogger)
	runStore := persistence.NewRedisRunStore(redisClient, cfg.Ingest.StatusTTL)

	// Worker Use Cases
	resolver := ingestUC.NewIdentityResolver(profileRepo, appLogger)
	writer := ingestUC.NewGraphWriter(
		persistence.NewPostgresCompanyRepo(dbPool),
		persistence.NewPostgresInstitutionRepo(dbPool),
		positionRepo,
		persistence.NewPostgresEducationRepo(dbPool),
		skillRepo,
		connectionRepo,
		appLogger,
	)
	ingestUseCase := ingestUC.NewIngestUseCase(profileRepo, resolver, writer, runStore, kafkaClient, appLogger,
		cfg.Ingest.MaxUploadBytes, cfg.Ingest.RunTimeout)
	processUploadUseCase := ingestUC.NewProcessUploadEventUseCase(blobs, ingestUseCase, notify.NewSMTPNotifier(cfg, appLogger), appLogger)
	indexUseCase := indexUC.NewIndexProfilesUseCase(profileRepo, positionRepo, skillRepo, searchRepo, embedder, appLogger)

	// Kafka Consumers
	uploadLog := appLogger.With(zap.String("consumer", event.TopicUploadEvents))
	uploadConsumer := event.NewConsumer(
		event.NewKafkaReader(cfg, event.TopicUploadEvents),
		event.UploadEventHandler(processUploadUseCase, uploadLog),
		uploadLog, 0, 0,
	).OnGiveUp(event.UploadEventGiveUp(processUploadUseCase, uploadLog))
	defer uploadConsumer.Close()

	indexLog := appLogger.With(zap.String("consumer", event.TopicProfileEvents))
	indexConsumer := event.NewConsumer(
		event.NewKafkaReader(cfg, event.TopicProfileEvents),
		event.ProfileEventHandler(indexUseCase, indexLog),
		indexLog, 0, 0,
	)
	defer indexConsumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return uploadConsumer.Run(ctx) })
	g.Go(func() error { return indexConsumer.Run(ctx) })

	appLogger.Info("Worker listening", zap.Strings("topics", []string{event.TopicUploadEvents, event.TopicProfileEvents}))
	if err := g.Wait(); err != nil {
		appLogger.Error("Worker stopped with error", err)
	}
	appLogger.Info("Worker stopped")
}
