package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docmind/internal/ai"
	appsvc "docmind/internal/app"
	"docmind/internal/cache"
	"docmind/internal/config"
	"docmind/internal/extract"
	"docmind/internal/logging"
	"docmind/internal/metrics"
	mysqlClient "docmind/internal/platform/mysql"
	rabbitmqClient "docmind/internal/platform/rabbitmq"
	redisClient "docmind/internal/platform/redis"
	sqliteClient "docmind/internal/platform/sqlite"
	"docmind/internal/repository"
	"docmind/internal/worker"
)

// Options selects which infrastructure New connects. The HTTP server uses
// everything; the CLI needs only the record store and the model endpoint.
type Options struct {
	// Config is loaded from the environment when nil.
	Config    *config.Config
	Log       *zap.SugaredLogger
	WithRedis bool
	WithQueue bool
	// StartWorker consumes queued ingestion jobs in this process.
	StartWorker bool
}

type App struct {
	Config  *config.Config
	Log     *zap.SugaredLogger
	DB      *gorm.DB
	Redis   *redis.Client
	MQConn  *amqp.Connection
	Metrics *metrics.Metrics

	Users    *repository.UserRepository
	Docs     *repository.DocumentRepository
	Chunks   *repository.ChunkRepository
	Sessions *repository.ChatSessionRepository
	Messages *repository.ChatMessageRepository

	Auth      *appsvc.AuthService
	Ingest    *appsvc.IngestService
	Queue     *appsvc.IngestQueue
	Answer    *appsvc.AnswerService
	Documents *appsvc.DocumentService
	Chat      *appsvc.ChatService
	Direct    *appsvc.DirectChatService

	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config failed: %w", err)
		}
		cfg = loaded
	}
	log := opts.Log
	if log == nil {
		built, err := logging.New(cfg.App.Env)
		if err != nil {
			return nil, err
		}
		log = built
	}

	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	if err := a.init(ctx, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, opts Options) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db
	if err := repository.AutoMigrate(db); err != nil {
		return err
	}
	a.Log.Infow("record store ready", "driver", cfg.Database.Driver)

	if cfg.App.MetricsEnable {
		a.Metrics = metrics.New(strings.ReplaceAll(cfg.App.Name, "-", "_"))
	}

	var (
		historyCache appsvc.HistoryCache
		progress     *cache.ProgressStore
	)
	if opts.WithRedis {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = redisCli
		historyCache = cache.NewHistoryCache(
			redisCli,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
		progress = cache.NewProgressStore(redisCli, time.Duration(cfg.Redis.ProgressTTLSeconds)*time.Second)
	}

	a.Users = repository.NewUserRepository(db)
	a.Docs = repository.NewDocumentRepository(db)
	a.Chunks = repository.NewChunkRepository(db)
	a.Sessions = repository.NewChatSessionRepository(db)
	a.Messages = repository.NewChatMessageRepository(db)

	llm := ai.NewOpenAICompatibleClient(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)
	chatCfg := ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model}
	extractionCfg := chatCfg
	if cfg.LLM.ExtractionModel != "" {
		extractionCfg.Model = cfg.LLM.ExtractionModel
	}
	embedder := ai.NewEmbedder(llm, ai.EmbeddingConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.EmbeddingModel})
	generator := ai.NewGenerator(llm, chatCfg)
	extractor := extract.NewRouter(extract.NewMultimodalExtractor(llm, extractionCfg), a.Log.Named("extract"))

	a.Auth = appsvc.NewAuthService(a.Users, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	a.Ingest = appsvc.NewIngestService(a.Docs, a.Chunks, extractor, embedder, appsvc.IngestOptions{
		ChunkSize:    cfg.RAG.ChunkSize,
		EmbedWorkers: cfg.RAG.EmbedWorkers,
	}, a.Metrics, a.Log.Named("ingest"))
	a.Answer = appsvc.NewAnswerService(a.Docs, a.Chunks, embedder, generator, appsvc.AnswerOptions{
		TopK:         cfg.RAG.TopK,
		HistoryTurns: cfg.RAG.HistoryTurns,
		Language:     cfg.RAG.AnswerLanguage,
	}, a.Metrics, a.Log.Named("answer"))
	a.Chat = appsvc.NewChatService(a.Sessions, a.Messages, historyCache, a.Answer, cfg.RAG.HistoryTurns, a.Log.Named("chat"))
	a.Direct = appsvc.NewDirectChatService(appsvc.NewConversationFactory(generator), 0, a.Log.Named("direct"))

	var (
		cleaner  appsvc.ProgressCleaner
		recorder appsvc.ProgressRecorder
	)
	if progress != nil {
		cleaner, recorder = progress, progress
	}
	a.Documents = appsvc.NewDocumentService(a.Docs, a.Chunks, cleaner, a.Log.Named("documents"))

	var publisher appsvc.JobPublisher
	if opts.WithQueue {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.IngestQueue)
		if err != nil {
			return err
		}
		a.MQConn = mqConn
		publisher = rabbitmqClient.NewIngestPublisher(mqConn, cfg.RabbitMQ.IngestQueue)

		if opts.StartWorker {
			a.IngestWorker = worker.NewIngestWorker(mqConn, a.Docs, a.Ingest, recorder, cfg.RabbitMQ.IngestQueue, a.Log.Named("worker"))
			if err := a.IngestWorker.Start(ctx); err != nil {
				return fmt.Errorf("start ingest worker failed: %w", err)
			}
		}
	}
	a.Queue = appsvc.NewIngestQueue(a.Ingest, publisher, recorder, a.Log.Named("queue"))

	created, err := a.Auth.SeedAdmin(cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("seed admin failed: %w", err)
	}
	if created {
		a.Log.Infow("admin account created", "email", cfg.Admin.Email)
	}
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	switch strings.ToLower(cfg.Database.Driver) {
	case "", "mysql":
		return mysqlClient.New(ctx, cfg.MySQLDSN())
	case "sqlite":
		return sqliteClient.New(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Direct != nil {
		a.Direct.CloseAll()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return closeErr
}
