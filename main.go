package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"paperwave/internal/api"
	"paperwave/internal/auth"
	"paperwave/internal/config"
	"paperwave/internal/extract"
	"paperwave/internal/llm"
	"paperwave/internal/objstore"
	"paperwave/internal/pipeline"
	"paperwave/internal/redis"
	"paperwave/internal/runner"
	"paperwave/internal/service/media"
	"paperwave/internal/service/podcast"
	"paperwave/internal/service/user"
	"paperwave/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("PAPERWAVE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("PAPERWAVE_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	provider := cfg.BasicConfig.ChatProvider
	if provider == "" {
		provider = "openai"
	}
	chatModel, err := llm.NewChatModel(ctx, cfg, provider)
	if err != nil {
		log.Fatalf("init chat model: %v", err)
	}

	store, err := objstore.NewSupabaseStore(cfg.Storage)
	if err != nil {
		log.Fatalf("init object store: %v", err)
	}
	extractor, err := extract.New()
	if err != nil {
		log.Fatalf("init document extractor: %v", err)
	}

	podcastService := podcast.NewService(db)
	userService := user.NewService(db)
	authService := auth.NewService(db, rdb, 24*time.Hour)

	var imageRetry *objstore.RetryPolicy
	if cfg.Pipeline.UploadAttempts > 0 {
		policy := objstore.RetryPolicy{
			MaxAttempts: cfg.Pipeline.UploadAttempts,
			Backoff:     objstore.LinearBackoff(time.Duration(cfg.Pipeline.UploadBaseDelayMs) * time.Millisecond),
		}
		imageRetry = &policy
	}
	pipe := pipeline.New(pipeline.Deps{
		Chat:           chatModel,
		Extractor:      extractor,
		Images:         media.NewImageClient(cfg.Media),
		Speech:         media.NewSpeechClient(cfg.Media),
		Fetcher:        pipeline.NewHTTPFetcher(nil),
		Store:          store,
		Recorder:       podcastService,
		ImageRetry:     imageRetry,
		ScriptMaxChars: cfg.Pipeline.ScriptMaxChars,
	})

	runs := runner.NewManager(pipe, runner.NewRedisRunLock(rdb), runner.Options{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   16,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Minute,
		LockTTL:     time.Duration(cfg.Pipeline.RunLockTTLMinutes) * time.Minute,
	})

	fileBase := cfg.BasicConfig.FileBaseDir
	if fileBase == "" {
		fileBase = "./data/uploads"
	}
	handlers := api.NewHandler(userService, podcastService, authService, runs, pipeline.NewHTTPFetcher(nil), fileBase)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
