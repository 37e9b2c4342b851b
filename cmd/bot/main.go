package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boxup/media-gate-bot/internal/bot"
	"github.com/boxup/media-gate-bot/internal/config"
	"github.com/boxup/media-gate-bot/internal/conversation"
	"github.com/boxup/media-gate-bot/internal/engagement"
	"github.com/boxup/media-gate-bot/internal/publish"
	"github.com/boxup/media-gate-bot/internal/repository"
	"github.com/boxup/media-gate-bot/internal/scheduler"
	"github.com/boxup/media-gate-bot/internal/session"
	"github.com/boxup/media-gate-bot/internal/telegram"
)

func main() {
	logger := log.New(os.Stdout, "[media-gate] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()
	if cfg.BotToken == "" {
		logger.Fatal("BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	content, jobs, engagementRepo, repoCloser := setupRepositories(ctx, cfg, logger)
	defer repoCloser()

	sessions, sessionCloser := setupSessionStore(ctx, cfg, logger)
	defer sessionCloser()

	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:          cfg.BotToken,
		Debug:          cfg.BotDebug,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatalf("bot api: %v", err)
	}
	botUsername := client.Username()
	if botUsername == "" {
		botUsername = cfg.BotUsername
	}
	logger.Printf("authorized as @%s", botUsername)

	ledger := engagement.NewLedger(engagementRepo, client, botUsername, logger)
	publisher := publish.NewPublisher(content, ledger, client, botUsername, logger)

	sched, err := scheduler.New(jobs, content, publisher, cfg.ScheduleTimezone, cfg.PublishTick(), logger)
	if err != nil {
		logger.Fatalf("scheduler: %v", err)
	}
	if cfg.SchedulerEnabled {
		go sched.Run(ctx)
		logger.Printf("scheduler started, tick=%s tz=%s", cfg.PublishTick(), cfg.ScheduleTimezone)
	} else {
		logger.Printf("scheduler disabled by configuration")
	}

	if cfg.ViewsResyncSeconds > 0 {
		go runViewsResync(ctx, ledger, cfg, logger)
	}

	engine := conversation.NewEngine(sessions, content, sched, cfg.TargetChannels, botUsername)
	router := bot.New(&cfg, client, content, engine, ledger, publisher, sched, logger)

	logger.Printf("update loop started")
	router.Run(ctx, client)
	logger.Printf("shutdown complete")
}

func runViewsResync(ctx context.Context, ledger *engagement.Ledger, cfg config.Config, logger *log.Logger) {
	ticker := time.NewTicker(cfg.ViewsResyncInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ledger.ResyncViews(ctx, cfg.ViewsResyncWindow()); err != nil {
				logger.Printf("views resync: %v", err)
			}
		}
	}
}

func setupRepositories(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.ContentRepository, repository.JobsRepository, repository.EngagementRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repositories")
		return repository.NewMemoryContentRepository(),
			repository.NewMemoryJobsRepository(),
			repository.NewMemoryEngagementRepository(),
			func() {}
	}

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres, fallback to memory: %v", err)
		return repository.NewMemoryContentRepository(),
			repository.NewMemoryJobsRepository(),
			repository.NewMemoryEngagementRepository(),
			func() {}
	}
	logger.Printf("postgres repositories initialized")
	return repository.NewPostgresContentRepository(pool),
		repository.NewPostgresJobsRepository(pool),
		repository.NewPostgresEngagementRepository(pool),
		pool.Close
}

func setupSessionStore(ctx context.Context, cfg config.Config, logger *log.Logger) (session.Store, func()) {
	ttl := cfg.SessionTTL()
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory session store")
		memory := session.NewMemoryStore(ttl)
		return memory, memory.Close
	}

	store, err := session.NewRedisStore(ctx, session.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      ttl,
	})
	if err != nil {
		logger.Printf("failed to initialize redis session store, fallback to memory: %v", err)
		memory := session.NewMemoryStore(ttl)
		return memory, memory.Close
	}
	logger.Printf("redis session store initialized")
	return store, func() {
		_ = store.Close()
	}
}
