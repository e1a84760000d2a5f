package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/task-board/internal/api/http"
	"github.com/spec-kit/task-board/internal/api/http/handlers"
	"github.com/spec-kit/task-board/internal/auth"
	"github.com/spec-kit/task-board/internal/config"
	"github.com/spec-kit/task-board/internal/events"
	"github.com/spec-kit/task-board/internal/observability"
	"github.com/spec-kit/task-board/internal/persistence"
	"github.com/spec-kit/task-board/internal/realtime"
	"github.com/spec-kit/task-board/internal/repository"
	"github.com/spec-kit/task-board/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)
	activityRepo := repository.NewActivityLogRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	broadcaster := realtime.NewBroadcaster(hub, logger)
	broadcaster.RegisterHandlers(dispatcher)

	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:     taskRepo,
		UserRepo:     userRepo,
		ActivityRepo: activityRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, userRepo)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	rateLimiter := httptransport.NewRateLimiter(redis.Client, logger,
		cfg.RateLimit.TaskCreateMax, cfg.RateLimit.TaskCreateWindow())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics)
	tasksHandler := handlers.NewTasksHandler(taskService)
	wsHandler := handlers.NewWSHandler(hub, authMiddleware, logger)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Tasks:          tasksHandler,
		WS:             wsHandler,
		AuthMiddleware: authMiddleware,
		RateLimiter:    rateLimiter,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cancel()
	hub.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
