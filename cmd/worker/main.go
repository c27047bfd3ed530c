package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"applymate/internal/api/handlers"
	"applymate/internal/api/routes"
	"applymate/internal/browser"
	"applymate/internal/config"
	"applymate/internal/detector"
	"applymate/internal/logging"
	"applymate/internal/notify"
	"applymate/internal/orchestrator"
	"applymate/internal/queue"
	"applymate/internal/store"
	"applymate/internal/strategy"
	"applymate/internal/verifier"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logging
	if err := logging.InitializeLogging(cfg.Logging.Level, cfg.Logging.Adapters); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.CloseLogging()

	logger := logging.GetGlobalLogger()
	logger.Info("Starting application worker", map[string]interface{}{})

	// Application store
	var repo store.ApplicationRepository
	if cfg.Store.InMemory {
		repo = store.NewMemoryRepository()
	} else {
		badgerRepo, err := store.NewBadgerRepository(cfg.Store.Directory)
		if err != nil {
			logger.Fatal("Failed to open application store", map[string]interface{}{
				"error": err.Error(),
			})
		}
		repo = badgerRepo
	}
	defer repo.Close()

	// Task queue and collaborator directory
	taskQueue := queue.NewTaskQueue(cfg)
	defer taskQueue.Close()

	directory := store.NewRedisDirectory(cfg)
	defer directory.Close()

	// Notifications fall back to log-only when redis is unreachable.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
	var notifier notify.Notifier
	redisNotifier := notify.NewRedisNotifier(cfg)
	if err := taskQueue.Ping(pingCtx); err != nil {
		logger.Warn("Redis unreachable, notifications will be log-only", map[string]interface{}{
			"error": err.Error(),
		})
		notifier = notify.NewLogNotifier()
	} else {
		notifier = redisNotifier
	}
	pingCancel()
	defer redisNotifier.Close()

	// Browser
	browserManager := browser.NewManager(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := browserManager.Start(ctx); err != nil {
		logger.Fatal("Failed to start browser", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer browserManager.Stop()

	// Pipeline
	capturer := browser.NewCapturer(cfg.Screenshots.Directory, cfg.Screenshots.Enabled)
	det := detector.New(cfg.Detector.PortalChangeThreshold)
	strategies := strategy.NewManager(det, capturer)
	ver := verifier.New()
	limiter := orchestrator.NewHostLimiter(cfg)
	defer limiter.Stop()

	sessions := func(ctx context.Context) (orchestrator.PageSession, error) {
		return browserManager.CreateSession(ctx)
	}

	runner := orchestrator.NewRunner(cfg, repo, directory, sessions, strategies, ver, capturer, limiter, notifier)

	// Maintenance sweeps
	sweeper := orchestrator.NewSweeper(cfg, repo, taskQueue)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start maintenance sweeps", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer sweeper.Stop()

	// Task consumer
	go taskQueue.Consume(ctx, runner.HandleTask)

	// Operational HTTP surface
	e := echo.New()
	e.HideBanner = true
	routes.SetupRoutes(e, handlers.Checker{
		Browser: browserManager.Healthy,
		Store: func() bool {
			checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer checkCancel()
			_, err := repo.Get(checkCtx, "healthcheck")
			return err == nil || err == store.ErrNotFound
		},
		Queue: func() bool {
			checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer checkCancel()
			return taskQueue.Ping(checkCtx) == nil
		},
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down worker...", map[string]interface{}{})

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Stop taking new tasks first, then the browser, then the server.
		cancel()
		sweeper.Stop()

		if err := browserManager.Stop(); err != nil {
			logger.Error("Error stopping browser", map[string]interface{}{
				"error": err.Error(),
			})
		}

		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down server", map[string]interface{}{
				"error": err.Error(),
			})
		}

		logger.Info("Worker shutdown complete", map[string]interface{}{})
	}()

	// Start server
	address := cfg.GetServerAddress()
	logger.Info("Server starting", map[string]interface{}{
		"address": address,
	})

	if err := e.Start(address); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server failed to start", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
