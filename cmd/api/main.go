package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"storesync-api/internal/cache"
	"storesync-api/internal/config"
	"storesync-api/internal/handler"
	"storesync-api/internal/middleware"
	"storesync-api/internal/model"
	"storesync-api/internal/queue"
	"storesync-api/internal/repository"
	"storesync-api/internal/router"
	"storesync-api/internal/service"
	syncpipe "storesync-api/internal/sync"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting storesync API...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize product repository based on config
	var productRepo repository.ProductRepository
	switch cfg.ProductDB.Type {
	case "postgres", "postgresql":
		pgRepo, err := repository.NewPostgresProductRepository(cfg.ProductDB.PostgresDSN())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		productRepo = pgRepo
		log.Println("PostgreSQL product repository initialized")
	case "mysql":
		mysqlRepo, err := repository.NewMySQLProductRepository(cfg.Database.DSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL product repository: %v", err)
		}
		productRepo = mysqlRepo
		log.Println("MySQL product repository initialized")
	default: // sqlite
		sqliteRepo, err := repository.NewSQLiteProductRepository(cfg.ProductDB.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		productRepo = sqliteRepo
		log.Println("SQLite product repository initialized")
	}
	defer productRepo.Close()

	// MySQL holds the licenses and failed_jobs tables.
	mysqlDB, err := sql.Open("mysql", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to open MySQL: %v", err)
	}
	mysqlDB.SetMaxOpenConns(10)
	mysqlDB.SetMaxIdleConns(5)
	mysqlDB.SetConnMaxLifetime(5 * time.Minute)
	if err := mysqlDB.Ping(); err != nil {
		log.Fatalf("MySQL ping failed: %v", err)
	}
	defer mysqlDB.Close()
	log.Println("MySQL connection initialized")

	licenseRepo := repository.NewMySQLLicenseRepository(mysqlDB)
	failedJobRepo, err := repository.NewMySQLFailedJobRepository(mysqlDB)
	if err != nil {
		log.Fatalf("Failed to initialize failed-jobs repository: %v", err)
	}

	// Cache backs the sync result store and the storefront token cache.
	var appCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis cache unavailable, falling back to memory: %v", err)
			appCache = cache.NewMemoryCache()
		} else {
			appCache = redisCache
			log.Println("Redis cache initialized")
		}
	default:
		appCache = cache.NewMemoryCache()
		log.Println("Memory cache initialized")
	}

	// Job queue. Redis survives restarts; memory is for single-node dev.
	var jobQueue queue.Queue
	switch cfg.Queue.Type {
	case "redis":
		redisQueue, err := queue.NewRedisQueue(queue.RedisQueueConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Fatalf("Failed to initialize Redis queue: %v", err)
		}
		jobQueue = redisQueue
		log.Println("Redis queue initialized")
	default:
		jobQueue = queue.NewMemoryQueue()
		log.Println("Memory queue initialized")
	}
	defer jobQueue.Close()

	// Initialize services
	resultStore := service.NewSyncResultStore(appCache, cfg.Cache.SyncResultTTL)
	pipeline := syncpipe.NewPipeline(cfg.Sync, licenseRepo, productRepo, resultStore, jobQueue, appCache)

	// Exhausted jobs land in the failed_jobs table; the retry scheduler
	// feeds them back later.
	deadLetter := func(ctx context.Context, job queue.Job, jobErr error) {
		row := model.FailedJob{
			JobID:    job.ID,
			Queue:    job.Queue,
			Type:     job.Type,
			Payload:  job.Payload,
			Error:    jobErr.Error(),
			Attempts: job.Attempts,
			FailedAt: time.Now().UTC(),
		}
		if err := failedJobRepo.Insert(ctx, row); err != nil {
			log.Printf("[DeadLetter] Failed to persist job %s: %v", job.ID, err)
		}
	}

	pool := queue.NewWorkerPool(queue.WorkerPoolConfig{
		Queue:           jobQueue,
		Queues:          []string{queue.QueueFetch, queue.QueueBulkUpdate},
		WorkersPerQueue: cfg.Queue.WorkersPerQueue,
		PollInterval:    cfg.Queue.PollInterval,
		DeadLetter:      deadLetter,
	})
	pipeline.Register(pool)
	pool.Start()

	retryScheduler := service.NewRetryScheduler(failedJobRepo, jobQueue, service.RetryConfig{
		Interval:    cfg.Queue.RetryInterval,
		MaxRequeues: cfg.Queue.MaxRequeues,
	})
	retryScheduler.Start()

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Version, jobQueue)
	syncHandler := handler.NewSyncHandler(pipeline, resultStore)
	adminHandler := handler.NewAdminHandler(jobQueue, productRepo, failedJobRepo, retryScheduler)

	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		APIKeys: apiKeys(cfg.App.APIKey),
	})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		SyncHandler:    syncHandler,
		AdminHandler:   adminHandler,
		AuthMiddleware: authMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests first, then drain workers so in-flight chunks
	// finish and record their results.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	retryScheduler.Stop()
	pool.Stop()

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}

// apiKeys splits the configured key setting; empty config means no keys and
// every authenticated route rejects.
func apiKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		log.Println("Warning: API_KEY not set, authenticated routes will reject all requests")
	}
	return keys
}
