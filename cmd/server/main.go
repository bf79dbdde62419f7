package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/iamjoytank/docker-code-runner/internal/api"
	"github.com/iamjoytank/docker-code-runner/internal/catalog"
	"github.com/iamjoytank/docker-code-runner/internal/config"
	"github.com/iamjoytank/docker-code-runner/internal/logging"
	"github.com/iamjoytank/docker-code-runner/internal/queue"
	"github.com/iamjoytank/docker-code-runner/internal/sandbox"
	"github.com/iamjoytank/docker-code-runner/internal/worker"
	"github.com/iamjoytank/docker-code-runner/internal/workspace"
)

func main() {
	log.Println("Starting coderunner - sandboxed code execution service")

	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("WARNING: No .env file found, using environment variables")
		}
	}

	cfg := config.Load()
	logging.Init()
	defer logging.Sync()

	// Bind the HTTP port immediately with a minimal health responder,
	// so platform health checks succeed while the workspace and queue
	// are still coming up.
	var startupReady atomic.Bool
	var activeRouter atomic.Value

	bootstrapRouter := gin.New()
	bootstrapRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "starting", "ready": startupReady.Load()})
	})
	bootstrapRouter.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server starting", "ready": startupReady.Load()})
	})
	activeRouter.Store(bootstrapRouter)

	serverErrors := make(chan error, 1)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			activeRouter.Load().(*gin.Engine).ServeHTTP(w, r)
		}),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	log.Printf("Bootstrap HTTP listener started on port %s (health endpoint ready immediately)", cfg.Port)

	ws, err := workspace.New(cfg.WorkspaceDir)
	if err != nil {
		log.Fatalf("CRITICAL: failed to prepare workspace: %v", err)
	}
	log.Printf("Workspace ready at %s", ws.Root())

	q, err := queue.New(queue.RedisConfig{
		URL:          cfg.RedisURL,
		Host:         cfg.RedisHost,
		Port:         cfg.RedisPort,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err != nil {
		log.Fatalf("CRITICAL: failed to connect to redis: %v", err)
	}
	defer q.Close()

	if recovered, err := q.RecoverStalled(context.Background()); err != nil {
		log.Printf("WARNING: failed to recover stalled jobs: %v", err)
	} else if recovered > 0 {
		log.Printf("Recovered %d stalled job(s) left active by a previous process", recovered)
	}

	cat := catalog.Default()

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.DockerSocket = cfg.DockerSocket
	sandboxCfg.DefaultLimits = sandbox.Limits{
		MemoryMB:  cfg.SandboxMemoryMB,
		CPUs:      cfg.SandboxCPUs,
		PidsLimit: cfg.SandboxPidsLimit,
		Timeout:   cfg.SandboxTimeout,
	}
	if cfg.EnablePackageCache {
		sandboxCfg.PackageCache = sandbox.NewPackageCacheManager("", true)
	}
	drv := sandbox.New(sandboxCfg)
	if err := drv.Probe(context.Background()); err != nil {
		log.Printf("WARNING: docker daemon probe failed, sandboxed execution may not work: %v", err)
	}

	pool := worker.New(worker.Config{
		Concurrency:  cfg.WorkerConcurrency,
		PollTimeout:  2 * time.Second,
		DrainTimeout: cfg.ShutdownGrace,
	}, cat, ws, q, drv)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- pool.Run(workerCtx) }()
	log.Printf("Worker pool started with concurrency %d", cfg.WorkerConcurrency)

	handler := api.NewHandler(q, cat)
	router := api.NewRouter(handler, api.DefaultRouterConfig())

	activeRouter.Store(router)
	startupReady.Store(true)
	log.Printf("Server ready on port %s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("CRITICAL: failed to start server: %v", err)
	case sig := <-quit:
		log.Printf("Received signal %v, starting graceful shutdown", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")

	stopWorkers()
	<-workerDone
	log.Println("Worker pool drained")

	log.Println("Graceful shutdown complete")
}
