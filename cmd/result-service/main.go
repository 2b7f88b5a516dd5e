package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"judgeresult/internal/common/cache"
	"judgeresult/internal/common/db"
	commonmw "judgeresult/internal/common/http/middleware"
	"judgeresult/internal/common/mq"
	"judgeresult/internal/result/controller"
	"judgeresult/internal/result/model"
	"judgeresult/internal/result/provider"
	"judgeresult/internal/result/queue"
	"judgeresult/internal/result/repository"
	"judgeresult/internal/result/service"
	"judgeresult/internal/result/viewer"
	"judgeresult/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/result_service.yaml"

// components are the wired dependencies of the service. closers run in reverse on shutdown.
type components struct {
	store     repository.Store
	problems  provider.ProblemProvider
	users     provider.UserProvider
	labels    provider.LabelProvider
	publisher repository.StatusEventPublisher
	closers   []func() error
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	comps, err := buildComponents(context.Background(), appCfg)
	if err != nil {
		logger.Error(context.Background(), "init components failed", zap.Error(err))
		return
	}
	defer comps.close()

	resultService := service.New(service.Dependencies{
		Store:    comps.store,
		Problems: comps.problems,
		Users:    comps.users,
		Labels:   comps.labels,
	}, appCfg.Service)
	gradingQueue := queue.New(comps.store, comps.publisher, appCfg.Queue)
	resolver := viewer.NewResolver(appCfg.Auth)

	httpServer := buildHTTPServer(appCfg.Server, resultService, comps.store, gradingQueue, resolver)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		logger.Info(context.Background(), "result http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	workerCtx, stopWorker := context.WithCancel(shutdownCtx)
	defer stopWorker()
	workerDone := make(chan struct{})
	if appCfg.Worker.Enabled {
		grader := queue.NewHTTPGrader(appCfg.Worker.GraderURL, appCfg.Worker.GraderTimeout)
		worker := queue.NewWorker(gradingQueue, grader, appCfg.Worker.WorkerConfig)
		go func() {
			defer close(workerDone)
			if err := worker.Run(workerCtx); err != nil {
				errCh <- fmt.Errorf("grading worker: %w", err)
			}
		}()
	} else {
		close(workerDone)
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "result service stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	stopWorker()
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	select {
	case <-workerDone:
	case <-ctx.Done():
		logger.Warn(context.Background(), "grading worker did not stop in time")
	}
}

func buildComponents(ctx context.Context, cfg *AppConfig) (*components, error) {
	comps := &components{publisher: repository.NoopStatusEventPublisher{}}
	ok := false
	defer func() {
		if !ok {
			comps.close()
		}
	}()

	switch cfg.Storage.Backend {
	case storageMemory:
		fixtures, err := loadFixtures(cfg.Storage.Fixtures)
		if err != nil {
			return nil, err
		}
		comps.store = repository.NewMemoryStore(nil)
		problems := provider.NewMemoryReader[model.Problem]()
		for _, p := range fixtures.Problems {
			problems.Put(p.ID, p)
		}
		users := provider.NewMemoryReader[model.User]()
		for _, u := range fixtures.Users {
			users.Put(u.ID, u)
		}
		comps.problems, comps.users = problems, users
		comps.labels = provider.NewMemoryLabels(fixtures.Labels...)
		logger.Info(ctx, "using in-memory result store",
			zap.Int("problems", len(fixtures.Problems)), zap.Int("users", len(fixtures.Users)))
	default:
		database, err := db.Open(cfg.Database.Driver, &cfg.Database.PoolConfig)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		comps.closers = append(comps.closers, database.Close)
		if cfg.Database.EnsureSchema {
			if err := repository.EnsureSchema(ctx, database); err != nil {
				return nil, err
			}
		}
		dbProvider := db.NewStaticProvider(database)
		comps.store = repository.NewSQLStore(dbProvider, nil)
		comps.problems = provider.NewSQLProblemProvider(dbProvider)
		comps.users = provider.NewSQLUserProvider(dbProvider)
		comps.labels = provider.NewSQLLabelProvider(dbProvider)
	}

	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		comps.closers = append(comps.closers, redisCache.Close)
		ttl := provider.CacheTTL{TTL: cfg.Cache.EntityTTL, EmptyTTL: cfg.Cache.EntityEmptyTTL}
		comps.store = repository.NewCachedStore(comps.store, redisCache, cfg.Cache.ResultTTL)
		comps.problems = provider.NewCachedProblemProvider(comps.problems, redisCache, ttl)
		comps.users = provider.NewCachedUserProvider(comps.users, redisCache, ttl)
		comps.labels = provider.NewCachedLabels(comps.labels, redisCache, ttl)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewKafkaProducer(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("init kafka: %w", err)
		}
		comps.closers = append(comps.closers, producer.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := producer.Ping(pingCtx); err != nil {
			logger.Warn(ctx, "kafka ping failed", zap.Error(err))
		}
		cancel()
		comps.publisher = repository.NewMQStatusEventPublisher(producer, cfg.Events.FinalStatusTopic)
	}

	ok = true
	return comps, nil
}

func buildHTTPServer(cfg ServerConfig, results *service.ResultService, store repository.ResultStore, q *queue.Queue, resolver *viewer.Resolver) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	controller.RegisterRoutes(router,
		controller.NewResultController(results, store),
		controller.NewQueueController(q),
		resolver,
	)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
