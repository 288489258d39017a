package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"tradeanalytics/internal/cache"
	"tradeanalytics/internal/config"
	cronrunner "tradeanalytics/internal/cron"
	"tradeanalytics/internal/db"
	"tradeanalytics/internal/handler"
	"tradeanalytics/internal/jobs"
	"tradeanalytics/internal/logger"
	"tradeanalytics/internal/metrics"
	"tradeanalytics/internal/repository"
	gormrepository "tradeanalytics/internal/repository/gorm"
	mongorepository "tradeanalytics/internal/repository/mongo"
	"tradeanalytics/internal/service"
	"tradeanalytics/internal/washtrade"

	_ "tradeanalytics/docs"
)

func main() {
	cfgPath := os.Getenv("TA_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TA_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	loc, err := cfg.Analysis.Location()
	if err != nil {
		logger.Fatal("invalid analysis timezone", zap.String("timezone", cfg.Analysis.Timezone), zap.Error(err))
	}
	weights, err := cfg.Risk.ScoreWeights()
	if err != nil {
		logger.Fatal("invalid risk weights", zap.Error(err))
	}

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New("ta")
	store := gormrepository.New(dbConn.Gorm)
	checks := map[string]handler.Checker{}

	var analysisStore repository.AnalysisStore = store
	if cfg.AnalysisStore.Driver == "mongo" {
		client, cleanup, err := mongorepository.Connect(ctx, cfg.AnalysisStore.Mongo, logger)
		if err != nil {
			logger.Fatal("mongodb connect failed", zap.Error(err))
		}
		defer cleanup()
		mstore := mongorepository.New(client.Database(cfg.AnalysisStore.Mongo.Database))
		if err := mstore.EnsureIndexes(ctx); err != nil {
			logger.Fatal("mongodb indexes failed", zap.Error(err))
		}
		analysisStore = mstore
		checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}
	if cfg.Redis.Enabled {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := cache.NewRedisClient(rctx, cache.RedisConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		cancel()
		if err != nil {
			// the cache is optional; the store keeps serving without it
			logger.Warn("redis unavailable, analysis cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			cached := cache.NewAnalysisCache(analysisStore, &cache.RedisBackend{Client: rdb}, cfg.Redis.TTL, logger, m)
			if cfg.Redis.Prefix != "" {
				cached.Prefix = cfg.Redis.Prefix
			}
			analysisStore = cached
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(ctx); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	detector := &washtrade.Detector{
		Hierarchy:     store,
		Executions:    store,
		Logger:        logger.Named("washtrade"),
		Sides:         cfg.Analysis.WashSides,
		Location:      loc,
		ThresholdDays: cfg.Analysis.WashThresholdDays,
	}
	materializer := &service.Materializer{
		Hierarchy:  store,
		Executions: store,
		Ledger:     store,
		Balances:   store,
		Limits:     store,
		Store:      analysisStore,
		Detector:   detector,
		Switches:   settingsSvc,
		Logger:     logger.Named("materializer"),
		Metrics:    m,
		Config: service.MaterializerConfig{
			Location:          loc,
			Limit:             cfg.Analysis.LeaderboardLimit,
			WashThresholdDays: cfg.Analysis.WashThresholdDays,
			Concurrency:       cfg.Analysis.Concurrency,
			ExecutionStatuses: cfg.Analysis.ExecutionStatuses,
			LedgerStatuses:    cfg.Analysis.LedgerStatuses,
			Weights:           weights,
			Limits:            cfg.Risk.Limits(),
		},
	}
	orchestrator := jobs.NewOrchestrator(materializer, logger.Named("jobs"))
	orchestrator.Switches = settingsSvc
	orchestrator.Metrics = m
	orchestrator.BaseCtx = ctx
	queryService := &service.QueryService{Store: analysisStore}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Checks: checks}
	healthHandler.Register(engine)
	jobsHandler := &handler.JobsHandler{Jobs: orchestrator, Logger: logger, StreamInterval: cfg.Server.StreamInterval}
	jobsHandler.Register(engine)
	analysisHandler := &handler.AnalysisHandler{Query: queryService, Anchors: materializer, Logger: logger, Location: loc}
	analysisHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Repo: store, Settings: settingsSvc}
	settingsHandler.Register(engine)
	riskLimitHandler := &handler.RiskLimitHandler{Repo: store}
	riskLimitHandler.Register(engine)

	engine.GET("/metrics", gin.WrapH(m.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.Analysis, func(ctx context.Context) {
			if !settingsSvc.IsEnabled(ctx, service.FeatureAnalysisCron, true) {
				return
			}
			resp, err := orchestrator.RunJob(ctx, jobs.JobCombined, jobs.TriggerCron, false)
			if err != nil {
				logger.Warn("cron analysis rejected", zap.Error(err))
				return
			}
			if resp.Result != nil && !resp.Result.OK {
				logger.Warn("cron analysis failed",
					zap.String("run_id", resp.RunID),
					zap.String("status", resp.Result.Status),
					zap.String("error", resp.Result.Error),
				)
				return
			}
			logger.Info("cron analysis ok", zap.String("run_id", resp.RunID))
		})
		if err != nil {
			logger.Fatal("cron register analysis failed", zap.String("spec", cfg.Cron.Analysis), zap.Error(err))
		}
	}
	cronRunner.Start()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	cronRunner.Stop()
	orchestrator.Wait()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
