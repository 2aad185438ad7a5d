package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"trainworker/internal/config"
	cronrunner "trainworker/internal/cron"
	"trainworker/internal/db"
	"trainworker/internal/handler"
	"trainworker/internal/judge"
	"trainworker/internal/logger"
	"trainworker/internal/pipeline"
	gormrepository "trainworker/internal/repository/gorm"
	"trainworker/internal/store"
	"trainworker/internal/trainclient"
	"trainworker/internal/trainer"
	"trainworker/internal/worker"
)

func main() {
	// .env.local wins over .env; both are optional.
	_ = godotenv.Overload(".env", ".env.local")

	cfgPath := os.Getenv("TW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("TW_ENV_ONLY"); envOnlyRaw != "" {
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

	repo := gormrepository.New(dbConn.Gorm)
	reader := &store.Reader{Repo: repo, Logger: logger}

	backend := trainclient.New(
		cfg.Backend.BaseURL,
		os.Getenv(cfg.Backend.APIKeyEnv),
		cfg.Backend.Project,
		cfg.Backend.BaseModel,
		cfg.Backend.Timeout,
		logger,
	)
	if !backend.Configured() {
		logger.Warn("training backend url not configured, training will fail until it is set")
	}

	var scorer judge.Scorer
	if judgeKey := os.Getenv(cfg.Judge.APIKeyEnv); judgeKey != "" {
		scorer = judge.NewClient(judgeKey, cfg.Judge.BaseURL, cfg.Judge.Model, 0.2, cfg.Judge.Timeout, logger)
	} else {
		logger.Warn("no judge api key, scoring heuristically",
			zap.String("env_var", cfg.Judge.APIKeyEnv))
	}

	preparer := &pipeline.Preparer{
		Reader:             reader,
		Scorer:             scorer,
		Fallback:           &judge.HeuristicScorer{Logger: logger},
		Logger:             logger,
		TargetTrajectories: cfg.Pipeline.TargetTrajectories,
		MaxDropout:         cfg.Pipeline.MaxDropout,
	}

	trainerSvc := &trainer.Trainer{
		Preparer: preparer,
		Backend:  backend,
		Repo:     repo,
		Logger:   logger,
		Opts: trainer.Options{
			MinAgents:    cfg.Pipeline.MinAgents,
			MinActions:   cfg.Pipeline.MinActions,
			Lookback:     cfg.Pipeline.Lookback,
			MaxWindows:   cfg.Pipeline.MaxWindows,
			MaxPerWindow: cfg.Pipeline.MaxPerWindow,
			LearningRate: cfg.Worker.LearningRate,
			BaseModel:    cfg.Backend.BaseModel,
		},
	}

	workerSvc := &worker.Worker{
		Repo:       repo,
		Trainer:    trainerSvc,
		Logger:     logger,
		BatchLimit: cfg.Worker.BatchLimit,
		AutoDeploy: cfg.Worker.AutoDeploy,
		StaleAfter: cfg.Worker.StaleAfter,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Backend: backend}
	healthHandler.Register(engine)
	trainHandler := &handler.TrainHandler{Worker: workerSvc, Logger: logger, BaseCtx: ctx}
	trainHandler.Register(engine)
	batchHandler := &handler.BatchHandler{Repo: repo}
	batchHandler.Register(engine)
	modelHandler := &handler.ModelHandler{Repo: repo}
	modelHandler.Register(engine)
	windowHandler := &handler.WindowHandler{
		Reader:    reader,
		MinAgents: cfg.Pipeline.MinAgents,
		Lookback:  cfg.Pipeline.Lookback,
	}
	windowHandler.Register(engine)

	cronRunner := cronrunner.New(logger, ctx)
	_, err = cronRunner.Add("@every "+cfg.Worker.SweepInterval.String(), func(ctx context.Context) {
		if err := workerSvc.SweepStale(ctx); err != nil {
			logger.Warn("stale batch sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Warn("cron register stale sweep failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	go workerSvc.Run(ctx, cfg.Worker.PollInterval)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
