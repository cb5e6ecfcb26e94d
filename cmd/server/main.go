package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"propertypro/server/config"
	"propertypro/server/internal/api"
	"propertypro/server/internal/collaborative"
	"propertypro/server/internal/database"
	"propertypro/server/internal/interest"
	"propertypro/server/internal/models"
	"propertypro/server/internal/processor"
	"propertypro/server/internal/queue"
	"propertypro/server/internal/recommend"
	"propertypro/server/internal/scheduler"
	"propertypro/server/internal/scoring"
	"propertypro/server/internal/trends"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithError(err).Warn("Invalid log level, using info")
	}

	logger.Infof("Using database at: %s", cfg.Database.Path)
	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	groups, err := config.LoadRegionGroups(cfg.RegionGroups.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load region groups")
	}

	scorer := scoring.NewScorer(groups, logger)
	interestModel := interest.NewModel(db, interest.NewStore(cfg.Model.Dir), scorer, interest.Config{
		MinSamples:   cfg.Model.MinSamples,
		TestFraction: cfg.Model.TestFraction,
		Seed:         cfg.Model.Seed,
		FetchWorkers: cfg.Model.FetchWorkers,
		Boosting: interest.BoostingConfig{
			Trees:          cfg.Model.Trees,
			LearningRate:   cfg.Model.LearningRate,
			MaxDepth:       cfg.Model.MaxDepth,
			MinSamplesLeaf: cfg.Model.MinSamplesLeaf,
		},
	}, logger)

	if err := interestModel.Load(); err != nil {
		if errors.Is(err, models.ErrModelUnavailable) {
			logger.Info("No persisted interest model found, startup training will run")
		} else {
			logger.WithError(err).Warn("Failed to load persisted interest model")
		}
	}

	engine := recommend.NewEngine(
		db,
		interestModel,
		scorer,
		collaborative.NewFilter(collaborative.Config{
			Neighbors:         cfg.Recommendation.Neighbors,
			StrengthThreshold: cfg.Recommendation.StrengthThreshold,
		}, logger),
		trends.NewAnalyzer(trends.Config{
			Window:        cfg.Trends.Window,
			MinGrowthRate: cfg.Trends.MinGrowthRate,
			MinSamples:    cfg.Trends.MinSamples,
		}, logger),
		recommend.Config{
			DefaultLimit: cfg.Recommendation.DefaultLimit,
			MaxLimit:     cfg.Recommendation.MaxLimit,
		},
		logger,
	)

	interactions := queue.NewInteractionQueue(cfg.BatchProcessing.QueueSize, logger)
	batchProcessor := processor.NewBatchProcessor(db, interactions, cfg, logger)
	batchProcessor.Start()

	retrainScheduler := scheduler.NewScheduler(engine, scheduler.Schedule{
		Enabled: cfg.Scheduler.Enabled,
		Hour:    cfg.Scheduler.RetrainHour,
		Minute:  cfg.Scheduler.RetrainMinute,
	}, logger)
	retrainScheduler.Start()

	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.SetupRoutes(router, api.Dependencies{
		Engine:       engine,
		Interactions: interactions,
		Preferences:  db,
		RegionGroups: groups,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	retrainScheduler.Stop()
	batchProcessor.Stop()
	logger.Info("Server stopped")
}
