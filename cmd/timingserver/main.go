package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/timing-intelligence/internal/config"
	"github.com/ignite/timing-intelligence/internal/pkg/distlock"
	"github.com/ignite/timing-intelligence/internal/pkg/logger"
	"github.com/ignite/timing-intelligence/internal/repository/postgres"
	"github.com/ignite/timing-intelligence/internal/repository/rediscache"
	"github.com/ignite/timing-intelligence/internal/snowflake"
	"github.com/ignite/timing-intelligence/internal/timing/decision"
	"github.com/ignite/timing-intelligence/internal/timing/feature"
	"github.com/ignite/timing-intelligence/internal/timing/identity"
	"github.com/ignite/timing-intelligence/internal/timing/predictor"
	"github.com/ignite/timing-intelligence/internal/timingapi"
)

func main() {
	logger.Info("starting timing intelligence API server")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Timing.Postgres.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open postgres: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}
	cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Timing.Redis.Addr,
		Password: cfg.Timing.Redis.Password,
		DB:       cfg.Timing.Redis.DB,
	})

	snowflakeClient, err := snowflake.NewClient(snowflakeConfigFrom(cfg))
	if err != nil {
		log.Fatalf("failed to connect to snowflake: %v", err)
	}
	defer snowflakeClient.Close()

	identityStore := postgres.NewIdentityStore(db)
	explanationLog := postgres.NewExplanationLog(db)
	curveCache := rediscache.NewFeatureCache(redisClient)

	resolver := identity.NewService(identityStore, identity.Config{
		BFSDepth:                cfg.Timing.BFSDepth,
		BFSBudget:               cfg.Timing.BFSBudget,
		PhoneDefaultCountryCode: cfg.Timing.PhoneDefaultRegion,
	})

	locks := func(key string) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, 30*time.Second)
	}

	features := feature.NewEngine(snowflakeClient, curveCache, feature.Config{
		SmoothingSigmaMinutes: cfg.Timing.SmoothingSigmaMinutes,
		LaplaceAlpha:          cfg.Timing.LaplaceAlpha,
		LookbackDays:          cfg.Timing.LookbackDays,
		MaxAge:                time.Duration(cfg.Timing.CurveCacheMaxAgeSeconds) * time.Second,
		CacheTTL:              time.Duration(cfg.Timing.CurveCacheTTLSeconds) * time.Second,
	}, locks)

	latencyPredictor, weightPredictor := buildPredictors(ctx, cfg)

	decisionCfg := decision.Config{
		HotPathWindow:       time.Duration(cfg.Timing.HotPathWindowMinutes) * time.Minute,
		AccelerationMinutes: cfg.Timing.AccelerationMinutes,
		ModelVersion:        cfg.Timing.ModelVersion,
		MinLatencySeconds:   cfg.Timing.MinLatencySeconds,
		MaxLatencySeconds:   cfg.Timing.MaxLatencySeconds,
	}
	decider := decision.NewEngine(features, snowflakeClient, explanationLog, latencyPredictor, weightPredictor, decisionCfg)

	handlers := timingapi.NewHandlers(resolver, decider)
	router := timingapi.NewRouter(handlers)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("timing API listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down timing API server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

func snowflakeConfigFrom(cfg *config.Config) snowflake.Config {
	return snowflake.Config{
		Account:   cfg.Snowflake.Account,
		User:      cfg.Snowflake.User,
		Password:  cfg.Snowflake.Password,
		Database:  cfg.Snowflake.Database,
		Schema:    cfg.Snowflake.Schema,
		Warehouse: cfg.Snowflake.Warehouse,
		Table:     cfg.Snowflake.Table,
		Enabled:   cfg.Snowflake.Enabled,
	}
}

func buildPredictors(ctx context.Context, cfg *config.Config) (predictor.LatencyPredictor, predictor.SignalWeightPredictor) {
	if !cfg.Timing.Bedrock.Enabled {
		return predictor.NewHeuristicLatencyPredictor(cfg.Timing.DefaultLatencySeconds), nil
	}

	latencyModel, err := predictor.NewLatencyModel(ctx, cfg.Timing.Bedrock.Region, cfg.Timing.Bedrock.LatencyModelID)
	if err != nil {
		logger.Warn("bedrock latency model unavailable, falling back to heuristic", "error", err)
		return predictor.NewHeuristicLatencyPredictor(cfg.Timing.DefaultLatencySeconds), nil
	}
	weightModel, err := predictor.NewSignalWeightModel(ctx, cfg.Timing.Bedrock.Region, cfg.Timing.Bedrock.WeightsModelID)
	if err != nil {
		logger.Warn("bedrock signal weight model unavailable, falling back to heuristic weights", "error", err)
		return latencyModel, nil
	}
	return latencyModel, weightModel
}
