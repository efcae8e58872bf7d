package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq"

	"github.com/ignite/timing-intelligence/internal/config"
	"github.com/ignite/timing-intelligence/internal/pkg/logger"
	"github.com/ignite/timing-intelligence/internal/repository/dynamodlq"
	"github.com/ignite/timing-intelligence/internal/repository/postgres"
	"github.com/ignite/timing-intelligence/internal/snowflake"
	"github.com/ignite/timing-intelligence/internal/timing/identity"
	"github.com/ignite/timing-intelligence/internal/timing/ingest"
)

func main() {
	logger.Info("starting timing intelligence ingestion worker")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Timing.SQS.QueueURL == "" {
		log.Fatal("timing.sqs.queue_url (or TIMING_SQS_QUEUE_URL) is required")
	}

	db, err := sql.Open("postgres", cfg.Timing.Postgres.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open postgres: %v", err)
	}
	defer db.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)

	snowflakeClient, err := snowflake.NewClient(snowflakeConfigFrom(cfg))
	if err != nil {
		log.Fatalf("failed to connect to snowflake: %v", err)
	}
	defer snowflakeClient.Close()

	identityStore := postgres.NewIdentityStore(db)
	resolver := identity.NewService(identityStore, identity.Config{
		BFSDepth:                cfg.Timing.BFSDepth,
		BFSBudget:               cfg.Timing.BFSBudget,
		PhoneDefaultCountryCode: cfg.Timing.PhoneDefaultRegion,
	})

	dlq := dynamodlq.NewSink(dynamoClient, cfg.Timing.DLQ.TableName)

	pipeline := ingest.NewPipeline(resolver, snowflakeClient, dlq, ingest.Config{
		MaxResolveAttempts: cfg.Timing.MaxResolveAttempts,
		RetryBaseDelay:     time.Duration(cfg.Timing.RetryBaseDelayMillis) * time.Millisecond,
	})

	consumer := ingest.NewConsumer(sqsClient, cfg.Timing.SQS.QueueURL, pipeline)

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down ingestion worker")
	consumer.Stop()
	cancel()
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
