// Command server starts the vodforge upload facade and queue poller.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"vodforge/internal/api"
	"vodforge/internal/config"
	"vodforge/internal/dispatch"
	"vodforge/internal/objectstore"
	"vodforge/internal/observability/logging"
	"vodforge/internal/observability/metrics"
	"vodforge/internal/pipeline"
	"vodforge/internal/queue"
	"vodforge/internal/registry"
	"vodforge/internal/server"
	"vodforge/internal/serverutil"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env is fine; real deployments configure the environment
	// directly
	_ = godotenv.Load()

	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger = logging.WithComponent(logger, "server")
	recorder := metrics.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return fmt.Errorf("load aws configuration: %w", err)
	}

	store := objectstore.NewS3Gateway(s3.NewFromConfig(awsCfg))

	jobQueue, closeQueue, err := buildQueue(ctx, cfg, awsCfg, logger)
	if err != nil {
		return err
	}
	defer closeQueue()

	dispatcher, err := buildDispatcher(cfg, awsCfg, logger)
	if err != nil {
		return err
	}

	links, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := links.Close(closeCtx); err != nil {
			logger.Warn("close link registry failed", "error", err)
		}
	}()

	poller, err := pipeline.NewPoller(pipeline.PollerConfig{
		Queue:           jobQueue,
		Store:           store,
		Dispatcher:      dispatcher,
		Logger:          logger,
		Metrics:         recorder,
		UploadBucket:    cfg.UploadBucket,
		OutputBucket:    cfg.OutputBucket,
		PlaybackBaseURL: cfg.PlaybackBaseURL,
		BackendEndpoint: cfg.BackendEndpoint,
		DownloadTTL:     cfg.DownloadTTL,
		BatchSize:       cfg.QueueBatch,
	})
	if err != nil {
		return fmt.Errorf("build poller: %w", err)
	}

	uploads := &api.Handler{
		Store:        store,
		Registry:     links,
		Logger:       logger,
		Metrics:      recorder,
		UploadBucket: cfg.UploadBucket,
		UploadTTL:    cfg.UploadTTL,
		DownloadTTL:  cfg.DownloadTTL,
	}
	health := &api.HealthHandler{Environment: cfg.Environment, StartedAt: time.Now()}

	srv, err := server.New(uploads, health, server.Config{
		Addr:    cfg.ListenAddr,
		Logger:  logger,
		Metrics: recorder,
		CORS:    server.CORSConfig{AllowedOrigins: cfg.AllowedOrigins},
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	pollerDone := make(chan error, 1)
	go func() {
		pollerDone <- poller.Run(ctx)
	}()

	logger.Info("vodforge server starting",
		"addr", cfg.ListenAddr,
		"environment", cfg.Environment,
		"queue_driver", cfg.QueueDriver,
		"dispatch_driver", cfg.DispatchDriver,
		"registry_driver", cfg.RegistryDriver,
	)

	err = serverutil.Run(ctx, serverutil.Config{Server: srv.HTTPServer()})
	stop()

	if pollerErr := <-pollerDone; pollerErr != nil && !errors.Is(pollerErr, context.Canceled) {
		logger.Error("poller stopped with error", "error", pollerErr)
	}
	return err
}

func buildQueue(ctx context.Context, cfg config.Server, awsCfg aws.Config, logger *slog.Logger) (queue.Gateway, func(), error) {
	switch cfg.QueueDriver {
	case config.QueueDriverRedis:
		gateway, err := queue.NewRedisGateway(queue.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.QueueKey,
			WaitTime: cfg.QueueWait,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build redis queue: %w", err)
		}
		// jobs parked on the processing list by an earlier crash go back
		// on the queue before polling starts
		if requeued, err := gateway.Reclaim(ctx); err != nil {
			logger.Warn("reclaim processing list failed", "error", err)
		} else if requeued > 0 {
			logger.Info("requeued stranded jobs", "count", requeued)
		}
		return gateway, func() { _ = gateway.Close() }, nil
	default:
		gateway, err := queue.NewSQSGateway(sqs.NewFromConfig(awsCfg), queue.SQSConfig{
			QueueURL: cfg.QueueURL,
			WaitTime: cfg.QueueWait,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("build sqs queue: %w", err)
		}
		return gateway, func() {}, nil
	}
}

func buildDispatcher(cfg config.Server, awsCfg aws.Config, logger *slog.Logger) (dispatch.Dispatcher, error) {
	switch cfg.DispatchDriver {
	case config.DispatchDriverProcess:
		dispatcher, err := dispatch.NewProcessDispatcher(cfg.WorkerBinary, cfg.Region, logger)
		if err != nil {
			return nil, fmt.Errorf("build process dispatcher: %w", err)
		}
		return dispatcher, nil
	default:
		dispatcher, err := dispatch.NewECSDispatcher(ecs.NewFromConfig(awsCfg), cfg.ECS, cfg.Region)
		if err != nil {
			return nil, fmt.Errorf("build ecs dispatcher: %w", err)
		}
		return dispatcher, nil
	}
}

func buildRegistry(ctx context.Context, cfg config.Server) (registry.Store, error) {
	switch cfg.RegistryDriver {
	case config.RegistryDriverPostgres:
		store, err := registry.NewPostgresStore(ctx, registry.PostgresConfig{
			DSN:             cfg.PostgresDSN,
			MaxConnections:  cfg.PostgresMaxConns,
			ApplicationName: "vodforge",
		})
		if err != nil {
			return nil, fmt.Errorf("build postgres registry: %w", err)
		}
		return store, nil
	default:
		return registry.NewMemoryStore(), nil
	}
}
