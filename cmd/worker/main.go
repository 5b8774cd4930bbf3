// Command worker processes a single transcode job and exits. The dispatcher
// injects the job parameters through the environment; exit status 0 means the
// rendition set was produced and uploaded.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"vodforge/internal/config"
	"vodforge/internal/objectstore"
	"vodforge/internal/observability/logging"
	"vodforge/internal/transcode"
)

func main() {
	if err := run(); err != nil {
		slog.Error("transcode job failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

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

	worker, err := transcode.NewWorker(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("build worker: %w", err)
	}
	return worker.Run(ctx)
}
