// Package config builds the immutable configuration consumed by the vodforge
// processes. Every setting is read from the environment exactly once at
// startup; the resulting structs are passed by value and never mutated, so no
// component reads process-wide state after boot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names injected into transcode workers by the compute
// dispatcher. The worker reads the same names back via LoadWorker, so the two
// sides cannot drift independently.
const (
	EnvSourceURL       = "VODFORGE_SOURCE_URL"
	EnvSourceKey       = "VODFORGE_SOURCE_KEY"
	EnvSourceBucket    = "VODFORGE_SOURCE_BUCKET"
	EnvJobID           = "VODFORGE_JOB_ID"
	EnvOutputBucket    = "VODFORGE_OUTPUT_BUCKET"
	EnvPlaybackBaseURL = "VODFORGE_PLAYBACK_BASE_URL"
	EnvRegion          = "VODFORGE_REGION"
	EnvBackendEndpoint = "VODFORGE_BACKEND_ENDPOINT"
)

// Drivers selectable through the environment.
const (
	QueueDriverSQS   = "sqs"
	QueueDriverRedis = "redis"

	DispatchDriverECS     = "ecs"
	DispatchDriverProcess = "process"

	RegistryDriverMemory   = "memory"
	RegistryDriverPostgres = "postgres"
)

// Default presigned-handle lifetimes. The worker's source fetch gets a longer
// window because transcoding can outlive a general-purpose download handle.
const (
	DefaultUploadTTL      = 5 * time.Minute
	DefaultDownloadTTL    = time.Hour
	DefaultSourceFetchTTL = 2 * time.Hour
)

// ECS describes the task launch parameters used by the ECS dispatcher.
type ECS struct {
	Cluster        string
	TaskDefinition string
	ContainerName  string
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// Redis describes the connection used by the Redis queue backend.
type Redis struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
}

// Server holds everything the façade/poller process needs: HTTP runtime,
// storage buckets, queue and dispatcher wiring, and the link registry.
type Server struct {
	ListenAddr  string
	Environment string
	LogLevel    string
	LogFormat   string

	AllowedOrigins []string

	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UploadBucket    string
	OutputBucket    string
	PlaybackBaseURL string
	UploadTTL       time.Duration
	DownloadTTL     time.Duration
	SourceFetchTTL  time.Duration

	QueueDriver string
	QueueURL    string
	QueueWait   time.Duration
	QueueBatch  int
	Redis       Redis

	DispatchDriver  string
	ECS             ECS
	WorkerBinary    string
	BackendEndpoint string

	RegistryDriver   string
	PostgresDSN      string
	PostgresMaxConns int32
}

// LoadServer reads the server configuration from the environment and
// validates the combinations required by the selected drivers.
func LoadServer() (Server, error) {
	cfg := Server{
		ListenAddr:      envOrDefault("VODFORGE_LISTEN_ADDR", ":8080"),
		Environment:     envOrDefault("VODFORGE_ENV", "development"),
		LogLevel:        envOrDefault("VODFORGE_LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("VODFORGE_LOG_FORMAT", "json"),
		AllowedOrigins:  splitList(os.Getenv("VODFORGE_ALLOWED_ORIGINS")),
		Region:          strings.TrimSpace(os.Getenv(EnvRegion)),
		AccessKeyID:     strings.TrimSpace(os.Getenv("VODFORGE_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("VODFORGE_SECRET_ACCESS_KEY")),
		UploadBucket:    strings.TrimSpace(os.Getenv("VODFORGE_UPLOAD_BUCKET")),
		OutputBucket:    strings.TrimSpace(os.Getenv(EnvOutputBucket)),
		PlaybackBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv(EnvPlaybackBaseURL)), "/"),
		QueueDriver:     strings.ToLower(envOrDefault("VODFORGE_QUEUE_DRIVER", QueueDriverSQS)),
		QueueURL:        strings.TrimSpace(os.Getenv("VODFORGE_QUEUE_URL")),
		DispatchDriver:  strings.ToLower(envOrDefault("VODFORGE_DISPATCH_DRIVER", DispatchDriverECS)),
		WorkerBinary:    strings.TrimSpace(os.Getenv("VODFORGE_WORKER_BINARY")),
		BackendEndpoint: strings.TrimSpace(os.Getenv(EnvBackendEndpoint)),
		RegistryDriver:  strings.ToLower(envOrDefault("VODFORGE_REGISTRY_DRIVER", RegistryDriverMemory)),
		PostgresDSN:     strings.TrimSpace(os.Getenv("VODFORGE_POSTGRES_DSN")),
		Redis: Redis{
			Addr:     strings.TrimSpace(os.Getenv("VODFORGE_REDIS_ADDR")),
			Password: os.Getenv("VODFORGE_REDIS_PASSWORD"),
			QueueKey: envOrDefault("VODFORGE_REDIS_QUEUE_KEY", "vodforge:uploads"),
		},
		ECS: ECS{
			Cluster:        strings.TrimSpace(os.Getenv("VODFORGE_ECS_CLUSTER")),
			TaskDefinition: strings.TrimSpace(os.Getenv("VODFORGE_ECS_TASK_DEFINITION")),
			ContainerName:  envOrDefault("VODFORGE_ECS_CONTAINER_NAME", "vodforge-worker"),
			Subnets:        splitList(os.Getenv("VODFORGE_ECS_SUBNETS")),
			SecurityGroups: splitList(os.Getenv("VODFORGE_ECS_SECURITY_GROUPS")),
		},
	}

	var err error
	if cfg.UploadTTL, err = durationOrDefault("VODFORGE_UPLOAD_TTL", DefaultUploadTTL); err != nil {
		return Server{}, err
	}
	if cfg.DownloadTTL, err = durationOrDefault("VODFORGE_DOWNLOAD_TTL", DefaultDownloadTTL); err != nil {
		return Server{}, err
	}
	if cfg.SourceFetchTTL, err = durationOrDefault("VODFORGE_SOURCE_FETCH_TTL", DefaultSourceFetchTTL); err != nil {
		return Server{}, err
	}
	if cfg.QueueWait, err = durationOrDefault("VODFORGE_QUEUE_WAIT", 10*time.Second); err != nil {
		return Server{}, err
	}
	batch, err := intOrDefault("VODFORGE_QUEUE_BATCH", 1)
	if err != nil {
		return Server{}, err
	}
	cfg.QueueBatch = batch
	redisDB, err := intOrDefault("VODFORGE_REDIS_DB", 0)
	if err != nil {
		return Server{}, err
	}
	cfg.Redis.DB = redisDB
	maxConns, err := intOrDefault("VODFORGE_POSTGRES_MAX_CONNS", 0)
	if err != nil {
		return Server{}, err
	}
	cfg.PostgresMaxConns = int32(maxConns)

	if cfg.ECS.AssignPublicIP, err = boolOrDefault("VODFORGE_ECS_ASSIGN_PUBLIC_IP", true); err != nil {
		return Server{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements for the selected drivers.
func (cfg Server) Validate() error {
	if cfg.UploadBucket == "" {
		return fmt.Errorf("VODFORGE_UPLOAD_BUCKET is required")
	}
	if cfg.OutputBucket == "" {
		return fmt.Errorf("%s is required", EnvOutputBucket)
	}
	if cfg.PlaybackBaseURL == "" {
		return fmt.Errorf("%s is required", EnvPlaybackBaseURL)
	}
	switch cfg.QueueDriver {
	case QueueDriverSQS:
		if cfg.QueueURL == "" {
			return fmt.Errorf("VODFORGE_QUEUE_URL is required for the sqs queue driver")
		}
	case QueueDriverRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("VODFORGE_REDIS_ADDR is required for the redis queue driver")
		}
	default:
		return fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
	}
	switch cfg.DispatchDriver {
	case DispatchDriverECS:
		if cfg.ECS.Cluster == "" || cfg.ECS.TaskDefinition == "" {
			return fmt.Errorf("VODFORGE_ECS_CLUSTER and VODFORGE_ECS_TASK_DEFINITION are required for the ecs dispatch driver")
		}
	case DispatchDriverProcess:
		if cfg.WorkerBinary == "" {
			return fmt.Errorf("VODFORGE_WORKER_BINARY is required for the process dispatch driver")
		}
	default:
		return fmt.Errorf("unknown dispatch driver %q", cfg.DispatchDriver)
	}
	switch cfg.RegistryDriver {
	case RegistryDriverMemory:
	case RegistryDriverPostgres:
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("VODFORGE_POSTGRES_DSN is required for the postgres registry driver")
		}
	default:
		return fmt.Errorf("unknown registry driver %q", cfg.RegistryDriver)
	}
	return nil
}

// Worker holds the parameter set for a single transcode job. Every job-scoped
// value arrives through the environment injected by the dispatcher.
type Worker struct {
	LogLevel  string
	LogFormat string

	SourceURL    string
	SourceKey    string
	SourceBucket string
	JobID        string

	Region          string
	AccessKeyID     string
	SecretAccessKey string
	OutputBucket    string
	PlaybackBaseURL string
	BackendEndpoint string

	ScratchDir     string
	FFmpegPath     string
	Preset         string
	CRF            int
	SegmentSeconds int

	UploadConcurrency int
	SourceFetchTTL    time.Duration
}

// LoadWorker reads the worker configuration from the environment. Either a
// presigned source URL or a source key plus bucket must be present; everything
// else falls back to defaults.
func LoadWorker() (Worker, error) {
	cfg := Worker{
		LogLevel:        envOrDefault("VODFORGE_LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("VODFORGE_LOG_FORMAT", "json"),
		SourceURL:       strings.TrimSpace(os.Getenv(EnvSourceURL)),
		SourceKey:       strings.TrimSpace(os.Getenv(EnvSourceKey)),
		SourceBucket:    strings.TrimSpace(os.Getenv(EnvSourceBucket)),
		JobID:           strings.TrimSpace(os.Getenv(EnvJobID)),
		Region:          strings.TrimSpace(os.Getenv(EnvRegion)),
		AccessKeyID:     strings.TrimSpace(os.Getenv("VODFORGE_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("VODFORGE_SECRET_ACCESS_KEY")),
		OutputBucket:    strings.TrimSpace(os.Getenv(EnvOutputBucket)),
		PlaybackBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv(EnvPlaybackBaseURL)), "/"),
		BackendEndpoint: strings.TrimSpace(os.Getenv(EnvBackendEndpoint)),
		ScratchDir:      strings.TrimSpace(os.Getenv("VODFORGE_SCRATCH_DIR")),
		FFmpegPath:      envOrDefault("VODFORGE_FFMPEG_PATH", "ffmpeg"),
		Preset:          envOrDefault("VODFORGE_FFMPEG_PRESET", "slow"),
	}

	var err error
	if cfg.CRF, err = intOrDefault("VODFORGE_VIDEO_CRF", 22); err != nil {
		return Worker{}, err
	}
	if cfg.SegmentSeconds, err = intOrDefault("VODFORGE_SEGMENT_SECONDS", 3); err != nil {
		return Worker{}, err
	}
	if cfg.UploadConcurrency, err = intOrDefault("VODFORGE_UPLOAD_CONCURRENCY", 4); err != nil {
		return Worker{}, err
	}
	if cfg.SourceFetchTTL, err = durationOrDefault("VODFORGE_SOURCE_FETCH_TTL", DefaultSourceFetchTTL); err != nil {
		return Worker{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Worker{}, err
	}
	return cfg, nil
}

// Validate checks the worker parameter set before any stage runs.
func (cfg Worker) Validate() error {
	if cfg.JobID == "" {
		return fmt.Errorf("%s is required", EnvJobID)
	}
	if cfg.OutputBucket == "" {
		return fmt.Errorf("%s is required", EnvOutputBucket)
	}
	if cfg.PlaybackBaseURL == "" {
		return fmt.Errorf("%s is required", EnvPlaybackBaseURL)
	}
	if cfg.SourceURL == "" && (cfg.SourceKey == "" || cfg.SourceBucket == "") {
		return fmt.Errorf("either %s or both %s and %s are required", EnvSourceURL, EnvSourceKey, EnvSourceBucket)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if parsed <= 0 {
		return fallback, nil
	}
	return parsed, nil
}

func intOrDefault(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func boolOrDefault(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return parsed, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
