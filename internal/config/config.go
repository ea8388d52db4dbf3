package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Env       string
	API       APIConfig
	Editor    EditorConfig
	Database  DatabaseConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Events    EventsConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
}

type APIConfig struct {
	Addr           string
	UserIDHeader   string
	AllowedOrigins []string
}

type EditorConfig struct {
	CloudName   string
	CDNBaseURL  string
	QuietWindow time.Duration
	SessionTTL  time.Duration
}

type DatabaseConfig struct {
	Driver      string
	MongoURL    string
	MongoDB     string
	PostgresDSN string
	ConnTimeout time.Duration
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency      int
	MaxActiveExports int
	LocalOutputDir   string
	MetricsAddr      string
	ThumbnailWidth   int
	VipsCacheMemMB   int
	VipsCacheSize    int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	LinkTTL   time.Duration
}

type EventsConfig struct {
	Brokers []string
	Topic   string
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	Capacity int
	Window   time.Duration
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		Env: env("IMAGINIFY_ENV", "development"),
		API: APIConfig{
			Addr:           env("IMAGINIFY_API_ADDR", ":8080"),
			UserIDHeader:   env("IMAGINIFY_USER_ID_HEADER", "X-User-ID"),
			AllowedOrigins: envList("IMAGINIFY_ALLOWED_ORIGINS", []string{"http://*", "https://*"}),
		},
		Editor: EditorConfig{
			CloudName:   env("CLOUDINARY_CLOUD_NAME", ""),
			CDNBaseURL:  env("CLOUDINARY_BASE_URL", "https://res.cloudinary.com"),
			QuietWindow: envDuration("IMAGINIFY_DEBOUNCE", time.Second),
			SessionTTL:  envDuration("IMAGINIFY_SESSION_TTL", 30*time.Minute),
		},
		Database: DatabaseConfig{
			Driver:      strings.ToLower(env("IMAGINIFY_STORE", StoreMongo)),
			MongoURL:    env("MONGODB_URL", ""),
			MongoDB:     env("MONGODB_DB", "imaginify"),
			PostgresDSN: env("POSTGRES_DSN", ""),
			ConnTimeout: envDuration("IMAGINIFY_DB_CONNECT_TIMEOUT", 30*time.Second),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:      envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveExports: envInt("WORKER_MAX_ACTIVE_EXPORTS", defaultWorkerSlots),
			LocalOutputDir:   env("WORKER_LOCAL_OUTPUT_DIR", "./.imaginify-exports"),
			MetricsAddr:      env("WORKER_METRICS_ADDR", ":9091"),
			ThumbnailWidth:   envInt("WORKER_THUMBNAIL_WIDTH", 320),
			VipsCacheMemMB:   envInt("WORKER_VIPS_CACHE_MEM_MB", 128),
			VipsCacheSize:    envInt("WORKER_VIPS_CACHE_SIZE", 100),
		},
		Storage: StorageConfig{
			Enabled:   envBool("MINIO_ENABLED", false),
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "imaginify-exports"),
			Region:    env("MINIO_REGION", "us-east-1"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
			LinkTTL:   envDuration("MINIO_LINK_TTL", 15*time.Minute),
		},
		Events: EventsConfig{
			Brokers: envList("KAFKA_BROKERS", nil),
			Topic:   env("KAFKA_TOPIC", "imaginify.images"),
		},
		Webhook: WebhookConfig{
			SigningSecret:  env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:        envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: envDuration("WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("WEBHOOK_MAX_BACKOFF", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:  envBool("RATE_LIMIT_ENABLED", false),
			Capacity: envInt("RATE_LIMIT_CAPACITY", 60),
			Window:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Tracing: TracingConfig{
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
	}
}

// Validate reports settings both processes need: the image store and the
// rate limiter.
func (c Config) Validate() error {
	return joinInvalid(c.validateShared())
}

// ValidateAPI is Validate plus what only the API needs to build delivery
// URLs.
func (c Config) ValidateAPI() error {
	errs := c.validateShared()
	if strings.TrimSpace(c.Editor.CloudName) == "" {
		errs = append(errs, errors.New("CLOUDINARY_CLOUD_NAME is required"))
	}
	return joinInvalid(errs)
}

func (c Config) validateShared() []error {
	var errs []error

	switch c.Database.Driver {
	case StoreMongo:
		if strings.TrimSpace(c.Database.MongoURL) == "" {
			errs = append(errs, errors.New("MONGODB_URL is required when IMAGINIFY_STORE=mongo"))
		}
	case StorePostgres:
		if strings.TrimSpace(c.Database.PostgresDSN) == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when IMAGINIFY_STORE=postgres"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("IMAGINIFY_STORE must be one of mongo, postgres, memory; got %q", c.Database.Driver))
	}

	if c.RateLimit.Enabled && (c.RateLimit.Capacity <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_CAPACITY and RATE_LIMIT_WINDOW must be positive"))
	}
	return errs
}

func joinInvalid(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: invalid configuration: %w", domain.ErrValidation, errors.Join(errs...))
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// envDuration accepts Go durations ("750ms") or a bare number of
// milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
