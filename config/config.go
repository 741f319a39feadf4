package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"thistle-api"`
	Version                       string   `env:"APP_VERSION" env-default:"dev"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	BodyLimit                     string   `env:"HTTP_SERVER_BODY_LIMIT" env-default:"4M"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	ShutdownTimeoutSeconds        int      `env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"15"`

	// Detection cut-points
	MinMatchScore   float64 `env:"MIN_MATCH_SCORE" env-default:"0.5"`
	MediumThreshold float64 `env:"MEDIUM_CONFIDENCE_THRESHOLD" env-default:"0.7"`
	HighThreshold   float64 `env:"HIGH_CONFIDENCE_THRESHOLD" env-default:"0.9"`

	// Registry lookup
	RegistryLookupTimeout time.Duration `env:"REGISTRY_LOOKUP_TIMEOUT" env-default:"5s"`
	RegistryRateLimit     float64       `env:"REGISTRY_RATE_LIMIT" env-default:"5"`
	RegistryRateBurst     int           `env:"REGISTRY_RATE_BURST" env-default:"10"`
	RegistryCacheTTL      time.Duration `env:"REGISTRY_CACHE_TTL" env-default:"24h"`
	RegistryFixturesPath  string        `env:"REGISTRY_FIXTURES_PATH" env-default:""`

	// Redis (registry cache)
	RedisEnabled  bool   `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	RedisPrefix   string `env:"REDIS_KEY_PREFIX" env-default:"thistle:registry:"`

	// Kafka Producer settings
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"listing-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingEnabled  bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingProtocol string `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	TracingInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
}

// Load reads an optional .env file and then the environment
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.MinMatchScore > cfg.MediumThreshold || cfg.MediumThreshold > cfg.HighThreshold {
		return Config{}, fmt.Errorf("confidence thresholds must be ordered: %v <= %v <= %v", cfg.MinMatchScore, cfg.MediumThreshold, cfg.HighThreshold)
	}

	return cfg, nil
}
