package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// CallbackSecret signs worker callbacks. Rotated out of band.
	CallbackSecret    string
	CallbackTolerance time.Duration
	CallbackBaseURL   string

	GeoIPDBPath string

	// Object storage for generated artifacts. When the endpoint is empty the
	// worker falls back to local filesystem storage.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	PublicBaseURL  string
	StoragePath    string

	// AMQP notification sink. Empty URL disables event emission.
	AMQPURL      string
	AMQPExchange string

	// Provider capability endpoints, one per module family. Empty endpoints
	// select the synthetic generator.
	ProviderChatEndpoint   string
	ProviderImageEndpoint  string
	ProviderSpeechEndpoint string
	ProviderVideoEndpoint  string
	ProviderAPIKey         string
	ProviderModelChat      string
	ProviderModelImage     string
	ProviderModelSpeech    string
	ProviderModelVideo     string

	WorkerConcurrency int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxConns:        int32(getEnvInt("DB_MAX_CONNS", 10)),
		DBMinConns:        int32(getEnvInt("DB_MIN_CONNS", 1)),
		CallbackSecret:    os.Getenv("CALLBACK_SECRET"),
		CallbackTolerance: time.Second * time.Duration(getEnvInt("CALLBACK_TOLERANCE_SECONDS", 300)),
		CallbackBaseURL:   getEnv("CALLBACK_BASE_URL", "http://localhost:8080"),
		GeoIPDBPath:       os.Getenv("GEOIP_DB_PATH"),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "artifacts"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:8080/static"),
		StoragePath:    getEnv("STORAGE_PATH", "./storage"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pipeline.events"),

		ProviderChatEndpoint:   os.Getenv("PROVIDER_CHAT_ENDPOINT"),
		ProviderImageEndpoint:  os.Getenv("PROVIDER_IMAGE_ENDPOINT"),
		ProviderSpeechEndpoint: os.Getenv("PROVIDER_SPEECH_ENDPOINT"),
		ProviderVideoEndpoint:  os.Getenv("PROVIDER_VIDEO_ENDPOINT"),
		ProviderAPIKey:         os.Getenv("PROVIDER_API_KEY"),
		ProviderModelChat:      getEnv("PROVIDER_MODEL_CHAT", "chat-small"),
		ProviderModelImage:     getEnv("PROVIDER_MODEL_IMAGE", "image-hd"),
		ProviderModelSpeech:    getEnv("PROVIDER_MODEL_SPEECH", "tts-standard"),
		ProviderModelVideo:     getEnv("PROVIDER_MODEL_VIDEO", "video-gen-1"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 4),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.CallbackSecret == "" {
		return nil, fmt.Errorf("CALLBACK_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
