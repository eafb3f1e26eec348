package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lexaid-ai/lexaid/pkg/cache"
	"github.com/lexaid-ai/lexaid/pkg/logger"
	"github.com/spf13/cast"
)

// Config main configuration structure
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      logger.LogConfig
	Cache    cache.Config
	Voice    VoiceConfig
	Adapters AdaptersConfig
	Alerting AlertingConfig
}

// ServerConfig server configuration
type ServerConfig struct {
	Name string `env:"SERVER_NAME"`
	Addr string `env:"ADDR"`
	Mode string `env:"MODE"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER"`
	DSN    string `env:"DSN"`
}

// VoiceConfig voice session engine tuning. The flush and emergency
// thresholds default to the values the product shipped with; they are
// configurable but changing them changes conversational latency behavior.
type VoiceConfig struct {
	FlushBytes         int           `env:"VOICE_FLUSH_BYTES"`
	FlushInterval      time.Duration `env:"VOICE_FLUSH_INTERVAL"`
	EmergencyThreshold float64       `env:"VOICE_EMERGENCY_THRESHOLD"`
	TurnLengthLimit    int           `env:"VOICE_TURN_LENGTH_LIMIT"`
	AdapterTimeout     time.Duration `env:"VOICE_ADAPTER_TIMEOUT"`
	LatencyWindowSize  int           `env:"VOICE_LATENCY_WINDOW"`
	IdleTTL            time.Duration `env:"VOICE_IDLE_TTL"`
}

// AdaptersConfig external model service configuration
type AdaptersConfig struct {
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	LLMModel      string `env:"LLM_MODEL"`
	SystemPrompt  string `env:"LLM_SYSTEM_PROMPT"`

	TranscriberVendor string `env:"TRANSCRIBER_VENDOR"`
	TranscriberURL    string `env:"TRANSCRIBER_URL"`
	SynthesizerVendor string `env:"SYNTHESIZER_VENDOR"`
	SynthesizerURL    string `env:"SYNTHESIZER_URL"`
	ClassifierURL     string `env:"CLASSIFIER_URL"`
	ClassifierAPIKey  string `env:"CLASSIFIER_API_KEY"`
}

// AlertingConfig emergency contact alerting service configuration
type AlertingConfig struct {
	Endpoint string `env:"ALERTING_ENDPOINT"`
	APIKey   string `env:"ALERTING_API_KEY"`
}

const (
	DefaultFlushBytes         = 50 * 1024
	DefaultFlushInterval      = 3 * time.Second
	DefaultEmergencyThreshold = 0.7
	DefaultTurnLengthLimit    = 50
	DefaultAdapterTimeout     = 10 * time.Second
	DefaultLatencyWindowSize  = 20
	DefaultIdleTTL            = 5 * time.Minute
)

// Load reads configuration from the environment. A .env file is honored
// when present but never required.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Name: getEnv("SERVER_NAME", "lexaid"),
			Addr: getEnv("ADDR", ":8080"),
			Mode: getEnv("MODE", "release"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			DSN:    getEnv("DSN", "file:lexaid.db"),
		},
		Log: logger.LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Filename:   getEnv("LOG_FILE", "logs/lexaid.log"),
			MaxSize:    cast.ToInt(getEnv("LOG_MAX_SIZE", "100")),
			MaxAge:     cast.ToInt(getEnv("LOG_MAX_AGE", "30")),
			MaxBackups: cast.ToInt(getEnv("LOG_MAX_BACKUPS", "7")),
		},
		Cache: cache.Config{
			Type: getEnv("CACHE_TYPE", "local"),
			Redis: cache.RedisConfig{
				Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       cast.ToInt(getEnv("REDIS_DB", "0")),
			},
			Local: cache.LocalConfig{
				DefaultExpiration: getDuration("CACHE_LOCAL_EXPIRATION", 30*time.Minute),
				CleanupInterval:   getDuration("CACHE_LOCAL_CLEANUP", 10*time.Minute),
			},
		},
		Voice: VoiceConfig{
			FlushBytes:         cast.ToInt(getEnv("VOICE_FLUSH_BYTES", cast.ToString(DefaultFlushBytes))),
			FlushInterval:      getDuration("VOICE_FLUSH_INTERVAL", DefaultFlushInterval),
			EmergencyThreshold: cast.ToFloat64(getEnv("VOICE_EMERGENCY_THRESHOLD", cast.ToString(DefaultEmergencyThreshold))),
			TurnLengthLimit:    cast.ToInt(getEnv("VOICE_TURN_LENGTH_LIMIT", cast.ToString(DefaultTurnLengthLimit))),
			AdapterTimeout:     getDuration("VOICE_ADAPTER_TIMEOUT", DefaultAdapterTimeout),
			LatencyWindowSize:  cast.ToInt(getEnv("VOICE_LATENCY_WINDOW", cast.ToString(DefaultLatencyWindowSize))),
			IdleTTL:            getDuration("VOICE_IDLE_TTL", DefaultIdleTTL),
		},
		Adapters: AdaptersConfig{
			OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			SystemPrompt:      getEnv("LLM_SYSTEM_PROMPT", defaultSystemPrompt),
			TranscriberVendor: getEnv("TRANSCRIBER_VENDOR", "openai"),
			TranscriberURL:    os.Getenv("TRANSCRIBER_URL"),
			SynthesizerVendor: getEnv("SYNTHESIZER_VENDOR", "openai"),
			SynthesizerURL:    os.Getenv("SYNTHESIZER_URL"),
			ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
			ClassifierAPIKey:  os.Getenv("CLASSIFIER_API_KEY"),
		},
		Alerting: AlertingConfig{
			Endpoint: os.Getenv("ALERTING_ENDPOINT"),
			APIKey:   os.Getenv("ALERTING_API_KEY"),
		},
	}
	return cfg
}

const defaultSystemPrompt = "You are a calm, plain-spoken assistant for a legal document " +
	"and personal safety service. Answer briefly and concretely. If the user appears to " +
	"be in danger, say so in your structured reply."

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
