package config

import "time"

// Config is the root configuration for rewardbot.
type Config struct {
	Server     ServerConfig     `yaml:"server,omitempty"`
	Backends   BackendsConfig   `yaml:"backends,omitempty"`
	Resilience ResilienceConfig `yaml:"resilience,omitempty"`
	Cache      CacheConfig      `yaml:"cache,omitempty"`
	Generation GenerationConfig `yaml:"generation,omitempty"`
	History    HistoryConfig    `yaml:"history,omitempty"`
	Events     EventsConfig     `yaml:"events,omitempty"`
	Telemetry  TelemetryConfig  `yaml:"telemetry,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// ServerConfig controls the inbound HTTP/WebSocket server.
type ServerConfig struct {
	Port           int             `yaml:"port,omitempty"`
	Bind           string          `yaml:"bind,omitempty"` // "loopback" | "lan" | "auto" | "custom"
	CustomBindHost string          `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string        `yaml:"allowedOrigins,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rateLimit,omitempty"`
}

// RateLimitConfig limits query requests per client IP. Zero requests disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests,omitempty"`
	Window   time.Duration `yaml:"window,omitempty"`
}

// BackendsConfig locates the three backend services.
type BackendsConfig struct {
	Rewards    BackendEndpoint `yaml:"rewards,omitempty"`
	Customer   BackendEndpoint `yaml:"customer,omitempty"`
	Redemption BackendEndpoint `yaml:"redemption,omitempty"`
}

// BackendEndpoint is one backend service.
type BackendEndpoint struct {
	BaseURL string        `yaml:"baseUrl,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ResilienceConfig tunes the breakers and retries shared by every backend.
type ResilienceConfig struct {
	Breaker BreakerConfig `yaml:"breaker,omitempty"`
	Retry   RetryConfig   `yaml:"retry,omitempty"`
}

type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold,omitempty"`
	Window           time.Duration `yaml:"window,omitempty"`
	Cooldown         time.Duration `yaml:"cooldown,omitempty"`
}

type RetryConfig struct {
	MaxAttempts     int           `yaml:"maxAttempts,omitempty"`
	InitialInterval time.Duration `yaml:"initialInterval,omitempty"`
	MaxInterval     time.Duration `yaml:"maxInterval,omitempty"`
}

// CacheConfig selects the cache backend and entry lifetimes.
type CacheConfig struct {
	Backend         string        `yaml:"backend,omitempty"` // "memory" | "redis" | "none"
	ContextTTL      time.Duration `yaml:"contextTTL,omitempty"`
	ResponseTTL     time.Duration `yaml:"responseTTL,omitempty"`
	CleanupInterval time.Duration `yaml:"cleanupInterval,omitempty"`
	Redis           RedisConfig   `yaml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// GenerationConfig selects the text generation provider.
type GenerationConfig struct {
	Provider     string                    `yaml:"provider,omitempty"` // "none" | "claude" | "gemini" | "ollama"
	Fallbacks    []string                  `yaml:"fallbacks,omitempty"`
	Providers    map[string]ProviderConfig `yaml:"providers,omitempty"`
	MaxTokens    int                       `yaml:"maxTokens,omitempty"`
	Temperature  *float64                  `yaml:"temperature,omitempty"`
	Timeout      time.Duration             `yaml:"timeout,omitempty"`
	SystemPrompt string                    `yaml:"systemPrompt,omitempty"`
}

// ProviderConfig holds credentials for one generation provider.
type ProviderConfig struct {
	APIKey   string `yaml:"apiKey,omitempty"`
	Model    string `yaml:"model,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// HistoryConfig controls the SQLite answer log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // defaults to <data>/history.db
}

// EventsConfig publishes answers to Kafka when brokers are set.
type EventsConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	Exporter     string  `yaml:"exporter,omitempty"` // "grpc" | "http"
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
