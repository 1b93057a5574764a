package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const DefaultSystemPrompt = "You are a helpful assistant for a credit card reward points program. " +
	"Answer only from the reward information you are given. Be concise, friendly and accurate. " +
	"If the information needed is missing, suggest contacting customer support."

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	temp := 0.3
	return Config{
		Server: ServerConfig{
			Port: 8080,
			Bind: "loopback",
			RateLimit: RateLimitConfig{
				Requests: 60,
				Window:   time.Minute,
			},
		},
		Backends: BackendsConfig{
			Rewards:    BackendEndpoint{BaseURL: "http://localhost:8081", Timeout: 5 * time.Second},
			Customer:   BackendEndpoint{BaseURL: "http://localhost:8082", Timeout: 5 * time.Second},
			Redemption: BackendEndpoint{BaseURL: "http://localhost:8083", Timeout: 5 * time.Second},
		},
		Resilience: ResilienceConfig{
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				Window:           time.Minute,
				Cooldown:         30 * time.Second,
			},
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     time.Second,
			},
		},
		Cache: CacheConfig{
			Backend:         "memory",
			ContextTTL:      5 * time.Minute,
			ResponseTTL:     time.Hour,
			CleanupInterval: time.Minute,
		},
		Generation: GenerationConfig{
			Provider:     "none",
			MaxTokens:    500,
			Temperature:  &temp,
			Timeout:      30 * time.Second,
			SystemPrompt: DefaultSystemPrompt,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Events: EventsConfig{
			Topic: "rewardbot.answers",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}
