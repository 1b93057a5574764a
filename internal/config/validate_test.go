package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	return paths
}

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Port(t *testing.T) {
	cfg := Defaults()
	for _, port := range []int{0, 8080, 65535} {
		cfg.Server.Port = port
		assert.Empty(t, Validate(&cfg), "port %d", port)
	}
	for _, port := range []int{-1, 70000} {
		cfg.Server.Port = port
		issues := Validate(&cfg)
		require.Len(t, issues, 1)
		assert.Equal(t, "server.port", issues[0].Path)
	}
}

func TestValidate_Bind(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Bind = "everywhere"
	assert.Equal(t, []string{"server.bind"}, issuePaths(Validate(&cfg)))

	cfg.Server.Bind = "custom"
	assert.Equal(t, []string{"server.customBindHost"}, issuePaths(Validate(&cfg)))

	cfg.Server.CustomBindHost = "10.0.0.1"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_BackendURLs(t *testing.T) {
	cfg := Defaults()
	cfg.Backends.Customer.BaseURL = ""
	cfg.Backends.Redemption.BaseURL = "not a url"
	assert.Equal(t,
		[]string{"backends.customer.baseUrl", "backends.redemption.baseUrl"},
		issuePaths(Validate(&cfg)))
}

func TestValidate_Resilience(t *testing.T) {
	cfg := Defaults()
	cfg.Resilience.Breaker.FailureThreshold = 0
	cfg.Resilience.Retry.MaxAttempts = 0
	cfg.Resilience.Retry.MaxInterval = cfg.Resilience.Retry.InitialInterval / 2

	assert.Equal(t, []string{
		"resilience.breaker.failureThreshold",
		"resilience.retry.maxAttempts",
		"resilience.retry.maxInterval",
	}, issuePaths(Validate(&cfg)))
}

func TestValidate_Cache(t *testing.T) {
	cfg := Defaults()
	cfg.Cache.Backend = "memcached"
	assert.Equal(t, []string{"cache.backend"}, issuePaths(Validate(&cfg)))

	cfg.Cache.Backend = "redis"
	assert.Equal(t, []string{"cache.redis.addr"}, issuePaths(Validate(&cfg)))

	cfg.Cache.Redis.Addr = "localhost:6379"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Generation(t *testing.T) {
	cfg := Defaults()
	cfg.Generation.Provider = "openai"
	assert.Equal(t, []string{"generation.provider"}, issuePaths(Validate(&cfg)))

	cfg.Generation.Provider = "claude"
	cfg.Generation.Fallbacks = []string{"ollama", "copilot"}
	assert.Equal(t, []string{
		"generation.fallbacks",
		"generation.providers.claude.apiKey",
		"generation.providers.claude.model",
		"generation.providers.ollama.model",
	}, issuePaths(Validate(&cfg)))

	cfg.Generation.Fallbacks = []string{"ollama"}
	cfg.Generation.Providers = map[string]ProviderConfig{
		"claude": {APIKey: "k", Model: "m"},
		"ollama": {Model: "llama3"},
	}
	assert.Empty(t, Validate(&cfg))

	bad := 3.0
	cfg.Generation.Temperature = &bad
	assert.Equal(t, []string{"generation.temperature"}, issuePaths(Validate(&cfg)))
}

func TestValidate_Events(t *testing.T) {
	cfg := Defaults()
	cfg.Events.Brokers = []string{"localhost:9092"}
	cfg.Events.Topic = ""
	assert.Equal(t, []string{"events.topic"}, issuePaths(Validate(&cfg)))
}

func TestValidate_Telemetry(t *testing.T) {
	cfg := Defaults()
	cfg.Telemetry.Exporter = "zipkin"
	assert.Empty(t, Validate(&cfg), "disabled telemetry is not checked")

	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SamplingRate = 2
	assert.Equal(t, []string{"telemetry.exporter", "telemetry.samplingRate"}, issuePaths(Validate(&cfg)))
}

func TestValidate_Logging(t *testing.T) {
	cfg := Defaults()
	for _, level := range []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"} {
		cfg.Logging.Level = level
		assert.Empty(t, Validate(&cfg), level)
	}

	cfg.Logging.Level = "verbose"
	cfg.Logging.ConsoleStyle = "fancy"
	assert.Equal(t, []string{"logging.consoleStyle", "logging.level"}, issuePaths(Validate(&cfg)))
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{
		Path:    "server.port",
		Message: "port must be 0-65535, got -1",
	}
	assert.Equal(t, "server.port: port must be 0-65535, got -1", issue.String())
}
