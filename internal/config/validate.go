package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var generationProviders = []string{"claude", "gemini", "ollama"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}
	validBinds := []string{"auto", "lan", "loopback", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		add("server.bind", "must be one of %v, got %q", validBinds, cfg.Server.Bind)
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		add("server.customBindHost", "required when bind: custom")
	}
	if cfg.Server.RateLimit.Requests < 0 {
		add("server.rateLimit.requests", "must not be negative")
	}

	// Backends
	for name, b := range map[string]BackendEndpoint{
		"rewards":    cfg.Backends.Rewards,
		"customer":   cfg.Backends.Customer,
		"redemption": cfg.Backends.Redemption,
	} {
		path := "backends." + name
		if b.BaseURL == "" {
			add(path+".baseUrl", "base URL is required")
		} else if u, err := url.Parse(b.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			add(path+".baseUrl", "must be an absolute URL, got %q", b.BaseURL)
		}
		if b.Timeout < 0 {
			add(path+".timeout", "must not be negative")
		}
	}

	// Resilience
	if cfg.Resilience.Breaker.FailureThreshold < 1 {
		add("resilience.breaker.failureThreshold", "must be at least 1, got %d", cfg.Resilience.Breaker.FailureThreshold)
	}
	if cfg.Resilience.Retry.MaxAttempts < 1 {
		add("resilience.retry.maxAttempts", "must be at least 1, got %d", cfg.Resilience.Retry.MaxAttempts)
	}
	if cfg.Resilience.Retry.MaxInterval < cfg.Resilience.Retry.InitialInterval {
		add("resilience.retry.maxInterval", "must not be below initialInterval")
	}

	// Cache
	validCaches := []string{"memory", "redis", "none"}
	if cfg.Cache.Backend != "" && !slices.Contains(validCaches, cfg.Cache.Backend) {
		add("cache.backend", "must be one of %v, got %q", validCaches, cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && cfg.Cache.Redis.Addr == "" {
		add("cache.redis.addr", "required when backend: redis")
	}

	// Generation
	gen := cfg.Generation
	validProviders := append([]string{"none"}, generationProviders...)
	if gen.Provider != "" && !slices.Contains(validProviders, gen.Provider) {
		add("generation.provider", "must be one of %v, got %q", validProviders, gen.Provider)
	}
	for _, name := range gen.Fallbacks {
		if !slices.Contains(generationProviders, name) {
			add("generation.fallbacks", "unknown provider %q", name)
		}
	}
	chain := gen.Fallbacks
	if gen.Provider != "" && gen.Provider != "none" {
		chain = append([]string{gen.Provider}, gen.Fallbacks...)
	}
	for _, name := range chain {
		if !slices.Contains(generationProviders, name) {
			continue
		}
		p := gen.Providers[name]
		if p.Model == "" {
			add("generation.providers."+name+".model", "required when %s is used", name)
		}
		if name != "ollama" && p.APIKey == "" {
			add("generation.providers."+name+".apiKey", "required when %s is used", name)
		}
	}
	if gen.MaxTokens < 0 {
		add("generation.maxTokens", "must not be negative")
	}
	if gen.Temperature != nil && (*gen.Temperature < 0 || *gen.Temperature > 2) {
		add("generation.temperature", "must be between 0 and 2, got %g", *gen.Temperature)
	}

	// Events
	if len(cfg.Events.Brokers) > 0 && cfg.Events.Topic == "" {
		add("events.topic", "required when brokers are set")
	}

	// Telemetry
	if cfg.Telemetry.Enabled {
		validExporters := []string{"grpc", "http"}
		if !slices.Contains(validExporters, cfg.Telemetry.Exporter) {
			add("telemetry.exporter", "must be one of %v, got %q", validExporters, cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate", "must be between 0 and 1, got %g", cfg.Telemetry.SamplingRate)
		}
	}

	// Logging
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	slices.SortStableFunc(issues, func(a, b ValidationIssue) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
	return issues
}
