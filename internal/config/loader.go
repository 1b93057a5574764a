package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets credentials be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Cache.Redis.Password = expandEnvVars(cfg.Cache.Redis.Password)
	for name, p := range cfg.Generation.Providers {
		p.APIKey = expandEnvVars(p.APIKey)
		p.Endpoint = expandEnvVars(p.Endpoint)
		cfg.Generation.Providers[name] = p
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the
// process environment. Missing files are ignored and existing variables win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return &ConfigError{Message: "failed to load " + f + ": " + err.Error()}
		}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			expandSensitiveFields(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields an explicit file may have blanked.
func applyDefaults(cfg *Config) {
	d := Defaults()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = d.Server.Bind
	}
	if cfg.Server.RateLimit.Window == 0 {
		cfg.Server.RateLimit.Window = d.Server.RateLimit.Window
	}

	for _, pair := range []struct{ cur, def *BackendEndpoint }{
		{&cfg.Backends.Rewards, &d.Backends.Rewards},
		{&cfg.Backends.Customer, &d.Backends.Customer},
		{&cfg.Backends.Redemption, &d.Backends.Redemption},
	} {
		if pair.cur.Timeout == 0 {
			pair.cur.Timeout = pair.def.Timeout
		}
	}

	if cfg.Resilience.Breaker.FailureThreshold == 0 {
		cfg.Resilience.Breaker.FailureThreshold = d.Resilience.Breaker.FailureThreshold
	}
	if cfg.Resilience.Breaker.Window == 0 {
		cfg.Resilience.Breaker.Window = d.Resilience.Breaker.Window
	}
	if cfg.Resilience.Breaker.Cooldown == 0 {
		cfg.Resilience.Breaker.Cooldown = d.Resilience.Breaker.Cooldown
	}
	if cfg.Resilience.Retry.MaxAttempts == 0 {
		cfg.Resilience.Retry.MaxAttempts = d.Resilience.Retry.MaxAttempts
	}
	if cfg.Resilience.Retry.InitialInterval == 0 {
		cfg.Resilience.Retry.InitialInterval = d.Resilience.Retry.InitialInterval
	}
	if cfg.Resilience.Retry.MaxInterval == 0 {
		cfg.Resilience.Retry.MaxInterval = d.Resilience.Retry.MaxInterval
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = d.Cache.Backend
	}
	if cfg.Cache.ContextTTL == 0 {
		cfg.Cache.ContextTTL = d.Cache.ContextTTL
	}
	if cfg.Cache.ResponseTTL == 0 {
		cfg.Cache.ResponseTTL = d.Cache.ResponseTTL
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = d.Generation.Provider
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = d.Generation.MaxTokens
	}
	if cfg.Generation.Temperature == nil {
		cfg.Generation.Temperature = d.Generation.Temperature
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = d.Generation.Timeout
	}
	if cfg.Generation.SystemPrompt == "" {
		cfg.Generation.SystemPrompt = d.Generation.SystemPrompt
	}

	if cfg.Events.Topic == "" {
		cfg.Events.Topic = d.Events.Topic
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads REWARDBOT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REWARDBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REWARDBOT_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("REWARDBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("REWARDBOT_REWARDS_URL"); v != "" {
		cfg.Backends.Rewards.BaseURL = v
	}
	if v := os.Getenv("REWARDBOT_CUSTOMER_URL"); v != "" {
		cfg.Backends.Customer.BaseURL = v
	}
	if v := os.Getenv("REWARDBOT_REDEMPTION_URL"); v != "" {
		cfg.Backends.Redemption.BaseURL = v
	}
	if v := os.Getenv("REWARDBOT_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backends.Rewards.Timeout = d
			cfg.Backends.Customer.Timeout = d
			cfg.Backends.Redemption.Timeout = d
		}
	}
	if v := os.Getenv("REWARDBOT_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("REWARDBOT_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REWARDBOT_GENERATION_PROVIDER"); v != "" {
		cfg.Generation.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("REWARDBOT_KAFKA_BROKERS"); v != "" {
		cfg.Events.Brokers = strings.Split(v, ",")
	}
	// Provider keys follow the vendors' usual variable names.
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		setProviderKey(cfg, "claude", v)
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		setProviderKey(cfg, "gemini", v)
	}
}

func setProviderKey(cfg *Config, provider, key string) {
	if cfg.Generation.Providers == nil {
		cfg.Generation.Providers = map[string]ProviderConfig{}
	}
	p := cfg.Generation.Providers[provider]
	if p.APIKey == "" {
		p.APIKey = key
	}
	cfg.Generation.Providers[provider] = p
}
