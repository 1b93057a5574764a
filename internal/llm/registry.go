package llm

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/rewardbot/internal/config"
	"github.com/soyeahso/rewardbot/internal/logging"
)

// Registry maps provider names and model aliases to clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	aliases map[string]string // model alias -> provider
	log     *logging.Logger
}

func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under a provider name, replacing any previous one.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered generation provider")
}

// Alias lets a model name such as "sonnet" resolve to its provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[strings.ToLower(model)] = provider
}

// Resolve finds the client for a provider name or model alias.
func (r *Registry) Resolve(ref string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[ref]; ok {
		return c, nil
	}
	if c, ok := r.clients[r.aliases[strings.ToLower(ref)]]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("no generation provider for %q", ref)
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.clients))
}

var providerAliases = map[string][]string{
	"claude": {"sonnet", "opus", "haiku", "claude-sonnet", "claude-opus", "claude-haiku"},
	"gemini": {"gemini-pro", "gemini-flash"},
	"ollama": {"llama", "llama3", "mistral"},
}

// newProvider builds the API client for a named provider, or nil when its
// credentials are incomplete.
func newProvider(name string, p config.ProviderConfig, opts ...APIOption) Client {
	switch name {
	case "claude":
		if p.APIKey != "" && p.Model != "" {
			if p.Endpoint != "" {
				opts = append(opts, WithBaseURL(p.Endpoint))
			}
			return NewClaudeAPIClient(p.APIKey, p.Model, opts...)
		}
	case "gemini":
		if p.APIKey != "" && p.Model != "" {
			if p.Endpoint != "" {
				opts = append(opts, WithBaseURL(p.Endpoint))
			}
			return NewGeminiAPIClient(p.APIKey, p.Model, opts...)
		}
	case "ollama":
		if p.Model != "" {
			return NewOllamaAPIClient(p.Endpoint, p.Model, opts...)
		}
	}
	return nil
}

// NewRegistryFromConfig registers every provider named by the generation
// chain whose credentials are complete.
func NewRegistryFromConfig(cfg config.GenerationConfig, log *logging.Logger, opts ...APIOption) *Registry {
	reg := NewRegistry(log)

	for _, name := range chain(cfg) {
		if _, exists := reg.clients[name]; exists {
			continue
		}
		client := newProvider(name, cfg.Providers[name], opts...)
		if client == nil {
			reg.log.Warn().Str("provider", name).Msg("provider configured without model or credentials, skipping")
			continue
		}
		reg.Register(name, client)
		for _, alias := range providerAliases[name] {
			reg.Alias(alias, name)
		}
	}
	return reg
}

// chain lists the primary provider followed by its fallbacks, deduplicated.
func chain(cfg config.GenerationConfig) []string {
	var names []string
	seen := map[string]bool{}
	for _, n := range append([]string{cfg.Provider}, cfg.Fallbacks...) {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || n == "none" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}
	return names
}

// NewFromConfig selects the generation capability at startup. With no usable
// provider it returns Disabled.
func NewFromConfig(cfg config.GenerationConfig, log *logging.Logger, opts ...APIOption) Client {
	reg := NewRegistryFromConfig(cfg, log, opts...)
	names := reg.List()
	if len(names) == 0 {
		log.Sub("llm").Info().Msg("generation disabled, answers use templates")
		return Disabled{}
	}

	var order []string
	for _, n := range chain(cfg) {
		if _, err := reg.Resolve(n); err == nil {
			order = append(order, n)
		}
	}
	return NewFailoverClient(reg, order[0], order[1:], log)
}
