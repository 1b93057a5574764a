// Package synth turns a query and its reward context into answer text, using
// the generation provider when it works and templates when it does not.
package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/soyeahso/rewardbot/internal/cache"
	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/intent"
	"github.com/soyeahso/rewardbot/internal/llm"
	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/metrics"
	"github.com/soyeahso/rewardbot/internal/telemetry"
)

// Generation sources recorded in metrics.
const (
	SourceCache     = "cache"
	SourceGenerated = "generated"
	SourceFallback  = "fallback"
)

// errEmptyGeneration marks a provider reply with no text.
var errEmptyGeneration = errors.New("empty generation")

// Config wires the synthesizer.
type Config struct {
	Client       llm.Client
	SystemPrompt string
	MaxTokens    int
	Temperature  *float64
	// Timeout bounds one generation call. Zero means 30s.
	Timeout time.Duration
	// Cache stores generated text. Nil disables response caching.
	Cache cache.Cache
	TTL   time.Duration
}

// Synthesizer builds answer text. It never fails.
type Synthesizer struct {
	cfg Config
	log *logging.Logger
}

// New creates a Synthesizer. A nil client means generation is disabled.
func New(cfg Config, log *logging.Logger) *Synthesizer {
	if cfg.Client == nil {
		cfg.Client = llm.Disabled{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Synthesizer{cfg: cfg, log: log.Sub("synth")}
}

// ResponseKey is the response cache key for a query, the coarse context
// fingerprint and the actor type.
func ResponseKey(query, fingerprint string, actor domain.ActorType) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(actor))
	return "resp:" + hex.EncodeToString(h.Sum(nil))
}

// Synthesize returns the answer text for q.
func (s *Synthesizer) Synthesize(ctx context.Context, q domain.Query, rc *domain.RewardContext, intents intent.Set) string {
	text, _ := s.synthesize(ctx, q, rc, intents)
	return text
}

// synthesize also reports where the text came from.
func (s *Synthesizer) synthesize(ctx context.Context, q domain.Query, rc *domain.RewardContext, intents intent.Set) (string, string) {
	ctx, span := telemetry.Tracer("rewardbot/synth").Start(ctx, "synthesize")
	defer span.End()

	key := ResponseKey(q.Text, rc.Fingerprint(), q.Actor)
	if s.cfg.Cache != nil {
		if raw, ok := s.cfg.Cache.Get(ctx, key); ok && len(raw) > 0 {
			span.SetAttributes(attribute.String("source", SourceCache))
			metrics.RecordGeneration(SourceCache)
			return string(raw), SourceCache
		}
	}

	text, err := s.generate(ctx, q, rc)
	if err != nil {
		ev := s.log.Warn()
		if errors.Is(err, llm.ErrGenerationDisabled) {
			ev = s.log.Debug()
		} else {
			span.SetStatus(codes.Error, err.Error())
		}
		ev.Err(err).Str("provider", s.cfg.Client.Name()).Msg("generation failed, using fallback")

		span.SetAttributes(attribute.String("source", SourceFallback))
		metrics.RecordGeneration(SourceFallback)
		return Fallback(rc, intents), SourceFallback
	}

	// Text written from a degraded or partial context is not worth keeping.
	if s.cfg.Cache != nil && rc != nil && !rc.Degraded && !rc.Partial {
		s.cfg.Cache.Set(ctx, key, []byte(text), s.cfg.TTL)
	}
	span.SetAttributes(attribute.String("source", SourceGenerated))
	metrics.RecordGeneration(SourceGenerated)
	return text, SourceGenerated
}

func (s *Synthesizer) generate(ctx context.Context, q domain.Query, rc *domain.RewardContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	prompt := BuildUserPrompt(q.Text, BuildContextSummary(rc), q.Actor)
	resp, err := s.cfg.Client.Complete(ctx, llm.CompletionRequest{
		System:      s.cfg.SystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", errEmptyGeneration
	}
	return text, nil
}
