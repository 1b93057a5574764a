// Package orchestrator is the entry point of the query pipeline: it classifies
// a query, gathers its reward context, synthesizes an answer and wraps the
// result in a uniform envelope.
package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/soyeahso/rewardbot/internal/domain"
	"github.com/soyeahso/rewardbot/internal/hooks"
	"github.com/soyeahso/rewardbot/internal/intent"
	"github.com/soyeahso/rewardbot/internal/logging"
	"github.com/soyeahso/rewardbot/internal/metrics"
	"github.com/soyeahso/rewardbot/internal/telemetry"
)

// internalErrorMessage is the error field of an Answer produced after an
// unexpected failure. It carries no internal detail.
const internalErrorMessage = "internal error"

// ContextAggregator gathers the reward context for a query.
type ContextAggregator interface {
	Aggregate(ctx context.Context, customerID string, intents intent.Set) *domain.RewardContext
}

// ResponseSynthesizer turns a query and its context into answer text.
type ResponseSynthesizer interface {
	Synthesize(ctx context.Context, q domain.Query, rc *domain.RewardContext, intents intent.Set) string
}

// Config wires the orchestrator.
type Config struct {
	Aggregator  ContextAggregator
	Synthesizer ResponseSynthesizer
	// Hooks may be nil.
	Hooks *hooks.Manager
	// Classify defaults to intent.Classify.
	Classify func(text string) intent.Set
	// NewSessionID defaults to a random UUID.
	NewSessionID func() string
}

// Orchestrator handles queries. It is safe for concurrent use.
type Orchestrator struct {
	cfg Config
	log *logging.Logger
}

// New creates an Orchestrator.
func New(cfg Config, log *logging.Logger) *Orchestrator {
	if cfg.Classify == nil {
		cfg.Classify = intent.Classify
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	return &Orchestrator{cfg: cfg, log: log.Sub("orchestrator")}
}

// Handle answers q. It always returns a well-formed Answer: downstream
// failures are absorbed into degraded context or fallback text, and anything
// unexpected becomes a generic answer with Success false.
func (o *Orchestrator) Handle(ctx context.Context, q domain.Query) domain.Answer {
	start := time.Now()

	sessionID := q.SessionID
	if strings.TrimSpace(sessionID) == "" {
		sessionID = o.cfg.NewSessionID()
	}
	q.SessionID = sessionID
	if q.Actor == "" {
		q.Actor = domain.ActorCustomer
	}

	ctx, span := telemetry.Tracer("rewardbot/orchestrator").Start(ctx, "handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("actor", string(q.Actor)),
	)

	log := o.log.With("sessionId", sessionID)
	log.Debug().Str("customerId", q.CustomerID).Msg("query received")
	o.emit(ctx, hooks.Payload{Event: hooks.EventQueryReceived, Query: &q}, false)

	answer, intents := o.run(ctx, q, log)
	answer.SessionID = sessionID
	elapsed := time.Since(start)
	answer.ElapsedMs = elapsed.Milliseconds()

	metrics.ObserveQuery(elapsed.Seconds(), answer.Success)
	span.SetAttributes(
		attribute.String("intents", intents.Key()),
		attribute.Bool("success", answer.Success),
	)
	if !answer.Success {
		span.SetStatus(codes.Error, internalErrorMessage)
	}

	log.Info().
		Str("customerId", q.CustomerID).
		Str("intents", intents.Key()).
		Bool("success", answer.Success).
		Dur("elapsed", elapsed).
		Msg("query answered")

	o.emit(ctx, hooks.Payload{
		Event:   hooks.EventQueryAnswered,
		Query:   &q,
		Answer:  &answer,
		Intents: intents.Strings(),
	}, true)
	return answer
}

// run drives classify, aggregate and synthesize. A panic anywhere in the
// pipeline is logged and converted into a failed Answer.
func (o *Orchestrator) run(ctx context.Context, q domain.Query, log *logging.Logger) (answer domain.Answer, intents intent.Set) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("query pipeline failed")
			answer = domain.Answer{
				Response:     domain.GenericErrorMessage,
				Success:      false,
				ErrorMessage: internalErrorMessage,
			}
		}
	}()

	intents = o.cfg.Classify(q.Text)
	rc := o.cfg.Aggregator.Aggregate(ctx, q.CustomerID, intents)
	text := o.cfg.Synthesizer.Synthesize(ctx, q, rc, intents)

	return domain.Answer{
		Response: text,
		Success:  true,
		Context:  rc,
	}, intents
}

func (o *Orchestrator) emit(ctx context.Context, p hooks.Payload, async bool) {
	if o.cfg.Hooks == nil {
		return
	}
	if async {
		o.cfg.Hooks.EmitAsync(ctx, p)
		return
	}
	o.cfg.Hooks.Emit(ctx, p)
}
