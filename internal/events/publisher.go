// Package events publishes answered queries to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/soyeahso/rewardbot/internal/hooks"
	"github.com/soyeahso/rewardbot/internal/logging"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AnswerEvent is the JSON value written for every answered query.
type AnswerEvent struct {
	SessionID  string    `json:"sessionId"`
	CustomerID string    `json:"customerId"`
	Actor      string    `json:"userType"`
	Query      string    `json:"query"`
	Intents    []string  `json:"intents,omitempty"`
	Response   string    `json:"response"`
	Success    bool      `json:"success"`
	Degraded   bool      `json:"degraded,omitempty"`
	ElapsedMs  int64     `json:"responseTimeMs"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// Publisher sends answer events to a Kafka topic.
type Publisher struct {
	w   MessageWriter
	log *logging.Logger
	now func() time.Time
}

// NewPublisher creates a publisher writing to topic on the given brokers.
func NewPublisher(brokers []string, topic string, log *logging.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, log)
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, log *logging.Logger) *Publisher {
	return &Publisher{w: w, log: log.Sub("events"), now: time.Now}
}

// Publish writes one event keyed by session id, so a session's answers stay ordered.
func (p *Publisher) Publish(ctx context.Context, ev AnswerEvent) error {
	if ev.AnsweredAt.IsZero() {
		ev.AnsweredAt = p.now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding answer event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.SessionID),
		Value: data,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing answer event: %w", err)
	}

	p.log.Debug().Str("session", ev.SessionID).Msg("answer event published")
	return nil
}

// Hook returns a query_answered handler that publishes each answer.
func (p *Publisher) Hook() hooks.Handler {
	return func(ctx context.Context, pl hooks.Payload) error {
		if pl.Query == nil || pl.Answer == nil {
			return nil
		}
		ev := AnswerEvent{
			SessionID:  pl.Answer.SessionID,
			CustomerID: pl.Query.CustomerID,
			Actor:      string(pl.Query.Actor),
			Query:      pl.Query.Text,
			Intents:    pl.Intents,
			Response:   pl.Answer.Response,
			Success:    pl.Answer.Success,
			ElapsedMs:  pl.Answer.ElapsedMs,
		}
		if pl.Answer.Context != nil {
			ev.Degraded = pl.Answer.Context.Degraded
		}
		return p.Publish(ctx, ev)
	}
}

// Name identifies the publisher as an answer sink.
func (p *Publisher) Name() string { return "events" }

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.w.Close()
}
