// Package domain holds the value types that flow through the reward query pipeline.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength is the maximum number of characters accepted in a query.
const MaxQueryLength = 500

// ActorType identifies who is asking: the customer themselves or a support agent.
type ActorType string

const (
	ActorCustomer ActorType = "CUSTOMER"
	ActorAgent    ActorType = "AGENT"
)

// ParseActorType normalizes a user-supplied actor tag. Empty input means CUSTOMER.
func ParseActorType(s string) (ActorType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ActorCustomer):
		return ActorCustomer, nil
	case string(ActorAgent):
		return ActorAgent, nil
	default:
		return "", fmt.Errorf("unknown actor type %q", s)
	}
}

// Query is an inbound natural-language question. It is never mutated after
// construction at the boundary.
type Query struct {
	Text       string    `json:"query"`
	CustomerID string    `json:"customerId"`
	SessionID  string    `json:"sessionId,omitempty"`
	Actor      ActorType `json:"userType,omitempty"`
}

// ValidationError reports field-level problems with an inbound Query.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// Validate checks the boundary constraints on a query.
func (q Query) Validate() error {
	fields := map[string]string{}

	if strings.TrimSpace(q.Text) == "" {
		fields["query"] = "Query cannot be empty"
	} else if utf8.RuneCountInString(q.Text) > MaxQueryLength {
		fields["query"] = fmt.Sprintf("Query must not exceed %d characters", MaxQueryLength)
	}
	if strings.TrimSpace(q.CustomerID) == "" {
		fields["customerId"] = "Customer ID is required"
	}
	if q.Actor != "" && q.Actor != ActorCustomer && q.Actor != ActorAgent {
		fields["userType"] = "must be CUSTOMER or AGENT"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
