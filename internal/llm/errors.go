package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationDisabled is returned by the Disabled client.
	ErrGenerationDisabled = errors.New("llm: generation disabled")

	// ErrEmptyCompletion marks a provider reply that carried no text.
	ErrEmptyCompletion = errors.New("llm: empty completion")
)

// ProviderError is returned when a generation provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
