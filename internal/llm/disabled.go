package llm

import "context"

// Disabled is the fallback-only generation capability. Every call fails with
// ErrGenerationDisabled so the synthesizer answers from its templates.
type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Complete(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return nil, ErrGenerationDisabled
}
