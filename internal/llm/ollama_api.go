package llm

import (
	"context"
	"time"
)

const ollamaDefaultBase = "http://localhost:11434"

// OllamaAPIClient calls a local Ollama server.
type OllamaAPIClient struct {
	model string
	opts  apiOptions
}

// NewOllamaAPIClient creates a new Ollama API client. An empty endpoint means
// http://localhost:11434.
func NewOllamaAPIClient(endpoint, model string, opts ...APIOption) *OllamaAPIClient {
	if endpoint == "" {
		endpoint = ollamaDefaultBase
	}
	opts = append([]APIOption{WithBaseURL(endpoint)}, opts...)
	return &OllamaAPIClient{
		model: model,
		opts:  resolveOptions(ollamaDefaultBase, opts),
	}
}

// Name returns the provider name.
func (o *OllamaAPIClient) Name() string { return "ollama" }

// Complete sends a non-streaming generate request.
func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body := ollamaRequest{
		Model:  o.model,
		Prompt: flattenPrompt(req),
		Stream: false,
		Options: ollamaOptions{
			NumPredict:  req.MaxTokens,
			Temperature: req.Temperature,
		},
	}

	var result ollamaAPIResponse
	if err := postJSON(ctx, o.opts.client, o.Name(), o.opts.baseURL+"/api/generate", nil, body, &result); err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content:    result.Response,
		StopReason: result.DoneReason,
		Usage: Usage{
			InputTokens:  result.PromptEvalCount,
			OutputTokens: result.EvalCount,
		},
		Model:    o.model,
		Duration: time.Since(start),
	}, nil
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaAPIResponse struct {
	Response        string `json:"response"`
	DoneReason      string `json:"done_reason"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}
