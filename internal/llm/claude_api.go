package llm

import (
	"context"
	"strings"
	"time"
)

const (
	claudeDefaultBase = "https://api.anthropic.com"
	claudeAPIVersion  = "2023-06-01"
)

// ClaudeAPIClient calls the Anthropic Messages API.
type ClaudeAPIClient struct {
	apiKey string
	model  string
	opts   apiOptions
}

// NewClaudeAPIClient creates a new Claude API client.
func NewClaudeAPIClient(apiKey, model string, opts ...APIOption) *ClaudeAPIClient {
	return &ClaudeAPIClient{
		apiKey: apiKey,
		model:  model,
		opts:   resolveOptions(claudeDefaultBase, opts),
	}
}

// Name returns the provider name.
func (c *ClaudeAPIClient) Name() string { return "claude" }

// Complete sends a non-streaming completion request.
func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body := claudeRequest{
		Model:       c.model,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = 1024
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem {
			continue
		}
		body.Messages = append(body.Messages, m)
	}

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": claudeAPIVersion,
	}

	var result claudeAPIResponse
	if err := postJSON(ctx, c.opts.client, c.Name(), c.opts.baseURL+"/v1/messages", headers, body, &result); err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: result.StopReason,
		Usage: Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
		Model:    result.Model,
		Duration: time.Since(start),
	}, nil
}

type claudeRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type claudeAPIResponse struct {
	ID         string               `json:"id"`
	Model      string               `json:"model"`
	StopReason string               `json:"stop_reason"`
	Content    []claudeContentBlock `json:"content"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
