// Package claude implements triage.Provider on the Anthropic Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/sieve/internal/triage"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "claude-sonnet-4-20250514"

	defaultMaxTokens = 1024
)

// Client sends single-shot prompts to Claude.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a Claude provider. Extra request options (base URL, HTTP
// client) are passed through to the SDK. Retries are disabled: a failed
// call falls back to heuristics instead of being retried.
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &Client{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Infer implements triage.Provider.
func (c *Client) Infer(ctx context.Context, req *triage.InferenceRequest) (*triage.InferenceResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	msg, err := c.client.Messages.New(ctx, c.toSDKParams(req))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("claude: timed out after %s: %w", req.Timeout, err)
		}
		return nil, fmt.Errorf("claude: %w", err)
	}

	resp := fromSDKResponse(msg)
	if resp.Model == "" {
		resp.Model = c.model
	}

	if req.Format == triage.FormatJSON {
		raw, err := triage.ExtractJSON(resp.Text)
		if err != nil {
			return nil, fmt.Errorf("claude: %w", err)
		}
		resp.JSON = raw
	}
	return resp, nil
}

func (c *Client) toSDKParams(req *triage.InferenceRequest) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

// fromSDKResponse joins the text blocks of a message. Non-text blocks are ignored.
func fromSDKResponse(msg *anthropic.Message) *triage.InferenceResponse {
	var sb strings.Builder
	for i := range msg.Content {
		if msg.Content[i].Type == "text" {
			sb.WriteString(msg.Content[i].Text)
		}
	}
	return &triage.InferenceResponse{
		Text:  sb.String(),
		Model: string(msg.Model),
		Usage: triage.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}
