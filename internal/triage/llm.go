package triage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Provider is the interface for any inference backend.
//
// Implementations must honor the context deadline and the request Timeout,
// and must report timeouts, transport failures and unparseable output as
// errors rather than hanging or panicking.
type Provider interface {
	Infer(ctx context.Context, req *InferenceRequest) (*InferenceResponse, error)
}

// ResponseFormat tells the provider how to post-process model output.
type ResponseFormat string

const (
	// FormatJSON asks the provider to extract and return a JSON object.
	FormatJSON ResponseFormat = "json"

	// FormatText returns the raw text.
	FormatText ResponseFormat = "text"
)

// InferenceRequest is a single-shot prompt to the inference service.
type InferenceRequest struct {
	System    string
	Prompt    string
	Format    ResponseFormat
	MaxTokens int
	Timeout   time.Duration
}

// InferenceResponse is the provider's answer. JSON is set when the request
// asked for FormatJSON and a JSON object was found in the output.
type InferenceResponse struct {
	Text  string
	JSON  json.RawMessage
	Model string
	Usage Usage
}

// Usage reports token consumption of one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrNoJSON is returned by providers when FormatJSON was requested but the
// output contained no JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON finds the JSON object in model output. Markdown code fences
// are stripped; if the remaining text is not a JSON object, the outermost
// {...} span is tried.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if isJSONObject(s) {
		return json.RawMessage(s), nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		if candidate := s[start : end+1]; isJSONObject(candidate) {
			return json.RawMessage(candidate), nil
		}
	}
	return nil, ErrNoJSON
}

func isJSONObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}
