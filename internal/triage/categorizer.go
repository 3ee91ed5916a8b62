package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/sieve/internal/item"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sieve/internal/triage")

const (
	DefaultInferenceTimeout = 15 * time.Second
	ResponseTokens          = 1024

	defaultConfidence = 5
	minConfidence     = 1
	maxConfidence     = 10

	fallbackConfidence = 1
	fallbackAction     = "Review manually"
)

// CategorizerHooks holds optional callbacks for observability. A nil func
// is skipped.
type CategorizerHooks struct {
	OnInference func(duration float64, usage Usage, err error)
	OnResult    func(r *CategorizationResult)
}

// Categorizer classifies a single item: it asks the inference provider for a
// category, validates the answer and combines it with deterministic scoring
// and quick-win detection.
type Categorizer struct {
	provider Provider
	logger   log.Logger
	hooks    CategorizerHooks
	timeout  time.Duration
	now      func() time.Time
}

// CategorizerOption configures a Categorizer.
type CategorizerOption func(*Categorizer)

// WithTimeout bounds each inference call. Non-positive values are ignored.
func WithTimeout(d time.Duration) CategorizerOption {
	return func(c *Categorizer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock replaces time.Now as the reference for due dates and age.
func WithClock(now func() time.Time) CategorizerOption {
	return func(c *Categorizer) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHooks installs observability callbacks.
func WithHooks(h CategorizerHooks) CategorizerOption {
	return func(c *Categorizer) { c.hooks = h }
}

// NewCategorizer creates a Categorizer backed by the given provider.
func NewCategorizer(provider Provider, logger log.Logger, opts ...CategorizerOption) *Categorizer {
	if logger == nil {
		logger = log.Nop()
	}
	c := &Categorizer{
		provider: provider,
		logger:   logger,
		timeout:  DefaultInferenceTimeout,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// verdict is the validated subset of an inference response.
type verdict struct {
	Category        Category
	Confidence      int
	Reasoning       string
	SuggestedAction string
}

// Categorize returns a complete result for the item. It never fails: any
// inference problem produces a low-confidence FYI fallback that still
// carries consistent scoring and quick-win fields.
func (c *Categorizer) Categorize(ctx context.Context, it *item.Item, isVIP, verbose bool) CategorizationResult {
	ctx, span := tracer.Start(ctx, "triage.categorize", trace.WithAttributes(
		attribute.String("sieve.item.id", it.ID),
		attribute.String("sieve.item.source", string(it.Source)),
		attribute.Bool("sieve.item.vip", isVIP),
	))
	defer span.End()

	L := c.logger.With("item_id", it.ID, "source", it.Source)

	prompt := buildPrompt(it, isVIP)
	if verbose {
		L.Info(ctx, "categorization prompt", "system", systemPrompt, "prompt", prompt)
	}

	resp, err := c.infer(ctx, prompt)

	var (
		v        verdict
		fallback bool
		model    string
	)
	if err == nil {
		model = resp.Model
		if verbose {
			L.Info(ctx, "categorization response", "model", resp.Model, "json", string(resp.JSON))
		}
		v = parseVerdict(resp.JSON)
	} else {
		fallback = true
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		L.Warn(ctx, "inference failed, using fallback", "error", err)
		v = verdict{
			Category:        CategoryFYI,
			Confidence:      fallbackConfidence,
			Reasoning:       fmt.Sprintf("AI categorization failed: %v", err),
			SuggestedAction: fallbackAction,
		}
	}

	r := c.assemble(it, isVIP, v)
	r.Fallback = fallback
	r.Model = model

	span.SetAttributes(
		attribute.String("sieve.category", string(r.Category)),
		attribute.String("sieve.priority", string(r.Priority)),
		attribute.Int("sieve.score", r.Scoring.TotalScore),
		attribute.Bool("sieve.fallback", fallback),
	)

	if c.hooks.OnResult != nil {
		c.hooks.OnResult(&r)
	}
	return r
}

// Fallback builds the result used when an item could not be categorized at
// all, for example when the categorization itself panicked. It is reported
// through OnResult like any other result.
func (c *Categorizer) Fallback(it *item.Item, isVIP bool, cause error) CategorizationResult {
	r := c.assemble(it, isVIP, verdict{
		Category:        CategoryFYI,
		Confidence:      fallbackConfidence,
		Reasoning:       fmt.Sprintf("AI categorization failed: %v", cause),
		SuggestedAction: fallbackAction,
	})
	r.Fallback = true

	if c.hooks.OnResult != nil {
		c.hooks.OnResult(&r)
	}
	return r
}

// assemble runs the deterministic stages for a validated verdict.
func (c *Categorizer) assemble(it *item.Item, isVIP bool, v verdict) CategorizationResult {
	sc := ExtractContext(it, isVIP, c.now())
	scoring := Score(v.Category, sc)
	qw := DetectQuickWinItem(it)

	// quick wins only matter for work the operator has to do
	quickWin := qw.IsQuickWin && v.Category == CategoryActionRequired

	return CategorizationResult{
		ItemID:          it.ID,
		Category:        v.Category,
		Priority:        scoring.Priority,
		Confidence:      v.Confidence,
		QuickWin:        quickWin,
		QuickWinReason:  qw.Reason,
		EstimatedTime:   qw.EstimatedTime,
		Reasoning:       v.Reasoning,
		SuggestedAction: v.SuggestedAction,
		Scoring:         scoring,
	}
}

// infer calls the provider under the configured timeout and converts every
// failure mode, panics included, into an error.
func (c *Categorizer) infer(ctx context.Context, prompt string) (resp *InferenceResponse, err error) {
	if c.provider == nil {
		return nil, errors.New("no inference provider configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "llm.infer", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.infer"),
		attribute.Int("gen_ai.request.max_tokens", ResponseTokens),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("inference provider panic: %v", p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if c.hooks.OnInference != nil {
			var usage Usage
			if resp != nil {
				usage = resp.Usage
			}
			c.hooks.OnInference(time.Since(start).Seconds(), usage, err)
		}
	}()

	resp, err = c.provider.Infer(ctx, &InferenceRequest{
		System:    systemPrompt,
		Prompt:    prompt,
		Format:    FormatJSON,
		MaxTokens: ResponseTokens,
		Timeout:   c.timeout,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("inference timed out after %s: %w", c.timeout, err)
		}
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("inference returned no response")
	}

	// providers may hand back text only; recover the object ourselves
	if len(resp.JSON) == 0 {
		raw, jerr := ExtractJSON(resp.Text)
		if jerr != nil {
			return nil, jerr
		}
		resp.JSON = raw
	} else if !isJSONObject(string(resp.JSON)) {
		return nil, ErrNoJSON
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	return resp, nil
}

// parseVerdict reads the loosely typed inference object into a verdict.
// The category is validated and confidence is clamped.
func parseVerdict(raw json.RawMessage) verdict {
	obj := gjson.ParseBytes(raw)

	action := obj.Get("suggestedAction").String()
	if action == "" {
		action = obj.Get("suggested_action").String()
	}

	return verdict{
		Category:        ParseCategory(obj.Get("category").String()),
		Confidence:      parseConfidence(obj.Get("confidence")),
		Reasoning:       obj.Get("reasoning").String(),
		SuggestedAction: action,
	}
}

// parseConfidence rounds a numeric or numeric-string confidence and clamps
// it to [1,10]. Absent or non-numeric values yield the default.
func parseConfidence(v gjson.Result) int {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return defaultConfidence
		}
		f = parsed
	default:
		return defaultConfidence
	}
	if math.IsNaN(f) {
		return defaultConfidence
	}
	return ClampConfidence(int(math.Round(math.Max(math.Min(f, 1e6), -1e6))))
}

// ClampConfidence bounds a confidence value to [1,10].
func ClampConfidence(n int) int {
	return min(max(n, minConfidence), maxConfidence)
}
