package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/sieve/internal/item"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 500 * time.Millisecond
)

// VIPResolver decides whether an item's sender is a VIP. It may do I/O.
type VIPResolver interface {
	IsVIP(ctx context.Context, it *item.Item) (bool, error)
}

// VIPResolverFunc adapts a plain function to VIPResolver.
type VIPResolverFunc func(ctx context.Context, it *item.Item) (bool, error)

// IsVIP implements VIPResolver.
func (f VIPResolverFunc) IsVIP(ctx context.Context, it *item.Item) (bool, error) {
	return f(ctx, it)
}

// ItemCategorizer is the per-item stage driven by the Orchestrator.
// Implementations must not fail; *Categorizer satisfies it.
type ItemCategorizer interface {
	Categorize(ctx context.Context, it *item.Item, isVIP, verbose bool) CategorizationResult
	Fallback(it *item.Item, isVIP bool, cause error) CategorizationResult
}

// BatchConfig controls chunking and pacing.
type BatchConfig struct {
	// BatchSize caps how many items are categorized concurrently.
	BatchSize int
	// Delay is the idle period between consecutive chunks.
	Delay time.Duration
	// Verbose logs prompts and raw responses.
	Verbose bool
}

// DefaultBatchConfig returns five items per chunk and a 500ms pause.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: DefaultBatchSize, Delay: DefaultBatchDelay}
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Delay < 0 {
		c.Delay = DefaultBatchDelay
	}
	return c
}

// BatchHooks holds optional callbacks for observability.
type BatchHooks struct {
	OnChunk    func(size int, duration float64)
	OnVIPError func()
}

// Orchestrator drives a categorizer over a list of items in fixed-size
// chunks, joining each chunk before pausing and starting the next.
type Orchestrator struct {
	categorizer ItemCategorizer
	cfg         BatchConfig
	logger      log.Logger
	hooks       BatchHooks
	sleep       func(ctx context.Context, d time.Duration)
}

// NewOrchestrator creates an Orchestrator. A non-positive BatchSize selects
// the default of 5 and a negative Delay the default of 500ms. A zero Delay
// disables pacing.
func NewOrchestrator(c ItemCategorizer, cfg BatchConfig, logger log.Logger, hooks BatchHooks) *Orchestrator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Orchestrator{
		categorizer: c,
		cfg:         cfg.withDefaults(),
		logger:      logger,
		hooks:       hooks,
		sleep:       sleepCtx,
	}
}

// Config returns the effective batch configuration.
func (o *Orchestrator) Config() BatchConfig {
	return o.cfg
}

// CategorizeBatch returns exactly one result per input item, in input order.
// No single item can abort the batch: resolver errors count as non-VIP and
// categorizer panics become fallback results. Cancelling ctx skips the
// remaining delays; the remaining items still get (fallback) results.
func (o *Orchestrator) CategorizeBatch(ctx context.Context, items []item.Item, vip VIPResolver) []CategorizationResult {
	results := make([]CategorizationResult, len(items))
	if len(items) == 0 {
		return results
	}

	size := o.cfg.BatchSize
	chunks := (len(items) + size - 1) / size

	ctx, span := tracer.Start(ctx, "triage.batch", trace.WithAttributes(
		attribute.Int("sieve.batch.items", len(items)),
		attribute.Int("sieve.batch.size", size),
		attribute.Int("sieve.batch.chunks", chunks),
	))
	defer span.End()

	for n := range chunks {
		lo := n * size
		hi := min(lo+size, len(items))

		o.runChunk(ctx, n, items[lo:hi], results[lo:hi], vip)

		if hi < len(items) && o.cfg.Delay > 0 {
			o.sleep(ctx, o.cfg.Delay)
		}
	}

	return results
}

// runChunk fans out one goroutine per item and waits for all of them.
// Each goroutine writes only its own slot of out.
func (o *Orchestrator) runChunk(ctx context.Context, n int, chunk []item.Item, out []CategorizationResult, vip VIPResolver) {
	ctx, span := tracer.Start(ctx, "triage.chunk", trace.WithAttributes(
		attribute.Int("sieve.chunk.index", n),
		attribute.Int("sieve.chunk.items", len(chunk)),
	))
	defer span.End()

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(len(chunk))
	for i := range chunk {
		g.Go(func() error {
			out[i] = o.categorizeOne(ctx, &chunk[i], vip)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	if o.hooks.OnChunk != nil {
		o.hooks.OnChunk(len(chunk), time.Since(start).Seconds())
	}
}

func (o *Orchestrator) categorizeOne(ctx context.Context, it *item.Item, vip VIPResolver) (r CategorizationResult) {
	isVIP := o.resolveVIP(ctx, it, vip)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("categorizer panic: %v", p)
			o.logger.Error(ctx, err, "categorization panicked", "item_id", it.ID)
			r = o.categorizer.Fallback(it, isVIP, err)
		}
	}()

	return o.categorizer.Categorize(ctx, it, isVIP, o.cfg.Verbose)
}

// resolveVIP asks the resolver, treating errors and panics as "not a VIP".
func (o *Orchestrator) resolveVIP(ctx context.Context, it *item.Item, vip VIPResolver) (isVIP bool) {
	if vip == nil {
		return false
	}

	defer func() {
		if p := recover(); p != nil {
			o.vipFailed(ctx, it, fmt.Errorf("vip resolver panic: %v", p))
			isVIP = false
		}
	}()

	ok, err := vip.IsVIP(ctx, it)
	if err != nil {
		o.vipFailed(ctx, it, err)
		return false
	}
	return ok
}

func (o *Orchestrator) vipFailed(ctx context.Context, it *item.Item, err error) {
	o.logger.Warn(ctx, "vip resolution failed, assuming not vip", "item_id", it.ID, "error", err)
	if o.hooks.OnVIPError != nil {
		o.hooks.OnVIPError()
	}
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
