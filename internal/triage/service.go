package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/sieve/internal/item"
)

const (
	// topEntries is how many ranked entries a completed run keeps.
	topEntries = 10
	// defaultTopTier is the lowest tier (besides quick wins) that makes the top list.
	defaultTopTier = P1
)

// abandonedReason is recorded on runs that were still active when the
// process went away.
const abandonedReason = "abandoned: process stopped before the run finished"

// ErrInvalidRequest is returned for run requests that fail validation.
var ErrInvalidRequest = errors.New("invalid run request")

// Notifier is told about completed runs.
type Notifier interface {
	Send(ctx context.Context, run *Run) error
}

// RunRequest selects the items a run triages.
type RunRequest struct {
	Source   item.Source `json:"source,omitempty"`
	Limit    int         `json:"limit,omitempty"`
	Retriage bool        `json:"retriage,omitempty"`
}

// SubmitResult is the outcome of submitting a run.
type SubmitResult struct {
	ID      string `json:"id,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Service is the business boundary for triage operations.
type Service struct {
	store    Store
	orch     *Orchestrator
	vip      VIPResolver
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	topTier  Tier

	mu      sync.Mutex // serializes dedup check and run creation
	running sync.WaitGroup
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTopTier sets the lowest tier kept in a run's top list, quick wins
// aside. Unknown tiers are ignored; the default is P1.
func WithTopTier(t Tier) ServiceOption {
	return func(s *Service) {
		if t.Rank() <= P3.Rank() {
			s.topTier = t
		}
	}
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, orch *Orchestrator, vip VIPResolver, logger log.Logger, metrics *Metrics, notifier Notifier, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		store:    store,
		orch:     orch,
		vip:      vip,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		topTier:  defaultTopTier,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RecoverRuns marks runs left pending or in progress by an earlier process
// as failed, so they stop blocking new runs for their source. Call it once
// at startup, before the first Submit.
func (s *Service) RecoverRuns(ctx context.Context) (int, error) {
	n, err := s.store.FailActiveRuns(ctx, abandonedReason, s.now())
	if err != nil {
		return 0, fmt.Errorf("recover runs: %w", err)
	}
	if n > 0 {
		s.logger.Warn(ctx, "marked abandoned runs failed", "runs", n)
		if s.metrics != nil {
			s.metrics.RunsTotal.WithLabelValues(string(StatusFailed)).Add(float64(n))
		}
	}
	return n, nil
}

// PutItems hands items over for later runs. Existing items with the same ID
// are replaced.
func (s *Service) PutItems(ctx context.Context, items []item.Item) error {
	if err := s.store.PutItems(ctx, items); err != nil {
		return fmt.Errorf("put items: %w", err)
	}
	s.logger.Info(ctx, "items stored", "items", len(items))
	return nil
}

// Submit starts an asynchronous run over stored items, skipping it when a
// run for the same source is already active.
func (s *Service) Submit(ctx context.Context, req RunRequest) (*SubmitResult, error) {
	if req.Source != "" && !req.Source.Valid() {
		s.countSubmit("invalid")
		return nil, errors.Join(ErrInvalidRequest, errors.New("unknown source "+string(req.Source)))
	}
	if req.Limit < 0 {
		s.countSubmit("invalid")
		return nil, errors.Join(ErrInvalidRequest, errors.New("limit must not be negative"))
	}
	if req.Limit == 0 {
		req.Limit = DefaultQueryLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// dedup: skip if a run for this source is already pending or in progress
	if existing, ok, err := s.store.ActiveRun(ctx, req.Source); err != nil {
		s.countSubmit("error")
		return nil, err
	} else if ok {
		s.countSubmit("duplicate")
		return &SubmitResult{ID: existing.ID, Skipped: true, Reason: "duplicate"}, nil
	}

	run := &Run{
		ID:        ulid.Make().String(),
		Source:    req.Source,
		Status:    StatusPending,
		Limit:     req.Limit,
		Retriage:  req.Retriage,
		CreatedAt: s.now(),
	}
	if err := s.store.PutRun(ctx, run); err != nil {
		s.countSubmit("error")
		return nil, err
	}
	s.countSubmit("accepted")

	// kick off async run with its own copy of the run
	submitted := *run
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.execute(context.WithoutCancel(ctx), submitted)
	}()

	return &SubmitResult{ID: run.ID}, nil
}

// Get retrieves a run by ID.
func (s *Service) Get(ctx context.Context, id string) (*Run, bool, error) {
	return s.store.GetRun(ctx, id)
}

// GetTriage retrieves the stored triage record of an item.
func (s *Service) GetTriage(ctx context.Context, itemID string) (*Record, bool, error) {
	return s.store.GetTriage(ctx, itemID)
}

// Categorize triages the given items synchronously without persisting
// anything. Results are in input order.
func (s *Service) Categorize(ctx context.Context, items []item.Item) []CategorizationResult {
	results := s.orch.CategorizeBatch(ctx, items, s.vip)
	s.logger.Info(ctx, "categorized items", "items", len(items), "fallbacks", Summarize(results).Fallbacks)
	return results
}

// Wait blocks until every submitted run has finished.
func (s *Service) Wait() {
	s.running.Wait()
}

// execute drives one run to a terminal status. Every path out of it goes
// through finish, so a run never stays active after execute returns.
func (s *Service) execute(ctx context.Context, submitted Run) {
	L := s.logger.With("run_id", submitted.ID)
	start := time.Now()

	run, ok, err := s.store.GetRun(ctx, submitted.ID)
	if err == nil && !ok {
		err = errors.New("run not found")
	}
	if err != nil {
		L.Error(ctx, err, "failed to fetch run")
		s.finish(ctx, L, &submitted, start, StatusFailed, fmt.Errorf("fetch run: %w", err))
		return
	}

	run.Status = StatusInProgress
	if err := s.store.PutRun(ctx, run); err != nil {
		L.Error(ctx, err, "failed to update status to in_progress")
		s.finish(ctx, L, run, start, StatusFailed, fmt.Errorf("mark in progress: %w", err))
		return
	}

	filter := FilterUntriaged
	if run.Retriage {
		filter = FilterAll
	}
	items, err := s.store.Items(ctx, Query{Source: run.Source, Filter: filter, Limit: run.Limit})
	if err != nil {
		L.Error(ctx, err, "failed to query items")
		s.finish(ctx, L, run, start, StatusFailed, err)
		return
	}

	L.Info(ctx, "run started", "source", run.Source, "items", len(items), "retriage", run.Retriage)

	results := s.orch.CategorizeBatch(ctx, items, s.vip)

	triagedAt := s.now()
	for i := range results {
		if err := s.store.SaveTriage(ctx, NewRecord(run.ID, &results[i], triagedAt)); err != nil {
			run.WriteErrors++
			L.Error(ctx, err, "failed to save triage", "item_id", results[i].ItemID)
		}
	}

	sum := Summarize(results)
	run.Items = sum.Items
	run.Fallbacks = sum.Fallbacks
	run.QuickWins = sum.QuickWins
	run.ByPriority = sum.ByPriority
	run.Top = TopEntries(items, results, s.topTier, topEntries)

	s.finish(ctx, L, run, start, StatusComplete, nil)
}

func (s *Service) finish(ctx context.Context, L log.Logger, run *Run, start time.Time, status Status, cause error) {
	run.Status = status
	if cause != nil {
		run.Error = cause.Error()
	}
	run.CompletedAt = s.now()
	run.Duration = time.Since(start).Seconds()

	if err := s.store.PutRun(ctx, run); err != nil {
		L.Error(ctx, err, "failed to persist run")
	}

	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues(string(status)).Inc()
		s.metrics.RunDuration.WithLabelValues(string(status)).Observe(run.Duration)
	}

	L.Info(ctx, "run complete",
		"status", run.Status,
		"duration", run.Duration,
		"items", run.Items,
		"fallbacks", run.Fallbacks,
		"quick_wins", run.QuickWins,
		"write_errors", run.WriteErrors,
	)

	if s.notifier != nil && status == StatusComplete {
		if err := s.notifier.Send(ctx, run); err != nil {
			L.Error(ctx, err, "failed to send run notification")
		}
	}
}

func (s *Service) countSubmit(result string) {
	if s.metrics != nil {
		s.metrics.SubmitsTotal.WithLabelValues(result).Inc()
	}
}
