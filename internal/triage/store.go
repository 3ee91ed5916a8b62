package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/sieve/internal/item"
)

// Write-back field limits.
const (
	MaxRecordReasoning = 500
	MaxRecordAction    = 200
)

// DefaultQueryLimit caps item queries that do not set a limit.
const DefaultQueryLimit = 100

// TriageFilter selects items by whether they already have a stored triage.
type TriageFilter string

const (
	FilterUntriaged TriageFilter = "untriaged"
	FilterTriaged   TriageFilter = "triaged"
	FilterAll       TriageFilter = "all"
)

// Query selects items from the store. A zero Source matches every source and
// a zero Filter matches every item.
type Query struct {
	Source item.Source
	Filter TriageFilter
	Limit  int
}

// Record is the persisted triage outcome of one item, keyed by ItemID.
type Record struct {
	ItemID          string    `json:"itemId"`
	RunID           string    `json:"runId,omitempty"`
	Priority        Tier      `json:"priority"`
	Category        Category  `json:"category"`
	Confidence      int       `json:"confidence"`
	Score           int       `json:"score"`
	Reasoning       string    `json:"reasoning"`
	QuickWin        bool      `json:"quickWin"`
	QuickWinReason  string    `json:"quickWinReason,omitempty"`
	EstimatedTime   string    `json:"estimatedTime"`
	SuggestedAction string    `json:"suggestedAction"`
	Fallback        bool      `json:"fallback,omitempty"`
	TriagedAt       time.Time `json:"triagedAt"`
}

// NewRecord converts a result to its persisted form, truncating free text
// to the write-back limits.
func NewRecord(runID string, r *CategorizationResult, at time.Time) *Record {
	return &Record{
		ItemID:          r.ItemID,
		RunID:           runID,
		Priority:        r.Priority,
		Category:        r.Category,
		Confidence:      r.Confidence,
		Score:           r.Scoring.TotalScore,
		Reasoning:       truncateRunes(r.Reasoning, MaxRecordReasoning),
		QuickWin:        r.QuickWin,
		QuickWinReason:  r.QuickWinReason,
		EstimatedTime:   r.EstimatedTime,
		SuggestedAction: truncateRunes(r.SuggestedAction, MaxRecordAction),
		Fallback:        r.Fallback,
		TriagedAt:       at,
	}
}

// Store is the persistence interface for items, triage records and runs.
type Store interface {
	// Items returns items matching q, newest first.
	Items(ctx context.Context, q Query) ([]item.Item, error)
	// PutItems inserts or replaces items by ID.
	PutItems(ctx context.Context, items []item.Item) error

	// SaveTriage upserts a record keyed by its ItemID.
	SaveTriage(ctx context.Context, rec *Record) error
	GetTriage(ctx context.Context, itemID string) (*Record, bool, error)

	PutRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, bool, error)
	// ActiveRun returns the newest pending or in-progress run for a source.
	ActiveRun(ctx context.Context, source item.Source) (*Run, bool, error)
	// FailActiveRuns marks every pending or in-progress run failed with the
	// given reason and completion time, returning how many it changed.
	FailActiveRuns(ctx context.Context, reason string, at time.Time) (int, error)
}
