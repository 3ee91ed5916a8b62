// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/sieve/internal/item"
	"github.com/linnemanlabs/sieve/internal/postgres"
	"github.com/linnemanlabs/sieve/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/sieve/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists items, triage records and runs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// caller owns the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

const itemColumns = `i.id, i.source, i.source_id, i.item_type, i.ts, i.sender, i.subject, i.body_preview,
	i.thread_id, i.thread_context, i.metadata, i.read_status, i.created_at, i.updated_at`

// Items returns items matching q, newest first.
func (s *Store) Items(ctx context.Context, q triage.Query) ([]item.Item, error) {
	ctx, span := startSpan(ctx, "pgstore.Items", "SELECT")
	defer span.End()

	limit := q.Limit
	if limit <= 0 {
		limit = triage.DefaultQueryLimit
	}

	query := `SELECT ` + itemColumns + ` FROM items i WHERE ($1 = '' OR i.source = $1)`
	switch q.Filter {
	case triage.FilterUntriaged:
		query += ` AND NOT EXISTS (SELECT 1 FROM item_triage t WHERE t.item_id = i.id)`
	case triage.FilterTriaged:
		query += ` AND EXISTS (SELECT 1 FROM item_triage t WHERE t.item_id = i.id)`
	}
	query += ` ORDER BY i.ts DESC, i.id LIMIT $2`

	span.SetAttributes(
		attribute.String("sieve.query.source", string(q.Source)),
		attribute.String("sieve.query.filter", string(q.Filter)),
		attribute.Int("sieve.query.limit", limit),
	)

	rows, err := s.pool.Query(ctx, query, string(q.Source), limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query items: %w", err))
	}
	defer rows.Close()

	var out []item.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate items: %w", err))
	}
	return out, nil
}

// PutItems upserts items by ID in a single batch.
func (s *Store) PutItems(ctx context.Context, items []item.Item) error {
	ctx, span := startSpan(ctx, "pgstore.PutItems", "UPSERT")
	defer span.End()
	span.SetAttributes(attribute.Int("sieve.items", len(items)))

	if len(items) == 0 {
		return nil
	}

	query := `INSERT INTO items (
		id, source, source_id, item_type, ts, sender, subject, body_preview,
		thread_id, thread_context, metadata, read_status, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	ON CONFLICT (id) DO UPDATE SET
		source         = EXCLUDED.source,
		source_id      = EXCLUDED.source_id,
		item_type      = EXCLUDED.item_type,
		ts             = EXCLUDED.ts,
		sender         = EXCLUDED.sender,
		subject        = EXCLUDED.subject,
		body_preview   = EXCLUDED.body_preview,
		thread_id      = EXCLUDED.thread_id,
		thread_context = EXCLUDED.thread_context,
		metadata       = EXCLUDED.metadata,
		read_status    = EXCLUDED.read_status,
		updated_at     = EXCLUDED.updated_at`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for i := range items {
		it := &items[i]
		sender, err := json.Marshal(it.From)
		if err != nil {
			return fail(span, fmt.Errorf("marshal sender %s: %w", it.ID, err))
		}
		thread, err := json.Marshal(nonNil(it.ThreadContext))
		if err != nil {
			return fail(span, fmt.Errorf("marshal thread %s: %w", it.ID, err))
		}
		meta, err := json.Marshal(nonNilMap(it.Metadata))
		if err != nil {
			return fail(span, fmt.Errorf("marshal metadata %s: %w", it.ID, err))
		}

		createdAt, updatedAt := it.CreatedAt, it.UpdatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if updatedAt.IsZero() {
			updatedAt = now
		}

		batch.Queue(query,
			it.ID, string(it.Source), it.SourceID, it.ItemType, it.Timestamp, sender, it.Subject, it.BodyPreview,
			it.ThreadID, thread, meta, it.ReadStatus, createdAt, updatedAt,
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	br := tx.SendBatch(ctx, batch)
	for i := range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fail(span, fmt.Errorf("upsert item %s: %w", items[i].ID, err))
		}
	}
	if err := br.Close(); err != nil {
		return fail(span, fmt.Errorf("close batch: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fail(span, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// SaveTriage upserts the triage record keyed by item ID.
func (s *Store) SaveTriage(ctx context.Context, rec *triage.Record) error {
	ctx, span := startSpan(postgres.WithRunID(ctx, rec.RunID), "pgstore.SaveTriage", "UPSERT")
	defer span.End()
	span.SetAttributes(attribute.String("sieve.item.id", rec.ItemID))

	query := `INSERT INTO item_triage (
		item_id, run_id, priority, category, confidence, score, reasoning,
		quick_win, quick_win_reason, estimated_time, suggested_action, fallback, triaged_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	ON CONFLICT (item_id) DO UPDATE SET
		run_id           = EXCLUDED.run_id,
		priority         = EXCLUDED.priority,
		category         = EXCLUDED.category,
		confidence       = EXCLUDED.confidence,
		score            = EXCLUDED.score,
		reasoning        = EXCLUDED.reasoning,
		quick_win        = EXCLUDED.quick_win,
		quick_win_reason = EXCLUDED.quick_win_reason,
		estimated_time   = EXCLUDED.estimated_time,
		suggested_action = EXCLUDED.suggested_action,
		fallback         = EXCLUDED.fallback,
		triaged_at       = EXCLUDED.triaged_at`

	_, err := s.pool.Exec(ctx, query,
		rec.ItemID, rec.RunID, string(rec.Priority), string(rec.Category), rec.Confidence, rec.Score, rec.Reasoning,
		rec.QuickWin, rec.QuickWinReason, rec.EstimatedTime, rec.SuggestedAction, rec.Fallback, rec.TriagedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert triage %s: %w", rec.ItemID, err))
	}
	return nil
}

// GetTriage retrieves the triage record of an item.
func (s *Store) GetTriage(ctx context.Context, itemID string) (*triage.Record, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetTriage", "SELECT")
	defer span.End()

	var (
		rec      triage.Record
		priority string
		category string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT item_id, run_id, priority, category, confidence, score, reasoning,
			quick_win, quick_win_reason, estimated_time, suggested_action, fallback, triaged_at
		 FROM item_triage WHERE item_id = $1`,
		itemID,
	).Scan(
		&rec.ItemID, &rec.RunID, &priority, &category, &rec.Confidence, &rec.Score, &rec.Reasoning,
		&rec.QuickWin, &rec.QuickWinReason, &rec.EstimatedTime, &rec.SuggestedAction, &rec.Fallback, &rec.TriagedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, fmt.Errorf("scan triage: %w", err))
	}

	rec.Priority = triage.Tier(priority)
	rec.Category = triage.ParseCategory(category)
	return &rec, true, nil
}

const runColumns = `id, source, status, item_limit, retriage, error, items, fallbacks, quick_wins,
	by_priority, write_errors, created_at, completed_at, duration_s, top`

// PutRun inserts or updates a run.
func (s *Store) PutRun(ctx context.Context, r *triage.Run) error {
	ctx, span := startSpan(postgres.WithRunID(ctx, r.ID), "pgstore.PutRun", "UPSERT")
	defer span.End()

	byPriority, err := json.Marshal(nonNilMap(r.ByPriority))
	if err != nil {
		return fail(span, fmt.Errorf("marshal by_priority: %w", err))
	}
	top, err := json.Marshal(nonNil(r.Top))
	if err != nil {
		return fail(span, fmt.Errorf("marshal top: %w", err))
	}

	var completedAt *time.Time
	if !r.CompletedAt.IsZero() {
		completedAt = &r.CompletedAt
	}

	query := `INSERT INTO triage_runs (` + runColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	ON CONFLICT (id) DO UPDATE SET
		status       = EXCLUDED.status,
		error        = EXCLUDED.error,
		items        = EXCLUDED.items,
		fallbacks    = EXCLUDED.fallbacks,
		quick_wins   = EXCLUDED.quick_wins,
		by_priority  = EXCLUDED.by_priority,
		write_errors = EXCLUDED.write_errors,
		completed_at = EXCLUDED.completed_at,
		duration_s   = EXCLUDED.duration_s,
		top          = EXCLUDED.top`

	_, err = s.pool.Exec(ctx, query,
		r.ID, string(r.Source), string(r.Status), r.Limit, r.Retriage, r.Error, r.Items, r.Fallbacks, r.QuickWins,
		byPriority, r.WriteErrors, r.CreatedAt, completedAt, r.Duration, top,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert run: %w", err))
	}
	return nil
}

// GetRun retrieves a run by ID.
//
//nolint:dupl // similar structure to ActiveRun is intentional
func (s *Store) GetRun(ctx context.Context, id string) (*triage.Run, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetRun", "SELECT")
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM triage_runs WHERE id = $1`
	r, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, false, fail(span, err)
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// ActiveRun returns the newest pending or in-progress run for a source.
//
//nolint:dupl // similar structure to GetRun is intentional
func (s *Store) ActiveRun(ctx context.Context, source item.Source) (*triage.Run, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.ActiveRun", "SELECT")
	defer span.End()

	query := `SELECT ` + runColumns + ` FROM triage_runs
		WHERE source = $1 AND status IN ('pending', 'in_progress')
		ORDER BY created_at DESC LIMIT 1`
	r, err := scanRun(s.pool.QueryRow(ctx, query, string(source)))
	if err != nil {
		return nil, false, fail(span, err)
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// FailActiveRuns marks every pending or in-progress run failed.
func (s *Store) FailActiveRuns(ctx context.Context, reason string, at time.Time) (int, error) {
	ctx, span := startSpan(ctx, "pgstore.FailActiveRuns", "UPDATE")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `UPDATE triage_runs
		SET status = 'failed', error = $1, completed_at = $2
		WHERE status IN ('pending', 'in_progress')`, reason, at)
	if err != nil {
		return 0, fail(span, fmt.Errorf("fail active runs: %w", err))
	}
	n := int(tag.RowsAffected())
	span.SetAttributes(attribute.Int("db.rows_affected", n))
	return n, nil
}

// scanItem scans one items row.
func scanItem(row pgx.Row) (*item.Item, error) {
	var (
		it       item.Item
		source   string
		sender   []byte
		thread   []byte
		metadata []byte
	)
	err := row.Scan(
		&it.ID, &source, &it.SourceID, &it.ItemType, &it.Timestamp, &sender, &it.Subject, &it.BodyPreview,
		&it.ThreadID, &thread, &metadata, &it.ReadStatus, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}

	it.Source = item.Source(source)
	if err := json.Unmarshal(sender, &it.From); err != nil {
		return nil, fmt.Errorf("unmarshal sender %s: %w", it.ID, err)
	}
	if err := json.Unmarshal(thread, &it.ThreadContext); err != nil {
		return nil, fmt.Errorf("unmarshal thread %s: %w", it.ID, err)
	}
	if err := json.Unmarshal(metadata, &it.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata %s: %w", it.ID, err)
	}
	if len(it.ThreadContext) == 0 {
		it.ThreadContext = nil
	}
	return &it, nil
}

// scanRun scans a single row into a triage.Run.
// Returns (nil, nil) when no row is found.
func scanRun(row pgx.Row) (*triage.Run, error) {
	var (
		r           triage.Run
		source      string
		status      string
		byPriority  []byte
		top         []byte
		completedAt *time.Time
	)

	err := row.Scan(
		&r.ID, &source, &status, &r.Limit, &r.Retriage, &r.Error, &r.Items, &r.Fallbacks, &r.QuickWins,
		&byPriority, &r.WriteErrors, &r.CreatedAt, &completedAt, &r.Duration, &top,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	r.Source = item.Source(source)
	r.Status = triage.Status(status)
	if completedAt != nil {
		r.CompletedAt = *completedAt
	}

	if err := json.Unmarshal(byPriority, &r.ByPriority); err != nil {
		return nil, fmt.Errorf("unmarshal by_priority: %w", err)
	}
	if err := json.Unmarshal(top, &r.Top); err != nil {
		return nil, fmt.Errorf("unmarshal top: %w", err)
	}
	if len(r.Top) == 0 {
		r.Top = nil
	}
	return &r, nil
}

// nonNil keeps JSONB array columns from storing null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}
