package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/sieve/internal/item"
	"github.com/linnemanlabs/sieve/internal/postgres"
	"github.com/linnemanlabs/sieve/internal/triage"
	"github.com/linnemanlabs/sieve/internal/triage/pgstore"
)

// compile-time check
var _ triage.Store = (*pgstore.Store)(nil)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("SIEVE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SIEVE_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

// uniqueID keeps rows from separate test runs against a shared database apart.
func uniqueID(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

// future places test items ahead of anything else in a shared database so
// newest-first queries return them first.
func future(offset time.Duration) time.Time {
	return time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset)
}

func TestItemsRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	it := item.Item{
		ID:          uniqueID("rt"),
		Source:      item.SourceOutlook,
		SourceID:    "AAMk-1",
		ItemType:    "email",
		Timestamp:   future(time.Hour),
		From:        item.Sender{Name: "Dana", Address: "dana@example.com"},
		Subject:     "Approval needed",
		BodyPreview: "Please approve by Friday",
		ThreadID:    "th-1",
		ThreadContext: []item.ThreadMessage{
			{From: "me", Body: "Sent the draft", Timestamp: future(0)},
		},
		Metadata:   item.Metadata{"importance": "high", "hasAttachments": true},
		ReadStatus: true,
	}
	if err := s.PutItems(ctx, []item.Item{it}); err != nil {
		t.Fatalf("PutItems: %v", err)
	}

	got, err := s.Items(ctx, triage.Query{Source: item.SourceOutlook, Filter: triage.FilterAll, Limit: 1})
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("items = %d, want 1", len(got))
	}

	g := got[0]
	assertEqual(t, "ID", it.ID, g.ID)
	assertEqual(t, "Source", it.Source, g.Source)
	assertEqual(t, "SourceID", it.SourceID, g.SourceID)
	assertEqual(t, "Subject", it.Subject, g.Subject)
	assertEqual(t, "From", it.From, g.From)
	assertEqual(t, "ThreadID", it.ThreadID, g.ThreadID)
	assertEqual(t, "ReadStatus", it.ReadStatus, g.ReadStatus)
	assertEqual(t, "Timestamp", it.Timestamp.Unix(), g.Timestamp.Unix())
	assertEqual(t, "importance", "high", g.Metadata.String("importance"))
	assertEqual(t, "hasAttachments", true, g.Metadata.Bool("hasAttachments"))

	if len(g.ThreadContext) != 1 || g.ThreadContext[0].Body != "Sent the draft" {
		t.Errorf("ThreadContext = %+v", g.ThreadContext)
	}
	if g.CreatedAt.IsZero() || g.UpdatedAt.IsZero() {
		t.Error("expected created/updated timestamps to be set")
	}
}

func TestItemsTriageFilter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	triaged := item.Item{ID: uniqueID("tf-done"), Source: item.SourceServiceNow, Timestamp: future(3 * time.Hour)}
	pending := item.Item{ID: uniqueID("tf-open"), Source: item.SourceServiceNow, Timestamp: future(2 * time.Hour)}
	if err := s.PutItems(ctx, []item.Item{triaged, pending}); err != nil {
		t.Fatalf("PutItems: %v", err)
	}
	err := s.SaveTriage(ctx, &triage.Record{
		ItemID: triaged.ID, Priority: triage.P2, Category: triage.CategoryFYI, TriagedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveTriage: %v", err)
	}

	untriaged, err := s.Items(ctx, triage.Query{Source: item.SourceServiceNow, Filter: triage.FilterUntriaged, Limit: 1})
	if err != nil {
		t.Fatalf("Items(untriaged): %v", err)
	}
	if len(untriaged) != 1 || untriaged[0].ID != pending.ID {
		t.Errorf("untriaged = %v, want [%s]", untriaged, pending.ID)
	}

	done, err := s.Items(ctx, triage.Query{Source: item.SourceServiceNow, Filter: triage.FilterTriaged, Limit: 1})
	if err != nil {
		t.Fatalf("Items(triaged): %v", err)
	}
	if len(done) != 1 || done[0].ID != triaged.ID {
		t.Errorf("triaged = %v, want [%s]", done, triaged.ID)
	}
}

func TestPutItemsUpsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	it := item.Item{ID: uniqueID("up"), Source: item.SourceJira, Subject: "v1", Timestamp: future(4 * time.Hour)}
	if err := s.PutItems(ctx, []item.Item{it}); err != nil {
		t.Fatalf("PutItems: %v", err)
	}
	it.Subject = "v2"
	if err := s.PutItems(ctx, []item.Item{it}); err != nil {
		t.Fatalf("PutItems (update): %v", err)
	}

	got, err := s.Items(ctx, triage.Query{Source: item.SourceJira, Filter: triage.FilterAll, Limit: 1})
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("items = %d, want 1", len(got))
	}
	assertEqual(t, "Subject", "v2", got[0].Subject)
}

func TestTriageRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	rec := &triage.Record{
		ItemID:          uniqueID("tr"),
		RunID:           "run-1",
		Priority:        triage.P0,
		Category:        triage.CategoryActionRequired,
		Confidence:      85,
		Score:           115,
		Reasoning:       "Direct approval request from a VIP",
		QuickWin:        true,
		QuickWinReason:  "approval request",
		EstimatedTime:   "5min",
		SuggestedAction: "Approve the budget",
		TriagedAt:       now,
	}
	if err := s.SaveTriage(ctx, rec); err != nil {
		t.Fatalf("SaveTriage: %v", err)
	}

	got, ok, err := s.GetTriage(ctx, rec.ItemID)
	if err != nil {
		t.Fatalf("GetTriage: %v", err)
	}
	if !ok {
		t.Fatal("GetTriage returned ok=false, want true")
	}
	if !got.TriagedAt.Equal(rec.TriagedAt) {
		t.Errorf("TriagedAt: got %v, want %v", got.TriagedAt, rec.TriagedAt)
	}
	got.TriagedAt = rec.TriagedAt
	assertEqual(t, "Record", *rec, *got)

	rec.Category = triage.CategorySpam
	rec.Fallback = true
	if err := s.SaveTriage(ctx, rec); err != nil {
		t.Fatalf("SaveTriage (update): %v", err)
	}
	got, _, _ = s.GetTriage(ctx, rec.ItemID)
	assertEqual(t, "Category", triage.CategorySpam, got.Category)
	assertEqual(t, "Fallback", true, got.Fallback)
}

func TestGetTriageMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.GetTriage(context.Background(), "nonexistent-item")
	if err != nil {
		t.Fatalf("GetTriage: %v", err)
	}
	if ok {
		t.Fatal("GetTriage returned ok=true for missing item")
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Microsecond).UTC()
	r := &triage.Run{
		ID:        uniqueID("run"),
		Source:    item.SourceTeams,
		Status:    triage.StatusPending,
		Limit:     50,
		Retriage:  true,
		CreatedAt: now,
	}
	if err := s.PutRun(ctx, r); err != nil {
		t.Fatalf("PutRun: %v", err)
	}

	got, ok, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !ok {
		t.Fatal("GetRun returned ok=false, want true")
	}
	assertEqual(t, "Status", triage.StatusPending, got.Status)
	assertEqual(t, "Limit", 50, got.Limit)
	assertEqual(t, "Retriage", true, got.Retriage)
	if !got.CompletedAt.IsZero() {
		t.Errorf("CompletedAt = %v, want zero", got.CompletedAt)
	}
	if got.Top != nil {
		t.Errorf("Top = %v, want nil", got.Top)
	}

	r.Status = triage.StatusComplete
	r.Items = 3
	r.QuickWins = 1
	r.ByPriority = map[triage.Tier]int{triage.P0: 1, triage.P2: 2}
	r.CompletedAt = now.Add(2 * time.Second)
	r.Duration = 2
	r.Top = []triage.RankedEntry{{ItemID: "a", Category: triage.CategoryActionRequired, Priority: triage.P0, TotalScore: 115}}
	if err := s.PutRun(ctx, r); err != nil {
		t.Fatalf("PutRun (update): %v", err)
	}

	got, _, err = s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	assertEqual(t, "Status", triage.StatusComplete, got.Status)
	assertEqual(t, "Items", 3, got.Items)
	assertEqual(t, "QuickWins", 1, got.QuickWins)
	assertEqual(t, "ByPriority[P2]", 2, got.ByPriority[triage.P2])
	assertEqual(t, "CompletedAt", r.CompletedAt.Unix(), got.CompletedAt.Unix())
	assertEqual(t, "Duration", 2.0, got.Duration)
	if len(got.Top) != 1 || got.Top[0].TotalScore != 115 {
		t.Errorf("Top = %+v", got.Top)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.GetRun(context.Background(), "nonexistent-run")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if ok {
		t.Fatal("GetRun returned ok=true for missing run")
	}
}

func TestActiveRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	// Source-scoped: use far-future creation times so older rows never win.
	active := &triage.Run{ID: uniqueID("act"), Source: item.SourceSlack, Status: triage.StatusInProgress, CreatedAt: future(time.Hour)}
	done := &triage.Run{ID: uniqueID("fin"), Source: item.SourceSlack, Status: triage.StatusComplete, CreatedAt: future(2 * time.Hour)}
	for _, r := range []*triage.Run{active, done} {
		if err := s.PutRun(ctx, r); err != nil {
			t.Fatalf("PutRun: %v", err)
		}
	}

	got, ok, err := s.ActiveRun(ctx, item.SourceSlack)
	if err != nil {
		t.Fatalf("ActiveRun: %v", err)
	}
	if !ok {
		t.Fatal("ActiveRun returned ok=false, want true")
	}
	assertEqual(t, "ID", active.ID, got.ID)

	active.Status = triage.StatusFailed
	if err := s.PutRun(ctx, active); err != nil {
		t.Fatalf("PutRun: %v", err)
	}
	got, ok, err = s.ActiveRun(ctx, item.SourceSlack)
	if err != nil {
		t.Fatalf("ActiveRun: %v", err)
	}
	if ok && got.ID == active.ID {
		t.Error("failed run still reported as active")
	}
}

func TestFailActiveRuns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	stuck := &triage.Run{ID: uniqueID("stuck"), Source: item.SourceTeams, Status: triage.StatusInProgress, CreatedAt: future(3 * time.Hour)}
	done := &triage.Run{ID: uniqueID("done"), Source: item.SourceTeams, Status: triage.StatusComplete, CreatedAt: future(3 * time.Hour)}
	for _, r := range []*triage.Run{stuck, done} {
		if err := s.PutRun(ctx, r); err != nil {
			t.Fatalf("PutRun: %v", err)
		}
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	n, err := s.FailActiveRuns(ctx, "abandoned", at)
	if err != nil {
		t.Fatalf("FailActiveRuns: %v", err)
	}
	if n < 1 {
		t.Errorf("FailActiveRuns = %d, want at least 1", n)
	}

	got, ok, err := s.GetRun(ctx, stuck.ID)
	if err != nil || !ok {
		t.Fatalf("GetRun: ok=%v err=%v", ok, err)
	}
	assertEqual(t, "Status", triage.StatusFailed, got.Status)
	assertEqual(t, "Error", "abandoned", got.Error)
	if !got.CompletedAt.Equal(at) {
		t.Errorf("CompletedAt: got %v, want %v", got.CompletedAt, at)
	}

	got, _, _ = s.GetRun(ctx, done.ID)
	assertEqual(t, "Status", triage.StatusComplete, got.Status)

	if _, ok, _ := s.ActiveRun(ctx, item.SourceTeams); ok {
		t.Error("teams source still has an active run")
	}
}

func assertEqual[T comparable](t *testing.T, field string, want, got T) {
	t.Helper()
	if want != got {
		t.Errorf("%s: got %v, want %v", field, got, want)
	}
}
