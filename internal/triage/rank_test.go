package triage

import (
	"testing"

	"github.com/linnemanlabs/sieve/internal/item"
)

func result(id string, tier Tier, total int, quick bool) CategorizationResult {
	return CategorizationResult{
		ItemID:   id,
		Category: CategoryActionRequired,
		Priority: tier,
		QuickWin: quick,
		Scoring:  ScoringResult{TotalScore: total, Priority: tier},
	}
}

func ids(results []CategorizationResult) []string {
	out := make([]string, len(results))
	for i := range results {
		out[i] = results[i].ItemID
	}
	return out
}

func TestRank(t *testing.T) {
	t.Parallel()

	in := []CategorizationResult{
		result("a", P3, 20, false),
		result("b", P0, 85, false),
		result("c", P1, 60, false),
		result("d", P0, 115, false),
		result("e", P1, 60, false),
	}

	got := ids(Rank(in))
	want := []string{"d", "b", "c", "e", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rank = %v, want %v", got, want)
		}
	}

	// input untouched
	if in[0].ItemID != "a" {
		t.Error("Rank mutated its input")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	in := []CategorizationResult{
		result("a", P0, 90, true),
		result("b", P0, 80, false),
		{ItemID: "c", Category: CategoryFYI, Priority: P3, Fallback: true},
	}

	s := Summarize(in)
	if s.Items != 3 || s.Fallbacks != 1 || s.QuickWins != 1 {
		t.Errorf("Summary = %+v", s)
	}
	if s.ByPriority[P0] != 2 || s.ByPriority[P3] != 1 {
		t.Errorf("ByPriority = %v", s.ByPriority)
	}
	if s.ByCategory[CategoryActionRequired] != 2 || s.ByCategory[CategoryFYI] != 1 {
		t.Errorf("ByCategory = %v", s.ByCategory)
	}
}

func TestTopEntries(t *testing.T) {
	t.Parallel()

	items := []item.Item{
		{ID: "a", Subject: " Outage "},
		{ID: "b", Subject: "Lunch?"},
		{ID: "c", Subject: "Newsletter"},
		{ID: "d", Subject: "Contract"},
	}
	results := []CategorizationResult{
		result("a", P0, 100, false),
		result("b", P3, 30, true),
		result("c", P3, 0, false),
		result("d", P1, 65, false),
	}

	got := TopEntries(items, results, P1, 10)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	if got[0].ItemID != "a" || got[0].Subject != "Outage" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].ItemID != "d" || got[2].ItemID != "b" || !got[2].QuickWin {
		t.Errorf("order = %s %s", got[1].ItemID, got[2].ItemID)
	}

	if capped := TopEntries(items, results, P1, 1); len(capped) != 1 {
		t.Errorf("cap: len = %d, want 1", len(capped))
	}
}
