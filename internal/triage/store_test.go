package triage

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestNewRecord(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	r := &CategorizationResult{
		ItemID:          "it-1",
		Category:        CategoryActionRequired,
		Priority:        P0,
		Confidence:      9,
		QuickWin:        true,
		QuickWinReason:  "Quick question",
		EstimatedTime:   Est5Min,
		Reasoning:       "Customer escalation.",
		SuggestedAction: "Call back",
		Scoring:         ScoringResult{BaseScore: 60, TotalScore: 90, Priority: P0},
	}

	rec := NewRecord("run-1", r, at)

	if rec.ItemID != "it-1" || rec.RunID != "run-1" {
		t.Errorf("ids = %q/%q", rec.ItemID, rec.RunID)
	}
	if rec.Priority != P0 || rec.Category != CategoryActionRequired || rec.Confidence != 9 || rec.Score != 90 {
		t.Errorf("record = %+v", rec)
	}
	if !rec.QuickWin || rec.QuickWinReason != "Quick question" || rec.EstimatedTime != Est5Min {
		t.Errorf("quick win fields = %v %q %q", rec.QuickWin, rec.QuickWinReason, rec.EstimatedTime)
	}
	if !rec.TriagedAt.Equal(at) {
		t.Errorf("TriagedAt = %s, want %s", rec.TriagedAt, at)
	}
}

func TestNewRecord_Truncates(t *testing.T) {
	t.Parallel()

	r := &CategorizationResult{
		ItemID:          "it-2",
		Reasoning:       strings.Repeat("é", 800),
		SuggestedAction: strings.Repeat("x", 250),
	}

	rec := NewRecord("", r, time.Time{})

	if n := utf8.RuneCountInString(rec.Reasoning); n != MaxRecordReasoning {
		t.Errorf("reasoning runes = %d, want %d", n, MaxRecordReasoning)
	}
	if !strings.HasSuffix(rec.Reasoning, "...") {
		t.Error("truncated reasoning should end with ...")
	}
	if n := utf8.RuneCountInString(rec.SuggestedAction); n != MaxRecordAction {
		t.Errorf("action runes = %d, want %d", n, MaxRecordAction)
	}
	if !utf8.ValidString(rec.Reasoning) {
		t.Error("truncation split a rune")
	}
}

func TestNewRecord_ShortTextUntouched(t *testing.T) {
	t.Parallel()

	r := &CategorizationResult{Reasoning: "fine", SuggestedAction: "Reply"}
	rec := NewRecord("run", r, time.Time{})

	if rec.Reasoning != "fine" || rec.SuggestedAction != "Reply" {
		t.Errorf("got %q/%q", rec.Reasoning, rec.SuggestedAction)
	}
}
