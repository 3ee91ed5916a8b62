package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sieve/internal/triage"
)

// compile-time check
var _ triage.Notifier = (*Notifier)(nil)

func testRun() *triage.Run {
	return &triage.Run{
		ID:         "01JN123",
		Status:     triage.StatusComplete,
		Items:      12,
		Fallbacks:  1,
		QuickWins:  2,
		ByPriority: map[triage.Tier]int{triage.P0: 1, triage.P1: 1, triage.P2: 4, triage.P3: 6},
		Duration:   23.4,
		CreatedAt:  time.Date(2026, 2, 26, 14, 22, 0, 0, time.UTC),
		Top: []triage.RankedEntry{
			{ItemID: "a", Subject: "Approve Q3 budget", Category: triage.CategoryActionRequired, Priority: triage.P0, TotalScore: 115},
			{ItemID: "b", Subject: "Contract <review>", Category: triage.CategoryActionRequired, Priority: triage.P1, TotalScore: 70, QuickWin: true},
			{ItemID: "c", Subject: "Can you confirm?", Category: triage.CategoryDelegatable, Priority: triage.P2, TotalScore: 45, QuickWin: true},
		},
	}
}

func blockText(t *testing.T, block any) string {
	t.Helper()
	m, ok := block.(map[string]any)
	if !ok {
		t.Fatalf("block = %T, want object", block)
	}
	text, ok := m["text"].(map[string]any)
	if !ok {
		t.Fatalf("block %v has no text", m["type"])
	}
	return text["text"].(string)
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		var got map[string]any
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		bodies <- got
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	run := testRun()
	run.CompletedAt = time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC)

	n := New(srv.URL, log.Nop(), triage.P1)
	if err := n.Send(context.Background(), run); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := <-bodies

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, urgent, quick wins, divider, context = 8 blocks
	if len(blocks) != 8 {
		t.Fatalf("blocks count = %d, want 8", len(blocks))
	}

	header := blockText(t, blocks[0])
	if !strings.Contains(header, "12 items from all sources") {
		t.Errorf("header = %q", header)
	}
	if !strings.Contains(header, "\U0001f534") {
		t.Error("header should contain red circle when a P0 item is present")
	}

	urgent := blockText(t, blocks[4])
	if !strings.Contains(urgent, "*P1 and above*") || !strings.Contains(urgent, "Approve Q3 budget") {
		t.Errorf("urgent block = %q", urgent)
	}
	if !strings.Contains(urgent, "Contract &lt;review&gt;") {
		t.Errorf("urgent block should escape subjects: %q", urgent)
	}
	if strings.Contains(urgent, "Can you confirm?") {
		t.Error("P2 item listed among urgent items")
	}

	quick := blockText(t, blocks[5])
	if !strings.Contains(quick, "Can you confirm?") || strings.Contains(quick, "Approve Q3 budget") {
		t.Errorf("quick wins block = %q", quick)
	}

	ctxText := blocks[7].(map[string]any)["elements"].([]any)[0].(map[string]any)["text"].(string)
	if !strings.Contains(ctxText, "run 01JN123") || !strings.Contains(ctxText, "2026-02-26 14:23 UTC") {
		t.Errorf("context = %q", ctxText)
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", log.Nop(), triage.P1)
	if err := n.Send(context.Background(), testRun()); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_SkipsEmptyDigest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	run := testRun()
	run.Top = []triage.RankedEntry{{ItemID: "x", Priority: triage.P2}}

	if err := New(srv.URL, nil, triage.P1).Send(context.Background(), run); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("webhook calls = %d, want 0", n)
	}
}

func TestNew_MinPriority(t *testing.T) {
	t.Parallel()

	if got := New("u", nil, "").minPriority; got != triage.P1 {
		t.Errorf("default min priority = %q, want P1", got)
	}
	if got := New("u", nil, triage.P0).minPriority; got != triage.P0 {
		t.Errorf("min priority = %q, want P0", got)
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	top := testRun().Top

	tests := []struct {
		min        triage.Tier
		wantUrgent int
		wantQuick  int
	}{
		{triage.P0, 1, 2},
		{triage.P1, 2, 1},
		{triage.P2, 3, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.min), func(t *testing.T) {
			t.Parallel()
			urgent, quick := New("u", nil, tt.min).split(top)
			if len(urgent) != tt.wantUrgent || len(quick) != tt.wantQuick {
				t.Errorf("split = %d urgent, %d quick; want %d, %d", len(urgent), len(quick), tt.wantUrgent, tt.wantQuick)
			}
		})
	}
}

func TestListBlock_CapsEntries(t *testing.T) {
	t.Parallel()

	entries := make([]triage.RankedEntry, maxListed+3)
	for i := range entries {
		entries[i] = triage.RankedEntry{ItemID: fmt.Sprint(i), Subject: fmt.Sprintf("item %d", i), Priority: triage.P1}
	}

	text := listBlock("*P1 and above*", entries, "none")["text"].(map[string]any)["text"].(string)
	if got := strings.Count(text, "• "); got != maxListed {
		t.Errorf("listed = %d, want %d", got, maxListed)
	}
	if !strings.Contains(text, "_and 3 more_") {
		t.Errorf("text = %q, want overflow note", text)
	}

	empty := listBlock("*Quick wins*", nil, "_No quick wins._")["text"].(map[string]any)["text"].(string)
	if !strings.HasSuffix(empty, "_No quick wins._") {
		t.Errorf("empty list = %q", empty)
	}
}

func TestTierEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tier triage.Tier
		want string
	}{
		{triage.P0, "\U0001f534"},
		{triage.P1, "\U0001f7e0"},
		{triage.P2, "\U0001f7e1"},
		{triage.P3, "\U0001f7e2"},
		{"", "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			t.Parallel()
			if got := tierEmoji(tt.tier); got != tt.want {
				t.Errorf("tierEmoji(%q) = %q, want %q", tt.tier, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	got := truncate(strings.Repeat("é", 200), maxSubjectLen)
	if n := len([]rune(got)); n != maxSubjectLen {
		t.Errorf("truncated rune count = %d, want %d", n, maxSubjectLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("expected truncated subject to end with ...")
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("Approve budget", "P0", "Action-Required", 115)
	f.Add("", "", "", 0)
	f.Add("<@U123> mention", "P1", "FYI", -5)
	f.Add("subj\x00\x01\x02", "P\n2", "cat\ttab", 40)
	f.Add(strings.Repeat("A", 5000), "P3", "Spam", 1<<30)
	f.Add("```code block``` and <http://example.com|link>", "P2", "Archive", 55)

	f.Fuzz(func(t *testing.T, subject, priority, category string, score int) {
		entry := triage.RankedEntry{
			ItemID:     "fuzz-id",
			Subject:    subject,
			Priority:   triage.Tier(priority),
			Category:   triage.Category(category),
			TotalScore: score,
		}
		run := &triage.Run{ID: "fuzz-run", Status: triage.StatusComplete, Items: 1, Top: []triage.RankedEntry{entry}}

		// Must not panic
		msg := buildMessage(run, triage.P1, []triage.RankedEntry{entry}, []triage.RankedEntry{entry})

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 8 {
			t.Fatalf("blocks count = %d, want 8", len(blocks))
		}
	})
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop(), triage.P1)
	err := n.Send(context.Background(), testRun())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
