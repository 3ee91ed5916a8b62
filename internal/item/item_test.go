package item

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSource_Kind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  Source
		want Kind
	}{
		{SourceOutlook, KindEmail},
		{SourceGmail, KindEmail},
		{SourceSlack, KindChat},
		{SourceTeams, KindChat},
		{SourceJira, KindTicket},
		{SourceServiceNow, KindTicket},
		{Source("fax"), KindUnknown},
		{Source(""), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.src), func(t *testing.T) {
			t.Parallel()
			if got := tt.src.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
			if got := tt.src.Valid(); got != (tt.want != KindUnknown) {
				t.Errorf("Valid() = %v", got)
			}
		})
	}
}

func TestSender_Display(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    Sender
		want string
	}{
		{"name and address", Sender{Name: "Ada", Address: "ada@example.com"}, "Ada <ada@example.com>"},
		{"name only", Sender{Name: "Ada"}, "Ada"},
		{"address only", Sender{Address: "ada@example.com"}, "ada@example.com"},
		{"user id only", Sender{UserID: "U123"}, "U123"},
		{"empty", Sender{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.s.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestItem_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		subject, body, want string
	}{
		{"Hello", "world", "Hello world"},
		{"Hello", "", "Hello"},
		{"", "world", "world"},
		{"", "", ""},
	}
	for _, tt := range tests {
		it := Item{Subject: tt.subject, BodyPreview: tt.body}
		if got := it.Text(); got != tt.want {
			t.Errorf("Text(%q, %q) = %q, want %q", tt.subject, tt.body, got, tt.want)
		}
	}
}

func TestItem_JSONFieldNames(t *testing.T) {
	t.Parallel()

	raw := `{
		"id": "it-1",
		"source": "jira",
		"sourceId": "OPS-12",
		"itemType": "issue",
		"timestamp": "2026-03-01T10:00:00Z",
		"from": {"name": "Ada", "address": "ada@example.com"},
		"subject": "Disk full",
		"bodyPreview": "db01 is at 99%",
		"threadId": "t-9",
		"threadContext": [{"from": "Bob", "body": "any update?"}],
		"metadata": {"priority": "High", "hasAttachments": true},
		"readStatus": false
	}`

	var it Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.ID != "it-1" || it.Source != SourceJira || it.SourceID != "OPS-12" {
		t.Errorf("identity fields = %+v", it)
	}
	if it.From.Display() != "Ada <ada@example.com>" {
		t.Errorf("from = %q", it.From.Display())
	}
	if len(it.ThreadContext) != 1 || it.ThreadContext[0].Body != "any update?" {
		t.Errorf("threadContext = %+v", it.ThreadContext)
	}
	if it.Metadata.String("priority") != "High" {
		t.Errorf("metadata priority = %q", it.Metadata.String("priority"))
	}
	if !it.Metadata.Bool("hasAttachments") {
		t.Error("metadata hasAttachments = false, want true")
	}
	if !it.Timestamp.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp = %v", it.Timestamp)
	}
}

func TestMetadata_Accessors(t *testing.T) {
	t.Parallel()

	m := Metadata{
		"s":       "urgent",
		"n":       float64(3),
		"b":       true,
		"bs":      "Yes",
		"list":    []any{"a", "b"},
		"strs":    []string{"a"},
		"empty":   []any{},
		"obj":     map[string]any{"k": 1},
		"garbage": struct{}{},
	}

	if got := m.String("s"); got != "urgent" {
		t.Errorf("String(s) = %q", got)
	}
	if got := m.String("n"); got != "3" {
		t.Errorf("String(n) = %q", got)
	}
	if got := m.String("missing"); got != "" {
		t.Errorf("String(missing) = %q", got)
	}
	if got := m.String("garbage"); got != "" {
		t.Errorf("String(garbage) = %q", got)
	}
	if !m.Bool("b") || !m.Bool("bs") || !m.Bool("n") {
		t.Error("Bool should accept true, \"Yes\" and non-zero numbers")
	}
	if m.Bool("s") || m.Bool("missing") {
		t.Error("Bool should be false for non-boolean strings and missing keys")
	}
	if m.Len("list") != 2 || m.Len("strs") != 1 || m.Len("empty") != 0 || m.Len("obj") != 1 {
		t.Error("Len returned unexpected lengths")
	}
	if m.Len("garbage") != 0 || m.Len("missing") != 0 {
		t.Error("Len should be 0 for unsupported or missing values")
	}

	var nilMeta Metadata
	if nilMeta.Bool("x") || nilMeta.String("x") != "" || nilMeta.Len("x") != 0 {
		t.Error("nil Metadata should behave as empty")
	}
}

func TestMetadata_Time(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("test", -5*3600)
	ref := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  any
		want   time.Time
		wantOK bool
	}{
		{"rfc3339", "2026-05-04T12:00:00Z", ref, true},
		{"rfc3339 offset", "2026-05-04T07:00:00-05:00", ref, true},
		{"date only in loc", "2026-05-04", time.Date(2026, 5, 4, 0, 0, 0, 0, loc), true},
		{"time value", ref, ref, true},
		{"zero time", time.Time{}, time.Time{}, false},
		{"blank", "  ", time.Time{}, false},
		{"garbage", "next tuesday", time.Time{}, false},
		{"number", float64(12), time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Metadata{"due": tt.value}.Time("due", loc)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("Time() = %v, want %v", got, tt.want)
			}
		})
	}
}
