// Package slack posts triage run digests to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/sieve/internal/triage"
)

const (
	maxSubjectLen = 120
	maxListed     = 10
	httpTimeout   = 10 * time.Second
)

// Notifier sends run digests to a Slack webhook.
type Notifier struct {
	webhookURL  string
	minPriority triage.Tier
	logger      log.Logger
	client      *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
// Items below minPriority are left out of the digest unless they are quick
// wins; an unknown minPriority means P1.
func New(webhookURL string, logger log.Logger, minPriority triage.Tier) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	if minPriority.Rank() > triage.P3.Rank() {
		minPriority = triage.P1
	}
	return &Notifier{
		webhookURL:  webhookURL,
		minPriority: minPriority,
		logger:      logger,
		client:      &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a digest of a completed run. Nothing is sent when no webhook
// is configured or when the run has nothing worth surfacing.
func (n *Notifier) Send(ctx context.Context, run *triage.Run) error {
	if n.webhookURL == "" {
		return nil
	}

	urgent, quick := n.split(run.Top)
	if len(urgent) == 0 && len(quick) == 0 {
		n.logger.Info(ctx, "slack digest skipped, nothing to report", "run_id", run.ID, "min_priority", n.minPriority)
		return nil
	}

	msg := buildMessage(run, n.minPriority, urgent, quick)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// split separates entries at or above the minimum priority from quick wins
// below it. Top is already ranked.
func (n *Notifier) split(top []triage.RankedEntry) (urgent, quick []triage.RankedEntry) {
	for _, e := range top {
		switch {
		case e.Priority.Rank() <= n.minPriority.Rank():
			urgent = append(urgent, e)
		case e.QuickWin:
			quick = append(quick, e)
		}
	}
	return urgent, quick
}

func buildMessage(run *triage.Run, minPriority triage.Tier, urgent, quick []triage.RankedEntry) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(run, urgent),
			{"type": "divider"},
			fieldsBlock(run),
			{"type": "divider"},
			listBlock(fmt.Sprintf("*%s and above*", minPriority), urgent, "_Nothing urgent._"),
			listBlock("*Quick wins*", quick, "_No quick wins._"),
			{"type": "divider"},
			contextBlock(run),
		},
	}
}

func headerBlock(run *triage.Run, urgent []triage.RankedEntry) map[string]any {
	top := triage.Tier("")
	if len(urgent) > 0 {
		top = urgent[0].Priority
	}
	source := string(run.Source)
	if source == "" {
		source = "all sources"
	}
	text := fmt.Sprintf("%s Triage digest: %d items from %s", tierEmoji(top), run.Items, source)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(run *triage.Run) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Items:* %d", run.Items),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Quick wins:* %d", run.QuickWins),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Fallbacks:* %d", run.Fallbacks),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", run.Duration),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*By priority:* P0 %d · P1 %d · P2 %d · P3 %d",
				run.ByPriority[triage.P0], run.ByPriority[triage.P1], run.ByPriority[triage.P2], run.ByPriority[triage.P3]),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func listBlock(title string, entries []triage.RankedEntry, empty string) map[string]any {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")
	if len(entries) == 0 {
		sb.WriteString(empty)
	}
	for i, e := range entries {
		if i == maxListed {
			fmt.Fprintf(&sb, "_and %d more_\n", len(entries)-maxListed)
			break
		}
		subject := truncate(escape(e.Subject), maxSubjectLen)
		if subject == "" {
			subject = "_(no subject)_"
		}
		fmt.Fprintf(&sb, "• *%s* %s · %s (score %d)\n", e.Priority, subject, e.Category, e.TotalScore)
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": strings.TrimRight(sb.String(), "\n"),
		},
	}
}

func contextBlock(run *triage.Run) map[string]any {
	ts := run.CompletedAt
	if ts.IsZero() {
		ts = run.CreatedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("sieve • run %s • %s", run.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func tierEmoji(t triage.Tier) string {
	switch t {
	case triage.P0:
		return "\U0001f534" // red circle
	case triage.P1:
		return "\U0001f7e0" // orange circle
	case triage.P2:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

// escape neutralizes the characters Slack treats as control sequences.
func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}
