package triage

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/sieve/internal/item"
)

const (
	maxPromptBody    = 500
	maxThreadEntries = 3
	maxThreadBody    = 200
)

// systemPrompt describes the categories and the response shape.
const systemPrompt = `You triage inbound work items (emails, chat messages, helpdesk tickets) for a single busy operator.

Classify the item into exactly one category:
- Action-Required: the operator personally needs to do something (reply, decide, fix, approve).
- FYI: informational; worth reading but no action needed.
- Delegatable: needs action, but someone else on the team could handle it.
- Spam: unsolicited, marketing, phishing or irrelevant bulk content.
- Archive: automated notifications, receipts or resolved threads that need no attention.

Respond with a single JSON object and nothing else:
{
  "category": "Action-Required" | "FYI" | "Delegatable" | "Spam" | "Archive",
  "confidence": <integer 1-10>,
  "reasoning": "<one or two sentences>",
  "suggestedAction": "<short imperative next step>"
}`

// buildPrompt renders the user prompt for one item.
func buildPrompt(it *item.Item, isVIP bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Source: %s (%s)\n", it.Source, it.Source.Kind())
	fmt.Fprintf(&sb, "From: %s\n", it.From.Display())
	if isVIP {
		sb.WriteString("Sender is a VIP: yes\n")
	} else {
		sb.WriteString("Sender is a VIP: no\n")
	}
	if it.Subject != "" {
		fmt.Fprintf(&sb, "Subject: %s\n", it.Subject)
	}
	if !it.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "Received: %s\n", it.Timestamp.Format(time.RFC3339))
	}
	if it.ItemType != "" {
		fmt.Fprintf(&sb, "Type: %s\n", it.ItemType)
	}

	for _, f := range sourceFields(it) {
		fmt.Fprintf(&sb, "%s: %s\n", f[0], f[1])
	}

	if it.BodyPreview != "" {
		fmt.Fprintf(&sb, "\nContent:\n%s\n", truncateRunes(it.BodyPreview, maxPromptBody))
	}

	if n := len(it.ThreadContext); n > 0 {
		sb.WriteString("\nRecent thread messages (oldest first):\n")
		start := max(n-maxThreadEntries, 0)
		for _, m := range it.ThreadContext[start:] {
			from := m.From
			if from == "" {
				from = "unknown"
			}
			fmt.Fprintf(&sb, "- %s: %s\n", from, truncateRunes(m.Body, maxThreadBody))
		}
	}

	return sb.String()
}

// sourceFields returns the metadata worth showing for the item's kind of
// source, as label/value pairs. Empty values are skipped.
func sourceFields(it *item.Item) [][2]string {
	var keys [][2]string
	switch it.Source.Kind() {
	case item.KindTicket:
		keys = [][2]string{{"Due date", MetaDueDate}, {"Status", MetaStatus}, {"Priority", MetaPriority}, {"Urgency", MetaUrgency}}
	case item.KindChat:
		keys = [][2]string{{"Channel", MetaChannelName}, {"Channel type", MetaChannelType}}
	case item.KindEmail:
		keys = [][2]string{{"Importance", MetaImportance}, {"Has attachments", MetaHasAttachments}, {"Due date", MetaDueDate}}
	}

	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		if v := it.Metadata.String(k[1]); v != "" {
			out = append(out, [2]string{k[0], v})
		}
	}
	return out
}

// truncateRunes shortens s to at most limit runes, appending "..." when cut.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= 3 {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-3]) + "..."
}
