package triage

import (
	"strings"
	"time"

	"github.com/linnemanlabs/sieve/internal/item"
)

// Metadata keys read by ExtractContext.
const (
	MetaDueDate        = "dueDate"
	MetaPriority       = "priority"
	MetaImportance     = "importance"
	MetaUrgency        = "urgency"
	MetaHasAttachments = "hasAttachments"
	MetaAttachments    = "attachments"
	MetaChannelType    = "channelType"
	MetaChannelName    = "channelName"
	MetaIsDM           = "isDm"
	MetaStatus         = "status"
)

// priorityFields are checked for a "high" or "urgent" value.
var priorityFields = []string{MetaPriority, MetaImportance, MetaUrgency}

// ExtractContext derives scoring signals from an item. isVIP comes from an
// external resolver. now is the reference time for due dates and age.
// Missing or malformed metadata resolves to false.
func ExtractContext(it *item.Item, isVIP bool, now time.Time) ScoringContext {
	sc := ScoringContext{
		IsVIP:                isVIP,
		IsHighPrioritySource: isHighPriority(it.Metadata),
		HasAttachment:        it.Metadata.Bool(MetaHasAttachments) || it.Metadata.Len(MetaAttachments) > 0,
		IsThreadReply:        it.ThreadID != "" || len(it.ThreadContext) > 0,
		IsSlackDM:            isDirectMessage(it),
	}

	if due, ok := it.Metadata.Time(MetaDueDate, now.Location()); ok {
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		endOfDay := startOfDay.AddDate(0, 0, 1).Add(-time.Nanosecond)
		sc.IsOverdue = due.Before(startOfDay)
		sc.IsDueToday = !sc.IsOverdue && !due.After(endOfDay)
	}

	if !it.Timestamp.IsZero() {
		sc.AgeHours = now.Sub(it.Timestamp).Hours()
	}

	return sc
}

func isHighPriority(m item.Metadata) bool {
	for _, key := range priorityFields {
		switch strings.ToLower(strings.TrimSpace(m.String(key))) {
		case "high", "urgent":
			return true
		}
	}
	return false
}

// isDirectMessage reports whether a chat item arrived in a one-to-one
// channel. The modifier keeps its "Slack DM" name for every chat source.
func isDirectMessage(it *item.Item) bool {
	if it.Source.Kind() != item.KindChat {
		return false
	}
	if it.Metadata.Bool(MetaIsDM) {
		return true
	}
	switch strings.ToLower(it.Metadata.String(MetaChannelType)) {
	case "im", "dm", "direct_message", "oneonone":
		return true
	}
	return false
}
