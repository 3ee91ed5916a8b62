package triage

// Base scores per category. Unknown categories score like FYI.
var baseScores = map[Category]int{
	CategoryActionRequired: 60,
	CategoryDelegatable:    40,
	CategoryFYI:            20,
	CategorySpam:           0,
	CategoryArchive:        0,
}

const defaultBaseScore = 20

// Modifier names and values, listed in evaluation order.
const (
	ModVIP          = "VIP sender"
	ModOverdue      = "Overdue"
	ModDueToday     = "Due today"
	ModHighPriority = "High priority"
	ModAttachment   = "Has attachment"
	ModThreadReply  = "Thread reply"
	ModSlackDM      = "Slack DM"
	ModAged         = "Older than 48h"

	vipBonus          = 30
	overdueBonus      = 25
	dueTodayBonus     = 15
	highPriorityBonus = 20
	attachmentBonus   = 5
	threadReplyBonus  = 10
	slackDMBonus      = 10
	agedBonus         = 5

	agedThresholdHours = 48
)

// Tier thresholds are inclusive lower bounds.
const (
	p0Threshold = 80
	p1Threshold = 60
	p2Threshold = 40
)

// BaseScore returns the base score for a category.
func BaseScore(c Category) int {
	if s, ok := baseScores[c]; ok {
		return s
	}
	return defaultBaseScore
}

// TierFor maps a total score to its priority tier.
func TierFor(total int) Tier {
	switch {
	case total >= p0Threshold:
		return P0
	case total >= p1Threshold:
		return P1
	case total >= p2Threshold:
		return P2
	default:
		return P3
	}
}

// Score computes the priority score for a category and its scoring context.
// Modifiers are appended in a fixed order so identical inputs always yield
// identical results.
func Score(c Category, sc ScoringContext) ScoringResult {
	base := BaseScore(c)
	mods := make([]Modifier, 0, 8)

	add := func(on bool, name string, value int) {
		if on {
			mods = append(mods, Modifier{Name: name, Value: value})
		}
	}

	add(sc.IsVIP, ModVIP, vipBonus)
	add(sc.IsOverdue, ModOverdue, overdueBonus)
	// due today and overdue are mutually exclusive
	add(sc.IsDueToday && !sc.IsOverdue, ModDueToday, dueTodayBonus)
	add(sc.IsHighPrioritySource, ModHighPriority, highPriorityBonus)
	add(sc.HasAttachment, ModAttachment, attachmentBonus)
	add(sc.IsThreadReply, ModThreadReply, threadReplyBonus)
	add(sc.IsSlackDM, ModSlackDM, slackDMBonus)
	add(sc.AgeHours > agedThresholdHours, ModAged, agedBonus)

	total := base
	for _, m := range mods {
		total += m.Value
	}

	return ScoringResult{
		BaseScore:  base,
		Modifiers:  mods,
		TotalScore: total,
		Priority:   TierFor(total),
	}
}
