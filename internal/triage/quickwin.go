package triage

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/linnemanlabs/sieve/internal/item"
)

// shortMessageLen is the body preview length below which an otherwise
// unmatched item still counts as a quick win.
const shortMessageLen = 100

const shortMessageReason = "short message"

// Disqualifiers mark non-trivial work. They are checked before any quick-win
// pattern: a trailing question mark on a request to plan a quarter's roadmap
// is not a yes/no decision.
var disqualifiers = []*regexp.Regexp{
	// meetings and scheduling
	regexp.MustCompile(`\b(meeting|meet up|schedule|scheduling|reschedule|calendar|invite|one-on-one|1:1|sync[- ]?up)\b`),
	// documentation
	regexp.MustCompile(`\b(document|documentation|write[- ]?up|spec|specification|proposal|runbook)\b`),
	// investigation and research
	regexp.MustCompile(`\b(investigate|investigation|research|analy[sz]e|analysis|root cause|troubleshoot|debug)\b`),
	// building and implementing
	regexp.MustCompile(`\b(build|implement|implementation|develop|refactor|migrate|migration|set up|design)\b`),
	// stated complexity
	regexp.MustCompile(`\b(complex|complicated|in-depth|in depth|comprehensive|significant effort)\b`),
	// projects and milestones
	regexp.MustCompile(`\b(project|milestone|roadmap|deliverable|initiative|sprint planning)\b`),
}

type quickWinPattern struct {
	re     *regexp.Regexp
	reason string
	time   string
}

// quickWinPatterns are tried in order; the first match wins.
var quickWinPatterns = []quickWinPattern{
	{
		re:     regexp.MustCompile(`\b(approve|approval|sign[- ]off|yes or no|yes/no|ok to|okay to|is it ok|is it okay|should (i|we)|can (i|we)|do you want|go ahead)\b[^?]*\?`),
		reason: "Simple yes/no decision",
		time:   Est2Min,
	},
	{
		re:     regexp.MustCompile(`\b(please acknowledge|acknowledge receipt|please ack|ack please|confirm receipt|let me know (you|that you) (got|received))\b`),
		reason: "Acknowledgment only",
		time:   Est1Min,
	},
	{
		re:     regexp.MustCompile(`\b(fyi|for your information|no action (needed|required)|just so you know|heads[- ]up)\b`),
		reason: "FYI - read only",
		time:   Est1Min,
	},
	{
		re:     regexp.MustCompile(`\b(quick question|one question|quick q|real quick|a quick one)\b`),
		reason: "Quick question",
		time:   Est5Min,
	},
	{
		re:     regexp.MustCompile(`\b(quick (look|review|glance)|take a quick look|sanity check|quick feedback|lgtm)\b`),
		reason: "Quick review",
		time:   Est5Min,
	},
	{
		re:     regexp.MustCompile(`\b(pre-?approved|already approved|ship it|rubber[- ]stamp|just need your (ok|okay|thumbs up))\b`),
		reason: "Pre-approved, just confirm",
		time:   Est2Min,
	},
}

type durationHint struct {
	re   *regexp.Regexp
	time string
}

// durationHints map wording in the text to an estimate, first match wins.
var durationHints = []durationHint{
	{regexp.MustCompile(`\b(complex|complicated|comprehensive)\b`), Est2HourPlus},
	{regexp.MustCompile(`\b(detailed|long|lengthy|thorough)\b`), Est1Hour},
	{regexp.MustCompile(`\b(quick|brief|short)\b`), Est5Min},
}

// DetectQuickWinItem runs the quick-win detector over an item's text.
func DetectQuickWinItem(it *item.Item) QuickWinResult {
	return DetectQuickWin(it.Subject, it.BodyPreview)
}

// DetectQuickWin decides whether the subject and body preview describe work
// that can be cleared in a few minutes. It never fails and has no side
// effects.
func DetectQuickWin(subject, bodyPreview string) QuickWinResult {
	text := strings.ToLower(strings.TrimSpace(subject + " " + bodyPreview))

	for _, re := range disqualifiers {
		if re.MatchString(text) {
			return QuickWinResult{EstimatedTime: EstimateTime(text)}
		}
	}

	for _, p := range quickWinPatterns {
		if p.re.MatchString(text) {
			return QuickWinResult{IsQuickWin: true, Reason: p.reason, EstimatedTime: p.time}
		}
	}

	if utf8.RuneCountInString(bodyPreview) < shortMessageLen {
		return QuickWinResult{IsQuickWin: true, Reason: shortMessageReason, EstimatedTime: Est3Min}
	}

	return QuickWinResult{EstimatedTime: EstimateTime(text)}
}

// EstimateTime guesses how long the work in text takes, first from duration
// wording and then from its length.
func EstimateTime(text string) string {
	lower := strings.ToLower(text)
	for _, h := range durationHints {
		if h.re.MatchString(lower) {
			return h.time
		}
	}

	switch n := utf8.RuneCountInString(text); {
	case n < 200:
		return Est5Min
	case n < 500:
		return Est15Min
	case n < 1000:
		return Est30Min
	default:
		return Est1Hour
	}
}
