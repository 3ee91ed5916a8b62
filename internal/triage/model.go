package triage

import (
	"strings"
	"time"

	"github.com/linnemanlabs/sieve/internal/item"
)

// Category is the validated classification of an item. Values only come from
// ParseCategory, so anything outside the five known categories never leaves
// the inference boundary.
type Category string

const (
	CategoryActionRequired Category = "Action-Required"
	CategoryFYI            Category = "FYI"
	CategoryDelegatable    Category = "Delegatable"
	CategorySpam           Category = "Spam"
	CategoryArchive        Category = "Archive"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryActionRequired,
	CategoryFYI,
	CategoryDelegatable,
	CategorySpam,
	CategoryArchive,
}

// ParseCategory maps a raw category string to a Category. Matching ignores
// case and surrounding whitespace; unrecognized values become FYI.
func ParseCategory(raw string) Category {
	s := strings.TrimSpace(raw)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return CategoryFYI
}

// Tier is a priority bucket, P0 being the most urgent.
type Tier string

const (
	P0 Tier = "P0"
	P1 Tier = "P1"
	P2 Tier = "P2"
	P3 Tier = "P3"
)

// Rank returns 0 for P0 through 3 for P3, and 4 for anything else.
func (t Tier) Rank() int {
	switch t {
	case P0:
		return 0
	case P1:
		return 1
	case P2:
		return 2
	case P3:
		return 3
	default:
		return 4
	}
}

// ScoringContext holds the signals derived from an item that feed scoring.
type ScoringContext struct {
	IsVIP                bool    `json:"isVip"`
	IsOverdue            bool    `json:"isOverdue"`
	IsDueToday           bool    `json:"isDueToday"`
	IsHighPrioritySource bool    `json:"isHighPrioritySource"`
	HasAttachment        bool    `json:"hasAttachment"`
	IsThreadReply        bool    `json:"isThreadReply"`
	IsSlackDM            bool    `json:"isSlackDm"`
	AgeHours             float64 `json:"ageHours"`
}

// Modifier is one additive score adjustment.
type Modifier struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// ScoringResult is the outcome of scoring one item.
type ScoringResult struct {
	BaseScore  int        `json:"baseScore"`
	Modifiers  []Modifier `json:"modifiers"`
	TotalScore int        `json:"totalScore"`
	Priority   Tier       `json:"priority"`
}

// Estimated-time labels produced by the quick-win detector.
const (
	Est1Min      = "1min"
	Est2Min      = "2min"
	Est3Min      = "3min"
	Est5Min      = "5min"
	Est15Min     = "15min"
	Est30Min     = "30min"
	Est1Hour     = "1hr"
	Est2HourPlus = "2hr+"
)

// QuickWinResult is the quick-win detector's verdict. An empty Reason means
// no reason applies.
type QuickWinResult struct {
	IsQuickWin    bool   `json:"isQuickWin"`
	Reason        string `json:"reason,omitempty"`
	EstimatedTime string `json:"estimatedTime"`
}

// CategorizationResult is the final per-item output of the pipeline.
type CategorizationResult struct {
	ItemID          string        `json:"itemId"`
	Category        Category      `json:"category"`
	Priority        Tier          `json:"priority"`
	Confidence      int           `json:"confidence"`
	QuickWin        bool          `json:"quickWin"`
	QuickWinReason  string        `json:"quickWinReason,omitempty"`
	EstimatedTime   string        `json:"estimatedTime"`
	Reasoning       string        `json:"reasoning"`
	SuggestedAction string        `json:"suggestedAction"`
	Scoring         ScoringResult `json:"scoring"`
	Fallback        bool          `json:"fallback,omitempty"`
	Model           string        `json:"model,omitempty"`
}

// Status tracks where a triage run is in its lifecycle.
type Status string

const (
	// StatusPending means created, not yet started
	StatusPending Status = "pending"

	// StatusInProgress means currently being processed
	StatusInProgress Status = "in_progress"

	// StatusComplete means finished successfully
	StatusComplete Status = "complete"

	// StatusFailed means finished with errors
	StatusFailed Status = "failed"
)

// Active reports whether a run with this status is still executing.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusInProgress
}

// Run is one pass of the pipeline over items selected from the store.
type Run struct {
	ID          string        `json:"id"`
	Source      item.Source   `json:"source,omitempty"`
	Status      Status        `json:"status"`
	Limit       int           `json:"limit"`
	Retriage    bool          `json:"retriage"`
	Error       string        `json:"error,omitempty"`
	Items       int           `json:"items"`
	Fallbacks   int           `json:"fallbacks"`
	QuickWins   int           `json:"quickWins"`
	ByPriority  map[Tier]int  `json:"byPriority,omitempty"`
	WriteErrors int           `json:"writeErrors,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	CompletedAt time.Time     `json:"completedAt,omitzero"`
	Duration    float64       `json:"durationSeconds,omitempty"`
	Top         []RankedEntry `json:"top,omitempty"`
}

// RankedEntry is a compact view of a high-ranking result kept on a Run.
type RankedEntry struct {
	ItemID     string   `json:"itemId"`
	Subject    string   `json:"subject,omitempty"`
	Category   Category `json:"category"`
	Priority   Tier     `json:"priority"`
	TotalScore int      `json:"totalScore"`
	QuickWin   bool     `json:"quickWin"`
}
