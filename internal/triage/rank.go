package triage

import (
	"slices"
	"strings"

	"github.com/linnemanlabs/sieve/internal/item"
)

// Rank returns a copy of results ordered most urgent first: by tier, then by
// total score descending. Ties keep their input order.
func Rank(results []CategorizationResult) []CategorizationResult {
	out := slices.Clone(results)
	slices.SortStableFunc(out, compareResults)
	return out
}

func compareResults(a, b CategorizationResult) int {
	if d := a.Priority.Rank() - b.Priority.Rank(); d != 0 {
		return d
	}
	return b.Scoring.TotalScore - a.Scoring.TotalScore
}

// Summary aggregates counts over a set of results.
type Summary struct {
	Items      int              `json:"items"`
	Fallbacks  int              `json:"fallbacks"`
	QuickWins  int              `json:"quickWins"`
	ByPriority map[Tier]int     `json:"byPriority"`
	ByCategory map[Category]int `json:"byCategory"`
}

// Summarize counts results by outcome.
func Summarize(results []CategorizationResult) Summary {
	s := Summary{
		Items:      len(results),
		ByPriority: make(map[Tier]int),
		ByCategory: make(map[Category]int),
	}
	for i := range results {
		r := &results[i]
		if r.Fallback {
			s.Fallbacks++
		}
		if r.QuickWin {
			s.QuickWins++
		}
		s.ByPriority[r.Priority]++
		s.ByCategory[r.Category]++
	}
	return s
}

// TopEntries returns up to n ranked entries at or above the given tier, plus
// any quick wins, with subjects looked up from items by ID.
func TopEntries(items []item.Item, results []CategorizationResult, atOrAbove Tier, n int) []RankedEntry {
	subjects := make(map[string]string, len(items))
	for i := range items {
		subjects[items[i].ID] = items[i].Subject
	}

	var out []RankedEntry
	for _, r := range Rank(results) {
		if len(out) >= n {
			break
		}
		if r.Priority.Rank() > atOrAbove.Rank() && !r.QuickWin {
			continue
		}
		out = append(out, RankedEntry{
			ItemID:     r.ItemID,
			Subject:    strings.TrimSpace(subjects[r.ItemID]),
			Category:   r.Category,
			Priority:   r.Priority,
			TotalScore: r.Scoring.TotalScore,
			QuickWin:   r.QuickWin,
		})
	}
	return out
}
