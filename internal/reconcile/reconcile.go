// Package reconcile merges the two extraction paths into one authoritative
// dialogue sequence.
//
// The AI extraction path has no structural guarantee of completeness — it is
// a general-purpose document model, not a screenplay parser — while the
// heuristic parser is complete-by-construction for well-formed screenplay
// text but brittle against unusual formatting. Neither is sufficient alone,
// so [Merge] cross-checks them: a strictly longer heuristic sequence wins
// wholesale, otherwise heuristic lines absent from the AI output are folded
// in and the union is re-sorted by source position.
package reconcile

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/readingpartner/scriptpipe/pkg/script"
	"github.com/readingpartner/scriptpipe/pkg/script/screenplay"
)

// similarityThreshold is the Jaro-Winkler score above which two normalized
// line texts are treated as the same line. Catches OCR quirks (smart quotes,
// stray hyphens) that defeat exact comparison without letting genuinely
// different lines collapse.
const similarityThreshold = 0.93

// Result carries the merged sequence and the diagnostics gathered on the way.
type Result struct {
	// Lines is the authoritative, reindexed dialogue sequence.
	Lines []script.DialogueLine

	// OrderIssues lists contiguity violations found in the AI sequence.
	// Diagnostics only — the offending lines are kept.
	OrderIssues []script.OrderIssue

	// HeuristicPreferred is true when the heuristic sequence replaced the AI
	// sequence wholesale.
	HeuristicPreferred bool

	// Recovered is the number of heuristic lines appended because the AI
	// output was missing them.
	Recovered int
}

// Merge reconciles the AI-extracted line list against the verbatim text.
// It never discards an AI line and never fails: worst case the result is
// whichever single sequence was available. The returned sequence always
// satisfies the contiguous-order invariant.
func Merge(aiLines []script.DialogueLine, verbatim string) *Result {
	res := &Result{}

	res.OrderIssues = script.ValidateOrder(aiLines)
	for _, issue := range res.OrderIssues {
		slog.Warn("ai line sequence has an order gap", "issue", issue.String())
	}

	heuristic := screenplay.ExtractLines(verbatim)

	// A strictly longer heuristic sequence is evidence the AI path
	// under-extracted, e.g. missed continuations after action blocks.
	if len(heuristic) > len(aiLines) {
		slog.Info("heuristic sequence preferred over ai extraction",
			"heuristic_lines", len(heuristic),
			"ai_lines", len(aiLines),
		)
		res.HeuristicPreferred = true
		res.Lines = script.Reindex(heuristic)
		return res
	}

	merged := make([]script.DialogueLine, len(aiLines))
	copy(merged, aiLines)

	for _, h := range heuristic {
		if !containsLine(merged, h.Text) {
			slog.Warn("recovering line missing from ai extraction",
				"character", h.Character,
				"text", h.Text,
			)
			merged = append(merged, h)
			res.Recovered++
		}
	}

	sortBySourcePosition(merged, verbatim)
	res.Lines = script.Reindex(merged)
	return res
}

// containsLine reports whether any line in lines carries text matching want,
// by exact normalized comparison or by near-duplicate similarity.
func containsLine(lines []script.DialogueLine, want string) bool {
	norm := script.NormalizeText(want)
	for _, l := range lines {
		cand := script.NormalizeText(l.Text)
		if cand == norm {
			return true
		}
		if matchr.JaroWinkler(cand, norm, false) >= similarityThreshold {
			return true
		}
	}
	return false
}

// sortBySourcePosition stably orders lines by the byte offset of their first
// match within the verbatim text. Lines not found in the text keep their
// relative order and sink to the end.
func sortBySourcePosition(lines []script.DialogueLine, verbatim string) {
	type positioned struct {
		line   script.DialogueLine
		offset int
	}
	entries := make([]positioned, len(lines))
	for i, l := range lines {
		entries[i] = positioned{line: l, offset: sourceOffset(verbatim, l.Text)}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].offset < entries[j].offset
	})
	for i, e := range entries {
		lines[i] = e.line
	}
}

// sourceOffset returns the first-match offset of text within verbatim,
// falling back to a whitespace-collapsed search, then to a beyond-the-end
// sentinel for lines with no textual anchor.
func sourceOffset(verbatim, text string) int {
	if idx := strings.Index(verbatim, text); idx >= 0 {
		return idx
	}

	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed != text {
		if idx := strings.Index(verbatim, collapsed); idx >= 0 {
			return idx
		}
	}

	// Anchor on the first few words when the whole line wrapped differently
	// in the source.
	words := strings.Fields(text)
	if len(words) > 3 {
		prefix := strings.Join(words[:3], " ")
		if idx := strings.Index(verbatim, prefix); idx >= 0 {
			return idx
		}
	}

	return len(verbatim)
}
