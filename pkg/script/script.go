// Package script defines the parsed-script data model shared by every
// pipeline stage: dialogue lines, scenes, and the alignment cue sheet.
//
// A script is represented as an ordered slice of [DialogueLine]. Order values
// are contiguous starting at 1; [Reindex] restores that invariant after any
// merge or re-sort. All functions in this package are pure and safe for
// concurrent use.
package script

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DialogueLine is one attributable utterance in a script.
type DialogueLine struct {
	// LineID is a stable identifier unique within a script ("L1", "L2", …).
	LineID string `json:"lineId"`

	// Order is the 1-based playback/synthesis rank. After [Reindex] the Order
	// values of a sequence form the contiguous range 1..N.
	Order int `json:"order"`

	// Character is the speaker name as printed, usually uppercase with
	// diacritics preserved. Continuation markers like (CONT'D) are stripped
	// by [NormalizeCharacter] before comparison or voice assignment.
	Character string `json:"character"`

	// Text is the verbatim spoken text including embedded parentheticals.
	Text string `json:"text"`
}

// Scene is an optional structural grouping produced by full-contract
// extraction. Scenes without dialogue omit the line bounds.
type Scene struct {
	SceneID     string `json:"sceneId"`
	Heading     string `json:"heading"`
	StartLineID string `json:"startLineId,omitempty"`
	EndLineID   string `json:"endLineId,omitempty"`
	PageStart   *int   `json:"pageStart"`
	PageEnd     *int   `json:"pageEnd"`
}

// Span is a single timed unit of an [Alignment].
type Span struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// Loss is the aligner's per-word confidence penalty. Only populated on
	// word-level spans.
	Loss float64 `json:"loss,omitempty"`
}

// Alignment is the cue sheet returned by forced alignment: character-level
// and word-level timing spans over the full synthesized transcript.
type Alignment struct {
	Characters []Span  `json:"characters"`
	Words      []Span  `json:"words"`
	Loss       float64 `json:"loss"`
}

// trailingParen matches a trailing parenthetical such as (CONT'D) or (V.O.).
var trailingParen = regexp.MustCompile(`\s*\(.*\)$`)

// trailingPunct matches trailing sentence punctuation left on a speaker cue.
var trailingPunct = regexp.MustCompile(`[.,:;!?]+$`)

// multiSpace collapses runs of whitespace.
var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeCharacter canonicalizes a speaker name: trims, uppercases
// (diacritics preserved), strips a trailing parenthetical and trailing
// punctuation, and collapses internal whitespace. Two lines belong to the
// same character exactly when their normalized names are equal.
func NormalizeCharacter(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = trailingParen.ReplaceAllString(cleaned, "")
	cleaned = trailingPunct.ReplaceAllString(cleaned, "")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.ToUpper(strings.TrimSpace(cleaned))
}

// NormalizeText canonicalizes dialogue text for cross-source comparison:
// lowercased, trimmed, internal whitespace collapsed. Used by the reconciler
// to decide whether two extraction paths produced the same line.
func NormalizeText(text string) string {
	return strings.ToLower(multiSpace.ReplaceAllString(strings.TrimSpace(text), " "))
}

// Reindex returns a copy of lines with LineID and Order reassigned
// sequentially ("L1"/1, "L2"/2, …) in slice order, closing any gaps. The
// input is not modified; calling Reindex on an already-contiguous sequence
// is a no-op modulo copying.
func Reindex(lines []DialogueLine) []DialogueLine {
	out := make([]DialogueLine, len(lines))
	for i, l := range lines {
		l.LineID = fmt.Sprintf("L%d", i+1)
		l.Order = i + 1
		out[i] = l
	}
	return out
}

// OrderIssue describes a single violation of the contiguous-order invariant
// found by [ValidateOrder].
type OrderIssue struct {
	// Index is the position in the slice where the issue was observed.
	Index int

	// Want is the expected Order value at that position, Got the actual one.
	Want, Got int
}

func (o OrderIssue) String() string {
	return fmt.Sprintf("line %d: want order %d, got %d", o.Index, o.Want, o.Got)
}

// ValidateOrder checks that the Order values of lines form the contiguous
// range 1..N in slice order. It returns every deviation found. An empty
// result means the sequence satisfies the ordering invariant. Issues are
// diagnostics, not errors — callers log them and proceed with [Reindex].
func ValidateOrder(lines []DialogueLine) []OrderIssue {
	var issues []OrderIssue
	for i, l := range lines {
		if l.Order != i+1 {
			issues = append(issues, OrderIssue{Index: i, Want: i + 1, Got: l.Order})
		}
	}
	return issues
}

// SortByOrder sorts lines in place by their Order rank. The sort is stable
// so equal ranks keep their relative positions.
func SortByOrder(lines []DialogueLine) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Order < lines[j].Order })
}

// Transcript reconstructs the flat text submitted for synthesis and
// alignment: lines sorted by Order, Text joined with single spaces. The
// result must match, modulo whitespace, the concatenation of the alignment
// word spans or playback cueing drifts.
func Transcript(lines []DialogueLine) string {
	sorted := make([]DialogueLine, len(lines))
	copy(sorted, lines)
	SortByOrder(sorted)

	parts := make([]string, 0, len(sorted))
	for _, l := range sorted {
		parts = append(parts, l.Text)
	}
	return strings.Join(parts, " ")
}

// UniqueCharacters returns the distinct normalized character names of lines
// in order of first appearance. Lines with an empty normalized name are
// skipped.
func UniqueCharacters(lines []DialogueLine) []string {
	seen := make(map[string]struct{}, len(lines))
	var out []string
	for _, l := range lines {
		name := NormalizeCharacter(l.Character)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
