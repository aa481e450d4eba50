// Package screenplay is a deterministic, rule-based parser for
// screenplay-formatted text. It recognizes character cues and dialogue
// blocks purely from typographic convention — uppercase speaker lines,
// indent-free dialogue, scene-heading prefixes — and never makes a network
// call.
//
// The parser is deliberately conservative. When a line is ambiguous it
// prefers omission over invention: an isolated uppercase line early in a
// document is treated as a title, and line extraction stops at the first
// sign of non-dialogue rather than guessing. A document with no
// recognizable cues yields empty results, not an error.
package screenplay

import (
	"regexp"
	"strings"
	"unicode"
)

// sceneHeadingPrefixes are tokens whose presence marks a line as a scene
// heading, transition, or other structural element rather than a speaker cue.
var sceneHeadingPrefixes = []string{
	"INT.", "EXT.", "FADE IN:", "FADE OUT:", "CUT TO:", "DISSOLVE TO:",
	"SCENE", "ACTION", "SOUND", "MUSIC", "TITLE CARD:", "SUPER:",
	"MONTAGE", "SERIES OF SHOTS", "END OF", "BACK TO:", "LATER",
	"CONTINUOUS", "MOMENTS LATER", "THE END", "BLACKOUT",
}

// commonParentheticals are wrylies that commonly sit between a speaker cue
// and the dialogue itself. A cue followed by one of these still counts as a
// cue if dialogue follows the parenthetical.
var commonParentheticals = []string{
	"(O.S.)", "(V.O.)", "(CONT'D)", "(CONTINUED)", "(OFF SCREEN)",
	"(VOICE OVER)", "(BEAT)", "(PAUSE)", "(WHISPERS)", "(SHOUTS)",
	"(CRYING)", "(LAUGHING)", "(SIGHS)", "(TO HIMSELF)", "(TO HERSELF)",
}

// maxNameLen is the ceiling on speaker-cue length. Real character names are
// short; longer uppercase lines are shouted action or formatting artifacts.
const maxNameLen = 50

// cuePunct is stripped before the uppercase test, matching screenplay
// conventions like "DET. HOLM" or "SARAH (CONT'D)".
var cuePunct = regexp.MustCompile(`[\s.,!?'"()\-]`)

// isUppercaseCandidate reports whether line consists only of uppercase
// letters once spaces and cue punctuation are removed. Diacritics are
// allowed; any lowercase letter disqualifies.
func isUppercaseCandidate(line string) bool {
	stripped := cuePunct.ReplaceAllString(line, "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if unicode.IsLower(r) {
			return false
		}
	}
	return true
}

// isValidName applies the basic shape constraints for a speaker cue: at
// least one letter, no digits, under the length ceiling.
func isValidName(line string) bool {
	hasLetter := false
	n := 0
	for _, r := range line {
		n++
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if unicode.IsDigit(r) {
			return false
		}
	}
	return hasLetter && n <= maxNameLen
}

// isSceneHeading reports whether line is a scene heading, transition, or
// other structural marker.
func isSceneHeading(line string) bool {
	for _, prefix := range sceneHeadingPrefixes {
		if strings.HasPrefix(line, prefix) || strings.Contains(line, prefix) {
			return true
		}
	}
	return false
}

// looksLikeDialogue reports whether line reads as spoken dialogue: starts
// with an uppercase letter, contains at least one lowercase letter, and is
// neither an all-uppercase cue nor a scene heading.
func looksLikeDialogue(line string) bool {
	if line == "" {
		return false
	}
	if isUppercaseCandidate(line) {
		return false
	}
	if isSceneHeading(line) {
		return false
	}
	first, _ := firstRune(line)
	if !unicode.IsUpper(first) {
		return false
	}
	for _, r := range line {
		if unicode.IsLower(r) {
			return true
		}
	}
	return false
}

// isKnownParenthetical reports whether line is a standalone wrylie from the
// common set, e.g. "(V.O.)" or "(beat)".
func isKnownParenthetical(line string) bool {
	if !strings.HasPrefix(line, "(") || !strings.HasSuffix(line, ")") {
		return false
	}
	upper := strings.ToUpper(line)
	for _, p := range commonParentheticals {
		inner := p[1 : len(p)-1]
		if strings.Contains(upper, inner) {
			return true
		}
	}
	return false
}

// isParenthetical reports whether line is any standalone parenthetical.
func isParenthetical(line string) bool {
	return strings.HasPrefix(line, "(") && strings.HasSuffix(line, ")")
}

var (
	trailingParen = regexp.MustCompile(`\s*\(.*\)$`)
	trailingPunct = regexp.MustCompile(`[.,:;!?]+$`)
	multiSpace    = regexp.MustCompile(`\s+`)
)

// cleanName strips a trailing parenthetical and punctuation from a speaker
// cue and collapses whitespace. Returns "" when nothing remains.
func cleanName(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = trailingParen.ReplaceAllString(cleaned, "")
	cleaned = trailingPunct.ReplaceAllString(cleaned, "")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

// splitLines breaks text into trimmed lines. Blank entries are preserved so
// callers can distinguish paragraph breaks from continuations.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

// nextNonEmpty returns up to count non-blank lines after index start.
func nextNonEmpty(lines []string, start, count int) []string {
	var out []string
	for i := start + 1; i < len(lines) && len(out) < count; i++ {
		if lines[i] != "" {
			out = append(out, lines[i])
		}
	}
	return out
}

// surroundingNonEmpty returns the non-blank lines within radius raw lines of
// index, excluding index itself.
func surroundingNonEmpty(lines []string, index, radius int) []string {
	var out []string
	for i := max(0, index-radius); i < index; i++ {
		if lines[i] != "" {
			out = append(out, lines[i])
		}
	}
	for i := index + 1; i < min(len(lines), index+radius+1); i++ {
		if lines[i] != "" {
			out = append(out, lines[i])
		}
	}
	return out
}
