package screenplay

import (
	"regexp"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

// actionVerbs are the verbs that mark a capitalized-name sentence as stage
// action rather than dialogue ("Sarah walks to the window.").
var actionVerbs = []string{
	"walks", "runs", "sits", "stands", "turns", "looks", "enters", "exits",
	"leaves", "moves", "opens", "closes", "grabs", "takes", "picks", "pulls",
	"pushes", "goes", "crosses", "nods", "smiles", "steps", "pauses", "stares",
}

// actionPatterns match lines that begin stage action. Dialogue consumption
// stops at the first match, ending a line early rather than swallowing
// action into it.
var actionPatterns = buildActionPatterns()

func buildActionPatterns() []*regexp.Regexp {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`^(The|A|An) `),
	}
	verbs := ""
	for i, v := range actionVerbs {
		if i > 0 {
			verbs += "|"
		}
		verbs += v
	}
	patterns = append(patterns, regexp.MustCompile(`^\p{Lu}[\p{Ll}'.-]* (`+verbs+`)\b`))
	return patterns
}

// isActionLine reports whether line matches a stage-action indicator.
func isActionLine(line string) bool {
	for _, p := range actionPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// isCue reports whether lines[i] is an accepted speaker cue for line
// extraction: an uppercase candidate of valid shape, not a scene heading,
// followed by dialogue (directly or after a standalone parenthetical).
func isCue(lines []string, i int) bool {
	line := lines[i]
	if line == "" || !isUppercaseCandidate(line) || !isValidName(line) || isSceneHeading(line) {
		return false
	}
	return cueFollowedByDialogue(nextNonEmpty(lines, i, 3))
}

// ExtractLines walks raw script text and produces the full ordered dialogue
// sequence. On each accepted speaker cue it greedily consumes the following
// non-blank lines as that character's dialogue until it hits another cue, a
// scene heading, or a stage-action line; consumed lines are joined with
// single spaces. Standalone parentheticals under the cue are skipped, never
// merged into the text. LineID and Order are assigned sequentially.
//
// Text with no recognizable cues yields an empty slice and no error.
func ExtractLines(text string) []script.DialogueLine {
	lines := splitLines(text)
	var out []script.DialogueLine

	i := 0
	for i < len(lines) {
		if !isCue(lines, i) {
			i++
			continue
		}

		character := cleanName(lines[i])
		var parts []string
		j := i + 1
		for j < len(lines) {
			l := lines[j]
			if l == "" {
				j++
				continue
			}
			if isCue(lines, j) || isSceneHeading(l) || isActionLine(l) {
				break
			}
			if isParenthetical(l) {
				j++
				continue
			}
			parts = append(parts, l)
			j++
		}

		if len(parts) > 0 {
			out = append(out, script.DialogueLine{
				Character: character,
				Text:      joinParts(parts),
			})
		}
		i = j
	}

	return script.Reindex(out)
}

func joinParts(parts []string) string {
	joined := ""
	for i, p := range parts {
		if i > 0 {
			joined += " "
		}
		joined += p
	}
	return joined
}
