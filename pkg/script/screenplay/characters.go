package screenplay

import "sort"

// IdentifyCharacters extracts the set of unique character names from raw
// script text using screenplay formatting conventions. The result is
// deduplicated and sorted alphabetically. Text with no recognizable speaker
// cues yields an empty slice, not an error.
func IdentifyCharacters(text string) []string {
	lines := splitLines(text)
	seen := make(map[string]struct{})

	for i, line := range lines {
		if line == "" {
			continue
		}
		if !isUppercaseCandidate(line) || !isValidName(line) {
			continue
		}
		if isSceneHeading(line) {
			continue
		}
		if isLikelyTitle(lines, i) {
			continue
		}
		if !cueFollowedByDialogue(nextNonEmpty(lines, i, 3)) {
			continue
		}
		if name := cleanName(line); name != "" {
			seen[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// isLikelyTitle reports whether the uppercase candidate at index reads as a
// document title rather than a speaker cue. Three signals mark a title: an
// early candidate with no dialogue in the following lines, a quoted
// standalone line, and a candidate with no other uppercase candidate nearby.
// Ambiguous cases default to title — omission beats a false character.
func isLikelyTitle(lines []string, index int) bool {
	line := lines[index]

	if index < 10 {
		following := nextNonEmpty(lines, index, 5)
		hasDialogue := false
		for _, l := range following {
			if looksLikeDialogue(l) {
				hasDialogue = true
				break
			}
		}
		if !hasDialogue {
			return true
		}
	}

	if len(line) >= 2 {
		if (line[0] == '"' && line[len(line)-1] == '"') ||
			(line[0] == '\'' && line[len(line)-1] == '\'') {
			return true
		}
	}

	for _, near := range surroundingNonEmpty(lines, index, 3) {
		if isUppercaseCandidate(near) && isValidName(near) && !isSceneHeading(near) {
			return false
		}
	}
	return true
}

// cueFollowedByDialogue reports whether the lines after a candidate cue look
// like a dialogue block: either dialogue directly, or a recognized
// parenthetical followed by dialogue.
func cueFollowedByDialogue(next []string) bool {
	if len(next) == 0 {
		return false
	}
	first := next[0]

	if isParenthetical(first) {
		if isKnownParenthetical(first) {
			return true
		}
		if len(next) > 1 {
			return looksLikeDialogue(next[1])
		}
		return false
	}

	return looksLikeDialogue(first)
}
