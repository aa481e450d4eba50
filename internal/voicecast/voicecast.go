// Package voicecast maps script characters onto the synthetic voice pool.
//
// The pool holds exactly two voice identities. The first two unique
// characters (by first appearance) get one voice each; everyone after that
// alternates deterministically between the two. The cap at two distinct
// timbres is a deliberate simplification carried over for output
// compatibility — a known scaling limitation for large casts, not a bug.
package voicecast

import (
	"errors"
	"fmt"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Default ElevenLabs voice identities for the two-voice pool.
const (
	DefaultFirstVoice  = "Cz0K1kOv9tD8l0b5Qu53"
	DefaultSecondVoice = "MClEFoImJXBTgLwdLI5n"
)

// ErrNoLines is returned when Assign is called with an empty sequence.
var ErrNoLines = errors.New("voicecast: no dialogue lines provided")

// Pool is the fixed pair of voice identities characters are assigned from.
type Pool struct {
	First  string
	Second string
}

// DefaultPool returns the standard two-voice pool.
func DefaultPool() Pool {
	return Pool{First: DefaultFirstVoice, Second: DefaultSecondVoice}
}

// Assign builds the character→voice mapping for lines. It is a pure function
// of the unique characters in first-appearance order and the pool: the same
// line sequence always yields the same mapping, and the first two unique
// characters never share a voice.
//
// Every line must carry a non-empty LineID, Character, and Text; a violation
// rejects the whole sequence before any synthesis is attempted.
func Assign(lines []script.DialogueLine, pool Pool) (map[string]string, error) {
	if err := Validate(lines); err != nil {
		return nil, err
	}

	mapping := make(map[string]string)
	for i, name := range script.UniqueCharacters(lines) {
		if i%2 == 0 {
			mapping[name] = pool.First
		} else {
			mapping[name] = pool.Second
		}
	}
	return mapping, nil
}

// Validate checks the structural preconditions for voice assignment and
// synthesis: a non-empty sequence in which every line has a LineID, a
// Character, and Text.
func Validate(lines []script.DialogueLine) error {
	if len(lines) == 0 {
		return ErrNoLines
	}
	for i, l := range lines {
		if l.LineID == "" || l.Character == "" || l.Text == "" {
			return fmt.Errorf("voicecast: line %d has missing required fields (lineId=%q, character=%q)", i, l.LineID, l.Character)
		}
	}
	return nil
}

// Voice resolves the voice for a single character against mapping, falling
// back to the pool's first voice for characters missing from the mapping.
func Voice(mapping map[string]string, character string, pool Pool) string {
	if v, ok := mapping[script.NormalizeCharacter(character)]; ok {
		return v
	}
	return pool.First
}
