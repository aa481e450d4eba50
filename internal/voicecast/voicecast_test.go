package voicecast

import (
	"errors"
	"testing"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

func line(id string, order int, character, text string) script.DialogueLine {
	return script.DialogueLine{LineID: id, Order: order, Character: character, Text: text}
}

func TestAssign_FirstTwoCharactersGetDistinctVoices(t *testing.T) {
	lines := []script.DialogueLine{
		line("L1", 1, "SARAH", "Hello."),
		line("L2", 2, "JOHN", "Hi."),
		line("L3", 3, "SARAH", "How are you?"),
	}
	mapping, err := Assign(lines, DefaultPool())
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if mapping["SARAH"] != DefaultFirstVoice {
		t.Errorf("SARAH voice = %q, want %q", mapping["SARAH"], DefaultFirstVoice)
	}
	if mapping["JOHN"] != DefaultSecondVoice {
		t.Errorf("JOHN voice = %q, want %q", mapping["JOHN"], DefaultSecondVoice)
	}
	if mapping["SARAH"] == mapping["JOHN"] {
		t.Error("first two characters share a voice")
	}
}

func TestAssign_AlternatesBeyondTwo(t *testing.T) {
	lines := []script.DialogueLine{
		line("L1", 1, "A", "a"),
		line("L2", 2, "B", "b"),
		line("L3", 3, "C", "c"),
		line("L4", 4, "D", "d"),
		line("L5", 5, "E", "e"),
	}
	mapping, err := Assign(lines, DefaultPool())
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	want := map[string]string{
		"A": DefaultFirstVoice,
		"B": DefaultSecondVoice,
		"C": DefaultFirstVoice,
		"D": DefaultSecondVoice,
		"E": DefaultFirstVoice,
	}
	for name, voice := range want {
		if mapping[name] != voice {
			t.Errorf("%s voice = %q, want %q", name, mapping[name], voice)
		}
	}
}

func TestAssign_Deterministic(t *testing.T) {
	lines := []script.DialogueLine{
		line("L1", 1, "ZOE", "one"),
		line("L2", 2, "ABE", "two"),
		line("L3", 3, "ZOE", "three"),
	}
	first, err := Assign(lines, DefaultPool())
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	for range 10 {
		again, err := Assign(lines, DefaultPool())
		if err != nil {
			t.Fatalf("Assign() error = %v", err)
		}
		for name, voice := range first {
			if again[name] != voice {
				t.Fatalf("mapping for %s changed between runs: %q vs %q", name, voice, again[name])
			}
		}
	}
}

func TestAssign_FirstAppearanceOrderNotLineCount(t *testing.T) {
	// JOHN speaks more, but SARAH appears first so she keeps the first voice.
	lines := []script.DialogueLine{
		line("L1", 1, "SARAH", "one"),
		line("L2", 2, "JOHN", "two"),
		line("L3", 3, "JOHN", "three"),
		line("L4", 4, "JOHN", "four"),
	}
	mapping, err := Assign(lines, DefaultPool())
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if mapping["SARAH"] != DefaultFirstVoice || mapping["JOHN"] != DefaultSecondVoice {
		t.Errorf("mapping = %v, want SARAH first / JOHN second", mapping)
	}
}

func TestAssign_RejectsEmptySequence(t *testing.T) {
	if _, err := Assign(nil, DefaultPool()); !errors.Is(err, ErrNoLines) {
		t.Errorf("Assign(nil) error = %v, want ErrNoLines", err)
	}
}

func TestAssign_RejectsStructurallyInvalidLines(t *testing.T) {
	cases := []struct {
		name  string
		lines []script.DialogueLine
	}{
		{"missing lineId", []script.DialogueLine{{Order: 1, Character: "SARAH", Text: "Hi."}}},
		{"missing character", []script.DialogueLine{line("L1", 1, "", "Hi.")}},
		{"missing text", []script.DialogueLine{line("L1", 1, "SARAH", "")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Assign(tc.lines, DefaultPool()); err == nil {
				t.Error("Assign() = nil error, want structural validation failure")
			}
		})
	}
}

func TestVoice_FallsBackToFirstVoice(t *testing.T) {
	mapping := map[string]string{"SARAH": DefaultSecondVoice}
	if got := Voice(mapping, "sarah", DefaultPool()); got != DefaultSecondVoice {
		t.Errorf("Voice(sarah) = %q, want mapped voice via normalization", got)
	}
	if got := Voice(mapping, "UNKNOWN", DefaultPool()); got != DefaultFirstVoice {
		t.Errorf("Voice(UNKNOWN) = %q, want pool first voice", got)
	}
}
