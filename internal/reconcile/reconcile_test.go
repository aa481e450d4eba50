package reconcile

import (
	"testing"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

const twoSpeakerText = `SARAH
I can't believe this is happening!

Sarah walks to the window.

SARAH (CONT'D)
We need to leave now.

JOHN
Then let's go.`

func TestMerge_ContiguousOrderAfterMerge(t *testing.T) {
	ai := []script.DialogueLine{
		{LineID: "L1", Order: 1, Character: "SARAH", Text: "I can't believe this is happening!"},
		{LineID: "L3", Order: 3, Character: "JOHN", Text: "Then let's go."},
	}

	res := Merge(ai, twoSpeakerText)

	for i, l := range res.Lines {
		if l.Order != i+1 {
			t.Errorf("line %d: order = %d, want %d", i, l.Order, i+1)
		}
	}
	if len(res.OrderIssues) == 0 {
		t.Error("expected order gap to be flagged")
	}
}

func TestMerge_RecoversMissedContinuation(t *testing.T) {
	// AI missed the post-action continuation but found an extra line the
	// heuristic cannot see, so the sequences are the same length and the
	// merge path runs instead of wholesale replacement.
	ai := []script.DialogueLine{
		{LineID: "L1", Order: 1, Character: "SARAH", Text: "I can't believe this is happening!"},
		{LineID: "L2", Order: 2, Character: "JOHN", Text: "Then let's go."},
		{LineID: "L3", Order: 3, Character: "JOHN", Text: "A line only the model saw."},
	}

	res := Merge(ai, twoSpeakerText)

	if len(res.Lines) != 4 {
		t.Fatalf("expected 4 lines after recovery, got %d: %+v", len(res.Lines), res.Lines)
	}
	if res.HeuristicPreferred {
		t.Error("merge path expected, not wholesale replacement")
	}
	if res.Recovered != 1 {
		t.Errorf("recovered = %d, want 1", res.Recovered)
	}

	// Recovered line must land in source order, between the two AI lines.
	if res.Lines[1].Text != "We need to leave now." {
		t.Errorf("recovered line out of position: %+v", res.Lines)
	}
}

func TestMerge_HeuristicStrictlyLongerWins(t *testing.T) {
	ai := []script.DialogueLine{
		{LineID: "L1", Order: 1, Character: "SARAH", Text: "I can't believe this is happening!"},
	}

	res := Merge(ai, twoSpeakerText)

	if !res.HeuristicPreferred {
		t.Fatal("expected heuristic sequence to be preferred wholesale")
	}
	if len(res.Lines) != 3 {
		t.Errorf("expected 3 heuristic lines, got %d", len(res.Lines))
	}
}

func TestMerge_NeverLosesAILines(t *testing.T) {
	ai := []script.DialogueLine{
		{LineID: "L1", Order: 1, Character: "SARAH", Text: "I can't believe this is happening!"},
		{LineID: "L2", Order: 2, Character: "SARAH", Text: "We need to leave now."},
		{LineID: "L3", Order: 3, Character: "JOHN", Text: "Then let's go."},
		{LineID: "L4", Order: 4, Character: "JOHN", Text: "A line only the model saw."},
	}

	res := Merge(ai, twoSpeakerText)

	for _, want := range ai {
		found := false
		for _, got := range res.Lines {
			if script.NormalizeText(got.Text) == script.NormalizeText(want.Text) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("AI line lost in merge: %q", want.Text)
		}
	}
}

func TestMerge_NearDuplicateNotAppendedTwice(t *testing.T) {
	// Same line, smart apostrophe vs ASCII. Similarity must treat them as one.
	ai := []script.DialogueLine{
		{LineID: "L1", Order: 1, Character: "SARAH", Text: "I can’t believe this is happening!"},
		{LineID: "L2", Order: 2, Character: "SARAH", Text: "We need to leave now."},
		{LineID: "L3", Order: 3, Character: "JOHN", Text: "Then let's go."},
	}

	res := Merge(ai, twoSpeakerText)

	if len(res.Lines) != 3 {
		t.Errorf("near-duplicate appended: %d lines: %+v", len(res.Lines), res.Lines)
	}
}

func TestMerge_TranscriptReproducible(t *testing.T) {
	ai := []script.DialogueLine{
		{LineID: "L1", Order: 1, Character: "SARAH", Text: "I can't believe this is happening!"},
		{LineID: "L2", Order: 2, Character: "JOHN", Text: "Then let's go."},
	}

	res := Merge(ai, twoSpeakerText)

	want := "I can't believe this is happening! We need to leave now. Then let's go."
	if got := script.Transcript(res.Lines); got != want {
		t.Errorf("Transcript = %q, want %q", got, want)
	}
}

func TestMerge_EmptyAIWithEmptyText(t *testing.T) {
	res := Merge(nil, "")
	if len(res.Lines) != 0 {
		t.Errorf("expected empty result, got %+v", res.Lines)
	}
}

func TestSourceOffset_FallbackAnchors(t *testing.T) {
	verbatim := "JOHN\nThis speech runs over\ntwo separate lines."

	// Joined text does not appear verbatim (it wrapped), prefix anchor must hit.
	off := sourceOffset(verbatim, "This speech runs over two separate lines.")
	if off != 5 {
		t.Errorf("offset = %d, want 5", off)
	}

	// Unfindable text sinks past the end.
	if off := sourceOffset(verbatim, "Nothing like this appears."); off != len(verbatim) {
		t.Errorf("offset = %d, want %d", off, len(verbatim))
	}
}
