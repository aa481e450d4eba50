package resilience

import (
	"context"
	"errors"
	"testing"

	ttsmock "github.com/readingpartner/scriptpipe/pkg/provider/tts/mock"

	"github.com/readingpartner/scriptpipe/pkg/provider/tts"
)

func TestGuardedSynthesizer_PassesThrough(t *testing.T) {
	mock := &ttsmock.Service{}
	mock.Audio = []byte("mp3")
	g := GuardSynthesizer(mock, Config{})

	audio, err := g.SynthesizeDialogue(context.Background(), []tts.DialogueInput{{Text: "Hi.", VoiceID: "v1"}})
	if err != nil {
		t.Fatalf("SynthesizeDialogue() error = %v", err)
	}
	if string(audio) != "mp3" {
		t.Errorf("audio = %q, want mp3", audio)
	}
	if len(mock.SynthesizeCalls) != 1 {
		t.Errorf("underlying service called %d times, want 1", len(mock.SynthesizeCalls))
	}
}

func TestGuardedSynthesizer_FailsFastWhenOpen(t *testing.T) {
	mock := &ttsmock.Service{}
	mock.Err = errors.New("upstream down")
	g := GuardSynthesizer(mock, Config{MaxFailures: 2})
	ctx := context.Background()
	inputs := []tts.DialogueInput{{Text: "Hi.", VoiceID: "v1"}}

	for i := 0; i < 2; i++ {
		if _, err := g.SynthesizeDialogue(ctx, inputs); err == nil {
			t.Fatal("expected upstream error")
		}
	}
	if _, err := g.SynthesizeDialogue(ctx, inputs); !errors.Is(err, ErrOpen) {
		t.Fatalf("error = %v, want ErrOpen", err)
	}
	if len(mock.SynthesizeCalls) != 2 {
		t.Errorf("underlying service called %d times after trip, want 2", len(mock.SynthesizeCalls))
	}
}
