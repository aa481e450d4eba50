// Package tts defines the multi-speaker dialogue synthesis provider
// interface.
//
// Unlike single-utterance TTS, dialogue synthesis renders an entire ordered
// conversation in one request — one entry per line, each with its own voice —
// so the backend preserves natural inter-line timing and continuity in a
// single audio artifact.
package tts

import "context"

// DialogueInput is one synthesis entry: the text of a dialogue line and the
// voice that speaks it.
type DialogueInput struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

// Service synthesizes an ordered set of dialogue inputs into one continuous
// audio artifact. Implementations must be safe for concurrent use.
type Service interface {
	// SynthesizeDialogue renders inputs in order as a single audio stream
	// and returns the raw encoded audio bytes.
	SynthesizeDialogue(ctx context.Context, inputs []DialogueInput) ([]byte, error)
}
