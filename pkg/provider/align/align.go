// Package align defines the forced-alignment provider interface: given a
// synthesized audio artifact and its exact transcript, produce the cue sheet
// (character- and word-level timing spans) that drives playback highlighting.
package align

import (
	"context"
	"io"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Service requests timing alignment from an external aligner.
// Implementations must be safe for concurrent use.
type Service interface {
	// Align submits the audio stream and transcript and returns the cue
	// sheet. The transcript must textually match, modulo whitespace, the
	// text the audio was synthesized from, or the timings drift.
	Align(ctx context.Context, audio io.Reader, filename, transcript string) (*script.Alignment, error)
}
