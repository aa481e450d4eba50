// Package mock provides a test double for the tts.Service interface.
package mock

import (
	"context"
	"sync"

	"github.com/readingpartner/scriptpipe/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of SynthesizeDialogue.
type SynthesizeCall struct {
	// Ctx is the context passed to SynthesizeDialogue.
	Ctx context.Context
	// Inputs is a copy of the dialogue inputs passed to SynthesizeDialogue.
	Inputs []tts.DialogueInput
}

// Service is a mock implementation of tts.Service.
type Service struct {
	mu sync.Mutex

	// Audio is returned from SynthesizeDialogue when Err is nil.
	Audio []byte

	// Err, if non-nil, is returned as the error from SynthesizeDialogue.
	Err error

	// SynthesizeCalls records every invocation.
	SynthesizeCalls []SynthesizeCall
}

var _ tts.Service = (*Service)(nil)

// SynthesizeDialogue implements tts.Service.
func (s *Service) SynthesizeDialogue(ctx context.Context, inputs []tts.DialogueInput) ([]byte, error) {
	cp := make([]tts.DialogueInput, len(inputs))
	copy(cp, inputs)

	s.mu.Lock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Inputs: cp})
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	return s.Audio, nil
}

// Calls returns a copy of the recorded invocations.
func (s *Service) Calls() []SynthesizeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SynthesizeCall, len(s.SynthesizeCalls))
	copy(out, s.SynthesizeCalls)
	return out
}
