// Package mock provides a test double for the align.Service interface.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/readingpartner/scriptpipe/pkg/provider/align"
	"github.com/readingpartner/scriptpipe/pkg/script"
)

// AlignCall records a single invocation of Align.
type AlignCall struct {
	// Ctx is the context passed to Align.
	Ctx context.Context
	// Audio is the full audio content read from the reader.
	Audio []byte
	// Filename is the filename passed to Align.
	Filename string
	// Transcript is the transcript passed to Align.
	Transcript string
}

// Service is a mock implementation of align.Service.
type Service struct {
	mu sync.Mutex

	// Result is returned from Align when Err is nil.
	Result *script.Alignment

	// Err, if non-nil, is returned as the error from Align.
	Err error

	// AlignCalls records every invocation.
	AlignCalls []AlignCall
}

var _ align.Service = (*Service)(nil)

// Align implements align.Service.
func (s *Service) Align(ctx context.Context, audio io.Reader, filename, transcript string) (*script.Alignment, error) {
	data, _ := io.ReadAll(audio)

	s.mu.Lock()
	s.AlignCalls = append(s.AlignCalls, AlignCall{Ctx: ctx, Audio: data, Filename: filename, Transcript: transcript})
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &script.Alignment{Characters: []script.Span{}, Words: []script.Span{}}, nil
}

// Calls returns a copy of the recorded invocations.
func (s *Service) Calls() []AlignCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AlignCall, len(s.AlignCalls))
	copy(out, s.AlignCalls)
	return out
}
