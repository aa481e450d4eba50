// Package mock provides a test double for the extract.Service interface.
//
// Use Service to feed a controlled extraction result to pipeline code and to
// verify which document was submitted.
package mock

import (
	"context"
	"sync"

	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
)

// ExtractCall records a single invocation of Extract.
type ExtractCall struct {
	// Ctx is the context passed to Extract.
	Ctx context.Context
	// Doc is the document passed to Extract.
	Doc extract.Document
}

// Service is a mock implementation of extract.Service.
type Service struct {
	mu sync.Mutex

	// Result is returned from Extract when Err is nil.
	Result *extract.Result

	// Err, if non-nil, is returned as the error from Extract.
	Err error

	// ExtractCalls records every invocation of Extract.
	ExtractCalls []ExtractCall
}

var _ extract.Service = (*Service)(nil)

// Extract implements extract.Service.
func (s *Service) Extract(ctx context.Context, doc extract.Document) (*extract.Result, error) {
	s.mu.Lock()
	s.ExtractCalls = append(s.ExtractCalls, ExtractCall{Ctx: ctx, Doc: doc})
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &extract.Result{}, nil
}

// Calls returns a copy of the recorded Extract invocations.
func (s *Service) Calls() []ExtractCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExtractCall, len(s.ExtractCalls))
	copy(out, s.ExtractCalls)
	return out
}
