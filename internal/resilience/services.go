package resilience

import (
	"context"
	"io"

	"github.com/readingpartner/scriptpipe/pkg/provider/align"
	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
	"github.com/readingpartner/scriptpipe/pkg/provider/tts"
	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Compile-time interface checks.
var (
	_ extract.Service = (*GuardedExtractor)(nil)
	_ tts.Service     = (*GuardedSynthesizer)(nil)
	_ align.Service   = (*GuardedAligner)(nil)
)

// GuardedExtractor wraps an [extract.Service] with a circuit breaker.
type GuardedExtractor struct {
	service extract.Service
	breaker *Breaker
}

// GuardExtractor returns service wrapped in a breaker configured by cfg.
// cfg.Name defaults to "extract".
func GuardExtractor(service extract.Service, cfg Config) *GuardedExtractor {
	if cfg.Name == "" {
		cfg.Name = "extract"
	}
	return &GuardedExtractor{service: service, breaker: NewBreaker(cfg)}
}

// Extract implements [extract.Service].
func (g *GuardedExtractor) Extract(ctx context.Context, doc extract.Document) (*extract.Result, error) {
	var res *extract.Result
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = g.service.Extract(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedExtractor) Breaker() *Breaker { return g.breaker }

// GuardedSynthesizer wraps a [tts.Service] with a circuit breaker.
type GuardedSynthesizer struct {
	service tts.Service
	breaker *Breaker
}

// GuardSynthesizer returns service wrapped in a breaker configured by cfg.
// cfg.Name defaults to "tts".
func GuardSynthesizer(service tts.Service, cfg Config) *GuardedSynthesizer {
	if cfg.Name == "" {
		cfg.Name = "tts"
	}
	return &GuardedSynthesizer{service: service, breaker: NewBreaker(cfg)}
}

// SynthesizeDialogue implements [tts.Service].
func (g *GuardedSynthesizer) SynthesizeDialogue(ctx context.Context, inputs []tts.DialogueInput) ([]byte, error) {
	var audio []byte
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		audio, err = g.service.SynthesizeDialogue(ctx, inputs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedSynthesizer) Breaker() *Breaker { return g.breaker }

// GuardedAligner wraps an [align.Service] with a circuit breaker.
type GuardedAligner struct {
	service align.Service
	breaker *Breaker
}

// GuardAligner returns service wrapped in a breaker configured by cfg.
// cfg.Name defaults to "align".
func GuardAligner(service align.Service, cfg Config) *GuardedAligner {
	if cfg.Name == "" {
		cfg.Name = "align"
	}
	return &GuardedAligner{service: service, breaker: NewBreaker(cfg)}
}

// Align implements [align.Service].
func (g *GuardedAligner) Align(ctx context.Context, audio io.Reader, filename, transcript string) (*script.Alignment, error) {
	var result *script.Alignment
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = g.service.Align(ctx, audio, filename, transcript)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Breaker exposes the underlying breaker for health reporting.
func (g *GuardedAligner) Breaker() *Breaker { return g.breaker }
