// Package pipeline orchestrates the script-to-audio flow: document
// validation, text extraction, reconciliation against the heuristic parser,
// voice assignment, batched dialogue synthesis, and forced alignment.
//
// Stages run sequentially for one project; independent projects share no
// mutable state and may run concurrently. Script and line data are persisted
// before synthesis is attempted, so synthesis and alignment failures are
// non-fatal and independently retryable.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/readingpartner/scriptpipe/internal/blob"
	"github.com/readingpartner/scriptpipe/internal/doccheck"
	"github.com/readingpartner/scriptpipe/internal/observe"
	"github.com/readingpartner/scriptpipe/internal/reconcile"
	"github.com/readingpartner/scriptpipe/internal/store"
	"github.com/readingpartner/scriptpipe/internal/voicecast"
	"github.com/readingpartner/scriptpipe/pkg/provider/align"
	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
	"github.com/readingpartner/scriptpipe/pkg/provider/tts"
	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Stage names used in progress reporting and metrics.
const (
	StageValidate   = "validate"
	StageExtract    = "extract"
	StageReconcile  = "reconcile"
	StagePersist    = "persist"
	StageSynthesize = "synthesize"
	StageAlign      = "align"
)

// Errors returned for retry preconditions.
var (
	ErrNoLines = errors.New("pipeline: project has no dialogue lines")
	ErrNoAudio = errors.New("pipeline: project has no synthesized audio")
)

// Result is the outcome of one pipeline run. Script and line data are
// always persisted on success of the persist stage; SynthesisFailure and
// AlignmentFailure carry user-facing messages for the stages that failed
// without invalidating earlier work.
type Result struct {
	ProjectID  string
	Text       string
	Lines      []script.DialogueLine
	Characters []string
	AudioURL   string
	Alignment  *script.Alignment

	// Warnings holds reconciliation diagnostics (order gaps, fallbacks).
	Warnings []string

	// SynthesisFailure is non-empty when synthesis or upload failed.
	SynthesisFailure string

	// AlignmentFailure is non-empty when alignment failed.
	AlignmentFailure string
}

// Pipeline wires the pipeline stages to their providers and storage.
type Pipeline struct {
	store     store.Store
	blobs     blob.Store
	checker   *doccheck.Checker
	extractor *extract.Extractor
	tts       tts.Service
	aligner   align.Service
	pool      voicecast.Pool
	metrics   *observe.Metrics
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChecker replaces the default document checker.
func WithChecker(c *doccheck.Checker) Option {
	return func(p *Pipeline) { p.checker = c }
}

// WithVoicePool replaces the default two-voice pool.
func WithVoicePool(pool voicecast.Pool) Option {
	return func(p *Pipeline) { p.pool = pool }
}

// WithMetrics sets the metrics instance used for stage instrumentation.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock overrides the timestamp source used for audio object names.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New assembles a Pipeline.
func New(st store.Store, blobs blob.Store, extractor *extract.Extractor, synth tts.Service, aligner align.Service, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     st,
		blobs:     blobs,
		checker:   doccheck.New(),
		extractor: extractor,
		tts:       synth,
		aligner:   aligner,
		pool:      voicecast.DefaultPool(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Validate checks doc against the local upload ceilings without running the
// pipeline. Callers use it to reject bad uploads before queueing a job.
func (p *Pipeline) Validate(doc extract.Document) error {
	return p.checker.Check(doc)
}

// SubmitText runs the pipeline on raw script text pasted by the user.
func (p *Pipeline) SubmitText(ctx context.Context, projectID, text string) (*Result, error) {
	doc := extract.Document{Data: []byte(text), MIME: extract.MIMEPlain, Filename: "script.txt"}
	return p.SubmitDocument(ctx, projectID, doc)
}

// SubmitDocument runs the full pipeline on an uploaded document. Validation
// and extraction failures abort the run; synthesis and alignment failures
// are recorded on the Result and leave the persisted script intact.
func (p *Pipeline) SubmitDocument(ctx context.Context, projectID string, doc extract.Document) (*Result, error) {
	log := observe.Logger(ctx).With("project_id", projectID)
	res := &Result{ProjectID: projectID}

	// Local ceilings first: a rejected document costs no network call.
	reportProgress(ctx, StageValidate)
	if err := p.stage(ctx, StageValidate, func(context.Context) error {
		return p.checker.Check(doc)
	}); err != nil {
		return nil, err
	}

	reportProgress(ctx, StageExtract)
	var extracted *extract.Result
	if err := p.stage(ctx, StageExtract, func(ctx context.Context) error {
		var err error
		extracted, err = p.extractor.Extract(ctx, doc)
		return err
	}); err != nil {
		p.metrics.RecordProviderError(ctx, "extract")
		return nil, err
	}
	res.Text = extracted.Text
	if extracted.Lines == nil && doc.MIME != extract.MIMEPlain {
		p.metrics.ExtractionFallbacks.Add(ctx, 1)
	}

	reportProgress(ctx, StageReconcile)
	var merged *reconcile.Result
	_ = p.stage(ctx, StageReconcile, func(context.Context) error {
		merged = reconcile.Merge(extracted.Lines, extracted.Text)
		return nil
	})
	p.metrics.RecordMergeDecision(ctx, merged.HeuristicPreferred, merged.Recovered)
	for _, issue := range merged.OrderIssues {
		res.Warnings = append(res.Warnings, "order gap in extracted lines: "+issue.String())
	}
	if merged.HeuristicPreferred {
		res.Warnings = append(res.Warnings, "heuristic parse was more complete than the extraction service output")
	}
	res.Lines = merged.Lines
	res.Characters = script.UniqueCharacters(merged.Lines)

	reportProgress(ctx, StagePersist)
	if err := p.stage(ctx, StagePersist, func(ctx context.Context) error {
		if err := p.store.SaveScript(ctx, projectID, extracted.Text, extracted.SourceSHA256, merged.Lines, extracted.Scenes); err != nil {
			return err
		}
		return p.store.ReplaceCharacters(ctx, projectID, res.Characters)
	}); err != nil {
		return nil, fmt.Errorf("pipeline: persist script: %w", err)
	}

	if len(res.Lines) == 0 {
		// Nothing to voice. Not an error: the script may simply contain no
		// recognizable dialogue.
		log.Info("script has no dialogue lines, skipping synthesis")
		res.Warnings = append(res.Warnings, "no dialogue lines were found in the script")
		return res, nil
	}

	// Re-read the project: own-character and counter-reader flags survive
	// script replacement, and a re-submitted script must honor them the
	// same way a retry does.
	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reload project: %w", err)
	}
	lines, err := p.voicedLines(ctx, project)
	if err != nil {
		return nil, err
	}
	p.synthesizeAndAlign(ctx, projectID, res, lines)
	return res, nil
}

// RetrySynthesis re-runs synthesis (and alignment) for a project whose
// script is already persisted. Safe to call after a synthesis failure or to
// regenerate audio; earlier artifacts are never overwritten.
func (p *Pipeline) RetrySynthesis(ctx context.Context, projectID string) (*Result, error) {
	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: retry synthesis: %w", err)
	}
	if len(project.Lines) == 0 {
		return nil, ErrNoLines
	}

	res := &Result{
		ProjectID:  projectID,
		Text:       project.ScriptText,
		Lines:      project.Lines,
		Characters: script.UniqueCharacters(project.Lines),
	}
	lines, err := p.voicedLines(ctx, project)
	if err != nil {
		return nil, err
	}
	p.synthesizeAndAlign(ctx, projectID, res, lines)
	return res, nil
}

// RetryAlignment re-runs alignment against the already-persisted audio
// artifact, without re-synthesizing.
func (p *Pipeline) RetryAlignment(ctx context.Context, projectID string) (*Result, error) {
	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: retry alignment: %w", err)
	}
	if len(project.Lines) == 0 {
		return nil, ErrNoLines
	}
	if project.AudioObject == "" {
		return nil, ErrNoAudio
	}

	res := &Result{
		ProjectID:  projectID,
		Text:       project.ScriptText,
		Lines:      project.Lines,
		Characters: script.UniqueCharacters(project.Lines),
		AudioURL:   project.AudioURL,
	}

	// Align against the transcript recorded at synthesis time, not the
	// current flag state: the flags may have moved since the audio was
	// rendered, and the aligner needs the words that are actually in it.
	transcript := project.AudioTranscript
	if transcript == "" {
		// Audio rows written before transcripts were recorded.
		lines, err := p.voicedLines(ctx, project)
		if err != nil {
			return nil, err
		}
		transcript = script.Transcript(lines)
	}

	reportProgress(ctx, StageAlign)
	var alignment *script.Alignment
	err = p.stage(ctx, StageAlign, func(ctx context.Context) error {
		var err error
		alignment, err = p.alignStored(ctx, project.AudioObject, transcript)
		return err
	})
	if err != nil {
		p.metrics.RecordProviderError(ctx, "align")
		res.AlignmentFailure = alignmentFailureMessage
		observe.Logger(ctx).Warn("alignment retry failed", "project_id", projectID, "error", err)
		return res, nil
	}
	if err := p.store.SaveAlignment(ctx, projectID, alignment); err != nil {
		res.AlignmentFailure = alignmentFailureMessage
		observe.Logger(ctx).Error("alignment persist failed", "project_id", projectID, "error", err)
		return res, nil
	}
	res.Alignment = alignment
	return res, nil
}

// User-facing messages for the two non-fatal stages. Kept distinct so the
// client can tell which artifact is missing and that a retry is safe.
const (
	synthesisFailureMessage = "Audio generation failed. Your script is saved — you can retry audio generation at any time."
	alignmentFailureMessage = "Audio timing alignment failed. The audio itself is saved — you can retry alignment without regenerating it."
)

// synthesizeAndAlign runs the two non-fatal stages, recording failures on
// res rather than returning them.
func (p *Pipeline) synthesizeAndAlign(ctx context.Context, projectID string, res *Result, lines []script.DialogueLine) {
	log := observe.Logger(ctx).With("project_id", projectID)

	if len(lines) == 0 {
		res.Warnings = append(res.Warnings, "no characters are marked for synthesis")
		return
	}

	mapping, err := voicecast.Assign(lines, p.pool)
	if err != nil {
		res.SynthesisFailure = synthesisFailureMessage
		log.Warn("voice assignment rejected line sequence", "error", err)
		return
	}

	reportProgress(ctx, StageSynthesize)
	var audio []byte
	err = p.stage(ctx, StageSynthesize, func(ctx context.Context) error {
		inputs := synthesisInputs(lines, mapping, p.pool)
		var err error
		audio, err = p.tts.SynthesizeDialogue(ctx, inputs)
		if err != nil {
			return err
		}
		if len(audio) == 0 {
			return errors.New("pipeline: synthesis returned no audio")
		}
		return nil
	})
	if err != nil {
		p.metrics.RecordProviderError(ctx, "tts")
		res.SynthesisFailure = synthesisFailureMessage
		log.Warn("dialogue synthesis failed", "error", err)
		return
	}

	name := blob.AudioObjectName(projectID, p.now())
	url, err := p.blobs.Put(ctx, name, bytes.NewReader(audio))
	if err != nil {
		res.SynthesisFailure = synthesisFailureMessage
		log.Error("audio upload failed", "object", name, "error", err)
		return
	}

	// The transcript is stored with the audio reference so later alignment
	// retries submit exactly what was synthesized, regardless of how the
	// character flags move in between.
	transcript := script.Transcript(lines)
	if err := p.store.SaveAudio(ctx, projectID, name, url, transcript); err != nil {
		res.SynthesisFailure = synthesisFailureMessage
		log.Error("audio reference persist failed", "object", name, "error", err)
		return
	}
	res.AudioURL = url

	reportProgress(ctx, StageAlign)
	var alignment *script.Alignment
	err = p.stage(ctx, StageAlign, func(ctx context.Context) error {
		var err error
		alignment, err = p.aligner.Align(ctx, bytes.NewReader(audio), name, transcript)
		return err
	})
	if err != nil {
		p.metrics.RecordProviderError(ctx, "align")
		res.AlignmentFailure = alignmentFailureMessage
		log.Warn("forced alignment failed", "error", err)
		return
	}
	if err := p.store.SaveAlignment(ctx, projectID, alignment); err != nil {
		res.AlignmentFailure = alignmentFailureMessage
		log.Error("alignment persist failed", "error", err)
		return
	}
	res.Alignment = alignment
}

// voicedLines selects which lines receive synthesized voices: lines spoken
// by the user's own character are excluded, and when any characters carry
// the counter-reader flag only their lines are kept.
func (p *Pipeline) voicedLines(ctx context.Context, project *store.Project) ([]script.DialogueLine, error) {
	chars, err := p.store.ListCharacters(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list characters: %w", err)
	}

	counter := make(map[string]bool)
	anyCounter := false
	for _, c := range chars {
		if c.CounterReader {
			counter[script.NormalizeCharacter(c.Name)] = true
			anyCounter = true
		}
	}
	own := script.NormalizeCharacter(project.OwnCharacter)

	var out []script.DialogueLine
	for _, l := range project.Lines {
		name := script.NormalizeCharacter(l.Character)
		if own != "" && name == own {
			continue
		}
		if anyCounter && !counter[name] {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// synthesisInputs converts ordered lines into the batched multi-speaker
// request payload. One request carries the whole script so inter-line
// timing stays natural.
func synthesisInputs(lines []script.DialogueLine, mapping map[string]string, pool voicecast.Pool) []tts.DialogueInput {
	sorted := append([]script.DialogueLine(nil), lines...)
	script.SortByOrder(sorted)

	inputs := make([]tts.DialogueInput, 0, len(sorted))
	for _, l := range sorted {
		inputs = append(inputs, tts.DialogueInput{
			Text:    l.Text,
			VoiceID: voicecast.Voice(mapping, l.Character, pool),
		})
	}
	return inputs
}

// alignStored materializes the stored audio artifact into a temp file,
// verifies it is non-empty, and submits it for alignment. The temp file is
// removed on every path.
func (p *Pipeline) alignStored(ctx context.Context, objectName, transcript string) (*script.Alignment, error) {
	rc, err := p.blobs.Open(ctx, objectName)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open audio artifact: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "scriptpipe-align-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("pipeline: create temp audio: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, rc)
	if err != nil {
		return nil, fmt.Errorf("pipeline: copy audio artifact: %w", err)
	}
	if n == 0 {
		return nil, errors.New("pipeline: stored audio artifact is empty")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("pipeline: rewind temp audio: %w", err)
	}

	return p.aligner.Align(ctx, tmp, filepath.Base(objectName), transcript)
}

// stage runs fn inside a span with duration and outcome instrumentation.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := observe.StartSpan(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name+" failed")
	}
	p.metrics.RecordStage(ctx, name, time.Since(start), err)
	return err
}
