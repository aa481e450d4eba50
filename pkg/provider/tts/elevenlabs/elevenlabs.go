// Package elevenlabs provides an ElevenLabs-backed dialogue synthesis
// provider using the text-to-dialogue REST API. It implements the
// tts.Service interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/readingpartner/scriptpipe/pkg/provider/tts"
)

const (
	defaultEndpoint  = "https://api.elevenlabs.io/v1/text-to-dialogue"
	defaultModel     = "eleven_v3"
	defaultStability = 0.5
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_v3").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithStability sets the voice stability setting in [0,1].
func WithStability(s float64) Option {
	return func(p *Provider) {
		p.stability = s
	}
}

// WithEndpoint overrides the text-to-dialogue endpoint URL. Used in tests.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Service backed by the ElevenLabs text-to-dialogue API.
type Provider struct {
	apiKey     string
	model      string
	stability  float64
	endpoint   string
	httpClient *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		stability:  defaultStability,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- Request types ----

// dialogueInput is one entry of the text-to-dialogue request body.
type dialogueInput struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

// dialogueSettings mirrors the settings object of the request body.
type dialogueSettings struct {
	Stability float64 `json:"stability"`
}

// dialogueRequest is the full text-to-dialogue request body.
type dialogueRequest struct {
	Inputs                          []dialogueInput  `json:"inputs"`
	Settings                        dialogueSettings `json:"settings"`
	PronunciationDictionaryLocators []any            `json:"pronunciationDictionaryLocators"`
	ApplyTextNormalization          string           `json:"applyTextNormalization"`
	ModelID                         string           `json:"modelId"`
}

// SynthesizeDialogue sends all inputs as one batched request and returns the
// raw audio bytes of the rendered conversation. One call per script keeps
// inter-line timing natural and avoids per-line round-trips.
func (p *Provider) SynthesizeDialogue(ctx context.Context, inputs []tts.DialogueInput) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, errors.New("elevenlabs: inputs must not be empty")
	}

	body, err := p.buildRequestBody(inputs)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: text-to-dialogue HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs: text-to-dialogue: status %d: %s", resp.StatusCode, detail)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs: empty audio response")
	}
	return audio, nil
}

// buildRequestBody constructs the JSON request payload. Split out so tests
// can verify the payload shape without a live endpoint.
func (p *Provider) buildRequestBody(inputs []tts.DialogueInput) ([]byte, error) {
	reqInputs := make([]dialogueInput, 0, len(inputs))
	for _, in := range inputs {
		reqInputs = append(reqInputs, dialogueInput{Text: in.Text, VoiceID: in.VoiceID})
	}
	return json.Marshal(dialogueRequest{
		Inputs:                          reqInputs,
		Settings:                        dialogueSettings{Stability: p.stability},
		PronunciationDictionaryLocators: []any{},
		ApplyTextNormalization:          "auto",
		ModelID:                         p.model,
	})
}
