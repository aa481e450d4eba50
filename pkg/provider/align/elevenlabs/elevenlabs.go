// Package elevenlabs provides an ElevenLabs-backed forced alignment provider
// using the forced-alignment REST API. It implements the align.Service
// interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

const defaultEndpoint = "https://api.elevenlabs.io/v1/forced-alignment"

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithEndpoint overrides the forced-alignment endpoint URL. Used in tests.
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

// Provider implements align.Service backed by the ElevenLabs forced-alignment API.
type Provider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// New creates a new forced-alignment Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// alignmentResponse mirrors the forced-alignment JSON response.
type alignmentResponse struct {
	Characters []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"characters"`
	Words []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Loss  float64 `json:"loss"`
	} `json:"words"`
	Loss float64 `json:"loss"`
}

// Align implements align.Service. The audio is attached as a multipart file
// field alongside the transcript text field.
func (p *Provider) Align(ctx context.Context, audio io.Reader, filename, transcript string) (*script.Alignment, error) {
	if transcript == "" {
		return nil, errors.New("elevenlabs: transcript must not be empty")
	}
	if filename == "" {
		filename = "audio.mp3"
	}

	body, contentType, err := buildMultipartBody(audio, filename, transcript)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: forced-alignment HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs: forced-alignment: status %d: %s", resp.StatusCode, detail)
	}

	var ar alignmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode alignment response: %w", err)
	}
	if ar.Characters == nil || ar.Words == nil {
		return nil, errors.New("elevenlabs: alignment response missing characters or words")
	}

	return convertResponse(&ar), nil
}

// buildMultipartBody assembles the multipart request: a file part with the
// audio bytes and a text part with the full transcript.
func buildMultipartBody(audio io.Reader, filename, transcript string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filePart, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(filePart, audio); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("text", transcript); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// convertResponse maps the wire response onto the script.Alignment model.
func convertResponse(ar *alignmentResponse) *script.Alignment {
	out := &script.Alignment{
		Characters: make([]script.Span, 0, len(ar.Characters)),
		Words:      make([]script.Span, 0, len(ar.Words)),
		Loss:       ar.Loss,
	}
	for _, c := range ar.Characters {
		out.Characters = append(out.Characters, script.Span{Text: c.Text, Start: c.Start, End: c.End})
	}
	for _, w := range ar.Words {
		out.Words = append(out.Words, script.Span{Text: w.Text, Start: w.Start, End: w.End, Loss: w.Loss})
	}
	return out
}
