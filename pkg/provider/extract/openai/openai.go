// Package openai provides a document text-extraction service backed by the
// OpenAI API. The document is attached as a base64 data URI and processed by
// a chat completion under a strict two-section output contract (verbatim
// text, delimiter, structured JSON).
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 8192
)

// Provider implements extract.Service using the OpenAI API.
type Provider struct {
	client    oai.Client
	model     string
	maxTokens int64
}

// config holds optional configuration for the provider.
type config struct {
	baseURL   string
	timeout   time.Duration
	maxTokens int64
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMaxTokens caps the completion size. The default fits a 10-page script.
func WithMaxTokens(n int64) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// New constructs an OpenAI-backed extraction Provider. apiKey must be
// non-empty; model falls back to gpt-4o-mini when empty.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}

	cfg := &config{maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:    oai.NewClient(reqOpts...),
		model:     model,
		maxTokens: cfg.maxTokens,
	}, nil
}

// Extract implements extract.Service. It sends the document and instruction
// contract in a single user message and parses the two-section response.
func (p *Provider) Extract(ctx context.Context, doc extract.Document) (*extract.Result, error) {
	dataURL := buildDataURL(doc.MIME, doc.Data)
	filename := doc.Filename
	if filename == "" {
		filename = "document." + extract.FileExtension(doc.MIME)
	}

	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.TextContentPart(extractionContract),
		oai.FileContentPart(oai.ChatCompletionContentPartFileFileParam{
			FileData: oai.String(dataURL),
			Filename: oai.String(filename),
		}),
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.UserMessage(parts),
		},
		MaxCompletionTokens: oai.Int(p.maxTokens),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, extract.ErrEmptyResult
	}

	return extract.ParseResponse(resp.Choices[0].Message.Content)
}

// buildDataURL encodes the file bytes as a base64 data URI for the file
// content part.
func buildDataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// classifyError maps transport- and API-level failures onto the extraction
// error taxonomy so callers can show a distinct message per failure mode.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", extract.ErrTimeout, err)
	}

	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", extract.ErrInvalidCredential, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", extract.ErrRateLimited, err)
		case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %v", extract.ErrUnreadable, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", extract.ErrTimeout, err)
		}
	}

	return fmt.Errorf("openai: extract: %w", err)
}
