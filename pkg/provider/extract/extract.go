// Package extract defines the document text-extraction provider interface
// and the MIME routing in front of it.
//
// Two input paths exist: plain text is read directly with no external call,
// while PDF and office formats are delegated to a document-understanding
// [Service] operating under the strict output contract described in
// [ParseResponse]. Extraction failures map onto a small sentinel-error
// taxonomy so callers can render distinct, actionable messages.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Supported document MIME types.
const (
	MIMEPDF   = "application/pdf"
	MIMEDoc   = "application/msword"
	MIMEDocx  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMERTF   = "application/rtf"
	MIMEPlain = "text/plain"
)

// Extraction failure taxonomy. Every external-service failure is mapped to
// one of these sentinels; all are retryable by re-invoking with the same or
// a different file.
var (
	ErrUnsupportedFormat = errors.New("extract: unsupported file format")
	ErrInvalidCredential = errors.New("extract: invalid extraction service credential")
	ErrTimeout           = errors.New("extract: extraction request timed out")
	ErrRateLimited       = errors.New("extract: extraction service rate limited")
	ErrUnreadable        = errors.New("extract: file could not be processed")
	ErrEmptyResult       = errors.New("extract: no text could be extracted")
)

// UserMessage translates an extraction error into the phrasing shown to the
// user. Unknown errors get a generic retryable message.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "This file format is not supported. Please use PDF, Word, RTF, or plain text files."
	case errors.Is(err, ErrInvalidCredential):
		return "Invalid extraction service API key. Please check your configuration."
	case errors.Is(err, ErrTimeout):
		return "Request timed out. Please try again."
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded. Please try again later."
	case errors.Is(err, ErrUnreadable):
		return "The file could not be processed. It may be corrupted or in an unsupported format."
	case errors.Is(err, ErrEmptyResult):
		return "No text could be extracted from the document. Please make sure the document contains readable text."
	default:
		return "Failed to extract text from document. Please try again or use a different file."
	}
}

// Document is an uploaded file handed to the extractor.
type Document struct {
	// Data is the raw file content.
	Data []byte

	// MIME is the declared content type, one of the MIME* constants.
	MIME string

	// Filename is the original file name, used only for service hints.
	Filename string
}

// Result is the outcome of a successful extraction.
type Result struct {
	// Text is the verbatim document text, preserved exactly as rendered.
	Text string

	// Lines is the structured dialogue payload. Nil when the service
	// returned text only (degraded mode) — never an error by itself.
	Lines []script.DialogueLine

	// Scenes is the optional scene partition. Nil in degraded mode.
	Scenes []script.Scene

	// SourceSHA256 is the service's self-reported lowercase hex SHA-256 of
	// the verbatim text. Empty in degraded mode.
	SourceSHA256 string
}

// Service is the external document-understanding backend. Implementations
// send the file with the instruction contract and parse the two-part
// response. They must be safe for concurrent use.
type Service interface {
	// Extract returns the verbatim text and, when the structured payload
	// parsed, the dialogue line and scene lists. A malformed structured
	// payload degrades to text-only rather than failing.
	Extract(ctx context.Context, doc Document) (*Result, error)
}

// Extractor routes a document to the right extraction path based on its
// declared MIME type.
type Extractor struct {
	service Service
}

// NewExtractor wraps service with MIME routing.
func NewExtractor(service Service) *Extractor {
	return &Extractor{service: service}
}

// Extract dispatches doc: plain text is decoded in-process with no external
// call; PDF and office formats go through the external service; anything
// else is rejected with [ErrUnsupportedFormat] before any network activity.
func (e *Extractor) Extract(ctx context.Context, doc Document) (*Result, error) {
	switch doc.MIME {
	case MIMEPlain:
		text := strings.TrimSpace(string(doc.Data))
		if text == "" {
			return nil, ErrEmptyResult
		}
		return &Result{Text: text}, nil

	case MIMEPDF, MIMEDoc, MIMEDocx, MIMERTF:
		res, err := e.service.Extract(ctx, doc)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(res.Text) == "" {
			return nil, ErrEmptyResult
		}
		return res, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.MIME)
	}
}

// FileExtension returns the canonical extension for a supported MIME type,
// or "unknown".
func FileExtension(mime string) string {
	switch mime {
	case MIMEPDF:
		return "pdf"
	case MIMEDoc:
		return "doc"
	case MIMEDocx:
		return "docx"
	case MIMERTF:
		return "rtf"
	case MIMEPlain:
		return "txt"
	default:
		return "unknown"
	}
}
