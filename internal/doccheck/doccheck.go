// Package doccheck validates uploaded documents before any network call is
// made on their behalf. It enforces the format allow-list, the byte-size
// ceiling, and the PDF page ceiling, and maps each violation to the exact
// message the client surfaces.
package doccheck

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/readingpartner/scriptpipe/pkg/provider/extract"
)

// Ceilings for uploaded documents.
const (
	MaxSizeBytes = 5 * 1024 * 1024
	MaxPDFPages  = 10
)

// Violation sentinels. Each maps to a distinct user-facing message.
var (
	ErrTooLarge        = errors.New("doccheck: document exceeds size ceiling")
	ErrTooManyPages    = errors.New("doccheck: PDF exceeds page ceiling")
	ErrUnsupportedType = errors.New("doccheck: unsupported document type")
	ErrEmptyDocument   = errors.New("doccheck: document is empty")
)

// UserMessage maps a validation failure onto the message shown to the user.
// Unknown errors fall through to extract.UserMessage.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrTooLarge):
		return "This file is too large. Please choose a script under 5 MB."
	case errors.Is(err, ErrTooManyPages):
		return "This PDF has too many pages. Please choose a script of 10 pages or fewer."
	case errors.Is(err, ErrUnsupportedType):
		return "That file type isn't supported. Please upload a PDF, Word document, RTF, or plain text file."
	case errors.Is(err, ErrEmptyDocument):
		return "That file appears to be empty. Please choose a script with text in it."
	default:
		return extract.UserMessage(err)
	}
}

var allowedMIMEs = map[string]struct{}{
	extract.MIMEPDF:   {},
	extract.MIMEDoc:   {},
	extract.MIMEDocx:  {},
	extract.MIMERTF:   {},
	extract.MIMEPlain: {},
}

// Checker validates documents against the upload ceilings.
type Checker struct {
	maxSize  int64
	maxPages int
	log      *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithMaxSize overrides the byte-size ceiling.
func WithMaxSize(n int64) Option {
	return func(c *Checker) { c.maxSize = n }
}

// WithMaxPages overrides the PDF page ceiling.
func WithMaxPages(n int) Option {
	return func(c *Checker) { c.maxPages = n }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(c *Checker) { c.log = log }
}

// New returns a Checker with the default ceilings.
func New(opts ...Option) *Checker {
	c := &Checker{
		maxSize:  MaxSizeBytes,
		maxPages: MaxPDFPages,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check validates doc against the allow-list and ceilings. It inspects only
// local bytes and never performs network I/O, so a rejected document costs
// nothing upstream.
func (c *Checker) Check(doc extract.Document) error {
	if len(doc.Data) == 0 {
		return ErrEmptyDocument
	}
	if _, ok := allowedMIMEs[doc.MIME]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, doc.MIME)
	}
	if int64(len(doc.Data)) > c.maxSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(doc.Data), c.maxSize)
	}
	if doc.MIME == extract.MIMEPDF {
		pages, err := c.pdfPageCount(doc.Data)
		if err != nil {
			// An unparseable PDF is left for the extraction service to
			// judge; the ceiling only blocks documents we can measure.
			c.log.Warn("pdf page count failed, skipping page ceiling", "filename", doc.Filename, "error", err)
			return nil
		}
		if pages > c.maxPages {
			return fmt.Errorf("%w: %d pages (limit %d)", ErrTooManyPages, pages, c.maxPages)
		}
	}
	return nil
}

// pdfPageCount reads the page count via pdfcpu, falling back to a raw
// object scan for documents pdfcpu refuses to open.
func (c *Checker) pdfPageCount(data []byte) (int, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err == nil {
		return ctx.PageCount, nil
	}
	if n := rawPageScan(data); n > 0 {
		return n, nil
	}
	return 0, fmt.Errorf("doccheck: count pdf pages: %w", err)
}

// rawPageScan counts /Type /Page objects in the raw PDF bytes. Crude, but
// it salvages a count from files with damaged xref tables.
func rawPageScan(data []byte) int {
	count := 0
	for _, tok := range []string{"/Type /Page", "/Type/Page"} {
		rest := data
		for {
			i := bytes.Index(rest, []byte(tok))
			if i < 0 {
				break
			}
			after := rest[i+len(tok):]
			// Skip /Type /Pages tree nodes.
			if !bytes.HasPrefix(after, []byte("s")) {
				count++
			}
			rest = after
		}
		if count > 0 {
			return count
		}
	}
	return count
}

// SniffMIME guesses the document type from the filename extension when the
// client did not send a usable content type.
func SniffMIME(filename, declared string) string {
	if _, ok := allowedMIMEs[declared]; ok {
		return declared
	}
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return extract.MIMEPDF
	case ".doc":
		return extract.MIMEDoc
	case ".docx":
		return extract.MIMEDocx
	case ".rtf":
		return extract.MIMERTF
	case ".txt", ".text":
		return extract.MIMEPlain
	default:
		return declared
	}
}
