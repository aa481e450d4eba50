package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/readingpartner/scriptpipe/pkg/script"
)

// Delimiter separates the verbatim-text section from the structured JSON
// section in the service response. It is a wire-format constant shared with
// the instruction contract; changing it breaks every deployed prompt.
const Delimiter = "---DIALOGUE_JSON---"

// payload is the structured second section of the service response.
type payload struct {
	SourceSHA256 string                `json:"sourceSha256"`
	Lines        []script.DialogueLine `json:"lines"`
	Scenes       []script.Scene        `json:"scenes"`
	Error        string                `json:"error"`
}

// PayloadError is the service's self-reported extraction failure, carried in
// the structured payload's "error" key. The verbatim text (possibly empty)
// is preserved for diagnostics.
type PayloadError struct {
	Reason string
	Text   string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("extract: service reported failure: %s", e.Reason)
}

// ParseResponse splits a raw service response on [Delimiter] and returns the
// assembled [Result].
//
// Fault tolerance rules:
//   - No delimiter: the whole response is verbatim text, Lines/Scenes nil.
//   - Second section fails to parse as JSON: degrade to text-only, warn log.
//   - Payload carries an "error" key: return a [*PayloadError] instead of
//     using partial data.
//
// When the payload parsed, ParseResponse recomputes the SHA-256 of the
// verbatim section and logs a warning on mismatch with the self-reported
// hash. A mismatch is diagnostic only — the text is still used.
func ParseResponse(raw string) (*Result, error) {
	segment, rest, found := strings.Cut(raw, Delimiter)
	text := strings.TrimSpace(segment)

	res := &Result{Text: text}
	if !found {
		return res, nil
	}

	var p payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest)), &p); err != nil {
		slog.Warn("dialogue payload did not parse, continuing with text only", "err", err)
		return res, nil
	}

	if p.Error != "" {
		return nil, &PayloadError{Reason: p.Error, Text: text}
	}

	if p.SourceSHA256 != "" && sourceHashMismatch(p.SourceSHA256, segment) {
		slog.Warn("sourceSha256 mismatch on extracted text",
			"reported", p.SourceSHA256,
		)
	}

	res.Lines = p.Lines
	res.Scenes = p.Scenes
	res.SourceSHA256 = p.SourceSHA256
	return res, nil
}

// sourceHashMismatch checks the self-reported hash against the first section
// as transmitted. Services disagree on whether the whitespace around the
// delimiter belongs to the hashed text, so the raw segment and its trimmed
// form are both accepted.
func sourceHashMismatch(reported, segment string) bool {
	reported = strings.ToLower(reported)
	for _, candidate := range []string{segment, strings.TrimSpace(segment)} {
		sum := sha256.Sum256([]byte(candidate))
		if hex.EncodeToString(sum[:]) == reported {
			return false
		}
	}
	return true
}
