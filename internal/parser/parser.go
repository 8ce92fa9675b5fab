// Package parser turns raw email bytes into normalized ParsedEmail records.
// Structural decomposition is delegated to an injected mime.Decomposer; this
// package owns normalization, validation and the fallback recovery path.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felo/mail-ingest/internal/mime"
)

// ParsingFailure reports that the input could not be interpreted as an email
// at all. Callers are expected to catch it at the boundary and route the
// original bytes through Fallback.Handle.
type ParsingFailure struct {
	Stage string // "decompose" or "validate"
	Err   error
}

func (e *ParsingFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("email parsing failed at %s", e.Stage)
	}
	return fmt.Sprintf("email parsing failed at %s: %v", e.Stage, e.Err)
}

func (e *ParsingFailure) Unwrap() error { return e.Err }

// Parser builds normalized email records from raw byte streams.
type Parser struct {
	decomposer mime.Decomposer
	log        *slog.Logger
}

// New creates a Parser using the given decomposer. A nil logger falls back
// to slog.Default.
func New(decomposer mime.Decomposer, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{decomposer: decomposer, log: logger}
}

// Parse decomposes and normalizes one raw message. It fails with a
// *ParsingFailure when decomposition errors or when the result carries no
// sender, recipient, subject or body at all, so non-email payloads cannot
// pass through as empty records.
func (p *Parser) Parse(ctx context.Context, raw []byte) (*ParsedEmail, error) {
	dec, err := p.decomposer.Decompose(ctx, raw)
	if err != nil {
		return nil, &ParsingFailure{Stage: "decompose", Err: err}
	}

	if len(dec.From) == 0 && len(dec.To) == 0 && dec.Subject == "" &&
		dec.Text == "" && dec.HTML == "" {
		return nil, &ParsingFailure{
			Stage: "validate",
			Err:   errors.New("no sender, recipient, subject or body found"),
		}
	}

	email := &ParsedEmail{
		MessageID: resolveMessageID(dec.Headers),
		Subject:   NormalizeSubject(dec.Subject),
		Body:      NormalizeBody(dec.Text, dec.HTML),
		Headers:   NormalizeHeaders(dec.Headers, dec.Date),
		To:        normalizeList(dec.To),
		Cc:        normalizeList(dec.Cc),
		Bcc:       normalizeList(dec.Bcc),
		Date:      dec.Date,
		Size:      int64(len(raw)),
	}

	if len(dec.From) > 0 {
		email.From = NormalizeAddress(dec.From[0].Address, dec.From[0].Name, dec.From[0].Raw)
	}
	if email.Date.IsZero() {
		email.Date = time.Now()
	}

	for _, part := range dec.Attachments {
		email.Attachments = append(email.Attachments, Attachment{
			Filename:    part.Filename,
			ContentType: part.ContentType,
			Size:        int64(len(part.Content)),
			Content:     part.Content,
			ContentID:   part.ContentID,
			Inline:      part.Inline,
		})
	}

	p.log.Debug("parsed email",
		"message_id", email.MessageID,
		"attachments", len(email.Attachments),
		"size", email.Size,
	)

	return email, nil
}

// resolveMessageID prefers the Message-ID header verbatim and synthesizes an
// id otherwise, so every record carries an identity usable for downstream
// idempotency.
func resolveMessageID(headers map[string][]string) string {
	if values := headers["message-id"]; len(values) > 0 {
		if id := strings.TrimSpace(values[0]); id != "" {
			return id
		}
	}
	return SynthesizeMessageID()
}

// SynthesizeMessageID builds a unique id from a timestamp plus a random
// suffix for messages that carry no Message-ID header.
func SynthesizeMessageID() string {
	return fmt.Sprintf("<%d.%s@mail-ingest.generated>", time.Now().UnixNano(), uuid.NewString()[:8])
}

func normalizeList(addrs []mime.Address) []EmailAddress {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]EmailAddress, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, NormalizeAddress(a.Address, a.Name, a.Raw))
	}
	return out
}
