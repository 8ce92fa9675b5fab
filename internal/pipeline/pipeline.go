// Package pipeline wires the parsing core together: it is the contractual
// caller that catches ParsingFailure at the boundary, routes the original
// bytes through the fallback, processes attachments and persists the result.
// Malformed mail never surfaces as an error from Ingest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felo/mail-ingest/internal/attachment"
	"github.com/felo/mail-ingest/internal/parser"
	"github.com/felo/mail-ingest/internal/store"
)

// Result is what one ingested message produces: a record that always exists,
// its processed attachments, and whether the fallback path built it.
type Result struct {
	Email       *parser.ParsedEmail    `json:"email"`
	Attachments []attachment.Processed `json:"attachments"`
	Recovered   bool                   `json:"recovered"`
}

// Pipeline runs raw messages through parse, recovery, attachment processing
// and optional persistence.
type Pipeline struct {
	parser    *parser.Parser
	fallback  *parser.Fallback
	processor *attachment.Processor
	store     *store.Store
	log       *slog.Logger
}

// New creates a Pipeline. st may be nil for a non-persisting pipeline; a nil
// logger falls back to slog.Default.
func New(p *parser.Parser, f *parser.Fallback, proc *attachment.Processor, st *store.Store, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{parser: p, fallback: f, processor: proc, store: st, log: logger}
}

// Ingest processes one raw message. The only errors it returns are context
// cancellation and storage failures; unparseable input always yields a
// recovered record instead.
func (pl *Pipeline) Ingest(ctx context.Context, raw []byte) (*Result, error) {
	result := &Result{}

	email, err := pl.parser.Parse(ctx, raw)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		pl.log.Warn("primary parse failed, entering fallback", "error", err)
		email = pl.fallback.Handle(err, raw)
		result.Recovered = true
	}

	result.Email = email
	result.Attachments = pl.processor.ProcessAll(email.Attachments)

	if pl.store != nil {
		if err := pl.store.SaveResult(ctx, email, result.Attachments, result.Recovered); err != nil {
			return nil, fmt.Errorf("failed to persist email %s: %w", email.MessageID, err)
		}
	}

	return result, nil
}
