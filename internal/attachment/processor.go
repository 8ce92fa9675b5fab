// Package attachment classifies email attachments and extracts type-specific
// metadata. Processing never raises to the caller: extraction failures are
// captured on the result and one item's failure never aborts a batch.
package attachment

import (
	"fmt"
	"log/slog"

	"github.com/felo/mail-ingest/internal/parser"
)

type rule struct {
	category Category
	match    func(parser.Attachment) bool
	extract  func(parser.Attachment) (Metadata, error)
}

// Processor runs attachments through an ordered classification table.
// Classification is first-match-wins, so one attachment yields at most one
// metadata variant even when it would satisfy several predicates.
type Processor struct {
	log   *slog.Logger
	rules []rule
}

// NewProcessor creates a Processor with the standard rule order: calendar,
// image, document, archive. A nil logger falls back to slog.Default.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		log: logger,
		rules: []rule{
			{CategoryCalendar, isCalendar, extractCalendar},
			{CategoryImage, isImage, extractImage},
			{CategoryDocument, isDocument, extractDocument},
			{CategoryArchive, isArchive, extractArchive},
		},
	}
}

// Process classifies one attachment and runs the matching extractor. It
// never returns an error: extraction failures set Processed=false and Error;
// an attachment matching no category comes back with empty metadata and no
// error, a distinct unrecognized-type state.
func (p *Processor) Process(att parser.Attachment) Processed {
	result := Processed{Attachment: att}

	for _, r := range p.rules {
		if !r.match(att) {
			continue
		}
		result.Category = r.category

		meta, err := p.runExtractor(r, att)
		if err != nil {
			result.Error = err.Error()
			p.log.Warn("attachment extraction failed",
				"filename", att.Filename,
				"category", string(r.category),
				"error", err,
			)
			return result
		}

		result.Metadata = meta
		result.Processed = true
		return result
	}

	p.log.Debug("attachment matched no category",
		"filename", att.Filename, "content_type", att.ContentType)
	return result
}

// ProcessAll processes a batch sequentially with per-item isolation: every
// input produces exactly one result, failures included.
func (p *Processor) ProcessAll(atts []parser.Attachment) []Processed {
	results := make([]Processed, 0, len(atts))
	for _, att := range atts {
		results = append(results, p.Process(att))
	}
	return results
}

// runExtractor isolates extractor panics so a corrupt attachment cannot take
// down the batch.
func (p *Processor) runExtractor(r rule, att parser.Attachment) (meta Metadata, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			meta = Metadata{}
			err = fmt.Errorf("%s extractor panic: %v", r.category, rec)
		}
	}()
	return r.extract(att)
}
