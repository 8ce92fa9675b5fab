package attachment

import (
	"strings"

	"github.com/felo/mail-ingest/internal/parser"
)

// extractDocument classifies into pdf, docx or generic document from content
// type and filename only; the file body is never parsed.
func extractDocument(att parser.Attachment) (Metadata, error) {
	ct := mediaType(att.ContentType)
	name := strings.ToLower(att.Filename)

	kind := "document"
	switch {
	case ct == "application/pdf" || strings.HasSuffix(name, ".pdf"):
		kind = "pdf"
	case ct == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		strings.HasSuffix(name, ".docx"):
		kind = "docx"
	}

	return Metadata{Document: &DocumentMetadata{Kind: kind}}, nil
}
