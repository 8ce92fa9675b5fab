package attachment

import (
	"strings"

	"github.com/felo/mail-ingest/internal/parser"
)

// extractArchive classifies into zip, tar or unknown from content type and
// filename only. The archive is never opened: file count and uncompressed
// size stay zero, compressed size mirrors the attachment's reported size.
func extractArchive(att parser.Attachment) (Metadata, error) {
	ct := mediaType(att.ContentType)
	name := strings.ToLower(att.Filename)

	kind := "unknown"
	switch {
	case ct == "application/zip" || ct == "application/x-zip-compressed" ||
		strings.HasSuffix(name, ".zip"):
		kind = "zip"
	case ct == "application/x-tar" || strings.HasSuffix(name, ".tar"):
		kind = "tar"
	}

	return Metadata{Archive: &ArchiveMetadata{
		Kind:           kind,
		CompressedSize: att.Size,
	}}, nil
}
