package attachment

import "github.com/felo/mail-ingest/internal/parser"

// Category identifies which extractor handled an attachment.
type Category string

const (
	CategoryCalendar Category = "calendar"
	CategoryImage    Category = "image"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
)

// CalendarEvent is one VEVENT block from an ICS attachment. Fields absent
// from the source stay empty and are omitted from serialized output.
type CalendarEvent struct {
	Summary     string `json:"summary,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// CalendarMetadata lists the events found in a calendar attachment.
type CalendarMetadata struct {
	Events []CalendarEvent `json:"events"`
}

// ImageMetadata carries the sniffed format and, where the format keeps them
// at fixed offsets, pixel dimensions. JPEG dimensions are not computed and
// stay zero.
type ImageMetadata struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// DocumentMetadata classifies the document kind from content type and
// filename only. The file body is never opened, so page count, author and
// title stay at their zero values.
type DocumentMetadata struct {
	Kind      string `json:"kind"`
	PageCount int    `json:"pageCount"`
	Author    string `json:"author"`
	Title     string `json:"title"`
}

// ArchiveMetadata classifies the archive kind without opening it; file count
// and uncompressed size stay zero, compressed size mirrors the attachment's
// reported size.
type ArchiveMetadata struct {
	Kind             string `json:"kind"`
	FileCount        int    `json:"fileCount"`
	CompressedSize   int64  `json:"compressedSize"`
	UncompressedSize int64  `json:"uncompressedSize"`
}

// Metadata holds the result of at most one extractor.
type Metadata struct {
	Calendar *CalendarMetadata `json:"calendar,omitempty"`
	Image    *ImageMetadata    `json:"image,omitempty"`
	Document *DocumentMetadata `json:"document,omitempty"`
	Archive  *ArchiveMetadata  `json:"archive,omitempty"`
}

// Empty reports whether no extractor produced metadata.
func (m Metadata) Empty() bool {
	return m.Calendar == nil && m.Image == nil && m.Document == nil && m.Archive == nil
}

// Processed is an attachment plus the outcome of metadata extraction.
// Processed=false with an empty Error means no category matched; with a
// non-empty Error it means the matching extractor failed.
type Processed struct {
	parser.Attachment
	Category  Category `json:"category,omitempty"`
	Processed bool     `json:"processed"`
	Metadata  Metadata `json:"metadata"`
	Error     string   `json:"error,omitempty"`
}
