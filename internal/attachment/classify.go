package attachment

import (
	"strings"

	"github.com/felo/mail-ingest/internal/parser"
)

// documentTypes is the fixed allow-list of office, PDF and plain-text types.
var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-powerpoint":                                     true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"text/plain": true,
}

// archiveTypes is the fixed allow-list of zip/tar/gzip/rar/7z types.
var archiveTypes = map[string]bool{
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/x-tar":            true,
	"application/gzip":             true,
	"application/x-gzip":           true,
	"application/x-rar-compressed": true,
	"application/vnd.rar":          true,
	"application/x-7z-compressed":  true,
}

func isCalendar(att parser.Attachment) bool {
	return strings.HasPrefix(mediaType(att.ContentType), "text/calendar") ||
		strings.HasSuffix(strings.ToLower(att.Filename), ".ics")
}

func isImage(att parser.Attachment) bool {
	return strings.HasPrefix(mediaType(att.ContentType), "image/")
}

func isDocument(att parser.Attachment) bool {
	return documentTypes[mediaType(att.ContentType)]
}

func isArchive(att parser.Attachment) bool {
	return archiveTypes[mediaType(att.ContentType)]
}

// mediaType drops any ;charset=... parameters before the allow-list lookup.
func mediaType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// subtype returns the part after the slash of a media type.
func subtype(contentType string) string {
	ct := mediaType(contentType)
	if i := strings.Index(ct, "/"); i >= 0 {
		return ct[i+1:]
	}
	return ct
}
