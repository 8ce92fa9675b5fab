package attachment

import (
	"bytes"
	"encoding/binary"

	"github.com/felo/mail-ingest/internal/parser"
)

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	gifMagic  = []byte("GIF8")
)

// extractImage sniffs the leading bytes for PNG, JPEG or GIF signatures and
// reads dimensions from the fixed-offset header fields where the format
// keeps them. JPEG dimensions would require a segment scan and are reported
// as zero. Unrecognized bytes keep the declared subtype with no dimensions.
func extractImage(att parser.Attachment) (Metadata, error) {
	data := att.Content
	meta := &ImageMetadata{}

	switch {
	case bytes.HasPrefix(data, pngMagic):
		meta.Format = "png"
		// IHDR width and height, big-endian, at offsets 16 and 20.
		if len(data) >= 24 {
			meta.Width = int(binary.BigEndian.Uint32(data[16:20]))
			meta.Height = int(binary.BigEndian.Uint32(data[20:24]))
		}

	case bytes.HasPrefix(data, jpegMagic):
		meta.Format = "jpeg"

	case bytes.HasPrefix(data, gifMagic):
		meta.Format = "gif"
		// Logical screen width and height, little-endian, at offsets 6 and 8.
		if len(data) >= 10 {
			meta.Width = int(binary.LittleEndian.Uint16(data[6:8]))
			meta.Height = int(binary.LittleEndian.Uint16(data[8:10]))
		}

	default:
		meta.Format = subtype(att.ContentType)
	}

	return Metadata{Image: meta}, nil
}
