package attachment

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makePNG builds the first 24 bytes of a PNG file: signature, IHDR chunk
// length and type, then width and height.
func makePNG(width, height uint32) []byte {
	data := make([]byte, 24)
	copy(data, pngMagic)
	binary.BigEndian.PutUint32(data[8:12], 13)
	copy(data[12:16], "IHDR")
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	return data
}

// makeGIF builds a GIF header with the logical screen descriptor.
func makeGIF(width, height uint16) []byte {
	data := make([]byte, 13)
	copy(data, "GIF89a")
	binary.LittleEndian.PutUint16(data[6:8], width)
	binary.LittleEndian.PutUint16(data[8:10], height)
	return data
}

func TestExtractImage_PNG(t *testing.T) {
	meta, err := extractImage(testAttachment("pic.png", "image/png", makePNG(100, 100)))
	require.NoError(t, err)
	require.NotNil(t, meta.Image)

	assert.Equal(t, "png", meta.Image.Format)
	assert.Equal(t, 100, meta.Image.Width)
	assert.Equal(t, 100, meta.Image.Height)
}

func TestExtractImage_JPEGDimensionsAlwaysZero(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	meta, err := extractImage(testAttachment("pic.jpg", "image/jpeg", jpeg))
	require.NoError(t, err)

	assert.Equal(t, "jpeg", meta.Image.Format)
	assert.Zero(t, meta.Image.Width)
	assert.Zero(t, meta.Image.Height)
}

func TestExtractImage_GIF(t *testing.T) {
	meta, err := extractImage(testAttachment("anim.gif", "image/gif", makeGIF(320, 200)))
	require.NoError(t, err)

	assert.Equal(t, "gif", meta.Image.Format)
	assert.Equal(t, 320, meta.Image.Width)
	assert.Equal(t, 200, meta.Image.Height)
}

func TestExtractImage_TruncatedPNGHeader(t *testing.T) {
	// Signature only: not enough bytes to reach the IHDR dimension fields
	meta, err := extractImage(testAttachment("pic.png", "image/png", pngMagic))
	require.NoError(t, err)

	assert.Equal(t, "png", meta.Image.Format)
	assert.Zero(t, meta.Image.Width)
	assert.Zero(t, meta.Image.Height)
}

func TestExtractImage_UnknownSignatureKeepsSubtype(t *testing.T) {
	meta, err := extractImage(testAttachment("pic.webp", "image/webp", []byte("RIFF....WEBP")))
	require.NoError(t, err)

	assert.Equal(t, "webp", meta.Image.Format)
	assert.Zero(t, meta.Image.Width)
}
