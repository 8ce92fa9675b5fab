package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/mail-ingest/internal/attachment"
	"github.com/felo/mail-ingest/internal/parser"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func testEmail(messageID string) *parser.ParsedEmail {
	return &parser.ParsedEmail{
		MessageID: messageID,
		From: parser.EmailAddress{
			Address:  "alice@example.com",
			Name:     "Alice",
			Original: "Alice <ALICE@Example.com>",
		},
		To: []parser.EmailAddress{
			{Address: "bob@example.com", Original: "bob@example.com"},
		},
		Subject: "Hello",
		Body:    parser.Body{Text: "hi", Normalized: "hi"},
		Headers: map[string]string{"subject": "Hello"},
		Date:    time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC),
		Size:    42,
	}
}

func TestSaveAndGetEmail(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	atts := []attachment.Processed{{
		Attachment: parser.Attachment{
			Filename:    "pic.png",
			ContentType: "image/png",
			Size:        10,
		},
		Category:  attachment.CategoryImage,
		Processed: true,
		Metadata: attachment.Metadata{
			Image: &attachment.ImageMetadata{Format: "png", Width: 100, Height: 100},
		},
	}}

	require.NoError(t, s.SaveResult(ctx, testEmail("<m1@example.com>"), atts, false))

	got, err := s.GetEmail(ctx, "<m1@example.com>")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "alice@example.com", got.FromAddress)
	assert.Equal(t, "Alice <ALICE@Example.com>", got.FromOriginal)
	assert.Equal(t, "bob@example.com", got.Recipients)
	assert.Equal(t, "Hello", got.Subject)
	assert.Equal(t, "hi", got.BodyNormalized)
	assert.Equal(t, "Hello", got.Headers["subject"])
	assert.Equal(t, 2024, got.Date.Year())
	assert.Equal(t, int64(42), got.Size)
	assert.False(t, got.Recovered)

	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "pic.png", got.Attachments[0].Filename)
	assert.Equal(t, "image", got.Attachments[0].Category)
	assert.True(t, got.Attachments[0].Processed)
	assert.Contains(t, string(got.Attachments[0].Metadata), `"width":100`)
}

func TestSaveResult_IdempotentByMessageID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveResult(ctx, testEmail("<dup@example.com>"), nil, false))

	updated := testEmail("<dup@example.com>")
	updated.Subject = "Hello again"
	require.NoError(t, s.SaveResult(ctx, updated, nil, true))

	emails, err := s.ListEmails(ctx, 10)
	require.NoError(t, err)
	require.Len(t, emails, 1, "re-ingesting the same message id must not duplicate")
	assert.Equal(t, "Hello again", emails[0].Subject)
	assert.True(t, emails[0].Recovered)
}

func TestGetEmail_NotFound(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.GetEmail(context.Background(), "<missing@example.com>")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmailExists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	exists, err := s.EmailExists(ctx, "<m@example.com>")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.SaveResult(ctx, testEmail("<m@example.com>"), nil, false))

	exists, err = s.EmailExists(ctx, "<m@example.com>")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListEmails_Limit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"<a@x>", "<b@x>", "<c@x>"} {
		require.NoError(t, s.SaveResult(ctx, testEmail(id), nil, false))
	}

	emails, err := s.ListEmails(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, emails, 2)
}
