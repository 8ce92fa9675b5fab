package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/mail-ingest/internal/attachment"
	"github.com/felo/mail-ingest/internal/mime"
	"github.com/felo/mail-ingest/internal/parser"
	"github.com/felo/mail-ingest/internal/store"
)

func newTestPipeline(t *testing.T, withStore bool) (*Pipeline, *store.Store) {
	t.Helper()

	var st *store.Store
	if withStore {
		var err error
		st, err = store.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
	}

	p := parser.New(mime.NewMessageDecomposer(), nil)
	return New(p, parser.NewFallback(nil), attachment.NewProcessor(nil), st, nil), st
}

const wellFormedMessage = `From: Sender Name <SENDER@Example.com>
To: recipient@example.com
Subject: Re: Project update
Message-ID: <update1@example.com>
Date: Mon, 1 Jan 2024 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

The plain body.
`

func TestIngest_WellFormedMessage(t *testing.T) {
	pl, _ := newTestPipeline(t, false)

	result, err := pl.Ingest(context.Background(), []byte(wellFormedMessage))
	require.NoError(t, err)
	require.NotNil(t, result.Email)

	assert.False(t, result.Recovered)
	assert.Equal(t, "<update1@example.com>", result.Email.MessageID)
	assert.Equal(t, "sender@example.com", result.Email.From.Address)
	assert.Contains(t, result.Email.From.Original, "SENDER@Example.com")
	assert.Equal(t, "Project update", result.Email.Subject)
	assert.Equal(t, "The plain body.", result.Email.Body.Normalized)
}

func TestIngest_MalformedInputIsRecoveredNotErrored(t *testing.T) {
	pl, _ := newTestPipeline(t, false)

	inputs := [][]byte{
		{},
		[]byte("complete garbage, no structure"),
		{0x00, 0xff, 0x00, 0xff},
		[]byte("Subject only line without colon\n\nleftovers"),
	}

	for i, input := range inputs {
		result, err := pl.Ingest(context.Background(), input)
		require.NoError(t, err, "input %d: malformed mail must not surface as an error", i)
		require.NotNil(t, result.Email, "input %d", i)
		assert.True(t, result.Recovered, "input %d", i)
		assert.NotEmpty(t, result.Email.MessageID, "input %d", i)
	}
}

func TestIngest_RecoversHeadersViaFallback(t *testing.T) {
	pl, _ := newTestPipeline(t, false)

	// A bare colon-separated header block with no parseable MIME structure
	// beyond it: the primary parser rejects it, Tier 1 recovers it.
	raw := []byte("garbage first line breaking the header section\n" +
		"From: carol@example.org\n" +
		"Subject: Still readable\n\nbody text")

	result, err := pl.Ingest(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, result.Recovered)
	assert.Equal(t, "carol@example.org", result.Email.From.Address)
	assert.Equal(t, "Still readable", result.Email.Subject)
}

func TestIngest_ProcessesAttachments(t *testing.T) {
	pl, _ := newTestPipeline(t, false)

	raw := strings.Join([]string{
		"From: a@example.com",
		"To: b@example.com",
		"Subject: With invite",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="B"`,
		"",
		"--B",
		"Content-Type: text/plain",
		"",
		"see attached",
		"--B",
		"Content-Type: text/calendar",
		`Content-Disposition: attachment; filename="invite.ics"`,
		"",
		"BEGIN:VEVENT",
		"SUMMARY:Kickoff",
		"END:VEVENT",
		"--B--",
		"",
	}, "\n")

	result, err := pl.Ingest(context.Background(), []byte(raw))
	require.NoError(t, err)
	require.Len(t, result.Attachments, 1)

	att := result.Attachments[0]
	assert.True(t, att.Processed)
	assert.Equal(t, attachment.CategoryCalendar, att.Category)
	require.NotNil(t, att.Metadata.Calendar)
	require.Len(t, att.Metadata.Calendar.Events, 1)
	assert.Equal(t, "Kickoff", att.Metadata.Calendar.Events[0].Summary)
}

func TestIngest_PersistsResult(t *testing.T) {
	pl, st := newTestPipeline(t, true)

	result, err := pl.Ingest(context.Background(), []byte(wellFormedMessage))
	require.NoError(t, err)

	stored, err := st.GetEmail(context.Background(), result.Email.MessageID)
	require.NoError(t, err)
	require.NotNil(t, stored, "ingested email should be retrievable from the store")
	assert.Equal(t, "Project update", stored.Subject)
}

func TestIngest_CancelledContext(t *testing.T) {
	pl, _ := newTestPipeline(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pl.Ingest(ctx, []byte(wellFormedMessage))
	assert.ErrorIs(t, err, context.Canceled,
		"cancellation is not a parse failure and must not enter the fallback")
}
