package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felo/mail-ingest/internal/attachment"
	"github.com/felo/mail-ingest/internal/config"
	"github.com/felo/mail-ingest/internal/mime"
	"github.com/felo/mail-ingest/internal/parser"
	"github.com/felo/mail-ingest/internal/pipeline"
	"github.com/felo/mail-ingest/internal/store"
)

const sampleMessage = `From: sender@example.com
To: recipient@example.com
Subject: API test
Message-ID: <api1@example.com>
Content-Type: text/plain; charset=utf-8

Hello over HTTP.
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	p := parser.New(mime.NewMessageDecomposer(), nil)
	pl := pipeline.New(p, parser.NewFallback(nil), attachment.NewProcessor(nil), st, nil)
	h := New(pl, st, cfg, nil)

	r := chi.NewRouter()
	r.Post("/v1/ingest", h.Ingest)
	r.Get("/v1/emails", h.ListEmails)
	r.Get("/v1/emails/{messageID}", h.GetEmail)
	r.Get("/healthz", h.Health)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestEndpoint_WellFormed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/ingest", "message/rfc822",
		strings.NewReader(sampleMessage))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	assert.False(t, result.Recovered)
	require.NotNil(t, result.Email)
	assert.Equal(t, "<api1@example.com>", result.Email.MessageID)
	assert.Equal(t, "API test", result.Email.Subject)
}

func TestIngestEndpoint_MalformedIsStillOK(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/ingest", "message/rfc822",
		strings.NewReader("not an email in any way"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode,
		"malformed mail must never produce an error response")

	var result pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Recovered)
	require.NotNil(t, result.Email)
	assert.NotEmpty(t, result.Email.MessageID)
}

func TestIngestEndpoint_EmptyBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/ingest", "message/rfc822", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetEmailEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/ingest", "message/rfc822",
		strings.NewReader(sampleMessage))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/emails/" + url.PathEscape("<api1@example.com>"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored store.StoredEmail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stored))
	assert.Equal(t, "<api1@example.com>", stored.MessageID)
	assert.Equal(t, "sender@example.com", stored.FromAddress)
}

func TestGetEmailEndpoint_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/emails/" + url.PathEscape("<nope@example.com>"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListEmailsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/ingest", "message/rfc822",
		strings.NewReader(sampleMessage))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/emails?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Emails []store.StoredEmail `json:"emails"`
		Count  int                 `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Emails, 1)
	assert.Equal(t, "API test", body.Emails[0].Subject)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
}
