package parser

import (
	"errors"
	"fmt"
	"log/slog"
	stdmail "net/mail"
	"regexp"
	"strings"
	"time"
)

// Fallback rebuilds a usable record when the primary parse fails. It is
// deliberately independent of the MIME decomposition layer: Tier 1 is a
// line-oriented header scan with regex address splitting, and Tier 2 is a
// minimal placeholder that is always constructible. Handle never fails.
type Fallback struct {
	log *slog.Logger
}

// NewFallback creates a Fallback. A nil logger falls back to slog.Default.
func NewFallback(logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{log: logger}
}

// Handle returns a well-formed ParsedEmail for any input, however malformed.
// parseErr is the failure that triggered recovery and is logged for context.
func (f *Fallback) Handle(parseErr error, raw []byte) *ParsedEmail {
	email, err := f.recover(raw)
	if err != nil {
		f.log.Warn("fallback header scan failed, returning minimal record",
			"error", err, "cause", parseErr)
		return minimalRecord(raw)
	}

	f.log.Info("recovered malformed email",
		"message_id", email.MessageID, "cause", parseErr)
	return email
}

// recover is the Tier-1 path. Panics are absorbed so Tier 2 always has the
// last word.
func (f *Fallback) recover(raw []byte) (email *ParsedEmail, err error) {
	defer func() {
		if r := recover(); r != nil {
			email = nil
			err = fmt.Errorf("header scan panic: %v", r)
		}
	}()

	headers, bodyText := scanHeaders(raw)
	if len(headers) == 0 && strings.TrimSpace(bodyText) == "" {
		return nil, errors.New("no headers or body recovered")
	}

	email = &ParsedEmail{
		MessageID: strings.TrimSpace(headers["message-id"]),
		Subject:   NormalizeSubject(headers["subject"]),
		Headers:   headers,
		Body: Body{
			Text:       bodyText,
			Normalized: NormalizeWhitespace(bodyText),
		},
		Date: time.Now(),
		Size: int64(len(raw)),
	}

	if email.MessageID == "" {
		email.MessageID = SynthesizeMessageID()
	}
	if v := headers["date"]; v != "" {
		if t, derr := stdmail.ParseDate(v); derr == nil {
			email.Date = t
		}
	}

	if from := splitAddressList(headers["from"]); len(from) > 0 {
		email.From = from[0]
	}
	email.To = splitAddressList(headers["to"])
	email.Cc = splitAddressList(headers["cc"])
	email.Bcc = splitAddressList(headers["bcc"])

	return email, nil
}

// minimalRecord is the Tier-2 placeholder: structurally valid, semantically
// empty, always constructible.
func minimalRecord(raw []byte) *ParsedEmail {
	now := time.Now()
	return &ParsedEmail{
		MessageID: fmt.Sprintf("minimal-%d", now.UnixMilli()),
		Body:      Body{Normalized: ""},
		Headers:   map[string]string{},
		Date:      now,
		Size:      int64(len(raw)),
	}
}

// scanHeaders splits each line on the first colon, stopping at the first
// blank line; everything after the blank line is the body. Keys are folded
// to lowercase, repeated keys join with ", ".
func scanHeaders(raw []byte) (map[string]string, string) {
	headers := make(map[string]string)
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	bodyStart := len(lines)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			bodyStart = i + 1
			break
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if existing, ok := headers[key]; ok {
			headers[key] = existing + ", " + value
		} else {
			headers[key] = value
		}
	}

	body := ""
	if bodyStart < len(lines) {
		body = strings.Join(lines[bodyStart:], "\n")
	}
	return headers, body
}

var (
	namedAddr = regexp.MustCompile(`^\s*"?([^"<]*?)"?\s*<([^<>\s]+@[^<>\s]+)>\s*$`)
	bareAddr  = regexp.MustCompile(`[^\s<>,;"]+@[^\s<>,;"]+`)
)

// splitAddressList breaks a raw header value on commas and matches each
// entry as either "Name <addr>" or a bare address. Entries matching neither
// form are dropped.
func splitAddressList(value string) []EmailAddress {
	var out []EmailAddress
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if m := namedAddr.FindStringSubmatch(entry); m != nil {
			out = append(out, NormalizeAddress(m[2], strings.TrimSpace(m[1]), entry))
			continue
		}
		if addr := bareAddr.FindString(entry); addr != "" {
			out = append(out, NormalizeAddress(addr, "", entry))
		}
	}
	return out
}
