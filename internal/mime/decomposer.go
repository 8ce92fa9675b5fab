// Package mime splits a raw email byte stream into its structural parts:
// address lists, decoded text/html bodies, attachment parts, and headers.
// The parser consumes it through the Decomposer interface so the boundary
// stays injectable.
package mime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// Address is one mailbox from an address header. Raw carries the literal
// header text when it could be recovered from the source; otherwise the
// re-encoded "Name <addr>" form.
type Address struct {
	Name    string
	Address string
	Raw     string
}

// Part is one attachment or inline non-text part of the message.
type Part struct {
	Filename    string
	ContentType string
	ContentID   string
	Inline      bool
	Content     []byte
}

// Decomposition is the structural breakdown of one raw message.
type Decomposition struct {
	From        []Address
	To          []Address
	Cc          []Address
	Bcc         []Address
	Subject     string
	Text        string
	HTML        string
	Attachments []Part
	Headers     map[string][]string
	Date        time.Time
}

// Decomposer turns raw email bytes into a Decomposition.
type Decomposer interface {
	Decompose(ctx context.Context, raw []byte) (*Decomposition, error)
}

// MessageDecomposer is the production Decomposer, backed by go-message.
type MessageDecomposer struct{}

// NewMessageDecomposer returns a Decomposer using go-message's mail reader.
func NewMessageDecomposer() *MessageDecomposer {
	return &MessageDecomposer{}
}

// Decompose parses the raw message into headers, body parts and attachments.
// Transfer encodings and MIME-encoded words are decoded by the mail reader.
func (d *MessageDecomposer) Decompose(ctx context.Context, raw []byte) (*Decomposition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	header := mr.Header
	dec := &Decomposition{Headers: make(map[string][]string)}

	fields := header.Fields()
	for fields.Next() {
		key := strings.ToLower(fields.Key())
		value, err := fields.Text()
		if err != nil {
			// Undecodable header values are kept verbatim
			value = fields.Value()
		}
		dec.Headers[key] = append(dec.Headers[key], value)
	}

	dec.From = addressList(header, "From")
	dec.To = addressList(header, "To")
	dec.Cc = addressList(header, "Cc")
	dec.Bcc = addressList(header, "Bcc")

	if subject, err := header.Subject(); err == nil {
		dec.Subject = subject
	} else {
		dec.Subject = header.Get("Subject")
	}

	if date, err := header.Date(); err == nil {
		dec.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read body: %w", err)
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"):
				if dec.Text == "" {
					dec.Text = string(body)
				}
			case strings.HasPrefix(contentType, "text/html"):
				dec.HTML = string(body)
			default:
				// Inline non-text parts (embedded images referenced by cid)
				// surface as inline attachments.
				dec.Attachments = append(dec.Attachments, Part{
					ContentType: contentType,
					ContentID:   contentID(h.Header.Get("Content-Id")),
					Inline:      true,
					Content:     body,
				})
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment: %w", err)
			}

			dec.Attachments = append(dec.Attachments, Part{
				Filename:    filename,
				ContentType: contentType,
				ContentID:   contentID(h.Header.Get("Content-Id")),
				Content:     data,
			})
		}
	}

	return dec, nil
}

// addressList extracts one address header. A single-entry list keeps the
// decoded header text as the literal original; multi-entry lists fall back
// to the re-encoded form per entry.
func addressList(header mail.Header, key string) []Address {
	addrs, err := header.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return nil
	}

	literal := ""
	if len(addrs) == 1 {
		if text, err := header.Text(key); err == nil {
			literal = strings.TrimSpace(text)
		}
	}

	out := make([]Address, 0, len(addrs))
	for _, a := range addrs {
		entry := Address{Name: a.Name, Address: a.Address, Raw: literal}
		if entry.Raw == "" {
			entry.Raw = a.String()
		}
		out = append(out, entry)
	}
	return out
}

// contentID strips the angle brackets from a Content-Id header value.
func contentID(v string) string {
	return strings.Trim(strings.TrimSpace(v), "<>")
}
