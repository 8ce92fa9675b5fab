package parser

import "time"

// EmailAddress is one normalized mailbox. Address is the lowercase, trimmed
// canonical form used for matching; Original preserves the verbatim source
// text so the pre-normalization form is never lost.
type EmailAddress struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Original string `json:"original"`
}

// Body carries the message body in its available forms. Normalized is always
// present, possibly empty, even when the message had no text or html part.
type Body struct {
	Text       string `json:"text,omitempty"`
	HTML       string `json:"html,omitempty"`
	Normalized string `json:"normalized"`
}

// Attachment is one decoded attachment part.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Content     []byte `json:"-"`
	ContentID   string `json:"cid,omitempty"`
	Inline      bool   `json:"isInline"`
}

// ParsedEmail is the normalized record produced for one raw message. It is
// built once per input and not mutated afterwards.
type ParsedEmail struct {
	MessageID   string            `json:"messageId"`
	From        EmailAddress      `json:"from"`
	To          []EmailAddress    `json:"to"`
	Cc          []EmailAddress    `json:"cc"`
	Bcc         []EmailAddress    `json:"bcc"`
	Subject     string            `json:"subject"`
	Body        Body              `json:"body"`
	Attachments []Attachment      `json:"attachments"`
	Headers     map[string]string `json:"headers"`
	Date        time.Time         `json:"date"`
	Size        int64             `json:"size"`
}
