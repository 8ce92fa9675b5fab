package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	// replyMarker matches one leading reply/forward marker. Anchored, so a
	// single call strips exactly one marker; "Re: Re: x" keeps the inner one.
	replyMarker = regexp.MustCompile(`^(?i)(re|fwd|fw):\s*`)

	lineBreaks = regexp.MustCompile(`\r\n|\r`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)

	htmlPolicy = bluemonday.StrictPolicy()

	// entities decodes the small set of named entities the sanitizer leaves
	// escaped in its text output.
	entities = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&#34;", `"`,
		"&apos;", "'",
	)
)

// NormalizeAddress canonicalizes one mailbox. The canonical address is
// trimmed and lowercased; raw, when non-empty, is kept verbatim as the
// original so the source formatting survives canonicalization.
func NormalizeAddress(addr, name, raw string) EmailAddress {
	name = strings.TrimSpace(name)
	original := strings.TrimSpace(raw)
	if original == "" {
		if name != "" {
			original = fmt.Sprintf("%s <%s>", name, strings.TrimSpace(addr))
		} else {
			original = strings.TrimSpace(addr)
		}
	}
	return EmailAddress{
		Address:  strings.ToLower(strings.TrimSpace(addr)),
		Name:     name,
		Original: original,
	}
}

// NormalizeSubject strips one leading reply/forward marker (Re:, Fwd:, Fw:)
// and applies Unicode NFC. Nested markers survive a single call.
func NormalizeSubject(subject string) string {
	subject = replyMarker.ReplaceAllString(strings.TrimSpace(subject), "")
	return norm.NFC.String(strings.TrimSpace(subject))
}

// NormalizeBody selects the plain-text part when present and otherwise
// derives text from HTML. The normalized form always exists, possibly empty.
func NormalizeBody(text, html string) Body {
	body := Body{Text: text, HTML: html}
	source := text
	if source == "" && html != "" {
		source = htmlToText(html)
	}
	body.Normalized = NormalizeWhitespace(source)
	return body
}

// htmlToText drops script/style blocks and all remaining markup, then
// decodes the named entities the sanitizer re-escaped.
func htmlToText(html string) string {
	return entities.Replace(htmlPolicy.Sanitize(html))
}

// NormalizeWhitespace collapses all line-ending variants to "\n", reduces
// runs of three or more newlines to a single blank line, and trims the ends.
func NormalizeWhitespace(s string) string {
	s = lineBreaks.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// NormalizeHeaders folds keys to lowercase and joins repeated values with
// ", ". The Date header is rendered in ISO-8601 form when the decomposition
// layer parsed it.
func NormalizeHeaders(raw map[string][]string, date time.Time) map[string]string {
	out := make(map[string]string, len(raw))
	for key, values := range raw {
		out[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	if !date.IsZero() {
		out["date"] = date.Format(time.RFC3339)
	}
	return out
}
