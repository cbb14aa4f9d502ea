package ingest

import (
	"net/mail"
	"strings"
)

// Identity is the sender/subject information extracted from one message's
// headers.
type Identity struct {
	Title       string
	SenderName  string
	SenderEmail string
}

// ExtractIdentity derives the article title and the sender's display name
// and email address from the message headers.
//
// A From value without angle brackets is treated as both name and address
// (bare-address senders). Otherwise the value splits on the first '<': the
// trimmed text before it is the name, the trimmed text up to the first '>'
// after it is the address. Missing headers yield empty fields.
func ExtractIdentity(headers []Header) Identity {
	ident := Identity{
		Title: headerValue(headers, "Subject"),
	}

	from := headerValue(headers, "From")
	if from == "" {
		return ident
	}

	open := strings.Index(from, "<")
	if open < 0 {
		ident.SenderName = from
		ident.SenderEmail = from
		return ident
	}

	ident.SenderName = strings.TrimSpace(from[:open])
	addr := from[open+1:]
	if close := strings.Index(addr, ">"); close >= 0 {
		addr = addr[:close]
	}
	ident.SenderEmail = strings.TrimSpace(addr)
	return ident
}

// headerValue returns the value of the first header whose name matches
// case-insensitively, or "".
func headerValue(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ValidEmail reports whether addr is a well-formed email address. Invalid
// sender addresses degrade to an empty publisher reference rather than
// failing the message.
func ValidEmail(addr string) bool {
	if addr == "" {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}
