package ingest

import "encoding/base64"

// ExtractContent selects the canonical textual body of a message payload.
//
// It scans the immediate sub-parts and keeps the longest decoded text/html
// and text/plain candidates; ties keep the earlier part. Preference order
// for the result: html > plaintext > top-level inline data > "".
func ExtractContent(payload *BodyPart) string {
	if payload == nil {
		return ""
	}

	var html, plaintext string

	for _, p := range payload.Parts {
		switch p.MimeType {
		case "text/html":
			if decoded := decodeBase64URL(p.Data); len(decoded) > len(html) {
				html = decoded
			}
		case "text/plain":
			if decoded := decodeBase64URL(p.Data); len(decoded) > len(plaintext) {
				plaintext = decoded
			}
		}
	}

	if len(html) > 0 {
		return html
	}
	if len(plaintext) > 0 {
		return plaintext
	}
	return decodeBase64URL(payload.Data)
}

// decodeBase64URL decodes base64url data to UTF-8 text. Malformed input
// yields "", so a bad part simply drops out of candidate selection.
func decodeBase64URL(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}
