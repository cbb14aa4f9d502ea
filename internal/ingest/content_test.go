package ingest

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestExtractContentLongestHTMLWins(t *testing.T) {
	short := strings.Repeat("a", 5)
	long := strings.Repeat("b", 20)
	plain := strings.Repeat("c", 50)

	payload := &BodyPart{
		MimeType: "multipart/alternative",
		Parts: []BodyPart{
			{MimeType: "text/html", Data: b64(short)},
			{MimeType: "text/plain", Data: b64(plain)},
			{MimeType: "text/html", Data: b64(long)},
		},
	}

	// Longest html beats any plaintext, regardless of length.
	assert.Equal(t, long, ExtractContent(payload))
}

func TestExtractContentTieKeepsEarlier(t *testing.T) {
	payload := &BodyPart{
		Parts: []BodyPart{
			{MimeType: "text/html", Data: b64("first")},
			{MimeType: "text/html", Data: b64("later")},
		},
	}

	assert.Equal(t, "first", ExtractContent(payload))
}

func TestExtractContentPlaintextFallback(t *testing.T) {
	payload := &BodyPart{
		Parts: []BodyPart{
			{MimeType: "text/plain", Data: b64("hi")},
		},
	}

	assert.Equal(t, "hi", ExtractContent(payload))
}

func TestExtractContentTopLevelData(t *testing.T) {
	payload := &BodyPart{MimeType: "text/plain", Data: "Zm9v"}

	assert.Equal(t, "foo", ExtractContent(payload))
}

func TestExtractContentEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractContent(&BodyPart{}))
	assert.Equal(t, "", ExtractContent(nil))
}

func TestExtractContentIgnoresOtherMimeTypes(t *testing.T) {
	payload := &BodyPart{
		Parts: []BodyPart{
			{MimeType: "image/png", Data: b64("pixels")},
			{MimeType: "text/plain", Data: b64("body")},
		},
	}

	assert.Equal(t, "body", ExtractContent(payload))
}

func TestExtractContentMalformedDataDropsCandidate(t *testing.T) {
	payload := &BodyPart{
		Parts: []BodyPart{
			{MimeType: "text/html", Data: "!!!!"},
			{MimeType: "text/plain", Data: b64("still here")},
		},
	}

	assert.Equal(t, "still here", ExtractContent(payload))
}

func TestDecodeBase64URLAcceptsPadding(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("padded"))

	assert.Equal(t, "padded", decodeBase64URL(padded))
	assert.Equal(t, "unpadded", decodeBase64URL(b64("unpadded")))
	assert.Equal(t, "", decodeBase64URL(""))
	assert.Equal(t, "", decodeBase64URL("not base64!"))
}
