package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const cursorSeparator = ","

// EncodeCursor creates an opaque cursor string from the internal date and
// article id of the last item on a page.
func EncodeCursor(internalDate, id string) string {
	key := internalDate + cursorSeparator + id
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor parses the opaque cursor string back into internal date and
// article id.
func DecodeCursor(encodedCursor string) (internalDate, id string, err error) {
	decodedBytes, err := base64.URLEncoding.DecodeString(encodedCursor)
	if err != nil {
		return "", "", fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decodedBytes), cursorSeparator, 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor format")
	}

	return parts[0], parts[1], nil
}
