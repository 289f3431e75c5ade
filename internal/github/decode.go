package github

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
)

// DecodeContent turns a contents-API payload into text. Whitespace anywhere in
// a base64 payload is ignored; invalid UTF-8 sequences become U+FFFD.
func DecodeContent(content, encoding string) (string, error) {
	var raw []byte
	switch strings.ToLower(encoding) {
	case "base64":
		cleaned := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, content)
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return "", fmt.Errorf("decoding base64: %w", err)
		}
		raw = decoded
	case "", "utf-8", "text":
		raw = []byte(content)
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding)
	}

	return strings.ToValidUTF8(string(raw), "\uFFFD"), nil
}
