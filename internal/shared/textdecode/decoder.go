// Package textdecode turns raw process output into valid UTF-8 text.
//
// Invalid byte sequences are replaced with U+FFFD instead of aborting the
// stream. The streaming reader holds back an incomplete multi-byte sequence
// at the end of a read until the next read completes it, so a rune split
// across two PTY reads is not turned into two replacement characters.
package textdecode

import (
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Replacement is the rune substituted for undecodable input.
const Replacement = "\uFFFD"

// NewReader wraps r with a lossy UTF-8 decoder.
func NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.UTF8.NewDecoder())
}

// String decodes a complete chunk lossily.
func String(b []byte) string {
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	if err != nil {
		return strings.ToValidUTF8(string(b), Replacement)
	}
	return string(out)
}
