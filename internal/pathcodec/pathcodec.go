// Package pathcodec encodes collection paths and element basenames into
// URL-safe tokens. Paths may contain slashes, spaces and arbitrary unicode,
// so they cannot travel as plain URL path segments; the codec gives them a
// single flat, reversible transport form.
package pathcodec

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrMalformedToken is returned when a token is not a validly encoded path.
var ErrMalformedToken = errors.New("pathcodec: malformed token")

// Encode returns the URL-safe token for a raw path or basename.
// Encoding is deterministic and reversible for any byte sequence.
func Encode(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode recovers the raw path from a token produced by Encode.
func Decode(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}
	return string(raw), nil
}
