// Package encoding makes opaque identifiers safe for use in URL paths.
// The backend expects standard base64 with the alphabet substitution
// '+' -> '.', '/' -> '_', '=' -> '-'.
package encoding

import (
	"encoding/base64"
	"strings"
)

var (
	toPathSafe   = strings.NewReplacer("+", ".", "/", "_", "=", "-")
	fromPathSafe = strings.NewReplacer(".", "+", "_", "/", "-", "=")
)

// Base64URL encodes an identifier for use as a URL path segment. The output
// never contains '+', '/' or '='.
func Base64URL(id string) string {
	return toPathSafe.Replace(base64.StdEncoding.EncodeToString([]byte(id)))
}

// DecodeBase64URL reverses Base64URL.
func DecodeBase64URL(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(fromPathSafe.Replace(encoded))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
