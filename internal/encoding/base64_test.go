package encoding

import (
	"strings"
	"testing"
)

func TestBase64URL_PathSafeAlphabet(t *testing.T) {
	t.Parallel()

	// Inputs chosen so the plain base64 form contains '+', '/' and padding.
	inputs := []string{
		"wg0",
		"peer>?>",
		"a",
		"ab",
		"abc",
		"\xfb\xff\xfe",
		"user@example.com",
		"id with spaces and ümläuts",
	}
	for _, in := range inputs {
		out := Base64URL(in)
		if strings.ContainsAny(out, "+/=") {
			t.Fatalf("Base64URL(%q)=%q contains a path-unsafe character", in, out)
		}
	}
}

func TestBase64URL_RoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{"", "wg0", "peer>?>", "\x00\x01\x02", "über-peer"}
	for _, in := range inputs {
		got, err := DecodeBase64URL(Base64URL(in))
		if err != nil {
			t.Fatalf("DecodeBase64URL(%q): %v", in, err)
		}
		if got != in {
			t.Fatalf("round trip: got %q want %q", got, in)
		}
	}
}

func TestDecodeBase64URL_RejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := DecodeBase64URL("!!!!"); err == nil {
		t.Fatalf("expected error")
	}
}
