package pathcodec

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	paths := []string{
		"",
		"/",
		"/albums/trip",
		"photo.jpg",
		"vacation [beach][2024].jpg",
		"/räksmörgås/ünïcode/日本語.txt",
		"a/b//c/../d",
		"name with spaces and +?&%#.md",
		string([]byte{0x00, 0xff, 0x7f}),
	}

	for _, p := range paths {
		token := Encode(p)
		got, err := Decode(token)
		if err != nil {
			t.Fatalf("Decode(Encode(%q)): %v", p, err)
		}
		if got != p {
			t.Errorf("round trip %q: got %q", p, got)
		}
	}
}

func TestEncodeDeterministic(t *testing.T) {
	if Encode("/albums/trip") != Encode("/albums/trip") {
		t.Error("same input produced different tokens")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tokens := []string{
		"not valid base64!!!",
		"%%%%",
		"a b c",
		"ZZZZ=====",
	}

	for _, tok := range tokens {
		if _, err := Decode(tok); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Decode(%q): expected ErrMalformedToken, got %v", tok, err)
		}
	}
}

func TestTokenIsURLSafe(t *testing.T) {
	token := Encode("/albums/trip/photo [tag].jpg")
	for _, c := range token {
		if c == '/' || c == '+' || c == '=' || c == '?' || c == '&' {
			t.Errorf("token contains unsafe character %q: %s", c, token)
		}
	}
}
