package jsonutil

import "testing"

func highSurrogate() string  { return string([]byte{0xED, 0xA0, 0x80}) }
func lowSurrogate() string   { return string([]byte{0xED, 0xB0, 0x80}) }

func TestSanitizeSurrogates_RemovesUnpaired(t *testing.T) {
	in := "hello" + highSurrogate() + "world"
	out := SanitizeSurrogates(in)
	if out != "helloworld" {
		t.Errorf("got %q", out)
	}
}

func TestSanitizeSurrogates_KeepsPairs(t *testing.T) {
	pair := highSurrogate() + lowSurrogate()
	in := "a" + pair + "b"
	out := SanitizeSurrogates(in)
	if out != in {
		t.Errorf("expected paired surrogates preserved, got %q want %q", out, in)
	}
}

func TestSanitizeSurrogates_Idempotent(t *testing.T) {
	in := "x" + highSurrogate() + lowSurrogate() + highSurrogate() + "y"
	once := SanitizeSurrogates(in)
	twice := SanitizeSurrogates(once)
	if once != twice {
		t.Errorf("not idempotent: %q then %q", once, twice)
	}
}

func TestSanitizeSurrogates_PlainTextUnaffected(t *testing.T) {
	in := "hello, 世界! 🎉"
	if out := SanitizeSurrogates(in); out != in {
		t.Errorf("plain text mutated: %q", out)
	}
}
