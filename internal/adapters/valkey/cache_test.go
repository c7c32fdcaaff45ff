package valkey

import "testing"

func TestGlobEscaper(t *testing.T) {
	tests := map[string]string{
		"trail:segments:abc:": "trail:segments:abc:",
		"a*b?":                `a\*b\?`,
		"[x]":                 `\[x\]`,
		`c:\d`:                `c:\\d`,
	}
	for in, want := range tests {
		if got := globEscaper.Replace(in); got != want {
			t.Errorf("escape(%q) = %q, want %q", in, got, want)
		}
	}
}
