package http

import (
	"slices"
	"testing"

	natsadapter "github.com/samirrijal/breadcrumbs/internal/adapters/nats"
)

func TestChangeSubject(t *testing.T) {
	if got := changeSubject(""); got != natsadapter.ChangeSubjects {
		t.Errorf("empty session: got %q", got)
	}
	if got := changeSubject("abc"); got != natsadapter.ChangeSubject("abc") {
		t.Errorf("session abc: got %q", got)
	}
}

func TestOverlapping(t *testing.T) {
	all := natsadapter.ChangeSubjects
	a := natsadapter.ChangeSubject("a")
	b := natsadapter.ChangeSubject("b")

	tests := []struct {
		name    string
		current []string
		subject string
		want    []string
	}{
		{"session replaces wildcard", []string{all, a}, a, []string{all}},
		{"wildcard replaces sessions", []string{a, b, all}, all, []string{a, b}},
		{"sessions coexist", []string{a, b}, b, nil},
		{"alone", []string{a}, a, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overlapping(tt.current, tt.subject)
			slices.Sort(got)
			if !slices.Equal(got, tt.want) {
				t.Errorf("overlapping(%v, %q) = %v, want %v", tt.current, tt.subject, got, tt.want)
			}
		})
	}
}
