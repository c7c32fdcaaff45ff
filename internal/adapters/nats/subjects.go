package natsadapter

import "strings"

const (
	sampleSubjectPrefix = "tracking.sample."
	changeSubjectPrefix = "trail.changed."

	// ChangeSubjects matches every trail change event.
	ChangeSubjects = changeSubjectPrefix + ">"
)

// SampleSubject is the subject position fixes from sourceID are published on.
func SampleSubject(sourceID string) string {
	return sampleSubjectPrefix + token(sourceID)
}

// ChangeSubject is the subject change events of one session are published on.
func ChangeSubject(sessionID string) string {
	return changeSubjectPrefix + token(sessionID)
}

// token makes s usable as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
