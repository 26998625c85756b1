package stt

import (
	"regexp"
	"strings"
)

var (
	// [00:00:00.000 --> 00:00:04.000] prefixes printed by whisper.cpp.
	reTimestamp = regexp.MustCompile(`\[\d{2}:\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}\.\d{3}\]`)
	// Non-speech markers such as [BLANK_AUDIO], [MUSIC] or (silence).
	reMarker = regexp.MustCompile(`\[[A-Z_ ]+\]|\((?i:silence|music|noise|inaudible)\)`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// CleanText strips whisper.cpp timestamps and non-speech markers and
// collapses whitespace.
func CleanText(text string) string {
	text = reTimestamp.ReplaceAllString(text, " ")
	text = reMarker.ReplaceAllString(text, " ")
	return strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
}
