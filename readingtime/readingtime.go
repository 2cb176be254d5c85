// Package readingtime estimates how long a post takes to read.
package readingtime

import (
	"strings"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/richtext"
)

// WordsPerMinute is the assumed reading speed.
const WordsPerMinute = 200

// Words counts whitespace-separated words in s.
func Words(s string) int {
	return len(strings.Fields(s))
}

// SectionWords counts the words of a section heading and body.
func SectionWords(s cms.Section) int {
	return Words(s.Heading) + Words(richtext.AsText(s.Body, " "))
}

// Estimate returns the reading time of sections in whole minutes, rounded up.
// No sections (or no words) is 0 minutes.
func Estimate(sections []cms.Section) int {
	total := 0
	for _, s := range sections {
		total += SectionWords(s)
	}
	return Minutes(total)
}

// Minutes converts a word count to minutes, rounded up.
func Minutes(words int) int {
	if words <= 0 {
		return 0
	}
	return (words + WordsPerMinute - 1) / WordsPerMinute
}
