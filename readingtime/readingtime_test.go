package readingtime

import (
	"strings"
	"testing"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/richtext"
)

// words builds a paragraph of n words.
func words(n int) richtext.Blocks {
	return richtext.Blocks{{Type: richtext.Paragraph, Text: strings.TrimSpace(strings.Repeat("word ", n))}}
}

func TestEstimateEmpty(t *testing.T) {
	if got := Estimate(nil); got != 0 {
		t.Errorf("Estimate(nil) = %d, want 0", got)
	}
	if got := Estimate([]cms.Section{}); got != 0 {
		t.Errorf("Estimate([]) = %d, want 0", got)
	}
}

func TestEstimateCeiling(t *testing.T) {
	tests := []struct {
		name     string
		sections []cms.Section
		want     int
	}{
		{"one word", []cms.Section{{Body: words(1)}}, 1},
		{"exactly 200", []cms.Section{{Body: words(200)}}, 1},
		{"201", []cms.Section{{Body: words(201)}}, 2},
		{"heading counts", []cms.Section{{Heading: "Two words", Body: words(199)}}, 2},
		{"across sections", []cms.Section{{Heading: "a", Body: words(99)}, {Heading: "b", Body: words(99)}}, 1},
		{"across sections over", []cms.Section{{Heading: "a", Body: words(100)}, {Heading: "b", Body: words(100)}}, 2},
		{"400", []cms.Section{{Body: words(400)}}, 2},
		{"empty section", []cms.Section{{}}, 0},
	}
	for _, tt := range tests {
		if got := Estimate(tt.sections); got != tt.want {
			t.Errorf("%s: Estimate = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestEstimateCountsAllBodyBlocks(t *testing.T) {
	body := richtext.Blocks{
		{Type: richtext.Paragraph, Text: strings.TrimSpace(strings.Repeat("a ", 150))},
		{Type: richtext.ListItem, Text: strings.TrimSpace(strings.Repeat("b ", 51))},
	}
	if got := Estimate([]cms.Section{{Body: body}}); got != 2 {
		t.Errorf("Estimate = %d, want 2", got)
	}
}

func TestEstimateMonotonic(t *testing.T) {
	prev := 0
	for n := 1; n <= 1000; n += 7 {
		got := Estimate([]cms.Section{{Heading: "Heading", Body: words(n)}})
		if got < prev {
			t.Fatalf("Estimate decreased from %d to %d at %d words", prev, got, n)
		}
		prev = got
	}
}

func TestWordsSplitsOnWhitespace(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one  two\tthree\nfour", 4},
	}
	for _, tt := range tests {
		if got := Words(tt.input); got != tt.want {
			t.Errorf("Words(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
