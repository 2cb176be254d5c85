// Package richtext renders CMS structured text (a sequence of typed blocks
// with inline spans) as plain text or HTML.
package richtext

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/a-h/templ"
)

// Block types.
const (
	Paragraph    = "paragraph"
	Preformatted = "preformatted"
	Heading1     = "heading1"
	Heading2     = "heading2"
	Heading3     = "heading3"
	Heading4     = "heading4"
	Heading5     = "heading5"
	Heading6     = "heading6"
	ListItem     = "list-item"
	OListItem    = "o-list-item"
	Image        = "image"
	Embed        = "embed"
)

// Span types.
const (
	Strong    = "strong"
	Em        = "em"
	Hyperlink = "hyperlink"
	Label     = "label"
)

// SpanData carries the payload of hyperlink and label spans.
type SpanData struct {
	URL    string `json:"url,omitempty"`
	Target string `json:"target,omitempty"`
	Label  string `json:"label,omitempty"`
}

// Span marks up Text[Start:End] of a block. Offsets count UTF-16 code units,
// as the CMS produces them.
type Span struct {
	Start int       `json:"start" validate:"gte=0"`
	End   int       `json:"end" validate:"gtefield=Start"`
	Type  string    `json:"type" validate:"required"`
	Data  *SpanData `json:"data,omitempty"`
}

// Dimensions of an image block.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Block is one structured-text element.
type Block struct {
	Type       string      `json:"type" validate:"required"`
	Text       string      `json:"text,omitempty"`
	Spans      []Span      `json:"spans,omitempty" validate:"dive"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	OEmbed     *OEmbed     `json:"oembed,omitempty"`
}

// OEmbed is the payload of an embed block.
type OEmbed struct {
	EmbedURL string `json:"embed_url"`
	Title    string `json:"title,omitempty"`
}

// Blocks is a rich-text field.
type Blocks []Block

// AsText returns the text of every text-bearing block joined by sep.
func AsText(blocks Blocks, sep string) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == Image || b.Type == Embed {
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, sep)
}

// Component returns a templ.Component that renders blocks as HTML.
func Component(blocks Blocks) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		RenderHTML(&buf, blocks)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// AsHTML returns the HTML rendering of blocks.
func AsHTML(blocks Blocks) string {
	var buf bytes.Buffer
	RenderHTML(&buf, blocks)
	return buf.String()
}

// RenderHTML writes the HTML representation of blocks to buf. Consecutive
// list items are grouped into a single list.
func RenderHTML(buf *bytes.Buffer, blocks Blocks) {
	imageCount := 0
	inList := false
	inOrderedList := false

	flushList := func() {
		if inList {
			buf.WriteString("</ul>")
			inList = false
		}
	}
	flushOrderedList := func() {
		if inOrderedList {
			buf.WriteString("</ol>")
			inOrderedList = false
		}
	}

	for _, b := range blocks {
		switch b.Type {
		case ListItem:
			flushOrderedList()
			if !inList {
				buf.WriteString("<ul>")
				inList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</li>")
			continue
		case OListItem:
			flushList()
			if !inOrderedList {
				buf.WriteString("<ol>")
				inOrderedList = true
			}
			buf.WriteString("<li>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</li>")
			continue
		}

		flushList()
		flushOrderedList()

		switch b.Type {
		case Heading1, Heading2, Heading3, Heading4, Heading5, Heading6:
			tag := "h" + strings.TrimPrefix(b.Type, "heading")
			buf.WriteString("<" + tag + ">")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</" + tag + ">")
		case Preformatted:
			buf.WriteString("<pre>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</pre>")
		case Image:
			src := SafeURL(b.URL)
			if src == "" {
				continue
			}
			imageCount++
			loadAttr := `loading="lazy"`
			if imageCount == 1 {
				loadAttr = `fetchpriority="high"`
			}
			buf.WriteString(`<p class="block-img"><img ` + loadAttr + ` src="` + src + `" alt="` + html.EscapeString(b.Alt) + `"`)
			if b.Dimensions != nil && b.Dimensions.Width > 0 && b.Dimensions.Height > 0 {
				buf.WriteString(` width="` + strconv.Itoa(b.Dimensions.Width) + `" height="` + strconv.Itoa(b.Dimensions.Height) + `"`)
			}
			buf.WriteString(` decoding="async"/></p>`)
		case Embed:
			// Embeds are third-party markup; only link to the source.
			if b.OEmbed == nil {
				continue
			}
			if href := SafeURL(b.OEmbed.EmbedURL); href != "" {
				buf.WriteString(`<p class="embed"><a href="` + href + `" rel="noopener noreferrer">` + href + `</a></p>`)
			}
		default:
			buf.WriteString("<p>")
			buf.WriteString(FormatSpans(b.Text, b.Spans))
			buf.WriteString("</p>")
		}
	}
	flushList()
	flushOrderedList()
}

type spanEvent struct {
	pos   int
	open  bool
	index int
}

// FormatSpans escapes text and wraps the spanned ranges in their tags.
// Overlapping spans are closed and reopened so the output stays well nested.
func FormatSpans(text string, spans []Span) string {
	runes := []rune(text)
	if len(spans) == 0 {
		return strings.ReplaceAll(html.EscapeString(text), "\n", "<br/>")
	}

	// Map UTF-16 offsets to rune offsets.
	offsets := make(map[int]int, len(runes)+1)
	u := 0
	for i, r := range runes {
		offsets[u] = i
		u += utf16.RuneLen(r)
	}
	offsets[u] = len(runes)
	toRune := func(n int) int {
		if n <= 0 {
			return 0
		}
		if n >= u {
			return len(runes)
		}
		for ; n > 0; n-- {
			if r, ok := offsets[n]; ok {
				return r
			}
		}
		return 0
	}

	var events []spanEvent
	for i, s := range spans {
		start, end := toRune(s.Start), toRune(s.End)
		if start >= end {
			continue
		}
		events = append(events, spanEvent{pos: start, open: true, index: i}, spanEvent{pos: end, open: false, index: i})
	}
	sort.SliceStable(events, func(a, b int) bool {
		if events[a].pos != events[b].pos {
			return events[a].pos < events[b].pos
		}
		// Close before open at the same position.
		if events[a].open != events[b].open {
			return !events[a].open
		}
		sa, sb := spans[events[a].index], spans[events[b].index]
		if events[a].open {
			// Longer spans open first so they nest outside.
			return sa.End > sb.End
		}
		// Innermost (latest opened) closes first.
		if sa.Start != sb.Start {
			return sa.Start > sb.Start
		}
		return events[a].index > events[b].index
	})

	var buf strings.Builder
	var stack []int
	cursor := 0
	writeText := func(to int) {
		if to > cursor {
			seg := html.EscapeString(string(runes[cursor:to]))
			buf.WriteString(strings.ReplaceAll(seg, "\n", "<br/>"))
			cursor = to
		}
	}
	for _, ev := range events {
		writeText(ev.pos)
		if ev.open {
			buf.WriteString(openTag(spans[ev.index]))
			stack = append(stack, ev.index)
			continue
		}
		at := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] == ev.index {
				at = i
				break
			}
		}
		if at < 0 {
			continue
		}
		for i := len(stack) - 1; i >= at; i-- {
			buf.WriteString(closeTag(spans[stack[i]]))
		}
		reopen := append([]int(nil), stack[at+1:]...)
		stack = stack[:at]
		for _, idx := range reopen {
			buf.WriteString(openTag(spans[idx]))
			stack = append(stack, idx)
		}
	}
	writeText(len(runes))
	for i := len(stack) - 1; i >= 0; i-- {
		buf.WriteString(closeTag(spans[stack[i]]))
	}
	return buf.String()
}

func openTag(s Span) string {
	switch s.Type {
	case Strong:
		return "<strong>"
	case Em:
		return "<em>"
	case Hyperlink:
		href := ""
		target := ""
		if s.Data != nil {
			href = SafeURL(s.Data.URL)
			target = s.Data.Target
		}
		if href == "" {
			return "<span>"
		}
		if target == "_blank" {
			return `<a href="` + href + `" target="_blank" rel="noopener noreferrer">`
		}
		return `<a href="` + href + `">`
	case Label:
		label := ""
		if s.Data != nil {
			label = s.Data.Label
		}
		return `<span class="` + html.EscapeString(label) + `">`
	default:
		return "<span>"
	}
}

func closeTag(s Span) string {
	switch s.Type {
	case Strong:
		return "</strong>"
	case Em:
		return "</em>"
	case Hyperlink:
		if s.Data != nil && SafeURL(s.Data.URL) != "" {
			return "</a>"
		}
		return "</span>"
	default:
		return "</span>"
	}
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
