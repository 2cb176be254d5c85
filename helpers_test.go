package spacetraveling

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   *cms.Timestamp
		want string
	}{
		{ts(2021, time.March, 15), "15 mar 2021"},
		{&cms.Timestamp{Time: time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC)}, "01 fev 2021"},
		{&cms.Timestamp{Time: time.Date(2020, time.December, 31, 0, 0, 0, 0, time.UTC)}, "31 dez 2020"},
		{&cms.Timestamp{Time: time.Date(2021, time.May, 9, 0, 0, 0, 0, time.UTC)}, "09 mai 2021"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := FormatDate(tt.in); got != tt.want {
			t.Errorf("FormatDate(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		expected string
	}{
		{"https://example.com", nil, "https://example.com/"},
		{"https://example.com", []string{"post", "hello"}, "https://example.com/post/hello/"},
		{"https://example.com/blog", []string{"post", "x"}, "https://example.com/blog/post/x/"},
	}
	for _, tt := range tests {
		if got := BuildURL(tt.base, tt.segments...); got != tt.expected {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tt.base, tt.segments, got, tt.expected)
		}
	}
}

func TestSafePathSegment(t *testing.T) {
	for _, s := range []string{"como-utilizar-hooks", "a.b"} {
		if !safePathSegment(s) {
			t.Errorf("%q should be safe", s)
		}
	}
	for _, s := range []string{"", ".", "..", "a/b", `a\b`, "a\x00"} {
		if safePathSegment(s) {
			t.Errorf("%q should be unsafe", s)
		}
	}
}

func TestLoadMoreURL(t *testing.T) {
	a := &App{}
	if got := a.loadMoreURL("", 2); got != "" {
		t.Errorf("empty cursor should give no URL, got %q", got)
	}
	if got := a.loadMoreURL("https://cms/api?page=2&x=1", 2); got != "/posts/more/?cursor=https%3A%2F%2Fcms%2Fapi%3Fpage%3D2%26x%3D1&page=2" {
		t.Errorf("loadMoreURL = %q", got)
	}
	a.static = true
	if got := a.loadMoreURL("anything", 4); got != "/posts/more/4/" {
		t.Errorf("static loadMoreURL = %q", got)
	}
}

func TestBlogPostingJsonLD(t *testing.T) {
	post := cms.Post{
		UID:                  "hooks",
		FirstPublicationDate: ts(2021, time.March, 15),
		Data:                 cms.PostData{Title: "Hooks", Subtitle: "Sub", Author: "Joseph"},
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(BlogPostingJsonLD(post, 3, SiteConfig{Name: "spacetraveling", URL: "https://example.com"})), &got); err != nil {
		t.Fatalf("invalid JSON-LD: %v", err)
	}
	if got["headline"] != "Hooks" || got["url"] != "https://example.com/post/hooks/" {
		t.Errorf("JSON-LD = %v", got)
	}
	if got["timeRequired"] != "PT3M" {
		t.Errorf("timeRequired = %v", got["timeRequired"])
	}
	if !strings.HasPrefix(got["datePublished"].(string), "2021-03-15") {
		t.Errorf("datePublished = %v", got["datePublished"])
	}
	if _, ok := got["dateModified"]; ok {
		t.Error("dateModified should be omitted without a last publication date")
	}
}

func TestWebsiteJsonLD(t *testing.T) {
	var got map[string]any
	if err := json.Unmarshal([]byte(WebsiteJsonLD(SiteConfig{Name: "n", URL: "https://example.com", Author: "a"})), &got); err != nil {
		t.Fatalf("invalid JSON-LD: %v", err)
	}
	if got["@type"] != "WebSite" || got["url"] != "https://example.com/" {
		t.Errorf("JSON-LD = %v", got)
	}
}
