package spacetraveling

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

var monthsPT = [12]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// FormatDate renders t as "02 jan 2021" with Brazilian Portuguese month
// abbreviations. A nil timestamp renders as an empty string.
func FormatDate(t *cms.Timestamp) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d %s %d", t.Day(), monthsPT[t.Month()-1], t.Year())
}

// ISODate renders t as an RFC 3339 date for machine-readable attributes.
func ISODate(t *cms.Timestamp) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
// With no segments it returns the site root.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// safePathSegment reports whether s can be used as a single directory name.
func safePathSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\\x00")
}

// loadMoreURL returns the fragment URL that loads listing page n from cursor.
// Static builds link to the pre-rendered fragment instead.
func (a *App) loadMoreURL(cursor string, n int) string {
	if cursor == "" {
		return ""
	}
	if a.static {
		return "/posts/more/" + strconv.Itoa(n) + "/"
	}
	v := url.Values{}
	v.Set("cursor", cursor)
	v.Set("page", strconv.Itoa(n))
	return "/posts/more/?" + v.Encode()
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(post cms.Post, readingTime int, cfg SiteConfig) string {
	postURL := BuildURL(cfg.URL, "post", post.UID)
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "BlogPosting",
		"headline":    post.Data.Title,
		"description": post.Data.Subtitle,
		"url":         postURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if d := ISODate(post.FirstPublicationDate); d != "" {
		data["datePublished"] = d
	}
	if d := ISODate(post.LastPublicationDate); d != "" {
		data["dateModified"] = d
	}
	if readingTime > 0 {
		data["timeRequired"] = "PT" + strconv.Itoa(readingTime) + "M"
	}
	if post.Data.Banner.URL != "" {
		data["image"] = post.Data.Banner.URL
	}
	author := post.Data.Author
	if author == "" {
		author = cfg.Author
	}
	if author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  author,
		}
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
