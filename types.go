package spacetraveling

import "github.com/eringen/spacetraveling/cms"

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = cms.ErrNotFound

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image, optional
}

// HomeView is what the listing page template receives.
type HomeView struct {
	Config SiteConfig
	Meta   PageMeta
	Posts  []cms.PostSummary
	// LoadMoreURL is the fragment URL for the next page; empty when there
	// are no more pages.
	LoadMoreURL string
	Notices     []string
	// Stale is set when the listing came from the snapshot store because
	// the CMS could not be reached.
	Stale  bool
	JSONLD string
}

// LoadMoreView is an HTMX fragment holding the posts of one extra page and
// the replacement trigger.
type LoadMoreView struct {
	Config      SiteConfig
	Posts       []cms.PostSummary
	LoadMoreURL string
	// Notice is shown in place of new posts when the page could not be
	// loaded.
	Notice string
}

// PostView is what the post page template receives.
type PostView struct {
	Config      SiteConfig
	Meta        PageMeta
	Post        cms.Post
	BannerURL   string
	ReadingTime int
	Stale       bool
	JSONLD      string
}
