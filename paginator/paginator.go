// Package paginator accumulates post summaries by following the CMS
// next-page cursor.
package paginator

import (
	"context"
	"errors"
	"fmt"

	"github.com/eringen/spacetraveling/cms"
)

// ErrNoMorePages is returned by LoadMore when the cursor is empty.
var ErrNoMorePages = errors.New("paginator: no more pages")

// PageFetcher fetches the listing page a cursor points at.
type PageFetcher interface {
	FetchPage(ctx context.Context, link string) (cms.ListingPage, error)
}

// Paginator holds an append-only list of posts and the cursor to the next
// page. It is not safe for concurrent use, and concurrent LoadMore calls are
// not deduplicated.
type Paginator struct {
	fetcher PageFetcher
	posts   []cms.PostSummary
	seen    map[string]struct{}
	visited map[string]struct{}
	cursor  string
	pages   int
}

// New starts a Paginator from an already fetched first page.
func New(fetcher PageFetcher, first cms.ListingPage) *Paginator {
	p := &Paginator{
		fetcher: fetcher,
		seen:    make(map[string]struct{}, len(first.Results)),
		visited: make(map[string]struct{}),
		cursor:  first.NextPage,
		pages:   1,
	}
	p.appendUnique(first.Results)
	return p
}

// FromCursor starts an empty Paginator positioned at cursor.
func FromCursor(fetcher PageFetcher, cursor string) *Paginator {
	return &Paginator{
		fetcher: fetcher,
		seen:    make(map[string]struct{}),
		visited: make(map[string]struct{}),
		cursor:  cursor,
	}
}

// Posts returns a copy of the accumulated posts in load order.
func (p *Paginator) Posts() []cms.PostSummary {
	out := make([]cms.PostSummary, len(p.posts))
	copy(out, p.posts)
	return out
}

// Len returns the number of accumulated posts.
func (p *Paginator) Len() int {
	return len(p.posts)
}

// Cursor returns the link to the next page, or "" on the last page.
func (p *Paginator) Cursor() string {
	return p.cursor
}

// HasMore reports whether a next page exists. The load-more trigger should
// only be offered when it does.
func (p *Paginator) HasMore() bool {
	return p.cursor != ""
}

// Pages returns how many pages have been loaded.
func (p *Paginator) Pages() int {
	return p.pages
}

// LoadMore fetches the page at the cursor, appends its posts and advances the
// cursor. It returns the posts that were appended. On failure the posts and
// cursor are left untouched.
func (p *Paginator) LoadMore(ctx context.Context) ([]cms.PostSummary, error) {
	if p.cursor == "" {
		return nil, ErrNoMorePages
	}
	page, err := p.fetcher.FetchPage(ctx, p.cursor)
	if err != nil {
		return nil, fmt.Errorf("paginator: load more: %w", err)
	}
	added := p.appendUnique(page.Results)
	p.visited[p.cursor] = struct{}{}
	p.cursor = page.NextPage
	if _, loop := p.visited[p.cursor]; loop {
		p.cursor = ""
	}
	p.pages++
	return added, nil
}

// LoadAll calls LoadMore until there are no more pages.
func (p *Paginator) LoadAll(ctx context.Context) error {
	for p.HasMore() {
		if _, err := p.LoadMore(ctx); err != nil {
			return err
		}
	}
	return nil
}

// appendUnique appends posts whose slug is not already present.
func (p *Paginator) appendUnique(results []cms.PostSummary) []cms.PostSummary {
	start := len(p.posts)
	for _, r := range results {
		if _, dup := p.seen[r.UID]; dup {
			continue
		}
		p.seen[r.UID] = struct{}{}
		p.posts = append(p.posts, r)
	}
	return p.posts[start:len(p.posts):len(p.posts)]
}
