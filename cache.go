package spacetraveling

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/paginator"
)

// maxCachedPages bounds the number of cursor pages kept in memory.
const maxCachedPages = 256

// sharedFetchTimeout bounds an upstream fetch shared by concurrent callers.
// The fetch is detached from any single caller's context.
const sharedFetchTimeout = 30 * time.Second

type cachedPage struct {
	page    cms.ListingPage
	fetched time.Time
}

type cachedPost struct {
	post    cms.Post
	fetched time.Time
}

// PostCache is an in-memory cache of CMS content with a revalidation TTL.
// Concurrent misses for the same key share one upstream request. When the
// CMS fails, expired entries and then the snapshot store are served as
// stale content.
type PostCache struct {
	source Source
	store  *Store
	ttl    time.Duration
	log    *Logger
	now    func() time.Time
	group  singleflight.Group

	mu      sync.RWMutex
	first   *cachedPage
	pages   map[string]cachedPage
	posts   map[string]cachedPost
	all     []cms.PostSummary
	allTime time.Time
}

// NewPostCache creates a PostCache over source. store may be nil, in which
// case failures are never masked.
func NewPostCache(source Source, store *Store, ttl time.Duration, log *Logger) *PostCache {
	return &PostCache{
		source: source,
		store:  store,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
		pages:  make(map[string]cachedPage),
		posts:  make(map[string]cachedPost),
	}
}

func (c *PostCache) fresh(t time.Time) bool {
	return c.now().Sub(t) < c.ttl
}

// shared runs fn once per key for all concurrent callers. A caller whose ctx
// ends stops waiting without cancelling the fetch for the others.
func (c *PostCache) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.first = nil
	c.pages = make(map[string]cachedPage)
	c.posts = make(map[string]cachedPost)
	c.all = nil
	c.mu.Unlock()
}

// FirstPage returns the newest listing page. stale reports that the page was
// served from an expired entry or the snapshot store after a CMS failure.
func (c *PostCache) FirstPage(ctx context.Context) (page cms.ListingPage, stale bool, err error) {
	c.mu.RLock()
	first := c.first
	c.mu.RUnlock()
	if first != nil && c.fresh(first.fetched) {
		return first.page, false, nil
	}

	v, err := c.shared(ctx, "first", func(ctx context.Context) (any, error) {
		p, err := c.source.FirstPage(ctx)
		if err != nil {
			return nil, err
		}
		c.log.Debug("fetched first listing page", "posts", len(p.Results))
		c.mu.Lock()
		c.first = &cachedPage{page: p, fetched: c.now()}
		c.mu.Unlock()
		c.snapshotSummaries(p.Results, false)
		return p, nil
	})
	if err == nil {
		return v.(cms.ListingPage), false, nil
	}

	if first != nil {
		c.log.Warn("serving expired listing", "error", err)
		return first.page, true, nil
	}
	if c.store != nil {
		summaries, serr := c.store.ListSummaries()
		if serr == nil && len(summaries) > 0 {
			c.log.Warn("serving listing from snapshot", "error", err, "posts", len(summaries))
			return cms.ListingPage{Page: 1, TotalPages: 1, TotalResults: len(summaries), Results: summaries}, true, nil
		}
	}
	return cms.ListingPage{}, false, err
}

// FetchPage returns the page a cursor points at. It satisfies
// paginator.PageFetcher, so paginators built over the cache reuse pages
// already fetched by other requests.
func (c *PostCache) FetchPage(ctx context.Context, cursor string) (cms.ListingPage, error) {
	c.mu.RLock()
	cached, ok := c.pages[cursor]
	c.mu.RUnlock()
	if ok && c.fresh(cached.fetched) {
		return cached.page, nil
	}

	v, err := c.shared(ctx, "page:"+cursor, func(ctx context.Context) (any, error) {
		p, err := c.source.FetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		c.log.Debug("fetched listing page", "page", p.Page, "posts", len(p.Results))
		c.mu.Lock()
		if len(c.pages) >= maxCachedPages {
			c.pages = make(map[string]cachedPage)
		}
		c.pages[cursor] = cachedPage{page: p, fetched: c.now()}
		c.mu.Unlock()
		c.snapshotSummaries(p.Results, false)
		return p, nil
	})
	if err != nil {
		return cms.ListingPage{}, err
	}
	return v.(cms.ListingPage), nil
}

// GetPost returns the post with slug. A post the CMS reports as missing is
// dropped from the cache and the snapshot store.
func (c *PostCache) GetPost(ctx context.Context, slug string) (post cms.Post, stale bool, err error) {
	c.mu.RLock()
	cached, ok := c.posts[slug]
	c.mu.RUnlock()
	if ok && c.fresh(cached.fetched) {
		return cached.post, false, nil
	}

	v, err := c.shared(ctx, "post:"+slug, func(ctx context.Context) (any, error) {
		p, err := c.source.GetPost(ctx, slug)
		if err != nil {
			return nil, err
		}
		c.log.Debug("fetched post", "slug", slug)
		c.mu.Lock()
		c.posts[slug] = cachedPost{post: p, fetched: c.now()}
		c.mu.Unlock()
		if c.store != nil {
			if err := c.store.SavePost(p); err != nil {
				c.log.Warn("snapshot post failed", "slug", slug, "error", err)
			}
		}
		return p, nil
	})
	if err == nil {
		return v.(cms.Post), false, nil
	}

	if errors.Is(err, ErrNotFound) {
		c.forget(slug)
		return cms.Post{}, false, err
	}
	if ok {
		c.log.Warn("serving expired post", "slug", slug, "error", err)
		return cached.post, true, nil
	}
	if c.store != nil {
		if p, serr := c.store.GetPost(slug); serr == nil {
			c.log.Warn("serving post from snapshot", "slug", slug, "error", err)
			return p, true, nil
		}
	}
	return cms.Post{}, false, err
}

// AllSummaries walks every listing page and returns all post summaries,
// newest first. It backs the feed, the sitemap, and static builds.
func (c *PostCache) AllSummaries(ctx context.Context) ([]cms.PostSummary, error) {
	c.mu.RLock()
	all, at := c.all, c.allTime
	c.mu.RUnlock()
	if all != nil && c.fresh(at) {
		return all, nil
	}

	first, stale, err := c.FirstPage(ctx)
	if err != nil {
		return nil, err
	}
	if stale {
		return first.Results, nil
	}
	p := paginator.New(c, first)
	if err := p.LoadAll(ctx); err != nil {
		if all != nil {
			c.log.Warn("serving expired post list", "error", err)
			return all, nil
		}
		return nil, err
	}
	all = p.Posts()
	c.mu.Lock()
	c.all, c.allTime = all, c.now()
	c.mu.Unlock()
	c.snapshotSummaries(all, true)
	return all, nil
}

func (c *PostCache) forget(slug string) {
	c.mu.Lock()
	delete(c.posts, slug)
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.DeletePost(slug); err != nil {
			c.log.Warn("snapshot delete failed", "slug", slug, "error", err)
		}
	}
}

func (c *PostCache) snapshotSummaries(summaries []cms.PostSummary, replace bool) {
	if c.store == nil || len(summaries) == 0 {
		return
	}
	var err error
	if replace {
		err = c.store.ReplaceSummaries(summaries)
	} else {
		err = c.store.SaveSummaries(summaries)
	}
	if err != nil {
		c.log.Warn("snapshot listing failed", "error", err)
	}
}
