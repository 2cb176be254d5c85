package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/richtext"
)

const (
	cursor2 = "https://blog.cdn.prismic.io/api/v2/documents/search?page=2"
	cursor3 = "https://blog.cdn.prismic.io/api/v2/documents/search?page=3"
)

var errCMSDown = errors.New("cms unreachable")

// fakeSource serves three listing pages of two posts each.
type fakeSource struct {
	mu    sync.Mutex
	first cms.ListingPage
	pages map[string]cms.ListingPage
	posts map[string]cms.Post
	err   error
	calls map[string]int
}

func ts(y int, m time.Month, d int) *cms.Timestamp {
	return &cms.Timestamp{Time: time.Date(y, m, d, 19, 25, 28, 0, time.UTC)}
}

func summaryOf(uid string, at *cms.Timestamp) cms.PostSummary {
	return cms.PostSummary{
		UID:                  uid,
		FirstPublicationDate: at,
		Data:                 cms.SummaryData{Title: "Title " + uid, Subtitle: "Subtitle " + uid, Author: "Author " + uid},
	}
}

func newFakeSource() *fakeSource {
	s := &fakeSource{
		pages: make(map[string]cms.ListingPage),
		posts: make(map[string]cms.Post),
		calls: make(map[string]int),
	}
	all := []cms.PostSummary{
		summaryOf("p1", ts(2021, time.March, 25)),
		summaryOf("p2", ts(2021, time.March, 20)),
		summaryOf("p3", ts(2021, time.March, 15)),
		summaryOf("p4", ts(2021, time.March, 10)),
		summaryOf("p5", ts(2021, time.March, 5)),
	}
	s.first = cms.ListingPage{Page: 1, TotalPages: 3, TotalResults: 5, NextPage: cursor2, Results: all[0:2]}
	s.pages[cursor2] = cms.ListingPage{Page: 2, TotalPages: 3, TotalResults: 5, NextPage: cursor3, Results: all[2:4]}
	s.pages[cursor3] = cms.ListingPage{Page: 3, TotalPages: 3, TotalResults: 5, Results: all[4:5]}
	for _, p := range all {
		s.posts[p.UID] = cms.Post{
			UID:                  p.UID,
			FirstPublicationDate: p.FirstPublicationDate,
			Data: cms.PostData{
				Title:  p.Data.Title,
				Author: p.Data.Author,
				Content: []cms.Section{{
					Heading: "Heading",
					Body:    richtext.Blocks{{Type: richtext.Paragraph, Text: strings.TrimSpace(strings.Repeat("word ", 200))}},
				}},
			},
		}
	}
	return s
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeSource) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *fakeSource) FirstPage(ctx context.Context) (cms.ListingPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["first"]++
	if s.err != nil {
		return cms.ListingPage{}, s.err
	}
	return s.first, nil
}

func (s *fakeSource) FetchPage(ctx context.Context, cursor string) (cms.ListingPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["page:"+cursor]++
	if s.err != nil {
		return cms.ListingPage{}, s.err
	}
	p, ok := s.pages[cursor]
	if !ok {
		return cms.ListingPage{}, cms.ErrForeignLink
	}
	return p, nil
}

func (s *fakeSource) GetPost(ctx context.Context, slug string) (cms.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["post:"+slug]++
	if s.err != nil {
		return cms.Post{}, s.err
	}
	p, ok := s.posts[slug]
	if !ok {
		return cms.Post{}, fmt.Errorf("%w: %s", cms.ErrNotFound, slug)
	}
	return p, nil
}

func uids(posts []cms.PostSummary) string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.UID
	}
	return strings.Join(ids, ",")
}

func text(format string, args ...any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	})
}

func stubViews() ViewFuncs {
	return ViewFuncs{
		Home: func(v HomeView) templ.Component {
			return text("home posts=%s more=%s notices=%s stale=%t", uids(v.Posts), v.LoadMoreURL, strings.Join(v.Notices, "|"), v.Stale)
		},
		LoadMore: func(v LoadMoreView) templ.Component {
			return text("more posts=%s more=%s notice=%s", uids(v.Posts), v.LoadMoreURL, v.Notice)
		},
		Post: func(v PostView) templ.Component {
			return text("post uid=%s min=%d banner=%s stale=%t", v.Post.UID, v.ReadingTime, v.BannerURL, v.Stale)
		},
		NotFound: func(cfg SiteConfig) templ.Component {
			return text("not found")
		},
		ServerError: func(cfg SiteConfig) templ.Component {
			return text("server error")
		},
	}
}

func newTestApp(t *testing.T, src Source, cfg SiteConfig, opts ...Option) *App {
	t.Helper()
	if cfg.SnapshotPath == "" {
		cfg.DisableSnapshot = true
	}
	cfg.SessionSecret = "test-secret"
	if cfg.URL == "" {
		cfg.URL = "https://blog.example.com"
	}
	opts = append([]Option{WithSource(src), WithLogger(NewLogger(io.Discard, "text")), WithStaticDir(t.TempDir())}, opts...)
	a := New(cfg, stubViews(), opts...)
	if err := a.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func get(a *App, target string, htmx bool, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}
