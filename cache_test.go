package spacetraveling

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eringen/spacetraveling/cms"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(t *testing.T, src Source, store *Store) (*PostCache, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewPostCache(src, store, time.Hour, NewLogger(io.Discard, "text"))
	c.now = clk.now
	return c, clk
}

func TestCacheServesWithinTTL(t *testing.T) {
	src := newFakeSource()
	c, clk := newTestCache(t, src, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := c.FirstPage(ctx); err != nil {
			t.Fatalf("FirstPage failed: %v", err)
		}
	}
	if n := src.count("first"); n != 1 {
		t.Errorf("source hit %d times within TTL, want 1", n)
	}

	clk.t = clk.t.Add(2 * time.Hour)
	c.FirstPage(ctx)
	if n := src.count("first"); n != 2 {
		t.Errorf("source hit %d times after TTL, want 2", n)
	}
}

func TestCacheInvalidate(t *testing.T) {
	src := newFakeSource()
	c, _ := newTestCache(t, src, nil)
	ctx := context.Background()

	c.GetPost(ctx, "p1")
	c.Invalidate()
	c.GetPost(ctx, "p1")
	if n := src.count("post:p1"); n != 2 {
		t.Errorf("source hit %d times, want 2", n)
	}
}

func TestCacheServesExpiredEntryWhenCMSFails(t *testing.T) {
	src := newFakeSource()
	c, clk := newTestCache(t, src, nil)
	ctx := context.Background()

	c.FirstPage(ctx)
	c.GetPost(ctx, "p1")
	clk.t = clk.t.Add(2 * time.Hour)
	src.fail(errCMSDown)

	page, stale, err := c.FirstPage(ctx)
	if err != nil || !stale {
		t.Fatalf("FirstPage = stale %v, err %v; want stale page", stale, err)
	}
	if uids(page.Results) != "p1,p2" {
		t.Errorf("page = %s", uids(page.Results))
	}

	post, stale, err := c.GetPost(ctx, "p1")
	if err != nil || !stale || post.UID != "p1" {
		t.Errorf("GetPost = %q stale %v err %v", post.UID, stale, err)
	}
}

func TestCacheFallsBackToSnapshot(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	warm, _ := newTestCache(t, newFakeSource(), store)
	if _, err := warm.AllSummaries(ctx); err != nil {
		t.Fatalf("AllSummaries failed: %v", err)
	}
	if _, _, err := warm.GetPost(ctx, "p2"); err != nil {
		t.Fatalf("GetPost failed: %v", err)
	}

	// A fresh process with the CMS down.
	down := newFakeSource()
	down.fail(errCMSDown)
	cold, _ := newTestCache(t, down, store)

	page, stale, err := cold.FirstPage(ctx)
	if err != nil || !stale {
		t.Fatalf("FirstPage = stale %v err %v", stale, err)
	}
	if uids(page.Results) != "p1,p2,p3,p4,p5" {
		t.Errorf("snapshot listing = %s", uids(page.Results))
	}
	if page.NextPage != "" {
		t.Errorf("snapshot listing must not offer a cursor")
	}

	post, stale, err := cold.GetPost(ctx, "p2")
	if err != nil || !stale || post.Data.Title != "Title p2" {
		t.Errorf("GetPost = %+v stale %v err %v", post.Data, stale, err)
	}

	if _, _, err := cold.GetPost(ctx, "p3"); !errors.Is(err, errCMSDown) {
		t.Errorf("post never snapshotted should fail with the CMS error, got %v", err)
	}
}

func TestCacheNotFoundDropsSnapshot(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	src := newFakeSource()
	c, clk := newTestCache(t, src, store)
	c.GetPost(ctx, "p1")

	src.mu.Lock()
	delete(src.posts, "p1")
	src.mu.Unlock()
	clk.t = clk.t.Add(2 * time.Hour)

	if _, _, err := c.GetPost(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetPost("p1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("snapshot should drop a deleted post, err = %v", err)
	}
}

func TestCacheFetchPageReused(t *testing.T) {
	src := newFakeSource()
	c, _ := newTestCache(t, src, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.FetchPage(ctx, cursor2); err != nil {
			t.Fatalf("FetchPage failed: %v", err)
		}
	}
	if n := src.count("page:" + cursor2); n != 1 {
		t.Errorf("source hit %d times, want 1", n)
	}
}

func TestCacheAllSummariesWalksEveryPage(t *testing.T) {
	c, _ := newTestCache(t, newFakeSource(), nil)

	all, err := c.AllSummaries(context.Background())
	if err != nil {
		t.Fatalf("AllSummaries failed: %v", err)
	}
	if uids(all) != "p1,p2,p3,p4,p5" {
		t.Errorf("all = %s", uids(all))
	}
}

// gatedSource blocks FirstPage until release is closed.
type gatedSource struct {
	*fakeSource
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedSource) FirstPage(ctx context.Context) (cms.ListingPage, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return cms.ListingPage{}, ctx.Err()
	}
	return s.fakeSource.FirstPage(ctx)
}

func TestCacheSharedFetchOutlivesCancelledCaller(t *testing.T) {
	src := &gatedSource{fakeSource: newFakeSource(), started: make(chan struct{}), release: make(chan struct{})}
	c, _ := newTestCache(t, src, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := c.FirstPage(ctxA)
		errA <- err
	}()
	<-src.started

	type result struct {
		page cms.ListingPage
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		page, _, err := c.FirstPage(context.Background())
		resB <- result{page, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller err = %v, want context.Canceled", err)
	}

	close(src.release)
	got := <-resB
	if got.err != nil {
		t.Fatalf("live caller failed: %v", got.err)
	}
	if uids(got.page.Results) != "p1,p2" {
		t.Errorf("page = %s", uids(got.page.Results))
	}
	if n := src.count("first"); n != 1 {
		t.Errorf("source hit %d times, want 1", n)
	}
}
