package spacetraveling

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/paginator"
)

// BuildOptions controls a static build.
type BuildOptions struct {
	// OutDir receives the generated site (default "dist").
	OutDir string
	// LocalizeBanners downloads and resizes post banners into the output.
	LocalizeBanners bool
	// HTTPClient fetches banners (default: 30s timeout).
	HTTPClient *http.Client
}

// BuildReport summarizes a finished build.
type BuildReport struct {
	Pages    int
	Posts    int
	Banners  int
	Bytes    int64
	Duration time.Duration
}

// buildRoute is a URL rendered through the app and the file it is written to,
// relative to the output directory.
type buildRoute struct {
	url  string
	file string
}

// Build renders the whole site to static files: the listing, one fragment per
// extra listing page, every post, the feed, the sitemap, robots.txt, and the
// assets. Pages are rendered through the app's own handlers. Any failed page
// fails the build.
func (a *App) Build(ctx context.Context, opts BuildOptions) (BuildReport, error) {
	start := time.Now()
	if opts.OutDir == "" {
		opts.OutDir = "dist"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	a.static = true
	if err := a.Init(); err != nil {
		return BuildReport{}, err
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return BuildReport{}, fmt.Errorf("create output dir: %w", err)
	}

	routes, posts, err := a.collectRoutes(ctx)
	if err != nil {
		return BuildReport{}, err
	}

	var report BuildReport
	report.Posts = len(posts)

	if opts.LocalizeBanners {
		n, size, err := a.localizeBanners(ctx, opts, posts)
		if err != nil {
			return BuildReport{}, err
		}
		report.Banners = n
		report.Bytes += size
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.BuildConcurrency)
	for _, r := range routes {
		g.Go(func() error {
			n, err := a.renderRoute(gctx, r, opts.OutDir)
			if err != nil {
				return err
			}
			written.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BuildReport{}, err
	}
	report.Pages = len(routes)
	report.Bytes += written.Load()

	assets, err := a.copyAssets(opts.OutDir)
	if err != nil {
		return BuildReport{}, err
	}
	report.Bytes += assets
	report.Duration = time.Since(start)

	a.Logger.Info("build finished",
		"out", opts.OutDir,
		"pages", humanize.Comma(int64(report.Pages)),
		"posts", humanize.Comma(int64(report.Posts)),
		"banners", report.Banners,
		"size", humanize.Bytes(uint64(report.Bytes)),
		"took", report.Duration.Round(time.Millisecond),
	)
	return report, nil
}

// collectRoutes walks the listing by cursor and returns every route to render
// along with all post summaries.
func (a *App) collectRoutes(ctx context.Context) ([]buildRoute, []cms.PostSummary, error) {
	first, stale, err := a.Cache.FirstPage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch first page: %w", err)
	}
	if stale {
		a.Logger.Warn("building from snapshot; listing fragments are omitted")
	}

	routes := []buildRoute{
		{url: "/", file: "index.html"},
		{url: "/feed.xml", file: "feed.xml"},
		{url: "/sitemap.xml", file: "sitemap.xml"},
		{url: "/robots.txt", file: "robots.txt"},
	}

	p := paginator.New(a.Cache, first)
	for n := 2; p.HasMore(); n++ {
		v := url.Values{}
		v.Set("cursor", p.Cursor())
		v.Set("page", strconv.Itoa(n))
		routes = append(routes, buildRoute{
			url:  "/posts/more/?" + v.Encode(),
			file: path.Join("posts", "more", strconv.Itoa(n), "index.html"),
		})
		if _, err := p.LoadMore(ctx); err != nil {
			return nil, nil, fmt.Errorf("fetch listing page %d: %w", n, err)
		}
	}

	posts := p.Posts()
	for _, post := range posts {
		if !safePathSegment(post.UID) {
			return nil, nil, fmt.Errorf("post uid %q is not a valid path segment", post.UID)
		}
		routes = append(routes, buildRoute{
			url:  "/post/" + url.PathEscape(post.UID) + "/",
			file: path.Join("post", post.UID, "index.html"),
		})
	}
	return routes, posts, nil
}

func (a *App) renderRoute(ctx context.Context, r buildRoute, outDir string) (int64, error) {
	req := httptest.NewRequest(http.MethodGet, r.url, nil).WithContext(ctx)
	w := httptest.NewRecorder()
	a.Echo.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("render %s: status %d", r.url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("render %s: %w", r.url, err)
	}
	if err := atomicWriteFile(filepath.Join(outDir, filepath.FromSlash(r.file)), body); err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

// localizeBanners fetches full posts and writes their banners locally. A
// banner that cannot be fetched keeps its CMS URL.
func (a *App) localizeBanners(ctx context.Context, opts BuildOptions, posts []cms.PostSummary) (int, int64, error) {
	var count, size atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Config.BuildConcurrency)
	for _, s := range posts {
		g.Go(func() error {
			post, _, err := a.Cache.GetPost(gctx, s.UID)
			if err != nil {
				return fmt.Errorf("fetch post %s: %w", s.UID, err)
			}
			if post.Data.Banner.URL == "" {
				return nil
			}
			local, n, err := a.localizeBanner(gctx, opts.HTTPClient, post, opts.OutDir)
			if err != nil {
				a.Logger.Warn("banner not localized", "slug", post.UID, "error", err)
				return nil
			}
			a.setBanner(post.UID, local)
			count.Add(1)
			size.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	return int(count.Load()), size.Load(), nil
}

// copyAssets writes the embedded assets and the user's static directory to
// outDir/public.
func (a *App) copyAssets(outDir string) (int64, error) {
	var total int64
	for _, name := range embeddedNames() {
		data, err := fs.ReadFile(EmbeddedAssets, "embedded/"+name)
		if err != nil {
			return 0, err
		}
		if err := atomicWriteFile(filepath.Join(outDir, "public", name), data); err != nil {
			return 0, err
		}
		total += int64(len(data))
	}

	if _, err := os.Stat(a.staticDir); os.IsNotExist(err) {
		return total, nil
	}
	err := filepath.WalkDir(a.staticDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(a.staticDir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		total += int64(len(data))
		return atomicWriteFile(filepath.Join(outDir, "public", rel), data)
	})
	if err != nil {
		return 0, fmt.Errorf("copy static assets: %w", err)
	}
	return total, nil
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place.
func atomicWriteFile(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, dest)
}
