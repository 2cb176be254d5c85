package spacetraveling

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/eringen/spacetraveling/cms"
	"github.com/eringen/spacetraveling/paginator"
	"github.com/eringen/spacetraveling/readingtime"
)

// loadMoreNotice is shown when the next listing page cannot be fetched.
const loadMoreNotice = "Não foi possível carregar mais posts. Tente novamente."

func (a *App) handleHome(c echo.Context) error {
	page, stale, err := a.Cache.FirstPage(c.Request().Context())
	if err != nil {
		return err
	}
	p := paginator.New(a.Cache, page)
	notices := popNotices(c)
	if len(notices) > 0 {
		c.Response().Header().Set("Cache-Control", "private, no-store")
	}
	return Render(c, a.Views.Home(HomeView{
		Config:      a.Config,
		Meta:        a.homeMeta(),
		Posts:       p.Posts(),
		LoadMoreURL: a.loadMoreURL(p.Cursor(), 2),
		Notices:     notices,
		Stale:       stale,
		JSONLD:      WebsiteJsonLD(a.Config),
	}))
}

// handleLoadMore serves one extra listing page. HTMX requests get a fragment
// to append; plain requests get a full page.
func (a *App) handleLoadMore(c echo.Context) error {
	cursor := c.QueryParam("cursor")
	if cursor == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing cursor")
	}
	n, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || n < 2 {
		n = 2
	}

	if !a.static && !a.moreLimiter.Allow(c.RealIP()) {
		return a.loadMoreFailed(c, cursor, n, echo.NewHTTPError(http.StatusTooManyRequests))
	}

	p := paginator.FromCursor(a.Cache, cursor)
	added, err := p.LoadMore(c.Request().Context())
	if err != nil {
		return a.loadMoreFailed(c, cursor, n, err)
	}
	next := a.loadMoreURL(p.Cursor(), n+1)

	if !a.static && !isHTMX(c) {
		return Render(c, a.Views.Home(HomeView{
			Config:      a.Config,
			Meta:        a.homeMeta(),
			Posts:       added,
			LoadMoreURL: next,
			JSONLD:      WebsiteJsonLD(a.Config),
		}))
	}
	return Render(c, a.Views.LoadMore(LoadMoreView{
		Config:      a.Config,
		Posts:       added,
		LoadMoreURL: next,
	}))
}

// loadMoreFailed keeps the listing as it was and tells the reader. During a
// static build the error is returned so the build fails.
func (a *App) loadMoreFailed(c echo.Context, cursor string, n int, err error) error {
	if a.static {
		return err
	}
	if errors.Is(err, cms.ErrForeignLink) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cursor")
	}
	a.requestLogger(c).Warn("load more failed", "page", n, "error", err)

	c.Response().Header().Set("Cache-Control", "private, no-store")
	if isHTMX(c) {
		return Render(c, a.Views.LoadMore(LoadMoreView{
			Config:      a.Config,
			LoadMoreURL: a.loadMoreURL(cursor, n),
			Notice:      loadMoreNotice,
		}))
	}
	if err := addNotice(c, loadMoreNotice); err != nil {
		a.requestLogger(c).Warn("save notice failed", "error", err)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	post, stale, err := a.Cache.GetPost(c.Request().Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Redirect(http.StatusFound, "/")
		}
		return err
	}

	minutes := readingtime.Estimate(post.Data.Content)
	banner := a.bannerURL(post)
	return Render(c, a.Views.Post(PostView{
		Config: a.Config,
		Meta: PageMeta{
			Title:       post.Data.Title + " | " + a.Config.Name,
			Description: post.Data.Subtitle,
			URL:         BuildURL(a.Config.URL, "post", post.UID),
			OGType:      "article",
			Image:       banner,
		},
		Post:        post,
		BannerURL:   banner,
		ReadingTime: minutes,
		Stale:       stale,
		JSONLD:      BlogPostingJsonLD(post, minutes, a.Config),
	}))
}

func (a *App) homeMeta() PageMeta {
	return PageMeta{
		Title:       a.Config.Name,
		Description: a.Config.Description,
		URL:         BuildURL(a.Config.URL),
		OGType:      "website",
	}
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Cache.AllSummaries(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.AllSummaries(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func handleListingRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

// handleRobots serves the user's robots.txt, or a permissive default that
// points at the sitemap.
func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.staticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	return c.String(http.StatusOK, "User-agent: *\nAllow: /\n\nSitemap: "+a.Config.URL+"/sitemap.xml\n")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
	}
	// Error pages must not outlive the outage behind them.
	c.Response().Header().Set("Cache-Control", "no-store")
	if code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.Config))
		return
	}
	if code >= 500 {
		a.requestLogger(c).Error("server error", "path", c.Request().URL.Path, "error", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.Config))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// requestLogger tags entries with the request ID set by the RequestID
// middleware.
func (a *App) requestLogger(c echo.Context) *Logger {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return a.Logger.With("request_id", id)
	}
	return a.Logger
}
