// Package spacetraveling is a blog front-end for a headless CMS built with Go,
// Echo, and templ. It renders a paginated post listing and post pages with
// reading-time estimates, either live behind a revalidating cache or as a
// pre-rendered static site.
//
// Users provide templ components via the ViewFuncs struct; the views package
// ships a default set.
package spacetraveling

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// ViewFuncs holds the templ components the app calls when rendering pages.
type ViewFuncs struct {
	Home        func(v HomeView) templ.Component
	LoadMore    func(v LoadMoreView) templ.Component
	Post        func(v PostView) templ.Component
	NotFound    func(cfg SiteConfig) templ.Component
	ServerError func(cfg SiteConfig) templ.Component
}

// App wires together the content source, cache, snapshot store, handlers,
// middleware, and templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Source Source
	Store  *Store
	Cache  *PostCache
	Views  ViewFuncs
	Logger *Logger

	moreLimiter  *RateLimiter
	customRoutes []func(*App)
	staticDir    string

	// static switches load-more links to pre-rendered fragment paths.
	static bool

	bannerMu sync.RWMutex
	banners  map[string]string

	initOnce sync.Once
	initErr  error
}

// New creates an App with the given configuration and views.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: "public",
		banners:   make(map[string]string),
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = NewLogger(os.Stderr, "text")
	}

	return a
}

// Init opens the snapshot store, builds the cache, and registers middleware
// and routes. It is called by Start and Build and is safe to call again.
func (a *App) Init() error {
	a.initOnce.Do(func() {
		a.initErr = a.init()
	})
	return a.initErr
}

func (a *App) init() error {
	if a.Source == nil {
		return fmt.Errorf("spacetraveling: a content Source is required")
	}

	if a.Store == nil && a.Config.SnapshotPath != "" {
		store, err := NewStore(a.Config.SnapshotPath)
		if err != nil {
			return fmt.Errorf("spacetraveling: init snapshot store: %w", err)
		}
		a.Store = store
	}

	a.Cache = NewPostCache(a.Source, a.Store, a.Config.Revalidate, a.Logger)
	a.moreLimiter = NewRateLimiter(a.Config.LoadMoreLimit, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and serves HTTP until the server stops.
func (a *App) Start() error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("spacetraveling: SessionSecret is required")
	}
	if err := a.Init(); err != nil {
		return err
	}

	a.Logger.Info("listening", "addr", a.Config.Addr, "cms", a.Config.CMSEndpoint)
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets (stylesheet, logo) fall through to the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := http.FileServer(http.FS(embeddedFS))
	for _, name := range embeddedNames() {
		e.GET("/public/"+name, echo.WrapHandler(http.StripPrefix("/public/", embeddedHandler)))
	}
	e.Static("/public", a.staticDir)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/posts/more/", a.handleLoadMore)
	e.GET("/post/:slug/", a.handlePost)
	e.GET("/post", handleListingRedirect)
}

// Close releases the snapshot store and background workers.
func (a *App) Close() error {
	if a.moreLimiter != nil {
		a.moreLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
