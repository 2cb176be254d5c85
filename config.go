package spacetraveling

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SiteConfig holds all configuration for a site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "spacetraveling")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Publisher name for JSON-LD

	Addr string `yaml:"addr"` // Listen address (default ":3000")

	CMSEndpoint    string `yaml:"cms_endpoint"`     // Required: CMS API root
	CMSAccessToken string `yaml:"cms_access_token"` // Optional bearer token
	DocumentType   string `yaml:"document_type"`    // Post document type (default "posts")
	PageSize       int    `yaml:"page_size"`        // Listing page size (default 2)

	Revalidate time.Duration `yaml:"revalidate"` // Cache TTL for CMS content (default 1h)

	SnapshotPath    string `yaml:"snapshot_path"`    // SQLite snapshot path (default "data/snapshot.db")
	DisableSnapshot bool   `yaml:"disable_snapshot"` // Skip the snapshot store entirely

	SessionSecret string `yaml:"session_secret"` // Required for serve: cookie signing secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	LoadMoreLimit    int `yaml:"load_more_limit"`   // Load-more requests per IP per minute (default 30)
	BuildConcurrency int `yaml:"build_concurrency"` // Parallel renders during build (default 8)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DocumentType == "" {
		c.DocumentType = "posts"
	}
	if c.PageSize <= 0 {
		c.PageSize = 2
	}
	if c.Revalidate == 0 {
		c.Revalidate = time.Hour
	}
	if c.DisableSnapshot {
		c.SnapshotPath = ""
	} else if c.SnapshotPath == "" {
		c.SnapshotPath = "data/snapshot.db"
	}
	if c.LoadMoreLimit <= 0 {
		c.LoadMoreLimit = 30
	}
	if c.BuildConcurrency <= 0 {
		c.BuildConcurrency = 8
	}
}

// LoadConfigFile reads a YAML config file into cfg. Fields absent from the
// file keep their current values.
func LoadConfigFile(path string, cfg *SiteConfig) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("spacetraveling: read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("spacetraveling: parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. Unset variables leave
// fields unchanged.
func ApplyEnv(cfg *SiteConfig) error {
	strs := map[string]*string{
		"SITE_NAME":         &cfg.Name,
		"SITE_URL":          &cfg.URL,
		"SITE_DESCRIPTION":  &cfg.Description,
		"SITE_AUTHOR":       &cfg.Author,
		"ADDR":              &cfg.Addr,
		"CMS_ENDPOINT":      &cfg.CMSEndpoint,
		"CMS_ACCESS_TOKEN":  &cfg.CMSAccessToken,
		"CMS_DOCUMENT_TYPE": &cfg.DocumentType,
		"SNAPSHOT_PATH":     &cfg.SnapshotPath,
		"SESSION_SECRET":    &cfg.SessionSecret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PAGE_SIZE":         &cfg.PageSize,
		"LOAD_MORE_LIMIT":   &cfg.LoadMoreLimit,
		"BUILD_CONCURRENCY": &cfg.BuildConcurrency,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("spacetraveling: %s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("REVALIDATE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("spacetraveling: REVALIDATE: %w", err)
		}
		cfg.Revalidate = d
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cfg.CookieSecure = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("DISABLE_SNAPSHOT"); v != "" {
		cfg.DisableSnapshot = strings.EqualFold(v, "true")
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithSource sets the content source the app reads posts from.
func WithSource(s Source) Option {
	return func(a *App) {
		a.Source = s
	}
}

// WithStore sets an already opened snapshot store.
func WithStore(s *Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithLogger replaces the default stderr logger.
func WithLogger(l *Logger) Option {
	return func(a *App) {
		a.Logger = l
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs during Init, after the built-in routes.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}
