package spacetraveling

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()

	if cfg.DocumentType != "posts" || cfg.PageSize != 2 || cfg.Revalidate != time.Hour {
		t.Errorf("CMS defaults = %q %d %v", cfg.DocumentType, cfg.PageSize, cfg.Revalidate)
	}
	if cfg.Addr != ":3000" || cfg.URL != "http://localhost:3000" {
		t.Errorf("server defaults = %q %q", cfg.Addr, cfg.URL)
	}
	if cfg.SnapshotPath != "data/snapshot.db" {
		t.Errorf("SnapshotPath = %q", cfg.SnapshotPath)
	}
}

func TestSetDefaultsDisableSnapshot(t *testing.T) {
	cfg := SiteConfig{SnapshotPath: "x.db", DisableSnapshot: true}
	cfg.setDefaults()
	if cfg.SnapshotPath != "" {
		t.Errorf("SnapshotPath = %q, want empty", cfg.SnapshotPath)
	}
}

func TestSetDefaultsTrimsURL(t *testing.T) {
	cfg := SiteConfig{URL: "https://example.com/"}
	cfg.setDefaults()
	if cfg.URL != "https://example.com" {
		t.Errorf("URL = %q", cfg.URL)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	data := `
name: spacetraveling
cms_endpoint: https://blog.cdn.prismic.io/api/v2
page_size: 5
revalidate: 30m
cookie_secure: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := SiteConfig{Author: "kept"}
	if err := LoadConfigFile(path, &cfg); err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if cfg.Name != "spacetraveling" || cfg.PageSize != 5 || !cfg.CookieSecure {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Revalidate != 30*time.Minute {
		t.Errorf("Revalidate = %v", cfg.Revalidate)
	}
	if cfg.Author != "kept" {
		t.Errorf("fields absent from the file should be kept, Author = %q", cfg.Author)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"), &SiteConfig{}); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SITE_NAME", "from-env")
	t.Setenv("CMS_ENDPOINT", "https://blog.cdn.prismic.io/api/v2")
	t.Setenv("PAGE_SIZE", "7")
	t.Setenv("REVALIDATE", "10m")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := SiteConfig{Name: "from-file"}
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.Name != "from-env" || cfg.CMSEndpoint == "" || cfg.PageSize != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Revalidate != 10*time.Minute || !cfg.CookieSecure {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv("PAGE_SIZE", "two")
	if err := ApplyEnv(&SiteConfig{}); err == nil {
		t.Error("expected an error for a non-numeric PAGE_SIZE")
	}
}
