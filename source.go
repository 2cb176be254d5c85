package spacetraveling

import (
	"context"

	"github.com/eringen/spacetraveling/cms"
)

// Source is where the app reads posts from. CMSSource is the production
// implementation; tests supply their own.
type Source interface {
	// FirstPage returns the newest page of post summaries.
	FirstPage(ctx context.Context) (cms.ListingPage, error)
	// FetchPage follows a cursor returned by a previous page.
	FetchPage(ctx context.Context, cursor string) (cms.ListingPage, error)
	// GetPost returns the post with the given slug, or an error wrapping
	// ErrNotFound.
	GetPost(ctx context.Context, slug string) (cms.Post, error)
}

// CMSSource reads posts of one document type through a cms.Client.
type CMSSource struct {
	Client       *cms.Client
	DocumentType string
	PageSize     int
}

// NewCMSSource builds a CMSSource from the site configuration.
func NewCMSSource(cfg SiteConfig) (*CMSSource, error) {
	cfg.setDefaults()
	var opts []cms.Option
	if cfg.CMSAccessToken != "" {
		opts = append(opts, cms.WithAccessToken(cfg.CMSAccessToken))
	}
	client, err := cms.NewClient(cfg.CMSEndpoint, opts...)
	if err != nil {
		return nil, err
	}
	return &CMSSource{Client: client, DocumentType: cfg.DocumentType, PageSize: cfg.PageSize}, nil
}

// FirstPage queries the newest posts, fetching only listing fields.
func (s *CMSSource) FirstPage(ctx context.Context) (cms.ListingPage, error) {
	t := s.DocumentType
	return s.Client.Query(ctx, cms.Query{
		DocumentType: t,
		PageSize:     s.PageSize,
		Fetch:        []string{t + ".title", t + ".subtitle", t + ".author"},
		Orderings:    "[document.first_publication_date desc]",
	})
}

// FetchPage follows a next_page cursor.
func (s *CMSSource) FetchPage(ctx context.Context, cursor string) (cms.ListingPage, error) {
	return s.Client.FetchPage(ctx, cursor)
}

// GetPost looks a post up by its UID.
func (s *CMSSource) GetPost(ctx context.Context, slug string) (cms.Post, error) {
	return s.Client.GetByUID(ctx, s.DocumentType, slug)
}
