package cms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var (
	// ErrNotFound is returned when no document matches a lookup.
	ErrNotFound = errors.New("cms: document not found")
	// ErrForeignLink is returned when a pagination link points away from the
	// configured endpoint.
	ErrForeignLink = errors.New("cms: link is not on the configured endpoint")
	// ErrNoMasterRef is returned when the API root lists no master ref.
	ErrNoMasterRef = errors.New("cms: no master ref")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cms: GET %s: status %d", e.URL, e.Code)
}

// DefaultTimeout bounds every request made by a Client without a custom
// http.Client.
const DefaultTimeout = 10 * time.Second

// DefaultRefTTL is how long a resolved master ref is reused before the API
// root is asked again. Publishing moves the master ref.
const DefaultRefTTL = 5 * time.Second

// Client talks to one CMS API endpoint. Build one per server or build run and
// pass it to whatever needs it.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	token    string

	pinned string
	refTTL time.Duration
	now    func() time.Time

	mu    sync.Mutex
	ref   string
	refAt time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithAccessToken sends token as a bearer token on every request.
func WithAccessToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRef pins the content ref instead of resolving the master ref.
func WithRef(ref string) Option {
	return func(c *Client) {
		c.pinned = ref
	}
}

// WithRefTTL sets how long a resolved master ref is reused. Zero resolves it
// before every search.
func WithRefTTL(d time.Duration) Option {
	return func(c *Client) {
		c.refTTL = d
	}
}

// NewClient creates a Client for the API root at endpoint, for example
// "https://repo.cdn.prismic.io/api/v2".
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("cms: parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("cms: endpoint %q must be http or https", endpoint)
	}
	c := &Client{endpoint: u, refTTL: DefaultRefTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	if c.token != "" {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		wrapped := *c.http
		wrapped.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   base,
		}
		c.http = &wrapped
	}
	return c, nil
}

// Endpoint returns the API root URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Ref returns the content ref used for searches. Unless pinned with WithRef,
// the master ref is resolved again once the previous one is older than the
// ref TTL.
func (c *Client) Ref(ctx context.Context) (string, error) {
	if c.pinned != "" {
		return c.pinned, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ref != "" && c.now().Sub(c.refAt) < c.refTTL {
		return c.ref, nil
	}
	body, err := c.get(ctx, c.endpoint.String())
	if err != nil {
		return "", err
	}
	defer body.Close()
	var info apiInfo
	if err := decodeInto(body, "api", &info); err != nil {
		return "", err
	}
	for _, r := range info.Refs {
		if r.IsMasterRef {
			c.ref, c.refAt = r.Ref, c.now()
			return c.ref, nil
		}
	}
	return "", ErrNoMasterRef
}

// Query describes a documents/search call.
type Query struct {
	DocumentType string
	PageSize     int
	Page         int
	Fetch        []string
	Predicates   []string
	Orderings    string
}

// At returns an exact-match predicate.
func At(path, value string) string {
	return fmt.Sprintf("[at(%s,%s)]", path, strconv.Quote(value))
}

func (c *Client) searchURL(ctx context.Context, q Query) (string, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return "", err
	}
	preds := q.Predicates
	if q.DocumentType != "" {
		preds = append([]string{At("document.type", q.DocumentType)}, preds...)
	}
	v := url.Values{}
	v.Set("ref", ref)
	if len(preds) > 0 {
		v.Set("q", "["+strings.Join(preds, "")+"]")
	}
	if q.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if len(q.Fetch) > 0 {
		v.Set("fetch", strings.Join(q.Fetch, ","))
	}
	if q.Orderings != "" {
		v.Set("orderings", q.Orderings)
	}
	return c.endpoint.String() + "/documents/search?" + v.Encode(), nil
}

// Query runs a search and returns the first requested page as post summaries.
func (c *Client) Query(ctx context.Context, q Query) (ListingPage, error) {
	u, err := c.searchURL(ctx, q)
	if err != nil {
		return ListingPage{}, err
	}
	return c.fetchListing(ctx, u)
}

// FetchPage follows a next_page link returned by a previous listing.
func (c *Client) FetchPage(ctx context.Context, link string) (ListingPage, error) {
	if err := c.checkLink(link); err != nil {
		return ListingPage{}, err
	}
	return c.fetchListing(ctx, link)
}

// GetByUID returns the document of docType with the given uid.
func (c *Client) GetByUID(ctx context.Context, docType, uid string) (Post, error) {
	u, err := c.searchURL(ctx, Query{
		PageSize:   1,
		Predicates: []string{At("my."+docType+".uid", uid)},
	})
	if err != nil {
		return Post{}, err
	}
	body, err := c.get(ctx, u)
	if err != nil {
		return Post{}, err
	}
	defer body.Close()
	post, err := decodePost(body)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Post{}, fmt.Errorf("%w: %s %q", ErrNotFound, docType, uid)
		}
		return Post{}, err
	}
	return post, nil
}

func (c *Client) fetchListing(ctx context.Context, u string) (ListingPage, error) {
	body, err := c.get(ctx, u)
	if err != nil {
		return ListingPage{}, err
	}
	defer body.Close()
	return DecodeListing(body)
}

// checkLink rejects links that would send requests (and the access token)
// to a host other than the endpoint's.
func (c *Client) checkLink(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForeignLink, err)
	}
	if u.Scheme != c.endpoint.Scheme || u.Host != c.endpoint.Host || !strings.HasPrefix(u.Path, c.endpoint.Path) {
		return fmt.Errorf("%w: %s", ErrForeignLink, link)
	}
	return nil
}

func (c *Client) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("cms: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cms: GET %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: u, Code: resp.StatusCode}
	}
	return resp.Body, nil
}
