// Package cms is a small client for a Prismic-style headless CMS REST API.
//
// Responses are decoded into typed documents and validated before they are
// returned, so callers never see loosely typed payloads.
package cms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eringen/spacetraveling/richtext"
)

// TimestampLayout is the format the CMS uses for publication dates.
const TimestampLayout = "2006-01-02T15:04:05-0700"

// Timestamp is a publication date as sent by the CMS. A JSON null decodes to
// a nil *Timestamp.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts the CMS layout and RFC 3339.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(TimestampLayout, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q", s)
		}
	}
	t.Time = parsed
	return nil
}

// MarshalJSON writes the CMS layout.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(TimestampLayout))
}

// SummaryData is the subset of post fields fetched for listings.
type SummaryData struct {
	Title    string `json:"title" validate:"required"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
}

// PostSummary is one entry of a listing page.
type PostSummary struct {
	UID                  string      `json:"uid" validate:"required"`
	FirstPublicationDate *Timestamp  `json:"first_publication_date"`
	Data                 SummaryData `json:"data"`
}

// Link returns the site path of the post.
func (p PostSummary) Link() string {
	return "/post/" + p.UID + "/"
}

// Banner is the post header image.
type Banner struct {
	URL string `json:"url" validate:"omitempty,url"`
	Alt string `json:"alt"`
}

// Section is one heading plus its rich-text body.
type Section struct {
	Heading string          `json:"heading"`
	Body    richtext.Blocks `json:"body" validate:"dive"`
}

// PostData holds the full document fields of a post.
type PostData struct {
	Title    string    `json:"title" validate:"required"`
	Subtitle string    `json:"subtitle"`
	Author   string    `json:"author"`
	Banner   Banner    `json:"banner"`
	Content  []Section `json:"content" validate:"dive"`
}

// Post is a single post document.
type Post struct {
	UID                  string     `json:"uid" validate:"required"`
	FirstPublicationDate *Timestamp `json:"first_publication_date"`
	LastPublicationDate  *Timestamp `json:"last_publication_date"`
	Data                 PostData   `json:"data"`
}

// Summary reduces a post to its listing fields.
func (p Post) Summary() PostSummary {
	return PostSummary{
		UID:                  p.UID,
		FirstPublicationDate: p.FirstPublicationDate,
		Data: SummaryData{
			Title:    p.Data.Title,
			Subtitle: p.Data.Subtitle,
			Author:   p.Data.Author,
		},
	}
}

// ListingPage is one page of post summaries. NextPage is the cursor for the
// following page and is empty on the last page.
type ListingPage struct {
	Page         int
	TotalPages   int
	TotalResults int
	NextPage     string
	Results      []PostSummary
}

// searchResponse is the raw envelope of a documents/search call.
type searchResponse struct {
	Page             int               `json:"page"`
	ResultsPerPage   int               `json:"results_per_page"`
	TotalResultsSize int               `json:"total_results_size"`
	TotalPages       int               `json:"total_pages"`
	NextPage         *string           `json:"next_page"`
	PrevPage         *string           `json:"prev_page"`
	Results          []json.RawMessage `json:"results" validate:"required"`
}

type apiRef struct {
	ID          string `json:"id"`
	Ref         string `json:"ref" validate:"required"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiInfo struct {
	Refs []apiRef `json:"refs" validate:"required,dive"`
}
