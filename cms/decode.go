package cms

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// DecodeError reports a payload that could not be decoded into, or did not
// validate as, the expected document shape.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cms: decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// decodeInto reads JSON from r into v and validates the result.
func decodeInto(r io.Reader, what string, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return &DecodeError{What: what, Err: err}
	}
	return check(what, v)
}

func check(what string, v any) error {
	if err := validate.Struct(v); err != nil {
		return &DecodeError{What: what, Err: err}
	}
	return nil
}

// DecodeListing decodes a search response into a typed listing page.
func DecodeListing(r io.Reader) (ListingPage, error) {
	var raw searchResponse
	if err := decodeInto(r, "listing", &raw); err != nil {
		return ListingPage{}, err
	}
	page := ListingPage{
		Page:         raw.Page,
		TotalPages:   raw.TotalPages,
		TotalResults: raw.TotalResultsSize,
		Results:      make([]PostSummary, 0, len(raw.Results)),
	}
	if raw.NextPage != nil {
		page.NextPage = *raw.NextPage
	}
	for i, doc := range raw.Results {
		var s PostSummary
		if err := json.Unmarshal(doc, &s); err != nil {
			return ListingPage{}, &DecodeError{What: fmt.Sprintf("listing result %d", i), Err: err}
		}
		if err := check(fmt.Sprintf("listing result %d", i), &s); err != nil {
			return ListingPage{}, err
		}
		page.Results = append(page.Results, s)
	}
	return page, nil
}

// decodePost decodes a search response expected to hold at most one post.
func decodePost(r io.Reader) (Post, error) {
	var raw searchResponse
	if err := decodeInto(r, "post", &raw); err != nil {
		return Post{}, err
	}
	if len(raw.Results) == 0 {
		return Post{}, ErrNotFound
	}
	var p Post
	if err := json.Unmarshal(raw.Results[0], &p); err != nil {
		return Post{}, &DecodeError{What: "post", Err: err}
	}
	if err := check("post", &p); err != nil {
		return Post{}, err
	}
	return p, nil
}

// DecodePost decodes a single post document (not wrapped in a search envelope).
func DecodePost(r io.Reader) (Post, error) {
	var p Post
	if err := decodeInto(r, "post", &p); err != nil {
		return Post{}, err
	}
	return p, nil
}
