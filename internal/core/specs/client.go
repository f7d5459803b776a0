package specs

import (
	"context"
	"fmt"
	"net/url"

	"boatresearch/internal/logger"
)

// PageFetcher renders a page and returns its HTML. Failures wrap
// browser.ErrFetchFailed or browser.ErrBotChallenge.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type Client struct {
	log     *logger.Logger
	fetcher PageFetcher
	baseURL string
	perPage int
}

func NewClient(fetcher PageFetcher, baseURL string, perPage int) *Client {
	if perPage <= 0 {
		perPage = 25
	}
	return &Client{log: logger.New("SpecsClient"), fetcher: fetcher, baseURL: baseURL, perPage: perPage}
}

func (c *Client) SearchURL(keyword string) string {
	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("sort-select", "")
	q.Set("sailboats_per_page", fmt.Sprint(c.perPage))
	return c.baseURL + "/?" + q.Encode()
}

func (c *Client) DetailURL(slug string) string {
	return c.baseURL + "/sailboat/" + url.PathEscape(slug)
}

// Search returns the candidates for keyword. A failed fetch is returned as an
// error (so the caller can retry later); a page with no rows is an empty,
// non-nil slice.
func (c *Client) Search(ctx context.Context, keyword string) ([]Candidate, error) {
	c.log.LogInfof("searching specs site for %q", keyword)
	html, err := c.fetcher.Fetch(ctx, c.SearchURL(keyword))
	if err != nil {
		return nil, err
	}
	candidates, err := ParseSearchResults(html)
	if err != nil {
		return nil, err
	}
	c.log.LogInfof("found %d candidates for %q", len(candidates), keyword)
	return candidates, nil
}

// FetchDetail fetches and parses the detail page for slug.
func (c *Client) FetchDetail(ctx context.Context, slug string) (*Specs, error) {
	u := c.DetailURL(slug)
	c.log.LogInfof("fetching specs for %q", slug)
	html, err := c.fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	s, err := ParseDetail(html)
	if err != nil {
		return nil, err
	}
	s.SourceURL = &u
	return s, nil
}
