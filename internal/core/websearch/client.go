package websearch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boatresearch/internal/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
)

// Result is one organic hit from the HTML search endpoint.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type Options struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
}

// Client queries the DuckDuckGo HTML endpoint over plain HTTP.
type Client struct {
	log  *logger.Logger
	opts Options
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{log: logger.New("WebSearch"), opts: opts}
}

// Search runs query and returns its results. A non-success HTTP status yields
// an empty result and no error; only transport failures are returned. The
// request is bound to ctx, so cancelling it aborts a search in flight.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target := c.opts.Endpoint + "?q=" + url.QueryEscape(query)
	c.log.LogInfof("web search %q", query)

	col := colly.NewCollector()
	col.SetRequestTimeout(c.opts.Timeout)
	col.WithTransport(ctxTransport{ctx: ctx, base: http.DefaultTransport})
	profile := pickProfile(c.opts.UserAgent)
	col.OnRequest(profile.apply)

	var (
		body   []byte
		status int
	)
	col.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	col.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := col.Visit(target); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if status > 0 {
			c.log.LogWarnf("web search for %q returned status %d", query, status)
			return []Result{}, nil
		}
		return nil, fmt.Errorf("web search %q: %w", query, err)
	}

	results, err := ParseResults(body)
	if err != nil {
		return nil, err
	}
	c.log.LogInfof("web search %q: %d results", query, len(results))
	return results, nil
}

// ctxTransport attaches ctx to every request colly sends.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(r.WithContext(t.ctx))
}

// ParseResults reads a results page. When the primary result blocks are
// missing it falls back to plain result links.
func ParseResults(body []byte) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	results := []Result{}
	doc.Find("#links .result").Each(func(_ int, el *goquery.Selection) {
		a := el.Find(".result__a").First()
		title := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		u := unwrapRedirect(href)
		if title == "" || u == "" {
			return
		}
		results = append(results, Result{
			Title:   title,
			URL:     u,
			Snippet: strings.TrimSpace(el.Find(".result__snippet").Text()),
		})
	})
	if len(results) > 0 || len(body) == 0 {
		return results, nil
	}

	doc.Find("a.result-link, .results a.result__a, .web-result a").Each(func(_ int, a *goquery.Selection) {
		title := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		if title == "" || !strings.HasPrefix(href, "http") {
			return
		}
		results = append(results, Result{Title: title, URL: href})
	})
	return results, nil
}

var redirectBase = &url.URL{Scheme: "https", Host: "duckduckgo.com"}

// unwrapRedirect returns the target of a /l/?uddg= redirect link, or href
// unchanged.
func unwrapRedirect(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := redirectBase.ResolveReference(ref).Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
