// Package collyfetch implements the fetch contract using gocolly.
package collyfetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/stashy/stashy/internal/engine"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
}

// Fetcher implements engine.Fetcher using the Colly collector. One GET per
// call; redirects are followed up to MaxRedirects, robots.txt is ignored,
// and any completed exchange counts as a fetch success regardless of status.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Stashy/1.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 5
	}

	// Synchronous collection is the default; colly v2.1.0's Async option
	// ignores its argument and would force async mode if passed.
	c := colly.NewCollector()
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.UserAgent = cfg.UserAgent
	c.WithTransport(newHTTPTransport())
	// Clones share the HTTP backend, so anything touching its client (the
	// timeout and the redirect cap) must be configured once here, never
	// per fetch: concurrent fetches would race on the shared client.
	c.SetRequestTimeout(cfg.Timeout)
	maxRedirects := cfg.MaxRedirects
	c.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*engine.FetchResult, error) {
	var (
		result   *engine.FetchResult
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		result = responseResult(r)
	})
	collector.OnError(func(r *colly.Response, err error) {
		// Colly reports non-2xx statuses through OnError; a completed
		// exchange still carries a status code and counts as a fetch
		// success at this layer.
		if r != nil && r.StatusCode > 0 {
			result = responseResult(r)
			return
		}
		fetchErr = err
	})

	if err := f.visit(ctx, collector, url); err != nil && result == nil && fetchErr == nil {
		fetchErr = err
	}

	if result != nil {
		return result, nil
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return nil, fmt.Errorf("no response for %s", url)
}

func (f *Fetcher) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return err
	}
}

func responseResult(r *colly.Response) *engine.FetchResult {
	contentType := ""
	if r.Headers != nil {
		contentType = stripContentTypeParams(r.Headers.Get("Content-Type"))
	}
	return &engine.FetchResult{
		Body:        append([]byte(nil), r.Body...),
		StatusCode:  r.StatusCode,
		ContentType: contentType,
	}
}

// stripContentTypeParams truncates a media type at the first ';', dropping
// parameter suffixes such as "; charset=utf-8".
func stripContentTypeParams(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
