// internal/common/http/client.go
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"prospect-workers/internal/common/metrics"
)

// DefaultUserAgent is a current desktop Chrome string. Hotel sites routinely serve
// bot walls to Go's default agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type ProxyMode string

const (
	ProxyNone       ProxyMode = "none"
	ProxyScraperAPI ProxyMode = "scraperapi"
	ProxyCustom     ProxyMode = "custom"
)

// ProxyConfig is passed explicitly to each Fetcher; there is no package-level proxy state.
type ProxyConfig struct {
	Mode          ProxyMode
	ScraperAPIKey string
	ScraperAPIURL string
	CustomProxies []string
}

type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int           // extra attempts on 403/429
	RetryDelay time.Duration // linear: RetryDelay * attempt
	MaxBytes   int64
	Proxy      ProxyConfig
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 2 * 1024 * 1024
	}
	if o.Proxy.Mode == "" {
		o.Proxy.Mode = ProxyNone
	}
	if o.Proxy.ScraperAPIURL == "" {
		o.Proxy.ScraperAPIURL = "https://api.scraperapi.com/"
	}
	return o
}

// Response is a fully read, size-capped HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) Text() string {
	return string(r.Body)
}

func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Err returns a *StatusError for non-2xx responses.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &StatusError{StatusCode: r.StatusCode, URL: r.URL}
}

// StatusError lets the circuit breaker classify 403 as blocking and 429 as
// rate limiting by code rather than by message.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

type Fetcher struct {
	client  *http.Client
	opts    Options
	proxies []*url.URL
	next    atomic.Uint64
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewFetcher(opts Options) (*Fetcher, error) {
	opts = opts.withDefaults()

	f := &Fetcher{opts: opts, sleep: sleepCtx}
	transport := http.DefaultTransport.(*http.Transport).Clone()

	switch opts.Proxy.Mode {
	case ProxyNone:
	case ProxyScraperAPI:
		if opts.Proxy.ScraperAPIKey == "" {
			return nil, fmt.Errorf("scraperapi proxy mode requires an api key")
		}
		if _, err := url.Parse(opts.Proxy.ScraperAPIURL); err != nil {
			return nil, fmt.Errorf("invalid scraperapi url: %w", err)
		}
	case ProxyCustom:
		for _, raw := range opts.Proxy.CustomProxies {
			u, err := url.Parse(strings.TrimSpace(raw))
			if err != nil || u.Host == "" {
				return nil, fmt.Errorf("invalid proxy url %q", raw)
			}
			f.proxies = append(f.proxies, u)
		}
		if len(f.proxies) == 0 {
			return nil, fmt.Errorf("custom proxy mode requires at least one proxy")
		}
		transport.Proxy = f.rotateProxy
	default:
		return nil, fmt.Errorf("unknown proxy mode %q", opts.Proxy.Mode)
	}

	f.client = &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
	return f, nil
}

func (f *Fetcher) rotateProxy(*http.Request) (*url.URL, error) {
	n := f.next.Add(1) - 1
	return f.proxies[n%uint64(len(f.proxies))], nil
}

// Get fetches target with browser headers. Non-2xx responses are returned, not treated as errors.
func (f *Fetcher) Get(ctx context.Context, target string, headers map[string]string) (*Response, error) {
	return f.do(ctx, http.MethodGet, target, nil, headers)
}

// Post sends body as-is. Proxying is never applied to API calls.
func (f *Fetcher) Post(ctx context.Context, target string, body []byte, headers map[string]string) (*Response, error) {
	return f.do(ctx, http.MethodPost, target, body, headers)
}

func (f *Fetcher) do(ctx context.Context, method, target string, body []byte, headers map[string]string) (*Response, error) {
	requestURL := target
	if method == http.MethodGet && f.opts.Proxy.Mode == ProxyScraperAPI {
		requestURL = f.scraperAPIURL(target)
	}

	var resp *Response
	var err error
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := f.sleep(ctx, f.opts.RetryDelay*time.Duration(attempt)); sleepErr != nil {
				return nil, sleepErr
			}
		}

		resp, err = f.once(ctx, method, requestURL, target, body, headers)
		if err != nil {
			metrics.FetchRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.FetchRequests.WithLabelValues(statusClass(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
	}
	return resp, nil
}

func (f *Fetcher) once(ctx context.Context, method, requestURL, original string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,de;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, f.opts.MaxBytes))
	if err != nil {
		return nil, err
	}

	return &Response{
		URL:        original,
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
	}, nil
}

func (f *Fetcher) scraperAPIURL(target string) string {
	u, err := url.Parse(f.opts.Proxy.ScraperAPIURL)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("api_key", f.opts.Proxy.ScraperAPIKey)
	q.Set("url", target)
	u.RawQuery = q.Encode()
	return u.String()
}

func statusClass(code int) string {
	switch {
	case code == http.StatusForbidden:
		return "403"
	case code == http.StatusTooManyRequests:
		return "429"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
