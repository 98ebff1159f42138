package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/magpie/config"
)

const (
	ctxBody     = "body"
	ctxFinalURL = "final_url"
	ctxStatus   = "status"
	ctxStart    = "start"
)

// Fetcher issues requests through one shared colly collector. The cookie jar
// carries the login session, so every payload must use the same Fetcher.
type Fetcher struct {
	collector *colly.Collector
	limiter   *rate.Limiter
	blocked   []string
	metrics   *Metrics
	sleep     SleepFunc

	requestCount int64
	retryCount   int64

	mu           sync.Mutex
	errorsByType map[string]int
}

// NewFetcher builds the collector. Requests landing on any of cfg's login or
// home pages are treated as an expired session.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(0),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	collector.SetCookieJar(jar)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	f := &Fetcher{
		collector:    collector,
		limiter:      rate.NewLimiter(limit, 1),
		metrics:      metrics,
		errorsByType: make(map[string]int),
	}
	for _, raw := range []string{cfg.LoginURL, cfg.HomeURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse session url %q: %w", raw, err)
		}
		f.blocked = append(f.blocked, strings.TrimRight(endpointKey(u), "/"))
	}

	f.configureHandlers()
	return f, nil
}

// WithTransport swaps the HTTP transport.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// WithSleep replaces the backoff sleep.
func (f *Fetcher) WithSleep(sleep SleepFunc) {
	f.sleep = sleep
}

// NewBackoff starts a payload backoff using the fetcher's sleep.
func (f *Fetcher) NewBackoff(min, max time.Duration) *Backoff {
	return NewBackoff(min, max, f.sleep)
}

func (f *Fetcher) configureHandlers() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		current := atomic.AddInt64(&f.requestCount, 1)
		f.metrics.IncRequest("started")
		if current%50 == 0 {
			slog.Debug("request progress",
				slog.Int64("requests", current),
				slog.Int64("retries", atomic.LoadInt64(&f.retryCount)),
				slog.String("url", r.URL.String()),
			)
		}
	})

	f.collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxBody, r.Body)
		r.Ctx.Put(ctxFinalURL, r.Request.URL)
		r.Ctx.Put(ctxStatus, r.StatusCode)
		if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		r.Ctx.Put(ctxStatus, r.StatusCode)
		if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
			f.metrics.ObserveDuration(time.Since(start))
		}
	})
}

// response is the outcome of one request.
type response struct {
	body     []byte
	finalURL *url.URL
	status   int
}

func (f *Fetcher) do(ctx context.Context, method, rawURL string, body io.Reader, hdr http.Header) (*response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	cctx := colly.NewContext()
	err := f.collector.Request(method, rawURL, body, cctx, hdr)
	status, _ := cctx.GetAny(ctxStatus).(int)
	if err != nil {
		classified := classifyError(err, status)
		f.recordError(classified)
		return nil, classified
	}

	raw, _ := cctx.GetAny(ctxBody).([]byte)
	final, _ := cctx.GetAny(ctxFinalURL).(*url.URL)
	return &response{body: raw, finalURL: final, status: status}, nil
}

// Get fetches rawURL once. Landing on the login or home page is an ErrSessionExpired.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, err
	}
	if f.isBlocked(resp.finalURL) {
		err := ErrSessionExpired{URL: resp.finalURL.String()}
		f.recordError(err)
		return nil, err
	}
	return resp.body, nil
}

// GetRaw fetches rawURL once without session detection.
func (f *Fetcher) GetRaw(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// PostForm submits form to rawURL and returns the response body.
func (f *Fetcher) PostForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), hdr)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}

// Fetch retries Get on any failure, waiting on b between attempts, until it
// succeeds or ctx ends. There is no attempt limit.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, b *Backoff) ([]byte, error) {
	for {
		body, err := f.Get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err := f.Retry(ctx, b, rawURL, err); err != nil {
			return nil, err
		}
	}
}

// Retry logs cause and waits out the current backoff delay.
func (f *Fetcher) Retry(ctx context.Context, b *Backoff, rawURL string, cause error) error {
	atomic.AddInt64(&f.retryCount, 1)
	f.metrics.IncRetries()
	slog.Debug("backing off",
		slog.String("url", rawURL),
		slog.String("category", errorTypeLabel(cause)),
		slog.Duration("delay", b.Current()),
		slog.Any("error", cause),
	)
	return b.Wait(ctx)
}

// Requests is the number of requests issued.
func (f *Fetcher) Requests() int {
	return int(atomic.LoadInt64(&f.requestCount))
}

// Retries is the number of backoff waits taken.
func (f *Fetcher) Retries() int {
	return int(atomic.LoadInt64(&f.retryCount))
}

// ErrorsByType snapshots error counts by category.
func (f *Fetcher) ErrorsByType() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.errorsByType))
	for k, v := range f.errorsByType {
		out[k] = v
	}
	return out
}

// RecordError counts err under its category.
func (f *Fetcher) RecordError(err error) {
	f.recordError(err)
}

func (f *Fetcher) recordError(err error) {
	category := errorTypeLabel(err)
	f.mu.Lock()
	f.errorsByType[category]++
	f.mu.Unlock()
	f.metrics.IncError(category)
}

// isBlocked reports whether u contains a login or home URL, ignoring scheme
// and host case. Path suffixes such as ";jsessionid=..." still match.
func (f *Fetcher) isBlocked(u *url.URL) bool {
	if u == nil {
		return false
	}
	key := endpointKey(u)
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	for _, b := range f.blocked {
		if strings.Contains(key, b) {
			return true
		}
	}
	return false
}

func endpointKey(u *url.URL) string {
	return strings.ToLower(u.Host) + u.EscapedPath()
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
		if statusCode >= http.StatusBadRequest {
			return ErrStatus{Code: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
