package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/magpie/config"
	"github.com/aluiziolira/magpie/models"
	"github.com/aluiziolira/magpie/parser"
	"github.com/aluiziolira/magpie/table"
)

// Sink receives augmented fragments. *pipeline.Pipeline implements it.
type Sink interface {
	Submit(frag *table.Table) error
}

// Scraper drives payloads through fetch, parse and augmentation.
type Scraper struct {
	cfg     *config.Config
	fetcher *Fetcher
	parser  *parser.Parser
	Metrics *Metrics

	onDone func()

	fragments int64
	empty     int64
	rows      int64
	giveUps   int64
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	sel, err := parser.NewSelectors()
	if err != nil {
		return nil, fmt.Errorf("compile selectors: %w", err)
	}
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		parser:  parser.New(sel),
		Metrics: metrics,
	}, nil
}

// Fetcher exposes the shared session.
func (s *Scraper) Fetcher() *Fetcher {
	return s.fetcher
}

// Parser exposes the compiled page parser.
func (s *Scraper) Parser() *parser.Parser {
	return s.parser
}

// OnPayloadDone registers fn to run after each payload is submitted.
func (s *Scraper) OnPayloadDone(fn func()) {
	s.onDone = fn
}

// Login establishes the session used by every later request.
func (s *Scraper) Login(ctx context.Context) error {
	body, err := s.fetcher.GetRaw(ctx, s.cfg.LoginURL)
	if err != nil {
		return fmt.Errorf("login page: %w", err)
	}
	token, err := s.parser.LoginToken(body)
	if err != nil {
		return fmt.Errorf("login page: %w", err)
	}

	form := url.Values{}
	form.Set("username", s.cfg.Username)
	form.Set("password", s.cfg.Password)
	form.Set("lt", token)
	form.Set("execution", "e1s1")
	form.Set("_eventId", "submit")
	if _, err := s.fetcher.PostForm(ctx, s.cfg.LoginURL, form); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	slog.Info("logged in", slog.String("username", s.cfg.Username))
	return nil
}

// ScrapePayload fetches and parses one payload into an augmented fragment.
// Transient failures retry forever; an identity mismatch that persists to the
// backoff ceiling yields an empty fragment.
func (s *Scraper) ScrapePayload(ctx context.Context, p Payload) (*table.Table, error) {
	target := p.URL(s.cfg.TargetsURL, s.cfg.Basis)
	b := s.fetcher.NewBackoff(s.cfg.MinBackoff, s.cfg.MaxBackoff)

	for {
		body, err := s.fetcher.Fetch(ctx, target, b)
		if err != nil {
			return nil, err
		}

		page, err := s.parser.ParsePage(body, p.Target)
		if err == nil {
			return s.fragment(p, page)
		}
		if !parser.IsTransient(err) {
			return nil, fmt.Errorf("scrape %s: parse page: %w", p, err)
		}

		s.fetcher.RecordError(err)
		if errors.Is(err, parser.ErrIdentityMismatch) && b.AtCeiling() {
			atomic.AddInt64(&s.giveUps, 1)
			s.Metrics.IncGiveUp()
			slog.Warn("no page for location, treating as empty",
				slog.String("payload", p.String()),
				slog.Int("attempts", b.Waits()+1),
			)
			return s.fragment(p, &parser.Page{})
		}
		if err := s.fetcher.Retry(ctx, b, target, err); err != nil {
			return nil, err
		}
	}
}

func (s *Scraper) fragment(p Payload, page *parser.Page) (*table.Table, error) {
	frag, err := page.Fragment()
	if err != nil {
		return nil, fmt.Errorf("scrape %s: build fragment: %w", p, err)
	}
	if err := Augment(frag, page.Checklists, p.Record, p.Window); err != nil {
		return nil, fmt.Errorf("scrape %s: %w", p, err)
	}
	return frag, nil
}

// Run scrapes every payload with at most cfg.Parallelism in flight and submits
// each fragment to sink. The first fatal error cancels the remaining payloads.
func (s *Scraper) Run(ctx context.Context, payloads []Payload, sink Sink) (*models.ScraperResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	warnInverted(payloads)

	start := time.Now()
	limit := s.cfg.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, p := range payloads {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			frag, err := s.ScrapePayload(gctx, p)
			if err != nil {
				return err
			}
			if err := sink.Submit(frag); err != nil {
				return fmt.Errorf("submit %s: %w", p, err)
			}
			s.record(frag.Height())
			if s.onDone != nil {
				s.onDone()
			}
			return nil
		})
	}
	err := g.Wait()

	result := &models.ScraperResult{
		StartTime:      start,
		EndTime:        time.Now(),
		PayloadCount:   len(payloads),
		FragmentCount:  int(atomic.LoadInt64(&s.fragments)),
		EmptyFragments: int(atomic.LoadInt64(&s.empty)),
		RowCount:       int(atomic.LoadInt64(&s.rows)),
		RequestCount:   s.fetcher.Requests(),
		RetryCount:     s.fetcher.Retries(),
		GiveUpCount:    int(atomic.LoadInt64(&s.giveUps)),
		ErrorsByType:   s.fetcher.ErrorsByType(),
	}
	if err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Scraper) record(rows int) {
	atomic.AddInt64(&s.fragments, 1)
	atomic.AddInt64(&s.rows, int64(rows))
	if rows == 0 {
		atomic.AddInt64(&s.empty, 1)
	}
	s.Metrics.AddFragment(rows)
}

func warnInverted(payloads []Payload) {
	seen := make(map[models.TimeWindow]bool)
	for _, p := range payloads {
		if !p.Window.Inverted() || seen[p.Window] {
			continue
		}
		seen[p.Window] = true
		slog.Warn("time window starts after it ends",
			slog.String("window", p.Window.String()),
		)
	}
}
