// Package collector fetches listing and detail pages and downgrades every
// failure to an empty result so a batch never aborts on one bad page.
package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/orginfo-harvester/internal/crawler"
	"github.com/JakeFAU/orginfo-harvester/internal/metrics"
	"github.com/JakeFAU/orginfo-harvester/internal/progress"
)

// DefaultSearchPath is the localized search endpoint on the directory site.
const DefaultSearchPath = "/uz/search/organizations/"

const acceptHTML = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"

// Config holds the remote directory coordinates. Detail links are
// site-relative, so BaseURL is the site root.
type Config struct {
	BaseURL    string
	SearchPath string
	Query      string
	// RunID tags emitted progress events.
	RunID [16]byte
}

// Collector implements crawler.LinkCollector and crawler.DetailFetcher.
type Collector struct {
	cfg       Config
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	emitter   progress.Emitter
	clock     crawler.Clock
	logger    *zap.Logger
}

// New builds a Collector. emitter may be nil.
func New(
	cfg Config,
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	emitter progress.Emitter,
	clock crawler.Clock,
	logger *zap.Logger,
) (*Collector, error) {
	if fetcher == nil || extractor == nil {
		return nil, fmt.Errorf("collector requires a fetcher and an extractor")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SearchPath == "" {
		cfg.SearchPath = DefaultSearchPath
	}
	if !strings.HasPrefix(cfg.SearchPath, "/") {
		cfg.SearchPath = "/" + cfg.SearchPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		emitter:   emitter,
		clock:     clock,
		logger:    logger,
	}, nil
}

// ListingURL returns the search-results URL for page.
func (c *Collector) ListingURL(page int) string {
	q := url.Values{}
	q.Set("q", c.cfg.Query)
	q.Set("page", strconv.Itoa(page))
	q.Set("sort", "active")
	return c.cfg.BaseURL + c.cfg.SearchPath + "?" + q.Encode()
}

// DetailURL returns the absolute URL for link.
func (c *Collector) DetailURL(link crawler.Link) string {
	return c.cfg.BaseURL + string(link)
}

// Collect fetches one listing page and returns its links. Any failure is
// logged and yields no links.
func (c *Collector) Collect(ctx context.Context, page int) []crawler.Link {
	target := c.ListingURL(page)
	body, ok := c.get(ctx, metrics.KindListing, target)
	if !ok {
		return nil
	}
	links, err := c.extractor.ExtractLinks(body)
	if err != nil {
		c.logger.Warn("listing extraction failed", zap.Int("page", page), zap.String("url", target), zap.Error(err))
		return nil
	}
	c.logger.Debug("listing page collected", zap.Int("page", page), zap.Int("links", len(links)))
	return links
}

// Fetch fetches one organization page and returns its record. Any failure is
// logged and yields an empty record.
func (c *Collector) Fetch(ctx context.Context, link crawler.Link) crawler.Record {
	target := c.DetailURL(link)
	body, ok := c.get(ctx, metrics.KindDetail, target)
	if !ok {
		return crawler.Record{}
	}
	rec, err := c.extractor.ExtractRecord(body)
	if err != nil {
		c.logger.Warn("detail extraction failed", zap.String("link", string(link)), zap.Error(err))
		return crawler.Record{}
	}
	return rec
}

func (c *Collector) get(ctx context.Context, kind, target string) ([]byte, bool) {
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     target,
		Headers: http.Header{"Accept": {acceptHTML}},
	})
	if err == nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	metrics.ObserveFetchTransfer(kind, len(resp.Body), resp.Duration)
	c.emitFetch(kind, target, resp, err)
	if err != nil {
		c.logger.Warn("fetch failed",
			zap.String("kind", kind),
			zap.String("url", target),
			zap.Int("status_code", resp.StatusCode),
			zap.Error(err),
		)
		return nil, false
	}
	return resp.Body, true
}

func (c *Collector) emitFetch(kind, target string, resp crawler.FetchResponse, err error) {
	if c.emitter == nil {
		return
	}
	evt := progress.Event{
		RunID:       c.cfg.RunID,
		TS:          c.now(),
		Stage:       progress.StageFetchDone,
		Phase:       phaseFor(kind),
		URL:         target,
		Bytes:       int64(len(resp.Body)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	}
	if err != nil {
		evt.Note = err.Error()
	}
	c.emitter.Emit(evt)
}

func (c *Collector) now() time.Time {
	if c.clock == nil {
		return time.Now().UTC()
	}
	return c.clock.Now()
}

func phaseFor(kind string) progress.Phase {
	if kind == metrics.KindListing {
		return progress.PhaseLinks
	}
	return progress.PhaseDetails
}
