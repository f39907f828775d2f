// Package scraper drives portal searches and listing-page scrapes through a
// shared browser, one rate-limited operation at a time.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"propscout/models"
	"propscout/scraper/browser"
	"propscout/scraper/extract"
	"propscout/services"
	"propscout/utils"
)

var (
	// ErrNoSource is returned for a search naming a portal nobody registered.
	ErrNoSource = errors.New("unknown listing source")
	// ErrUnsupportedURL is returned for listing URLs outside the supported portals.
	ErrUnsupportedURL = errors.New("unsupported listing url")
)

// supportedDomains are the portals a single listing may be scraped from.
var supportedDomains = []string{"zoopla.co.uk", "rightmove.co.uk", "onthemarket.com"}

// photoTabSelectors open the photo gallery on listing pages that lazy-load it.
var photoTabSelectors = []string{
	`[data-testid="photos-tab"]`,
	`a[href*="tab=images"]`,
	`button[data-testid="photos"]`,
	`[data-testid="gallery-tab"]`,
	`a[href*="photos"]`,
	`button[aria-label*="photos"]`,
	`button[aria-label*="images"]`,
	`[role="tab"][aria-label*="photos"]`,
	`[role="tab"][aria-label*="images"]`,
	`a[href*="gallery"]`,
}

// Source is one property portal: how to build its search URLs and how to
// read its pages.
type Source interface {
	Name() string
	// SearchURL returns the results URL of page (0-based).
	SearchURL(p models.SearchParams, page int) string
	ParseResults(doc *goquery.Selection, listedDate string) []models.Property
	// Handles reports whether listingURL belongs to this portal.
	Handles(listingURL string) bool
	// ImageEndpoints lists in-page JSON endpoints that return the photo set.
	ImageEndpoints(listingURL string) []string
	// GalleryURL is the dedicated photo page, or "" when the portal has none.
	GalleryURL(listingURL string) string
}

// Options tunes the orchestrator.
type Options struct {
	DefaultSource   string
	DefaultMaxPages int
	MaxRetries      int
	RetryDelay      time.Duration
}

// Scraper runs searches and detail scrapes. All browser work goes through
// the rate limiter so the portals only ever see one tab at a time.
type Scraper struct {
	opener  browser.Opener
	limiter *utils.RateLimiter
	retry   *utils.RetryConfig
	cleaner *services.Cleaner
	logger  *utils.Logger

	sources         map[string]Source
	order           []Source
	defaultSource   string
	defaultMaxPages int

	now func() time.Time
}

// New creates a Scraper over the given portals.
func New(opener browser.Opener, limiter *utils.RateLimiter, logger *utils.Logger, opts Options, sources ...Source) *Scraper {
	if opts.DefaultMaxPages <= 0 {
		opts.DefaultMaxPages = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	s := &Scraper{
		opener:  opener,
		limiter: limiter,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   opts.RetryDelay,
			Logger:      logger,
		},
		cleaner:         services.NewCleaner(logger),
		logger:          logger,
		sources:         make(map[string]Source, len(sources)),
		defaultSource:   opts.DefaultSource,
		defaultMaxPages: opts.DefaultMaxPages,
		now:             time.Now,
	}
	for _, src := range sources {
		s.sources[src.Name()] = src
		s.order = append(s.order, src)
	}
	if s.defaultSource == "" && len(s.order) > 0 {
		s.defaultSource = s.order[0].Name()
	}
	return s
}

// DefaultSource is the portal used when a search names none.
func (s *Scraper) DefaultSource() string { return s.defaultSource }

// LimiterStatus reports the scrape queue.
func (s *Scraper) LimiterStatus() models.RateLimitStatus { return s.limiter.Status() }

// Normalize fills the defaults a search falls back to.
func (s *Scraper) Normalize(p models.SearchParams) models.SearchParams {
	p.Source = strings.ToLower(strings.TrimSpace(p.Source))
	if p.Source == "" {
		p.Source = s.defaultSource
	}
	if p.MaxPages <= 0 {
		p.MaxPages = s.defaultMaxPages
	}
	p.Location = strings.TrimSpace(p.Location)
	return p
}

// SearchResults scrapes up to MaxPages result pages for params and returns
// the cleaned, deduplicated records.
func (s *Scraper) SearchResults(ctx context.Context, params models.SearchParams) ([]models.Property, error) {
	params = s.Normalize(params)
	src, ok := s.sources[params.Source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSource, params.Source)
	}

	return utils.Run(ctx, s.limiter, func(ctx context.Context) ([]models.Property, error) {
		s.logger.Info("[%s] Starting search for %q, up to %d pages", src.Name(), params.Location, params.MaxPages)

		page, err := s.opener.NewPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
		defer page.Close()

		raw, err := s.collectPages(ctx, page, src, params)
		if err != nil {
			return nil, err
		}

		props := services.FilterByType(s.cleaner.Clean(raw), params.PropertyType)
		s.logger.Info("[%s] Search complete, %d properties", src.Name(), len(props))
		return props, nil
	})
}

// collectPages walks result pages in order. A page that fails to load is
// skipped; the first page with no results ends the walk.
func (s *Scraper) collectPages(ctx context.Context, page browser.Page, src Source, params models.SearchParams) ([]models.Property, error) {
	listedDate := s.now().Format("2006-01-02")
	var all []models.Property

	for i := 0; i < params.MaxPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageURL := src.SearchURL(params, i)
		s.logger.Info("[%s] Scraping page %d: %s", src.Name(), i+1, pageURL)

		doc, err := s.load(ctx, page, fmt.Sprintf("%s-page-%d", src.Name(), i+1), pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Error("[%s] Page %d failed, skipping: %v", src.Name(), i+1, err)
			continue
		}

		found := src.ParseResults(doc, listedDate)
		if len(found) == 0 {
			s.logger.Warn("[%s] Page %d returned 0 properties, stopping", src.Name(), i+1)
			break
		}
		all = append(all, found...)
		s.logger.Info("[%s] Page %d done, %d properties so far", src.Name(), i+1, len(all))
	}
	return all, nil
}

// load navigates (with retry), scrolls and parses the current document.
func (s *Scraper) load(ctx context.Context, page browser.Page, op, pageURL string) (*goquery.Selection, error) {
	err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		return page.Navigate(ctx, pageURL)
	})
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, page)
}

func (s *Scraper) snapshot(ctx context.Context, page browser.Page) (*goquery.Selection, error) {
	if err := page.Settle(ctx); err != nil {
		s.logger.Warn("[scraper] Scroll failed, reading page as is: %v", err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc.Selection, nil
}

// ListingDetails scrapes one listing page. Photos come from the portal's
// JSON endpoints when it has them, otherwise from the opened gallery.
func (s *Scraper) ListingDetails(ctx context.Context, listingURL string) (*models.PropertyDetails, error) {
	src := s.sourceFor(listingURL)

	return utils.Run(ctx, s.limiter, func(ctx context.Context) (*models.PropertyDetails, error) {
		s.logger.Info("[details] Scraping %s", listingURL)

		page, err := s.opener.NewPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
		defer page.Close()

		doc, err := s.load(ctx, page, "details", listingURL)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", listingURL, err)
		}
		details := extract.Details(doc, listingURL)

		images := s.apiImages(ctx, page, src, listingURL)
		if len(images) == 0 {
			images = s.galleryImages(ctx, page, src, listingURL)
		}
		if len(images) > 0 {
			details.Images = images
			details.ImageURL = images[0]
		}

		s.logger.Info("[details] %s: price %d, %d beds, %d images",
			listingURL, details.Price, details.Bedrooms, len(details.Images))
		return &details, nil
	})
}

func (s *Scraper) apiImages(ctx context.Context, page browser.Page, src Source, listingURL string) []string {
	if src == nil {
		return nil
	}
	for _, endpoint := range src.ImageEndpoints(listingURL) {
		payload, err := page.FetchJSON(ctx, endpoint)
		if err != nil {
			s.logger.Debug("[details] Image endpoint %s failed: %v", endpoint, err)
			continue
		}
		if images := extract.APIImages(payload); len(images) > 0 {
			s.logger.Info("[details] %d images from %s", len(images), endpoint)
			return images
		}
	}
	return nil
}

// galleryImages opens the photo tab, or the portal's gallery page, and
// rescans the DOM. Any failure just means no extra photos.
func (s *Scraper) galleryImages(ctx context.Context, page browser.Page, src Source, listingURL string) []string {
	clicked, err := page.ClickFirst(ctx, photoTabSelectors)
	if err != nil {
		s.logger.Debug("[details] Photo tab click failed: %v", err)
	}

	if !clicked {
		gallery := ""
		if src != nil {
			gallery = src.GalleryURL(listingURL)
		}
		if gallery == "" {
			return nil
		}
		if err := page.Navigate(ctx, gallery); err != nil {
			s.logger.Debug("[details] Gallery page %s failed: %v", gallery, err)
			return nil
		}
	}

	doc, err := s.snapshot(ctx, page)
	if err != nil {
		return nil
	}
	return extract.GalleryImages(doc)
}

func (s *Scraper) sourceFor(listingURL string) Source {
	for _, src := range s.order {
		if src.Handles(listingURL) {
			return src
		}
	}
	return nil
}

// ValidateListingURL checks that raw is an absolute http(s) URL on one of
// the supported portals.
func ValidateListingURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range supportedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedURL, host)
}
