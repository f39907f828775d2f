package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"propscout/models"
	"propscout/scraper/browser"
	"propscout/scraper/rightmove"
	"propscout/scraper/zoopla"
	"propscout/utils"
)

// fakePage serves canned HTML per URL and records every call.
type fakePage struct {
	mu        sync.Mutex
	pages     map[string]string
	failNav   map[string]bool
	json      map[string]string
	clickable bool
	afterTab  string

	current   string
	navigated []string
	fetched   []string
	closed    bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	if p.failNav[url] {
		return fmt.Errorf("navigate %s: net::ERR_TIMED_OUT", url)
	}
	p.current = url
	return nil
}

func (p *fakePage) Settle(context.Context) error { return nil }

func (p *fakePage) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages[p.current], nil
}

func (p *fakePage) Location(context.Context) (string, error) { return p.current, nil }

func (p *fakePage) ClickFirst(_ context.Context, _ []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.clickable {
		return false, nil
	}
	p.pages[p.current] = p.afterTab
	return true, nil
}

func (p *fakePage) FetchJSON(_ context.Context, url string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, url)
	if body, ok := p.json[url]; ok {
		return []byte(body), nil
	}
	return nil, nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeOpener struct {
	page *fakePage
	err  error
}

func (o *fakeOpener) NewPage(context.Context) (browser.Page, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.page, nil
}

func newTestScraper(opener browser.Opener) *Scraper {
	limiter := utils.NewRateLimiter(100, time.Minute, 0, nil)
	s := New(opener, limiter, nil, Options{MaxRetries: 2, RetryDelay: time.Millisecond},
		rightmove.New(), zoopla.New())
	s.now = func() time.Time { return time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC) }
	return s
}

const manchesterPage = `<html><body>
<div data-test="property-card">
  <a href="/properties/111"><h2 data-test="property-title">12 Deansgate, Manchester, M3 2BW</h2></a>
  <div data-test="property-price">£250,000</div>
  <div>3 bed semi-detached house</div>
</div>
<div data-test="property-card">
  <a href="/properties/222"><h2 data-test="property-title">12 DEANSGATE, Manchester, M3 2BW</h2></a>
  <div data-test="property-price">£265,000</div>
  <div>3 bed semi-detached house</div>
</div>
<div data-test="property-card">
  <a href="/properties/333"><h2 data-test="property-title">Flat 4, 9 Piccadilly, Manchester, M1 1LU</h2></a>
  <div data-test="property-price">£180,000</div>
  <div>1 bed flat</div>
</div>
</body></html>`

func cardPage(ids ...int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<div data-test="property-card"><a href="/properties/%d"><h2 data-test="property-title">%d Market Street, Leeds, LS1 %dAA</h2></a><div data-test="property-price">£%d</div><div>2 bed flat</div></div>`,
			id, id, id, 100000+id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestSearchResultsManchester(t *testing.T) {
	rm := rightmove.New()
	params := models.SearchParams{Location: "Manchester", MaxPages: 1}
	page := &fakePage{pages: map[string]string{
		rm.SearchURL(params, 0): manchesterPage,
	}}
	opener := &fakeOpener{page: page}
	s := newTestScraper(opener)

	props, err := s.SearchResults(context.Background(), params)
	if err != nil {
		t.Fatalf("SearchResults: %v", err)
	}
	if len(props) != 2 {
		t.Fatalf("expected 2 properties after dedup, got %d", len(props))
	}
	if props[0].ID != "111" || props[0].Price != 250000 {
		t.Errorf("first occurrence should be kept, got %+v", props[0])
	}
	if props[0].Yield == nil {
		t.Error("yield not derived")
	}
	if props[0].ListedDate != "2025-10-03" {
		t.Errorf("ListedDate: got %q", props[0].ListedDate)
	}
	if !page.closed {
		t.Error("page was not closed")
	}
}

func TestSearchResultsStopsAtFirstEmptyPage(t *testing.T) {
	rm := rightmove.New()
	params := models.SearchParams{Location: "Leeds", MaxPages: 5}
	page := &fakePage{pages: map[string]string{
		rm.SearchURL(params, 0): cardPage(1, 2),
		rm.SearchURL(params, 1): "<html><body><p>No results</p></body></html>",
		rm.SearchURL(params, 2): cardPage(3),
		rm.SearchURL(params, 3): cardPage(4),
		rm.SearchURL(params, 4): cardPage(5),
	}}
	s := newTestScraper(&fakeOpener{page: page})

	props, err := s.SearchResults(context.Background(), params)
	if err != nil {
		t.Fatalf("SearchResults: %v", err)
	}
	if len(props) != 2 {
		t.Errorf("expected 2 properties from page 1, got %d", len(props))
	}
	if len(page.navigated) != 2 {
		t.Fatalf("expected 2 navigations, got %d: %v", len(page.navigated), page.navigated)
	}
	for _, u := range page.navigated {
		for _, later := range []int{2, 3, 4} {
			if u == rm.SearchURL(params, later) {
				t.Errorf("page %d should never be requested", later+1)
			}
		}
	}
}

func TestSearchResultsSkipsFailedPage(t *testing.T) {
	rm := rightmove.New()
	params := models.SearchParams{Location: "Leeds", MaxPages: 3}
	bad := rm.SearchURL(params, 1)
	page := &fakePage{
		pages: map[string]string{
			rm.SearchURL(params, 0): cardPage(1),
			rm.SearchURL(params, 2): cardPage(3),
		},
		failNav: map[string]bool{bad: true},
	}
	s := newTestScraper(&fakeOpener{page: page})

	props, err := s.SearchResults(context.Background(), params)
	if err != nil {
		t.Fatalf("SearchResults: %v", err)
	}
	if len(props) != 2 {
		t.Errorf("expected pages 1 and 3 to contribute, got %d properties", len(props))
	}
	retries := 0
	for _, u := range page.navigated {
		if u == bad {
			retries++
		}
	}
	if retries != 2 {
		t.Errorf("failed page attempted %d times, want 2", retries)
	}
}

func TestSearchResultsFiltersType(t *testing.T) {
	rm := rightmove.New()
	params := models.SearchParams{Location: "Manchester", MaxPages: 1, PropertyType: "flat"}
	page := &fakePage{pages: map[string]string{rm.SearchURL(params, 0): manchesterPage}}
	s := newTestScraper(&fakeOpener{page: page})

	props, err := s.SearchResults(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if len(props) != 1 || props[0].ID != "333" {
		t.Errorf("expected only the flat, got %+v", props)
	}
}

func TestSearchResultsUnknownSource(t *testing.T) {
	s := newTestScraper(&fakeOpener{page: &fakePage{}})
	_, err := s.SearchResults(context.Background(), models.SearchParams{Location: "York", Source: "purplebricks"})
	if !errors.Is(err, ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", err)
	}
}

func TestSearchResultsOpenFailure(t *testing.T) {
	s := newTestScraper(&fakeOpener{err: errors.New("chrome not found")})
	if _, err := s.SearchResults(context.Background(), models.SearchParams{Location: "York"}); err == nil {
		t.Error("expected error when no page can be opened")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	s := newTestScraper(&fakeOpener{})
	p := s.Normalize(models.SearchParams{Location: " Bath "})
	if p.Source != "rightmove" || p.MaxPages != 3 || p.Location != "Bath" {
		t.Errorf("unexpected defaults: %+v", p)
	}
}

const listingPage = `<html><body>
<h1>Flat 2, 5 Park Road, Bristol, BS1 4AB</h1>
<p data-testid="price">£210,000</p>
<div>2 bedrooms 1 bathroom apartment. Leasehold. Council tax band: B. Allocated parking.</div>
<div data-testid="gallery"><img src="https://lid.zoocdn.com/645/430/page.jpg"></div>
</body></html>`

const galleryTab = `<html><body>
<div data-testid="gallery"><img src="https://lid.zoocdn.com/645/430/a.jpg"><img src="https://lid.zoocdn.com/645/430/b.jpg"></div>
</body></html>`

func TestListingDetailsPrefersAPIImages(t *testing.T) {
	const listing = "https://www.zoopla.co.uk/for-sale/details/70123456/"
	endpoints := zoopla.New().ImageEndpoints(listing)
	page := &fakePage{
		pages: map[string]string{listing: listingPage},
		json: map[string]string{
			endpoints[1]: `{"images":[{"url":"https://lid.zoocdn.com/u/1.jpg"},"https://lid.zoocdn.com/u/2.jpg"]}`,
		},
		clickable: true,
		afterTab:  galleryTab,
	}
	s := newTestScraper(&fakeOpener{page: page})

	d, err := s.ListingDetails(context.Background(), listing)
	if err != nil {
		t.Fatalf("ListingDetails: %v", err)
	}
	if len(d.Images) != 2 || d.ImageURL != "https://lid.zoocdn.com/u/1.jpg" {
		t.Errorf("API images not used: %v", d.Images)
	}
	if d.Price != 210000 || d.Tenure != "Leasehold" || !d.HasParking {
		t.Errorf("details not extracted: %+v", d)
	}
	if len(page.fetched) != 2 {
		t.Errorf("endpoints should stop at first hit, fetched %v", page.fetched)
	}
	if !page.closed {
		t.Error("page was not closed")
	}
}

func TestListingDetailsFallsBackToGalleryTab(t *testing.T) {
	const listing = "https://www.zoopla.co.uk/for-sale/details/70123456/"
	page := &fakePage{
		pages:     map[string]string{listing: listingPage},
		clickable: true,
		afterTab:  galleryTab,
	}
	s := newTestScraper(&fakeOpener{page: page})

	d, err := s.ListingDetails(context.Background(), listing)
	if err != nil {
		t.Fatalf("ListingDetails: %v", err)
	}
	if len(d.Images) != 2 || d.Images[0] != "https://lid.zoocdn.com/645/430/a.jpg" {
		t.Errorf("gallery images not used: %v", d.Images)
	}
	if d.Address == "" {
		t.Error("details should come from the listing, not the gallery")
	}
}

func TestListingDetailsNavigationFailure(t *testing.T) {
	const listing = "https://www.rightmove.co.uk/properties/111"
	page := &fakePage{pages: map[string]string{}, failNav: map[string]bool{listing: true}}
	s := newTestScraper(&fakeOpener{page: page})

	if _, err := s.ListingDetails(context.Background(), listing); err == nil {
		t.Error("expected error")
	}
	if !page.closed {
		t.Error("page must be closed on the error path")
	}
}

func TestValidateListingURL(t *testing.T) {
	tests := []struct {
		url string
		ok  bool
	}{
		{"https://www.rightmove.co.uk/properties/1", true},
		{"https://www.zoopla.co.uk/for-sale/details/1/", true},
		{"https://www.onthemarket.com/details/1/", true},
		{"https://rightmove.co.uk.evil.com/x", false},
		{"ftp://www.rightmove.co.uk/x", false},
		{"not a url", false},
		{"", false},
	}
	for _, tt := range tests {
		err := ValidateListingURL(tt.url)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateListingURL(%q) = %v; want ok=%v", tt.url, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrUnsupportedURL) {
			t.Errorf("ValidateListingURL(%q): error %v is not ErrUnsupportedURL", tt.url, err)
		}
	}
}

func TestSearchResultsDedupAcrossPagesIsStable(t *testing.T) {
	rm := rightmove.New()
	params := models.SearchParams{Location: "Leeds", MaxPages: 2}
	page := &fakePage{pages: map[string]string{
		rm.SearchURL(params, 0): cardPage(1, 2),
		rm.SearchURL(params, 1): cardPage(2, 3),
	}}
	s := newTestScraper(&fakeOpener{page: page})

	first, err := s.SearchResults(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.SearchResults(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 unique records both times, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Address != second[i].Address || first[i].ID != second[i].ID {
			t.Errorf("record %d differs between runs: %q vs %q", i, first[i].Address, second[i].Address)
		}
	}
}
