// Package zoopla knows Zoopla's search URLs, result cards and listing APIs.
package zoopla

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propscout/models"
	"propscout/scraper/extract"
)

const (
	Name    = "zoopla"
	BaseURL = "https://www.zoopla.co.uk"
)

var (
	detailsIDRe = regexp.MustCompile(`/details/(\d+)`)

	cards = extract.CardSpec{
		Source:  Name,
		BaseURL: BaseURL,
		Cards:   []string{`[data-testid="search-result"]`, `[data-testid^="search-result"]`},
		Address: extract.Field[string]{
			Selectors: extract.TextAtEach(
				`[data-testid="listing-title"]`,
				`address`,
				`h2`,
				`[class*="address"]`,
			),
		},
		Price: extract.Field[int]{
			Selectors: extract.PriceAtEach(
				`[data-testid="listing-price"]`,
				`p[class*="price"]`,
				`[data-testid*="price"]`,
				`[class*="price"]`,
			),
		},
		DetailsSelector:        `[data-testid="listing-details"]`,
		DescriptionFromDetails: true,
		Images:                 []string{`picture img`, `img`},
		Link:                   `a[href]`,
		ID:                     detailsIDRe,
	}
)

// Source implements the Zoopla search source.
type Source struct{}

// New returns the Zoopla source.
func New() Source { return Source{} }

func (Source) Name() string { return Name }

// SearchURL builds the results URL of the zero-based page.
func (Source) SearchURL(p models.SearchParams, page int) string {
	v := url.Values{}
	v.Set("q", strings.TrimSpace(p.Location))
	v.Set("search_source", "for-sale")
	if p.MinPrice > 0 {
		v.Set("price_min", strconv.Itoa(p.MinPrice))
	}
	if p.MaxPrice > 0 {
		v.Set("price_max", strconv.Itoa(p.MaxPrice))
	}
	if p.MinBedrooms > 0 {
		v.Set("beds_min", strconv.Itoa(p.MinBedrooms))
	}
	if p.MaxBedrooms > 0 {
		v.Set("beds_max", strconv.Itoa(p.MaxBedrooms))
	}
	if p.Radius > 0 {
		v.Set("radius", strconv.FormatFloat(p.Radius, 'f', -1, 64))
	}
	if page > 0 {
		v.Set("pn", strconv.Itoa(page+1))
	}
	return BaseURL + "/for-sale/property/?" + v.Encode()
}

// ParseResults extracts the valid cards of one results page.
func (Source) ParseResults(doc *goquery.Selection, listedDate string) []models.Property {
	return cards.Parse(doc, listedDate)
}

// Handles reports whether listingURL is a Zoopla page.
func (Source) Handles(listingURL string) bool {
	u, err := url.Parse(listingURL)
	return err == nil && strings.HasSuffix(u.Hostname(), "zoopla.co.uk")
}

// ImageEndpoints lists the JSON endpoints that may carry the gallery of a
// listing, keyed by its numeric id.
func (Source) ImageEndpoints(listingURL string) []string {
	m := detailsIDRe.FindStringSubmatch(listingURL)
	if m == nil {
		return nil
	}
	id := m[1]
	return []string{
		BaseURL + "/api/property/" + id + "/",
		BaseURL + "/api/v1/property/" + id + "/",
		BaseURL + "/api/property/" + id + "/images/",
		BaseURL + "/api/v1/property/" + id + "/images/",
		BaseURL + "/api/property/" + id + "/gallery/",
		BaseURL + "/api/v1/property/" + id + "/gallery/",
	}
}

// GalleryURL is the listing's images tab, or "" when already there.
func (Source) GalleryURL(listingURL string) string {
	if strings.Contains(listingURL, "tab=images") {
		return ""
	}
	sep := "?"
	if strings.Contains(listingURL, "?") {
		sep = "&"
	}
	return listingURL + sep + "tab=images"
}
