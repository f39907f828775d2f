// Package rightmove knows Rightmove's search URLs and result card markup.
package rightmove

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
	Name    = "rightmove"
	BaseURL = "https://www.rightmove.co.uk"

	// resultsPerPage is Rightmove's page size; the index parameter is an
	// offset, not a page number.
	resultsPerPage = 24
)

var cards = extract.CardSpec{
	Source:  Name,
	BaseURL: BaseURL,
	Cards: []string{
		`[data-test="property-card"]`,
		`.propertyCard`,
		`.l-searchResult`,
		`[class*="propertyCard"]`,
	},
	// Articles are a last resort and only count when they link to a listing,
	// which keeps banners and adverts out.
	CardFallback: func(doc *goquery.Selection) *goquery.Selection {
		return doc.Find("article").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return a.Find(`a[href*="/properties/"], a[href*="property"]`).Length() > 0
		})
	},
	Address: extract.Field[string]{
		Selectors: extract.TextAtEach(
			`[data-test="property-title"]`,
			`.propertyCard-address`,
			`.propertyCard-titleLink`,
			`address`,
			`[class*="address"]`,
		),
	},
	Price: extract.Field[int]{
		Selectors: extract.PriceAtEach(
			`[data-test="property-price"]`,
			`.propertyCard-priceValue`,
			`.propertyCard-price`,
			`[class*="price"]`,
		),
	},
	Images: []string{
		`img[src*="media.rightmove.co.uk/"][src*=".jpg"]`,
		`img[src*="media.rightmove.co.uk/"][src*=".jpeg"]`,
		`img[src*="media.rightmove.co.uk/"][src*=".png"]`,
		`img[data-src*=".jpg"]`,
		`img[data-src*=".jpeg"]`,
		`img[srcset*=".jpg"]`,
		`img[alt*="property"]`,
		`img[alt*="bedroom"]`,
		`picture img`,
		`.propertyCard-img img`,
		`img`,
	},
	Link: `a[href*="/properties/"], a[href*="property"]`,
	ID:   regexp.MustCompile(`propert(?:y|ies)[/-](\d+)`),
}

// Source implements the Rightmove search source.
type Source struct{}

// New returns the Rightmove source.
func New() Source { return Source{} }

func (Source) Name() string { return Name }

// SearchURL builds the results URL of the zero-based page.
func (Source) SearchURL(p models.SearchParams, page int) string {
	v := url.Values{}
	v.Set("locationIdentifier", "REGION^"+strings.Join(strings.Fields(p.Location), "-"))
	if p.MinPrice > 0 {
		v.Set("minPrice", strconv.Itoa(p.MinPrice))
	}
	if p.MaxPrice > 0 {
		v.Set("maxPrice", strconv.Itoa(p.MaxPrice))
	}
	if p.MinBedrooms > 0 {
		v.Set("minBedrooms", strconv.Itoa(p.MinBedrooms))
	}
	if p.MaxBedrooms > 0 {
		v.Set("maxBedrooms", strconv.Itoa(p.MaxBedrooms))
	}
	if p.Radius > 0 {
		v.Set("radius", strconv.FormatFloat(p.Radius, 'f', -1, 64))
	}
	if page > 0 {
		v.Set("index", strconv.Itoa(page*resultsPerPage))
	}
	return BaseURL + "/property-for-sale/find.html?" + v.Encode()
}

// ParseResults extracts the valid cards of one results page.
func (Source) ParseResults(doc *goquery.Selection, listedDate string) []models.Property {
	return cards.Parse(doc, listedDate)
}

// Handles reports whether listingURL is a Rightmove page.
func (Source) Handles(listingURL string) bool {
	u, err := url.Parse(listingURL)
	return err == nil && strings.HasSuffix(u.Hostname(), "rightmove.co.uk")
}

// ImageEndpoints is empty: Rightmove exposes no listing image API.
func (Source) ImageEndpoints(string) []string { return nil }

// GalleryURL is empty: Rightmove galleries open in place.
func (Source) GalleryURL(string) string { return "" }
