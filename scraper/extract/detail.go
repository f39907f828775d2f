package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propscout/models"
)

var (
	detailPrice = Field[int]{
		Selectors: PriceAtEach(
			`[data-testid="price"]`,
			`.ui-pricing__main-price`,
			`.price`,
			`[data-test="price"]`,
		),
		Text: []Strategy[int]{
			PriceMatch(regexp.MustCompile(`(?i)price[:\s]*£\s*([\d,]+)`), 10000),
			PriceMatch(regexp.MustCompile(`£\s*([\d,]+)\s*\(`), 10000),
			PriceMatch(regexp.MustCompile(`(?i)£\s*([\d,]+)\s*per`), 10000),
			PriceMatch(regexp.MustCompile(`£\s*([\d,]+)`), 0),
		},
	}

	detailAddress = Field[string]{
		Selectors: TextAtEach(
			`[data-testid="address"]`,
			`.ui-title`,
			`h1`,
			`[data-test="address"]`,
		),
		Text: []Strategy[string]{
			TextMatch(regexp.MustCompile(`(?i)([A-Za-z0-9 ,]+(?:Street|Road|Avenue|Lane|Close|Drive|Way|Place|Square|Gardens|Park|Court)[A-Za-z0-9 ,]*)`), 10),
			TextMatch(regexp.MustCompile(`(?i)([A-Za-z0-9 ,]+(?:London|Manchester|Birmingham|Liverpool|Leeds|Sheffield|Bristol|Newcastle|Nottingham|Leicester)[A-Za-z0-9 ,]*)`), 10),
		},
	}

	detailBedrooms = Field[int]{
		Selectors: IntAtEach(`[data-testid="beds"]`, `.ui-icon--bed`, `[data-test="beds"]`),
		Text:      []Strategy[int]{IntMatch(bedroomsRe)},
	}

	detailBathrooms = Field[int]{
		Selectors: IntAtEach(`[data-testid="baths"]`, `.ui-icon--bath`, `[data-test="baths"]`),
		Text:      []Strategy[int]{IntMatch(bathroomsRe)},
	}

	detailType = Field[string]{
		Selectors: TextAtEach(
			`[data-testid="property-type"]`,
			`.ui-property-summary__type`,
			`[data-test="property-type"]`,
		),
	}

	detailDescription = Field[string]{
		Selectors: TextAtEach(
			`[data-test="property-description"]`,
			`.property-description`,
			`[itemprop="description"]`,
			`.ui-property-summary__description`,
		),
	}

	detailFeatures = Field[[]string]{
		Selectors: TextsAtEach(`[data-test="property-features"] li, .key-features li, ul.features li`),
	}

	councilTaxRe = regexp.MustCompile(`(?i)council tax band\s*:?\s*([A-H])\b`)
	epcRes       = []*regexp.Regexp{
		regexp.MustCompile(`(?i)EPC rating\s*:?\s*([A-G])\b`),
		regexp.MustCompile(`(?i)energy efficiency rating\s*:?\s*([A-G])\b`),
	}
	sqFtRe      = regexp.MustCompile(`(?i)([\d,]+)\s*sq\.?\s*ft`)
	sqMRe       = regexp.MustCompile(`(?i)([\d,]+)\s*sq\.?\s*m(?:etres|eters|\b)`)
	receptionRe = regexp.MustCompile(`(?i)(\d+)\s*reception`)
)

// sqMToSqFt converts floor areas quoted in square metres.
const sqMToSqFt = 10.764

// Details extracts the full field set of a single listing page. Fields that
// cannot be recovered keep their zero value.
func Details(doc *goquery.Selection, pageURL string) models.PropertyDetails {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc
	}
	text := Text(body)
	lower := strings.ToLower(text)

	d := models.PropertyDetails{URL: pageURL}
	d.Price, _ = detailPrice.Extract(body)
	d.Address, _ = detailAddress.Extract(body)
	d.Bedrooms, _ = detailBedrooms.Extract(body)
	d.Bathrooms, _ = detailBathrooms.Extract(body)
	d.PropertyType, _ = detailType.Extract(body)
	d.Description, _ = detailDescription.Extract(body)
	d.KeyFeatures, _ = detailFeatures.Extract(body)
	if d.KeyFeatures == nil {
		d.KeyFeatures = []string{}
	}

	d.Tenure = Tenure(lower)
	if m := councilTaxRe.FindStringSubmatch(text); m != nil {
		d.CouncilTaxBand = strings.ToUpper(m[1])
	}
	for _, re := range epcRes {
		if m := re.FindStringSubmatch(text); m != nil {
			d.EPCRating = strings.ToUpper(m[1])
			break
		}
	}
	d.SquareFeet = SquareFeet(text)
	d.ReceptionRooms = firstInt(receptionRe, text)
	d.HasGarden = strings.Contains(lower, "garden") && !strings.Contains(lower, "no garden")
	d.HasParking = strings.Contains(lower, "parking") ||
		strings.Contains(lower, "garage") ||
		strings.Contains(lower, "driveway")
	d.Furnishing = Furnishing(lower)
	d.LettingStatus = LettingStatus(lower)

	d.Images = GalleryImages(doc)
	if len(d.Images) > 0 {
		d.ImageURL = d.Images[0]
	}
	return d
}

// Tenure classifies lower-cased page text. "Share of freehold" contains
// "freehold" and so is checked first.
func Tenure(lower string) string {
	switch {
	case strings.Contains(lower, "share of freehold"):
		return "Share of Freehold"
	case strings.Contains(lower, "freehold"):
		return "Freehold"
	case strings.Contains(lower, "leasehold"):
		return "Leasehold"
	}
	return ""
}

// Furnishing classifies lower-cased page text, most specific phrase first.
func Furnishing(lower string) string {
	switch {
	case strings.Contains(lower, "part furnished"), strings.Contains(lower, "part-furnished"):
		return "Part Furnished"
	case strings.Contains(lower, "unfurnished"):
		return "Unfurnished"
	case strings.Contains(lower, "furnished"):
		return "Furnished"
	}
	return ""
}

// LettingStatus classifies lower-cased page text.
func LettingStatus(lower string) string {
	switch {
	case strings.Contains(lower, "tenanted"), strings.Contains(lower, "sitting tenant"):
		return "Tenanted"
	case strings.Contains(lower, "vacant"):
		return "Vacant"
	}
	return ""
}

// SquareFeet reads a floor area, converting square metres when no square
// feet figure is given.
func SquareFeet(text string) int {
	if m := sqFtRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		return n
	}
	if m := sqMRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		return int(math.Round(float64(n) * sqMToSqFt))
	}
	return 0
}

var (
	gallerySelectors = []string{
		`div[data-testid="gallery"] img`,
		`div[data-testid="photos-gallery"] img`,
		`div[class*="gallery"] img`,
		`div[class*="image-gallery"] img`,
		`div[class*="photos"] img`,
		`picture img[srcset]`,
		`img[src*="images.zoopla.co.uk"]`,
		`img[src*="lid.zoocdn.com"]`,
		`img[src*="zoopla"]`,
		`img[src*="800x600"]`,
		`img[src*="1024x768"]`,
		`img[src*="1200x900"]`,
		`img[data-testid="gallery-image"]`,
		`img[data-testid="property-image"]`,
		`.property-image img`,
		`picture img`,
		`.gallery img`,
		`[data-test="gallery"] img`,
	}

	cdnSelectors = []string{
		`img[src*="images.zoopla.co.uk"]`,
		`img[src*="lid.zoocdn.com"]`,
		`img[src*="property-images"]`,
		`img[src*="photos"]`,
		`img[src*="gallery"]`,
	}

	photoHints  = []string{"property", "photo", "image", "gallery", "800x", "1024x", "1200x", "jpg", "jpeg", "png"}
	photoHosts  = []string{"images.zoopla.co.uk", "lid.zoocdn.com", "property-images", "photos"}
	uiBroadScan = []string{"button", "arrow", "close", "menu"}
)

// GalleryImages scans a listing page for property photos: known gallery
// containers first, then photo CDN patterns, then a broad scan of every
// image hosted on a photo domain. All tiers share the asset denylist.
func GalleryImages(doc *goquery.Selection) []string {
	list := newImageList()

	for _, sel := range gallerySelectors {
		doc.Find(sel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			list.add(ImageSource(img))
			return !list.full()
		})
		if len(list.urls) > 0 {
			return list.urls
		}
	}

	for _, sel := range cdnSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			src, _ := img.Attr("src")
			list.add(src)
			return !list.full()
		})
		if len(list.urls) > 0 {
			return list.urls
		}
	}

	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := ImageSource(img)
		if looksLikePhoto(src) {
			list.add(src)
		}
		return !list.full()
	})
	return list.urls
}

func looksLikePhoto(u string) bool {
	lower := strings.ToLower(u)
	return containsAny(lower, photoHints) && containsAny(lower, photoHosts) && !containsAny(lower, uiBroadScan)
}

func containsAny(s string, frags []string) bool {
	for _, f := range frags {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

type apiImage struct {
	URL      string `json:"url"`
	Src      string `json:"src"`
	ImageURL string `json:"image_url"`
}

// UnmarshalJSON also accepts a bare URL string.
func (i *apiImage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		i.URL = s
		return nil
	}
	type plain apiImage
	return json.Unmarshal(data, (*plain)(i))
}

func (i apiImage) best() string {
	switch {
	case i.URL != "":
		return i.URL
	case i.Src != "":
		return i.Src
	default:
		return i.ImageURL
	}
}

// APIImages reads image URLs from a listing API payload of the shape
// {"images":[{"url":...}]} or {"gallery":[{"src":...}]}. A nil result means
// the payload carried no usable images.
func APIImages(payload []byte) []string {
	var body struct {
		Images  []apiImage `json:"images"`
		Gallery []apiImage `json:"gallery"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil
	}
	entries := body.Images
	if len(entries) == 0 {
		entries = body.Gallery
	}

	list := newImageList()
	for _, e := range entries {
		list.add(e.best())
	}
	return list.urls
}
