package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxImages caps the gallery of a single listing.
const MaxImages = 8

// cardAssets are the URL fragments that disqualify a search card photo.
// Card photos are served from portal CDN paths that may contain words the
// gallery list rejects, so this list stays short.
var cardAssets = []string{
	".svg",
	"floorplan",
	"placeholder",
	"icon",
	"logo",
	"/_next/static/",
}

// nonPropertyAssets are URL fragments of portal chrome, maps, agent badges
// and floorplans found on listing pages. Matching is case-insensitive
// substring.
var nonPropertyAssets = append(append([]string{}, cardAssets...),
	"thumbnail",
	"avatar",
	"badge",
	"sprite",
	"naea",
	"tpo",
	"maps.zoopla.co.uk",
	"cloudfront.net/themes",
	"marker",
	"pin",
	"static",
)

// IsNonPropertyAsset reports whether u looks like a UI asset rather than a
// photo of the property.
func IsNonPropertyAsset(u string) bool { return containsAny(strings.ToLower(u), nonPropertyAssets) }

func isCardAsset(u string) bool { return containsAny(strings.ToLower(u), cardAssets) }

// BestSrcset returns the highest-resolution candidate of a srcset attribute.
// Width and density descriptors are compared; without descriptors the last
// candidate wins.
func BestSrcset(srcset string) string {
	best, bestScore := "", -1.0
	for i, cand := range strings.Split(srcset, ",") {
		fields := strings.Fields(cand)
		if len(fields) == 0 {
			continue
		}
		score := float64(i) / 1e6
		if len(fields) > 1 {
			d := fields[1]
			if n, err := strconv.ParseFloat(d[:len(d)-1], 64); err == nil && (strings.HasSuffix(d, "w") || strings.HasSuffix(d, "x")) {
				score = n
			}
		}
		if score >= bestScore {
			best, bestScore = fields[0], score
		}
	}
	return best
}

// ImageSource picks the best URL an <img> offers: srcset first, then lazy
// loading attributes, then src. Inline data: URIs are never returned.
func ImageSource(img *goquery.Selection) string {
	if srcset, ok := img.Attr("srcset"); ok {
		if u := BestSrcset(srcset); u != "" && !isDataURI(u) {
			return u
		}
	}
	for _, attr := range []string{"data-src", "data-lazy-src", "data-original", "src"} {
		if v, ok := img.Attr(attr); ok {
			v = strings.TrimSpace(v)
			if v != "" && !isDataURI(v) {
				return v
			}
		}
	}
	return ""
}

func isDataURI(u string) bool {
	return strings.HasPrefix(strings.ToLower(u), "data:")
}

// Absolutize resolves protocol-relative and root-relative URLs against base
// (scheme and host, no trailing slash).
func Absolutize(raw, base string) string {
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return strings.TrimRight(base, "/") + raw
	default:
		return raw
	}
}

// CardImage returns the photo of a search card. The first element matching
// any selector (in priority order) decides; if its URL is a card UI asset the
// card has no image.
func CardImage(card *goquery.Selection, selectors []string, base string) string {
	for _, sel := range selectors {
		img := card.Find(sel).First()
		if img.Length() == 0 {
			continue
		}
		u := Absolutize(ImageSource(img), base)
		if u == "" || isCardAsset(u) {
			return ""
		}
		return u
	}
	return ""
}

// imageList accumulates unique, accepted gallery URLs up to MaxImages.
type imageList struct {
	urls []string
	seen map[string]bool
}

func newImageList() *imageList {
	return &imageList{seen: make(map[string]bool)}
}

func (l *imageList) add(u string) bool {
	if len(l.urls) >= MaxImages || !strings.HasPrefix(u, "http") || l.seen[u] || IsNonPropertyAsset(u) {
		return false
	}
	l.seen[u] = true
	l.urls = append(l.urls, u)
	return true
}

func (l *imageList) full() bool { return len(l.urls) >= MaxImages }
