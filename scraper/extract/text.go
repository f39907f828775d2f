package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	FlagReduced       = "Reduced in Price"
	FlagModernisation = "Needs Modernisation"

	DefaultPropertyType = "Property"
)

var (
	bedroomsRe     = regexp.MustCompile(`(?i)(\d+)\s*bed`)
	bathroomsRe    = regexp.MustCompile(`(?i)(\d+)\s*bath`)
	propertyTypeRe = regexp.MustCompile(`(?i)(semi-detached|detached|terraced|bungalow|apartment|house|flat)`)
	reducedByRe    = regexp.MustCompile(`(?i)reduced by\s*£\s*([\d,]+)`)
	digitsRe       = regexp.MustCompile(`\d+`)
)

// Text returns the visible text of s: text nodes joined by single spaces,
// scripts and styles skipped.
func Text(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return CleanText(b.String())
}

// CleanText collapses runs of whitespace and trims.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParsePrice strips "£" and thousands separators and reads the first run of
// digits, so "£250,000 Guide Price" and "Offers over £250,000" both give
// 250000. Zero means no price.
func ParsePrice(s string) int {
	s = strings.NewReplacer("£", "", ",", "").Replace(s)
	m := digitsRe.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

func firstInt(re *regexp.Regexp, text string) int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Bedrooms reads "N bed" from free text, or 0.
func Bedrooms(text string) int { return firstInt(bedroomsRe, text) }

// Bathrooms reads "N bath" from free text, or 0.
func Bathrooms(text string) int { return firstInt(bathroomsRe, text) }

// PropertyType picks the first dwelling keyword in text, title-cased, or
// DefaultPropertyType.
func PropertyType(text string) string {
	m := propertyTypeRe.FindStringSubmatch(text)
	if m == nil {
		return DefaultPropertyType
	}
	return cases.Title(language.BritishEnglish).String(strings.ToLower(m[1]))
}

// Flags derives market flags from card text. The reduction amount is nil
// when the text does not state one.
func Flags(text string) ([]string, *int) {
	flags := []string{}
	var reduction *int

	if m := reducedByRe.FindStringSubmatch(text); m != nil {
		if n := ParsePrice(m[1]); n > 0 {
			reduction = &n
			flags = append(flags, FlagReduced)
		}
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "modernisation") ||
		strings.Contains(lower, "refurbishment") ||
		strings.Contains(lower, "in need of") {
		flags = append(flags, FlagModernisation)
	}
	return flags, reduction
}

// Postcode is the last comma-separated segment of an address.
func Postcode(address string) string {
	parts := strings.Split(address, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}
