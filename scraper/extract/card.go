package extract

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"propscout/models"
	"propscout/utils"
)

// CardSpec describes how one portal lays out its search results.
type CardSpec struct {
	Source  string
	BaseURL string

	// Cards are tried in order; the first selector matching anything wins.
	Cards []string
	// CardFallback runs when no card selector matches.
	CardFallback func(doc *goquery.Selection) *goquery.Selection

	Address Field[string]
	Price   Field[int]

	// DetailsSelector scopes bedroom/bathroom/type parsing. Each field falls
	// back to the whole card text when the scoped element is missing or does
	// not carry it.
	DetailsSelector string
	// DescriptionFromDetails uses the details text as description when the
	// element exists; otherwise the description is the property type.
	DescriptionFromDetails bool

	Images []string
	Link   string
	ID     *regexp.Regexp
}

// FindCards returns the result cards of doc.
func (c CardSpec) FindCards(doc *goquery.Selection) *goquery.Selection {
	for _, sel := range c.Cards {
		if cards := doc.Find(sel); cards.Length() > 0 {
			return cards
		}
	}
	if c.CardFallback != nil {
		return c.CardFallback(doc)
	}
	return doc.Slice(0, 0)
}

// Parse extracts every valid card on a results page. Cards without an
// address or a positive price are dropped.
func (c CardSpec) Parse(doc *goquery.Selection, listedDate string) []models.Property {
	var out []models.Property
	c.FindCards(doc).Each(func(_ int, card *goquery.Selection) {
		if p, ok := c.parseCard(card, listedDate); ok {
			out = append(out, p)
		}
	})
	return out
}

func (c CardSpec) parseCard(card *goquery.Selection, listedDate string) (models.Property, bool) {
	address, _ := c.Address.Extract(card)
	price, _ := c.Price.Extract(card)
	if address == "" || price <= 0 {
		return models.Property{}, false
	}

	cardText := Text(card)
	detailsText := ""
	if c.DetailsSelector != "" {
		detailsText = Text(card.Find(c.DetailsSelector))
	}

	bedrooms, _ := detailField(c, Bedrooms).Extract(card)
	bathrooms, _ := detailField(c, Bathrooms).Extract(card)
	propertyType, ok := detailField(c, knownPropertyType).Extract(card)
	if !ok {
		propertyType = DefaultPropertyType
	}
	description := propertyType
	if c.DescriptionFromDetails && detailsText != "" {
		description = detailsText
	}

	link := ""
	if href, ok := card.Find(c.Link).First().Attr("href"); ok {
		link = Absolutize(href, c.BaseURL)
	}

	flags, reduction := Flags(cardText)

	return models.Property{
		ID:             c.propertyID(link, address),
		Source:         c.Source,
		Address:        address,
		Price:          price,
		Bedrooms:       bedrooms,
		Bathrooms:      bathrooms,
		PropertyType:   propertyType,
		Description:    description,
		ImageURL:       CardImage(card, c.Images, c.BaseURL),
		Postcode:       Postcode(address),
		URL:            link,
		ListedDate:     listedDate,
		Flags:          flags,
		PriceReduction: reduction,
	}, true
}

// detailField reads a value from the details element first and from the
// whole card text second.
func detailField[T comparable](c CardSpec, parse func(string) T) Field[T] {
	var zero T
	from := func(text string) (T, bool) {
		v := parse(text)
		return v, v != zero
	}
	f := Field[T]{
		Text: []Strategy[T]{func(s *goquery.Selection) (T, bool) { return from(Text(s)) }},
	}
	if c.DetailsSelector != "" {
		f.Selectors = []Strategy[T]{func(s *goquery.Selection) (T, bool) {
			return from(Text(s.Find(c.DetailsSelector)))
		}}
	}
	return f
}

// knownPropertyType is PropertyType without the default, so a details
// element naming no dwelling does not hide one named elsewhere on the card.
func knownPropertyType(text string) string {
	if t := PropertyType(text); t != DefaultPropertyType {
		return t
	}
	return ""
}

// propertyID prefers the portal's numeric id. Otherwise it derives a stable
// id from source and normalised address so repeated scrapes of the same
// listing agree.
func (c CardSpec) propertyID(link, address string) string {
	if c.ID != nil {
		if m := c.ID.FindStringSubmatch(link); m != nil {
			return m[1]
		}
	}
	return FallbackID(c.Source, address)
}

// FallbackID is the deterministic id of a card with no portal id.
func FallbackID(source, address string) string {
	name := source + ":" + utils.NormalizeKey(address)
	return "property-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
