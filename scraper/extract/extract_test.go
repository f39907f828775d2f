package extract

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestFirstStopsAtFirstAccepted(t *testing.T) {
	doc := mustDoc(t, `<div><span class="a"></span><span class="b">two</span><span class="c">three</span></div>`)

	calls := 0
	counting := func(sel string) Strategy[string] {
		inner := TextAt(sel)
		return func(s *goquery.Selection) (string, bool) {
			calls++
			return inner(s)
		}
	}

	got, ok := First(doc.Selection, counting(".a"), counting(".b"), counting(".c"))
	if !ok || got != "two" {
		t.Fatalf("got %q, %v", got, ok)
	}
	if calls != 2 {
		t.Errorf("strategies after the winner must not run, calls=%d", calls)
	}

	if _, ok := First[string](doc.Selection); ok {
		t.Error("empty strategy list should miss")
	}
}

func TestFieldPrefersSelectorTier(t *testing.T) {
	doc := mustDoc(t, `<p>Offers over £900,000</p><span class="price">£250,000</span>`)
	f := Field[int]{
		Selectors: PriceAtEach(".missing", ".price"),
		Text:      []Strategy[int]{PriceMatch(regexp.MustCompile(`£([\d,]+)`), 0)},
	}
	got, ok := f.Extract(doc.Selection)
	if !ok || got != 250000 {
		t.Errorf("got %d, %v; want selector result 250000", got, ok)
	}

	f.Selectors = PriceAtEach(".missing")
	got, _ = f.Extract(doc.Selection)
	if got != 900000 {
		t.Errorf("text tier: got %d, want 900000", got)
	}
}

func TestTextSkipsScriptsAndJoinsNodes(t *testing.T) {
	doc := mustDoc(t, `<div><b>3</b>bed<script>var beds = 9;</script><style>.x{}</style>
	   <i>semi-detached</i></div>`)
	got := Text(doc.Find("div"))
	if got != "3 bed semi-detached" {
		t.Errorf("got %q", got)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"£250,000", 250000},
		{" £ 1,250,000 Guide Price", 1250000},
		{"Offers over £325,000", 325000},
		{"POA", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := ParsePrice(tt.in); got != tt.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCardTextHeuristics(t *testing.T) {
	text := "3 bed semi-detached house for sale, 2 bathrooms. Reduced by £10,000 on 01/05. In need of modernisation"

	if got := Bedrooms(text); got != 3 {
		t.Errorf("bedrooms: got %d", got)
	}
	if got := Bathrooms(text); got != 2 {
		t.Errorf("bathrooms: got %d", got)
	}
	if got := PropertyType(text); !strings.EqualFold(got, "semi-detached") || got[0] != 'S' {
		t.Errorf("type: got %q", got)
	}
	if got := PropertyType("a two storey FLAT"); got != "Flat" {
		t.Errorf("flat: got %q", got)
	}
	if got := PropertyType("studio"); got != DefaultPropertyType {
		t.Errorf("default type: got %q", got)
	}

	flags, reduction := Flags(text)
	if reduction == nil || *reduction != 10000 {
		t.Errorf("reduction: got %v", reduction)
	}
	if !reflect.DeepEqual(flags, []string{FlagReduced, FlagModernisation}) {
		t.Errorf("flags: got %v", flags)
	}

	flags, reduction = Flags("nothing notable")
	if len(flags) != 0 || reduction != nil {
		t.Errorf("no flags expected, got %v %v", flags, reduction)
	}
}

func TestPostcode(t *testing.T) {
	tests := map[string]string{
		"1 High Street, Manchester, M1 1AA": "M1 1AA",
		"Somewhere without commas":          "Somewhere without commas",
		"Flat 2, ":                          "",
	}
	for in, want := range tests {
		if got := Postcode(in); got != want {
			t.Errorf("Postcode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFallbackIDIsStable(t *testing.T) {
	a := FallbackID("rightmove", "1 High Street, Leeds")
	b := FallbackID("rightmove", "  1 HIGH STREET,  Leeds ")
	c := FallbackID("zoopla", "1 High Street, Leeds")
	if a != b {
		t.Errorf("same address should give same id: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different sources should give different ids")
	}
	if !strings.HasPrefix(a, "property-") {
		t.Errorf("got %q", a)
	}
}
