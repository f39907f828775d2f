// Package extract turns portal HTML into property fields. Every field is an
// ordered list of independent strategies; the first plausible result wins so
// a single markup change degrades one field instead of the whole record.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy tries to read one value from a selection.
type Strategy[T any] func(s *goquery.Selection) (T, bool)

// First runs strategies in order and returns the first accepted value.
func First[T any](s *goquery.Selection, strategies ...Strategy[T]) (T, bool) {
	for _, try := range strategies {
		if try == nil {
			continue
		}
		if v, ok := try(s); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Field keeps structural (selector) strategies apart from text fallbacks.
// Text strategies only run once every selector has missed.
type Field[T any] struct {
	Selectors []Strategy[T]
	Text      []Strategy[T]
}

// Extract runs the selector tier, then the text tier.
func (f Field[T]) Extract(s *goquery.Selection) (T, bool) {
	if v, ok := First(s, f.Selectors...); ok {
		return v, true
	}
	return First(s, f.Text...)
}

// TextAt reads the text of the first element matching selector.
func TextAt(selector string) Strategy[string] {
	return func(s *goquery.Selection) (string, bool) {
		t := Text(s.Find(selector).First())
		return t, t != ""
	}
}

// TextsAt collects the non-empty texts of every element matching selector.
func TextsAt(selector string) Strategy[[]string] {
	return func(s *goquery.Selection) ([]string, bool) {
		var out []string
		s.Find(selector).Each(func(_ int, el *goquery.Selection) {
			if t := Text(el); t != "" {
				out = append(out, t)
			}
		})
		return out, len(out) > 0
	}
}

// TextsAtEach tries each selector with TextsAt.
func TextsAtEach(selectors ...string) []Strategy[[]string] {
	out := make([]Strategy[[]string], len(selectors))
	for i, sel := range selectors {
		out[i] = TextsAt(sel)
	}
	return out
}

// TextAtEach builds one TextAt strategy per selector, preserving order.
func TextAtEach(selectors ...string) []Strategy[string] {
	out := make([]Strategy[string], len(selectors))
	for i, sel := range selectors {
		out[i] = TextAt(sel)
	}
	return out
}

// PriceAt parses the first element matching selector as a price.
func PriceAt(selector string) Strategy[int] {
	return func(s *goquery.Selection) (int, bool) {
		p := ParsePrice(Text(s.Find(selector).First()))
		return p, p > 0
	}
}

// PriceAtEach builds one PriceAt strategy per selector, preserving order.
func PriceAtEach(selectors ...string) []Strategy[int] {
	out := make([]Strategy[int], len(selectors))
	for i, sel := range selectors {
		out[i] = PriceAt(sel)
	}
	return out
}

// IntAt parses the leading integer of the first element matching selector.
func IntAt(selector string) Strategy[int] {
	return func(s *goquery.Selection) (int, bool) {
		m := leadingInt.FindStringSubmatch(Text(s.Find(selector).First()))
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
}

// IntAtEach builds one IntAt strategy per selector, preserving order.
func IntAtEach(selectors ...string) []Strategy[int] {
	out := make([]Strategy[int], len(selectors))
	for i, sel := range selectors {
		out[i] = IntAt(sel)
	}
	return out
}

var leadingInt = regexp.MustCompile(`^\s*(\d+)`)

// TextMatch returns the first capture group of re over the selection text.
func TextMatch(re *regexp.Regexp, minLen int) Strategy[string] {
	return func(s *goquery.Selection) (string, bool) {
		m := re.FindStringSubmatch(Text(s))
		if m == nil {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		return v, len(v) > minLen
	}
}

// IntMatch returns the first capture group of re as an integer.
func IntMatch(re *regexp.Regexp) Strategy[int] {
	return func(s *goquery.Selection) (int, bool) {
		m := re.FindStringSubmatch(Text(s))
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		return n, err == nil
	}
}

// PriceMatch returns the first capture group of re as a price above min.
func PriceMatch(re *regexp.Regexp, min int) Strategy[int] {
	return func(s *goquery.Selection) (int, bool) {
		m := re.FindStringSubmatch(Text(s))
		if m == nil {
			return 0, false
		}
		p := ParsePrice(m[1])
		return p, p > min
	}
}
