package services

import (
	"strings"

	"propscout/models"
	"propscout/utils"
)

// Cleaner turns the concatenated pages of one search into the final result
// set: invalid records dropped, duplicates removed, yield derived.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean validates, deduplicates and prices raw records. Two records are the
// same listing when their case-folded, trimmed addresses match; the first
// one seen wins. Clean is idempotent.
func (c *Cleaner) Clean(raw []models.Property) []models.Property {
	seen := utils.NewKeySet()
	result := make([]models.Property, 0, len(raw))
	dropped, dupes := 0, 0

	for _, p := range raw {
		p.Address = normaliseText(p.Address)
		if p.Address == "" || p.Price <= 0 {
			c.logger.Warn("[cleaner] Dropping invalid record %q (price %d)", p.ID, p.Price)
			dropped++
			continue
		}

		if !seen.Add(utils.NormalizeKey(p.Address)) {
			c.logger.Debug("[cleaner] Duplicate address skipped: %s", p.Address)
			dupes++
			continue
		}

		if p.Flags == nil {
			p.Flags = []string{}
		}
		p.Yield = yieldOf(p.Price, p.Bedrooms)
		result = append(result, p)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d properties (invalid %d, duplicates %d)",
		len(raw), len(result), dropped, dupes)
	return result
}

func yieldOf(price, bedrooms int) *float64 {
	y, err := EstimateYield(price, bedrooms)
	if err != nil {
		return nil
	}
	return &y
}

// FilterByType keeps properties whose type contains propertyType, ignoring
// case. An empty filter or "any" keeps everything.
func FilterByType(props []models.Property, propertyType string) []models.Property {
	want := strings.ToLower(strings.TrimSpace(propertyType))
	if want == "" || want == "any" {
		return props
	}
	out := make([]models.Property, 0, len(props))
	for _, p := range props {
		if strings.Contains(strings.ToLower(p.PropertyType), want) {
			out = append(out, p)
		}
	}
	return out
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
