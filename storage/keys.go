package storage

import (
	"net/url"
	"strconv"
	"strings"

	"propscout/models"
	"propscout/utils"
)

const (
	searchKeyPrefix   = "properties_"
	propertyKeyPrefix = "property_"
)

// SearchKey derives the cache key of a search. Only non-zero filters take
// part and url.Values.Encode sorts them, so two requests with the same
// filters in a different order share one entry.
func SearchKey(p models.SearchParams) string {
	v := url.Values{}
	if loc := utils.NormalizeKey(p.Location); loc != "" {
		v.Set("location", loc)
	}
	setInt(v, "minPrice", p.MinPrice)
	setInt(v, "maxPrice", p.MaxPrice)
	setInt(v, "minBedrooms", p.MinBedrooms)
	setInt(v, "maxBedrooms", p.MaxBedrooms)
	if pt := utils.NormalizeKey(p.PropertyType); pt != "" && pt != "any" {
		v.Set("propertyType", pt)
	}
	if p.Radius > 0 {
		v.Set("radius", strconv.FormatFloat(p.Radius, 'f', -1, 64))
	}
	setInt(v, "maxPages", p.MaxPages)
	if src := utils.NormalizeKey(p.Source); src != "" {
		v.Set("source", src)
	}
	return searchKeyPrefix + v.Encode()
}

func setInt(v url.Values, key string, n int) {
	if n > 0 {
		v.Set(key, strconv.Itoa(n))
	}
}

// PropertyKey is the cache key of a single promoted record.
func PropertyKey(id string) string {
	return propertyKeyPrefix + id
}

// IsSearchKey reports whether key holds a list of properties.
func IsSearchKey(key string) bool {
	return strings.HasPrefix(key, searchKeyPrefix)
}
