package services

import (
	"encoding/json"
	"sort"
	"strings"

	"propscout/models"
	"propscout/storage"
	"propscout/utils"
)

// PropertyStore is the typed view over the cache. Search results live under
// their search key; every record is also promoted under its own property key
// so a single listing can be served without rescanning lists.
type PropertyStore struct {
	cache  storage.Cache
	logger *utils.Logger
}

// NewPropertyStore wraps cache.
func NewPropertyStore(cache storage.Cache, logger *utils.Logger) *PropertyStore {
	return &PropertyStore{cache: cache, logger: logger}
}

// Search returns the cached result list for params. An empty list counts as
// a miss so a failed scrape does not shadow the next attempt.
func (s *PropertyStore) Search(params models.SearchParams) ([]models.Property, bool) {
	props, ok := s.list(storage.SearchKey(params))
	if !ok || len(props) == 0 {
		return nil, false
	}
	return props, true
}

// SaveSearch caches a fresh scrape under the search key and rewrites every
// record under its own key. Fields only a detail scrape can supply survive
// from the cached copy; everything the search page carries is replaced.
func (s *PropertyStore) SaveSearch(params models.SearchParams, props []models.Property) {
	if props == nil {
		props = []models.Property{}
	}
	s.put(storage.SearchKey(params), props)
	for _, p := range props {
		if p.ID == "" {
			continue
		}
		if cached, ok := s.Property(p.ID); ok {
			p = keepDetails(p, cached)
		}
		s.SaveProperty(p)
	}
}

// keepDetails copies detail-only fields from cached onto a freshly scraped
// record and recomputes its yield.
func keepDetails(fresh, cached models.Property) models.Property {
	if fresh.Description == "" || fresh.Description == fresh.PropertyType {
		if cached.Description != "" {
			fresh.Description = cached.Description
		}
	}
	if len(fresh.Images) == 0 {
		fresh.Images = cached.Images
	}
	fresh.SquareFeet = cached.SquareFeet
	fresh.Tenure = cached.Tenure
	fresh.CouncilTaxBand = cached.CouncilTaxBand
	fresh.EPCRating = cached.EPCRating
	fresh.HasGarden = cached.HasGarden
	fresh.HasParking = cached.HasParking
	fresh.Furnishing = cached.Furnishing
	fresh.LettingStatus = cached.LettingStatus
	fresh.ReceptionRooms = cached.ReceptionRooms
	fresh.KeyFeatures = cached.KeyFeatures
	fresh.Yield = yieldOf(fresh.Price, fresh.Bedrooms)
	return fresh
}

// PromoteAll stores every record under its own key, skipping those already
// there. It is for results served from the cache, which are never newer
// than what is already promoted.
func (s *PropertyStore) PromoteAll(props []models.Property) int {
	promoted := 0
	for _, p := range props {
		if p.ID == "" {
			continue
		}
		if _, ok := s.cache.Get(storage.PropertyKey(p.ID)); ok {
			continue
		}
		if s.SaveProperty(p) {
			promoted++
		}
	}
	if promoted > 0 {
		s.logger.Debug("[store] Promoted %d properties to individual keys", promoted)
	}
	return promoted
}

// Property returns the individually cached record for id.
func (s *PropertyStore) Property(id string) (models.Property, bool) {
	raw, ok := s.cache.Get(storage.PropertyKey(id))
	if !ok {
		return models.Property{}, false
	}
	var p models.Property
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("[store] Corrupt entry for %s: %v", id, err)
		return models.Property{}, false
	}
	return p, true
}

// SaveProperty stores p under its own key.
func (s *PropertyStore) SaveProperty(p models.Property) bool {
	return s.put(storage.PropertyKey(p.ID), p)
}

// FindProperty resolves id from the individual key first, then from any
// cached search list by exact id, then by address substring. A hit found in
// a list is promoted.
func (s *PropertyStore) FindProperty(id string) (models.Property, bool) {
	if p, ok := s.Property(id); ok {
		return p, true
	}

	lists := s.searchLists()
	for _, props := range lists {
		for _, p := range props {
			if p.ID == id {
				s.SaveProperty(p)
				return p, true
			}
		}
	}

	needle := strings.ToLower(strings.TrimSpace(id))
	if needle == "" {
		return models.Property{}, false
	}
	for _, props := range lists {
		for _, p := range props {
			if strings.Contains(strings.ToLower(p.Address), needle) {
				s.logger.Debug("[store] %q matched by address: %s", id, p.Address)
				s.SaveProperty(p)
				return p, true
			}
		}
	}
	return models.Property{}, false
}

// Searches returns every cached search list, keyed by cache key.
func (s *PropertyStore) Searches() map[string][]models.Property {
	out := make(map[string][]models.Property)
	for _, key := range s.cache.Keys() {
		if !storage.IsSearchKey(key) {
			continue
		}
		if props, ok := s.list(key); ok {
			out[key] = props
		}
	}
	return out
}

// AllProperties flattens every cached search list, deduplicated by id.
func (s *PropertyStore) AllProperties() []models.Property {
	seen := utils.NewKeySet()
	var all []models.Property
	for _, props := range s.searchLists() {
		for _, p := range props {
			if seen.Add(p.ID) {
				all = append(all, p)
			}
		}
	}
	return all
}

// Keys returns every cache key.
func (s *PropertyStore) Keys() []string { return s.cache.Keys() }

func (s *PropertyStore) Stats() models.CacheStats { return s.cache.Stats() }

// Clear drops every entry.
func (s *PropertyStore) Clear() {
	s.cache.FlushAll()
	s.logger.Info("[store] Cache cleared")
}

// searchLists returns cached lists in key order so lookups are deterministic.
func (s *PropertyStore) searchLists() [][]models.Property {
	keys := s.cache.Keys()
	sort.Strings(keys)
	var lists [][]models.Property
	for _, key := range keys {
		if !storage.IsSearchKey(key) {
			continue
		}
		if props, ok := s.list(key); ok {
			lists = append(lists, props)
		}
	}
	return lists
}

func (s *PropertyStore) list(key string) ([]models.Property, bool) {
	raw, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	var props []models.Property
	if err := json.Unmarshal(raw, &props); err != nil {
		s.logger.Warn("[store] Corrupt list under %s: %v", key, err)
		return nil, false
	}
	return props, true
}

func (s *PropertyStore) put(key string, v any) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("[store] Cannot encode %s: %v", key, err)
		return false
	}
	return s.cache.Set(key, raw)
}

// MergeDetails overlays whatever a detail scrape found onto base. Zero
// detail fields leave base untouched; yield is recomputed afterwards.
func MergeDetails(base models.Property, d models.PropertyDetails) models.Property {
	if d.URL != "" && base.URL == "" {
		base.URL = d.URL
	}
	if d.Address != "" {
		base.Address = d.Address
	}
	if d.Price > 0 {
		base.Price = d.Price
	}
	if d.Bedrooms > 0 {
		base.Bedrooms = d.Bedrooms
	}
	if d.Bathrooms > 0 {
		base.Bathrooms = d.Bathrooms
	}
	if d.PropertyType != "" {
		base.PropertyType = d.PropertyType
	}
	if d.Description != "" {
		base.Description = d.Description
	}
	if len(d.KeyFeatures) > 0 {
		base.KeyFeatures = d.KeyFeatures
	}
	if d.Tenure != "" {
		base.Tenure = d.Tenure
	}
	if d.CouncilTaxBand != "" {
		base.CouncilTaxBand = d.CouncilTaxBand
	}
	if d.EPCRating != "" {
		base.EPCRating = d.EPCRating
	}
	if d.SquareFeet > 0 {
		base.SquareFeet = d.SquareFeet
	}
	if d.ReceptionRooms > 0 {
		base.ReceptionRooms = d.ReceptionRooms
	}
	if d.Furnishing != "" {
		base.Furnishing = d.Furnishing
	}
	if d.LettingStatus != "" {
		base.LettingStatus = d.LettingStatus
	}
	if d.ImageURL != "" {
		base.ImageURL = d.ImageURL
	}
	if len(d.Images) > 0 {
		base.Images = d.Images
	}
	garden, parking := d.HasGarden, d.HasParking
	base.HasGarden = &garden
	base.HasParking = &parking
	if base.Flags == nil {
		base.Flags = []string{}
	}
	base.Yield = yieldOf(base.Price, base.Bedrooms)
	return base
}
