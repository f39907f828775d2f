package models

// Property is the canonical listing record. It is produced by the search
// extractors, enriched by detail scrapes and served as JSON to every consumer
// (search results, property pages, calculators, brochure export).
type Property struct {
	ID           string   `json:"id"`
	Source       string   `json:"source,omitempty"`
	Address      string   `json:"address"`
	Price        int      `json:"price"`
	Bedrooms     int      `json:"bedrooms"`
	Bathrooms    int      `json:"bathrooms"`
	PropertyType string   `json:"propertyType"`
	Description  string   `json:"description"`
	ImageURL     string   `json:"imageUrl"`
	Images       []string `json:"images,omitempty"`
	Postcode     string   `json:"postcode"`
	URL          string   `json:"url"`
	ListedDate   string   `json:"listedDate"`
	Flags        []string `json:"flags"`

	PriceReduction *int `json:"priceReduction,omitempty"`

	// Yield is the estimated gross rental yield in percent. It is derived
	// from Price and Bedrooms and never scraped.
	Yield *float64 `json:"yield,omitempty"`

	// Detail-mode fields, only filled once a listing page has been scraped.
	SquareFeet     int      `json:"squareFeet,omitempty"`
	Tenure         string   `json:"tenure,omitempty"`
	CouncilTaxBand string   `json:"councilTaxBand,omitempty"`
	EPCRating      string   `json:"epcRating,omitempty"`
	HasGarden      *bool    `json:"hasGarden,omitempty"`
	HasParking     *bool    `json:"hasParking,omitempty"`
	Furnishing     string   `json:"furnishing,omitempty"`
	LettingStatus  string   `json:"lettingStatus,omitempty"`
	ReceptionRooms int      `json:"receptionRooms,omitempty"`
	KeyFeatures    []string `json:"keyFeatures,omitempty"`
}

// PropertyDetails is whatever a single listing page yielded. Zero values mean
// "not found"; merging onto a cached Property is the caller's job.
type PropertyDetails struct {
	URL            string   `json:"url"`
	Address        string   `json:"address,omitempty"`
	Price          int      `json:"price,omitempty"`
	Bedrooms       int      `json:"bedrooms,omitempty"`
	Bathrooms      int      `json:"bathrooms,omitempty"`
	PropertyType   string   `json:"propertyType,omitempty"`
	Description    string   `json:"description,omitempty"`
	KeyFeatures    []string `json:"keyFeatures"`
	Tenure         string   `json:"tenure,omitempty"`
	CouncilTaxBand string   `json:"councilTaxBand,omitempty"`
	EPCRating      string   `json:"epcRating,omitempty"`
	SquareFeet     int      `json:"squareFeet,omitempty"`
	ReceptionRooms int      `json:"receptionRooms,omitempty"`
	HasGarden      bool     `json:"hasGarden"`
	HasParking     bool     `json:"hasParking"`
	Furnishing     string   `json:"furnishing,omitempty"`
	LettingStatus  string   `json:"lettingStatus,omitempty"`
	ImageURL       string   `json:"imageUrl"`
	Images         []string `json:"images"`
}

// SearchParams is the full filter set of one portal search. Numeric filters
// are zero when unset.
type SearchParams struct {
	Location     string  `json:"location"`
	MinPrice     int     `json:"minPrice,omitempty"`
	MaxPrice     int     `json:"maxPrice,omitempty"`
	MinBedrooms  int     `json:"minBedrooms,omitempty"`
	MaxBedrooms  int     `json:"maxBedrooms,omitempty"`
	PropertyType string  `json:"propertyType,omitempty"`
	Radius       float64 `json:"radius,omitempty"`
	MaxPages     int     `json:"maxPages"`
	Source       string  `json:"source"`
}

// RateLimitStatus is an observability snapshot of the scrape queue.
type RateLimitStatus struct {
	QueueLength  int   `json:"queueLength"`
	RequestCount int   `json:"requestCount"`
	MaxRequests  int   `json:"maxRequests"`
	WindowMs     int64 `json:"windowMs"`
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Keys   int   `json:"keys"`
}

// InsightReport summarises a set of cached properties.
type InsightReport struct {
	TotalProperties    int            `json:"totalProperties"`
	BySource           map[string]int `json:"bySource"`
	AveragePrice       float64        `json:"averagePrice"`
	MinPrice           int            `json:"minPrice"`
	MaxPrice           int            `json:"maxPrice"`
	MostExpensive      *Property      `json:"mostExpensive,omitempty"`
	AverageYield       float64        `json:"averageYield"`
	TopYield           []*Property    `json:"topYield"`
	ReducedCount       int            `json:"reducedCount"`
	ModernisationCount int            `json:"modernisationCount"`
	ByPostcode         map[string]int `json:"byPostcode"`
}
