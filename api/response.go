package api

import (
	"encoding/json"
	"net/http"

	"propscout/models"
)

// SearchResponse is the body of a property search.
type SearchResponse struct {
	Success         bool                    `json:"success"`
	Properties      []models.Property       `json:"properties"`
	Cached          bool                    `json:"cached"`
	Source          string                  `json:"source"`
	Count           int                     `json:"count"`
	RateLimitStatus *models.RateLimitStatus `json:"rateLimitStatus,omitempty"`
}

// searchError keeps the properties field so clients can always iterate it.
type searchError struct {
	Success    bool              `json:"success"`
	Error      string            `json:"error"`
	Properties []models.Property `json:"properties"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type propertyResponse struct {
	Success  bool             `json:"success"`
	Property *models.Property `json:"property"`
}

type detailsResponse struct {
	Success  bool                    `json:"success"`
	Details  *models.PropertyDetails `json:"details"`
	Property *models.Property        `json:"property"`
}

type scrapeResponse struct {
	Success     bool             `json:"success"`
	Property    *models.Property `json:"property"`
	MonthlyRent int              `json:"monthlyRent"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type statsResponse struct {
	Success bool              `json:"success"`
	Stats   models.CacheStats `json:"stats"`
}

type statusResponse struct {
	Success         bool                   `json:"success"`
	RateLimitStatus models.RateLimitStatus `json:"rateLimitStatus"`
	Cache           models.CacheStats      `json:"cache"`
}

type debugSample struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	ImageURL string `json:"imageUrl"`
	HasImage bool   `json:"hasImage"`
}

type debugResponse struct {
	Success         bool          `json:"success"`
	TotalCacheKeys  int           `json:"totalCacheKeys"`
	TotalProperties int           `json:"totalProperties"`
	Samples         []debugSample `json:"samples"`
}

type insightsResponse struct {
	Success  bool                  `json:"success"`
	Insights *models.InsightReport `json:"insights"`
}

type upstreamImageError struct {
	Error      string `json:"error"`
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
}

// RespondWithJSON writes payload with the given status.
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteJSONError writes {success:false, error}.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	RespondWithJSON(w, status, errorResponse{Error: msg})
}
