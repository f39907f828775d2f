package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"propscout/models"
	"propscout/scraper"
	"propscout/scraper/extract"
	"propscout/services"
	"propscout/storage"
	"propscout/utils"
)

const defaultLocation = "Manchester"

// PropertyScraper is the part of the scraper the handlers drive.
type PropertyScraper interface {
	SearchResults(ctx context.Context, params models.SearchParams) ([]models.Property, error)
	ListingDetails(ctx context.Context, url string) (*models.PropertyDetails, error)
	Normalize(params models.SearchParams) models.SearchParams
	LimiterStatus() models.RateLimitStatus
}

// ImageConverter turns a remote image into an inline data URL.
type ImageConverter interface {
	FetchDataURL(ctx context.Context, imageURL string) (*services.InlineImage, error)
}

// Handlers serves every /api route.
type Handlers struct {
	scraper  PropertyScraper
	store    *services.PropertyStore
	images   ImageConverter
	insights *services.InsightService
	logger   *utils.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(s PropertyScraper, store *services.PropertyStore, images ImageConverter, logger *utils.Logger) *Handlers {
	return &Handlers{
		scraper:  s,
		store:    store,
		images:   images,
		insights: services.NewInsightService(logger),
		logger:   logger,
	}
}

// Search handles GET /api/properties/search. Cached results are served
// without touching the scrape queue.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	params := h.scraper.Normalize(searchParams(r))

	if props, ok := h.store.Search(params); ok {
		h.logger.Info("[api] Cache hit for %s (%d properties)", params.Location, len(props))
		h.store.PromoteAll(props)
		RespondWithJSON(w, http.StatusOK, SearchResponse{
			Success:    true,
			Properties: props,
			Cached:     true,
			Source:     params.Source,
			Count:      len(props),
		})
		return
	}

	props, err := h.scraper.SearchResults(r.Context(), params)
	if err != nil {
		h.logger.Error("[api] Search for %s failed: %v", params.Location, err)
		RespondWithJSON(w, http.StatusInternalServerError, searchError{
			Error:      err.Error(),
			Properties: []models.Property{},
		})
		return
	}
	if props == nil {
		props = []models.Property{}
	}
	h.store.SaveSearch(params, props)

	status := h.scraper.LimiterStatus()
	RespondWithJSON(w, http.StatusOK, SearchResponse{
		Success:         true,
		Properties:      props,
		Source:          params.Source,
		Count:           len(props),
		RateLimitStatus: &status,
	})
}

func searchParams(r *http.Request) models.SearchParams {
	q := r.URL.Query()
	p := models.SearchParams{
		Location:     strings.TrimSpace(q.Get("location")),
		MinPrice:     queryInt(q.Get("minPrice")),
		MaxPrice:     queryInt(q.Get("maxPrice")),
		MinBedrooms:  queryInt(q.Get("bedrooms")),
		MaxBedrooms:  queryInt(q.Get("maxBedrooms")),
		PropertyType: q.Get("propertyType"),
		Source:       q.Get("source"),
		MaxPages:     queryInt(q.Get("maxPages")),
	}
	if p.Location == "" {
		p.Location = defaultLocation
	}
	if radius, err := strconv.ParseFloat(q.Get("radius"), 64); err == nil && radius > 0 {
		p.Radius = radius
	}
	return p
}

// queryInt reads a non-negative integer; anything else is "unset".
func queryInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// GetProperty handles GET /api/properties/{id}.
func (h *Handlers) GetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.store.FindProperty(id)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "Property not found in cache. Try searching again.")
		return
	}
	RespondWithJSON(w, http.StatusOK, propertyResponse{Success: true, Property: &p})
}

// PropertyDetails handles GET /api/properties/{id}/details?url=. The scrape
// is overlaid onto the cached record, which is then stored back.
func (h *Handlers) PropertyDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	listingURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if listingURL == "" {
		WriteJSONError(w, http.StatusBadRequest, "Property URL is required")
		return
	}

	details, err := h.scraper.ListingDetails(r.Context(), listingURL)
	if err != nil {
		h.logger.Error("[api] Details for %s failed: %v", listingURL, err)
		RespondWithJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to fetch property details",
			Details: err.Error(),
		})
		return
	}

	base, ok := h.store.FindProperty(id)
	if !ok {
		base = models.Property{ID: id, URL: listingURL}
	}
	merged := services.MergeDetails(base, *details)
	h.store.SaveProperty(merged)

	RespondWithJSON(w, http.StatusOK, detailsResponse{Success: true, Details: details, Property: &merged})
}

type scrapeRequest struct {
	URL string `json:"url"`
}

// ScrapeProperty handles POST /api/scrape-property for a listing that was
// never part of a search.
func (h *Handlers) ScrapeProperty(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		WriteJSONError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if err := scraper.ValidateListingURL(req.URL); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Unsupported website. Please use Zoopla, Rightmove, or OnTheMarket URLs.")
		return
	}

	details, err := h.scraper.ListingDetails(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("[api] Scrape of %s failed: %v", req.URL, err)
		RespondWithJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to scrape property",
			Details: err.Error(),
		})
		return
	}

	p := services.MergeDetails(models.Property{
		ID:  extract.FallbackID("listing", req.URL),
		URL: req.URL,
	}, *details)
	h.store.SaveProperty(p)

	RespondWithJSON(w, http.StatusOK, scrapeResponse{
		Success:     true,
		Property:    &p,
		MonthlyRent: services.EstimateMonthlyRent(p.Bedrooms),
	})
}

// ClearCache handles POST /api/properties/clear-cache.
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	RespondWithJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Cache cleared successfully"})
}

// CacheStats handles GET /api/properties/clear-cache.
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, statsResponse{Success: true, Stats: h.store.Stats()})
}

const maxDebugSamples = 10

// Debug handles GET /api/properties/debug.
func (h *Handlers) Debug(w http.ResponseWriter, r *http.Request) {
	props := h.store.AllProperties()
	samples := make([]debugSample, 0, maxDebugSamples)
	for _, p := range props {
		if len(samples) == maxDebugSamples {
			break
		}
		samples = append(samples, debugSample{
			ID:       p.ID,
			Address:  p.Address,
			ImageURL: p.ImageURL,
			HasImage: p.ImageURL != "",
		})
	}
	RespondWithJSON(w, http.StatusOK, debugResponse{
		Success:         true,
		TotalCacheKeys:  len(h.store.Keys()),
		TotalProperties: len(props),
		Samples:         samples,
	})
}

// Insights handles GET /api/properties/insights over every cached search.
func (h *Handlers) Insights(w http.ResponseWriter, r *http.Request) {
	report := h.insights.Generate(h.store.AllProperties())
	RespondWithJSON(w, http.StatusOK, insightsResponse{Success: true, Insights: report})
}

// ExportCSV handles GET /api/properties/export.csv. With ?key= only that
// cached search is exported, otherwise everything cached.
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	props := h.store.AllProperties()
	if key := r.URL.Query().Get("key"); key != "" {
		list, ok := h.store.Searches()[key]
		if !ok {
			WriteJSONError(w, http.StatusNotFound, "No cached search under that key")
			return
		}
		props = list
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="properties.csv"`)
	cw, err := storage.NewCSVStream(w)
	if err != nil {
		h.logger.Error("[api] CSV export failed: %v", err)
		return
	}
	if err := cw.Write(props); err != nil {
		h.logger.Error("[api] CSV export failed: %v", err)
	}
	_ = cw.Close()
}

type convertRequest struct {
	ImageURL string `json:"imageUrl"`
}

// ConvertImage handles POST /api/convert-image.
func (h *Handlers) ConvertImage(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ImageURL) == "" {
		WriteJSONError(w, http.StatusBadRequest, "Image URL is required")
		return
	}

	img, err := h.images.FetchDataURL(r.Context(), req.ImageURL)
	var upstream *services.UpstreamError
	switch {
	case errors.As(err, &upstream):
		RespondWithJSON(w, upstream.StatusCode, upstreamImageError{
			Error:      "Failed to fetch image",
			Status:     upstream.StatusCode,
			StatusText: upstream.Status,
		})
	case errors.Is(err, services.ErrEmptyImage):
		WriteJSONError(w, http.StatusInternalServerError, "Received empty image")
	case err != nil:
		RespondWithJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to convert image",
			Details: err.Error(),
		})
	default:
		RespondWithJSON(w, http.StatusOK, img)
	}
}

// Status handles GET /api/status.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, statusResponse{
		Success:         true,
		RateLimitStatus: h.scraper.LimiterStatus(),
		Cache:           h.store.Stats(),
	})
}
