package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"propscout/utils"
)

// ErrEmptyImage is returned when the upstream answered with no bytes.
var ErrEmptyImage = errors.New("received empty image")

// UpstreamError carries a non-2xx status from the image host.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("image host returned %d %s", e.StatusCode, e.Status)
}

// InlineImage is an image rendered as a data URL.
type InlineImage struct {
	DataURL     string `json:"base64"`
	Size        int    `json:"size"`
	ContentType string `json:"contentType"`
}

// ImageFetcher downloads listing photos server-side so they can be embedded
// without the portal's hotlink protection getting in the way.
type ImageFetcher struct {
	collector *colly.Collector
	limiter   *rate.Limiter
	logger    *utils.Logger
}

// NewImageFetcher creates a fetcher allowing rps requests per second.
func NewImageFetcher(userAgent string, rps float64, timeout time.Duration, logger *utils.Logger) *ImageFetcher {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}
	if rps <= 0 {
		rps = 1
	}
	return &ImageFetcher{
		collector: c,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		logger:    logger,
	}
}

// FetchDataURL downloads imageURL and returns it base64 encoded.
func (f *ImageFetcher) FetchDataURL(ctx context.Context, imageURL string) (*InlineImage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	collector := f.collector.Clone()

	var (
		body        []byte
		contentType string
		fetchErr    error
	)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "image/webp,image/apng,image/jpeg,image/png,image/*,*/*;q=0.8")
		r.Headers.Set("Referer", refererFor(imageURL))
		r.Headers.Set("Sec-Fetch-Dest", "image")
		r.Headers.Set("Sec-Fetch-Mode", "no-cors")
		r.Headers.Set("Sec-Fetch-Site", "cross-site")
	})

	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 300 {
			fetchErr = &UpstreamError{StatusCode: r.StatusCode, Status: http.StatusText(r.StatusCode)}
			return
		}
		fetchErr = err
	})

	f.logger.Debug("[images] Fetching %s", imageURL)
	visitErr := collector.Visit(imageURL)
	collector.Wait()

	// OnError has the status code; prefer it over the bare visit error.
	if fetchErr != nil {
		f.logger.Warn("[images] Failed to fetch %s: %v", imageURL, fetchErr)
		return nil, fetchErr
	}
	if visitErr != nil {
		return nil, fmt.Errorf("fetch image %s: %w", imageURL, visitErr)
	}
	if len(body) == 0 {
		return nil, ErrEmptyImage
	}

	ct := normaliseImageType(contentType)
	f.logger.Info("[images] Converted image to base64 (%d bytes, %s)", len(body), ct)
	return &InlineImage{
		DataURL:     "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(body),
		Size:        len(body),
		ContentType: ct,
	}, nil
}

func refererFor(imageURL string) string {
	if strings.Contains(imageURL, "zoopla") {
		return "https://www.zoopla.co.uk/"
	}
	return "https://www.rightmove.co.uk/"
}

// normaliseImageType collapses whatever the host sent into one of the three
// types the brochure renderer accepts. Unknown types become JPEG.
func normaliseImageType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "image/jpeg"
	case strings.Contains(ct, "png"):
		return "image/png"
	case strings.Contains(ct, "webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
