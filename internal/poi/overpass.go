// Package poi seeds the parking pipeline with named places from OpenStreetMap
// that plausibly operate a lot (shops, hotels, amenities), scored for activity
// by sampling an imagery texture signal in one batched request.
package poi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bkd-mataram/padscan/internal/resilience"
)

// POI is one named place returned by the provider.
type POI struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// BBox is a WGS84 bounding box.
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Client queries the Overpass API. Overpass throttles aggressively, so the
// client rate-limits itself and retries transient failures.
type Client struct {
	url       string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	policy    resilience.Policy
}

// ClientOptions configures the Overpass client.
type ClientOptions struct {
	URL            string
	UserAgent      string
	Timeout        time.Duration
	RequestsPerMin int
	Retries        int
}

// NewClient builds an Overpass client.
func NewClient(opts ClientOptions) *Client {
	if opts.URL == "" {
		opts.URL = "https://overpass-api.de/api/interpreter"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 10
	}
	policy := resilience.DefaultPolicy()
	if opts.Retries > 0 {
		policy = policy.WithAttempts(opts.Retries)
	}
	return &Client{
		url:       opts.URL,
		userAgent: opts.UserAgent,
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMin)/60), 1),
		policy:    policy,
	}
}

// parkingRelatedQuery selects the tag values whose objects typically operate a
// parking lot.
const parkingRelatedQuery = `[out:json][timeout:25];
(
  node["shop"~"supermarket|convenience|mall"](%[1]s);
  way["shop"~"supermarket|convenience|mall"](%[1]s);
  node["amenity"~"bank|restaurant|fast_food|cafe|hospital"](%[1]s);
  way["amenity"~"bank|restaurant|fast_food|cafe|hospital"](%[1]s);
  node["tourism"~"hotel|guest_house"](%[1]s);
  way["tourism"~"hotel|guest_house"](%[1]s);
);
out center;`

// ParkingRelated fetches POIs inside the bounding box that likely have parking
// areas attached.
func (c *Client) ParkingRelated(ctx context.Context, box BBox) ([]POI, error) {
	bbox := fmt.Sprintf("%f,%f,%f,%f", box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)
	query := fmt.Sprintf(parkingRelatedQuery, bbox)

	data, err := resilience.Retry(ctx, "overpass", c.policy, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "poi: rate limit wait")
		}
		return c.fetch(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	pois, err := parseElements(data)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("poi: overpass query complete", zap.Int("pois", len(pois)))
	return pois, nil
}

func (c *Client) fetch(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "poi: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "poi: call overpass")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("poi: overpass returned %d", resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.MarkTransient(err, resp.StatusCode)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

func parseElements(data []byte) ([]POI, error) {
	var doc struct {
		Elements []struct {
			Lat    float64 `json:"lat"`
			Lon    float64 `json:"lon"`
			Center *struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"center"`
			Tags map[string]string `json:"tags"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "poi: parse overpass response")
	}

	var pois []POI
	for _, el := range doc.Elements {
		lat, lon := el.Lat, el.Lon
		if el.Center != nil {
			lat, lon = el.Center.Lat, el.Center.Lon
		}
		if lat == 0 && lon == 0 {
			continue
		}

		name := el.Tags["name"]
		if name == "" {
			name = "Bisnis Ritel/Layanan"
		}
		category := el.Tags["shop"]
		if category == "" {
			category = el.Tags["amenity"]
		}
		if category == "" {
			category = el.Tags["tourism"]
		}
		if category == "" {
			category = "business"
		}

		pois = append(pois, POI{
			Name:     name,
			Category: strings.ReplaceAll(category, "_", " "),
			Lat:      lat,
			Lon:      lon,
		})
	}
	return pois, nil
}
