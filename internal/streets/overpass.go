package streets

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
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bkd-mataram/padscan/internal/resilience"
)

// BBox is a WGS84 bounding box.
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Client fetches highway ways from the Overpass API. Like the POI client it
// rate-limits itself and retries transient failures.
type Client struct {
	url       string
	userAgent string
	highways  string
	http      *http.Client
	limiter   *rate.Limiter
	policy    resilience.Policy
}

// ClientOptions configures the streets Overpass client.
type ClientOptions struct {
	URL            string
	UserAgent      string
	Highways       string // regex over OSM highway values
	Timeout        time.Duration
	RequestsPerMin int
	Retries        int
}

// DefaultHighways covers the road classes a street register cares about.
const DefaultHighways = "primary|secondary|tertiary|residential|service|unclassified|living_street|pedestrian|footway|path"

// NewClient builds a streets Overpass client.
func NewClient(opts ClientOptions) *Client {
	if opts.URL == "" {
		opts.URL = "https://overpass-api.de/api/interpreter"
	}
	if opts.Highways == "" {
		opts.Highways = DefaultHighways
	}
	if opts.Timeout == 0 {
		opts.Timeout = 90 * time.Second
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
		highways:  opts.Highways,
		http:      &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMin)/60), 1),
		policy:    policy,
	}
}

// streetQuery selects named highway ways with full geometry. The ["name"]
// filter drops anonymous service roads at the source.
const streetQuery = `[out:json][timeout:60];
(
  way["highway"~"%s"]["name"](%s);
);
out geom;`

// NamedWays fetches all named highway ways inside the bounding box.
func (c *Client) NamedWays(ctx context.Context, box BBox) ([]Way, error) {
	bbox := fmt.Sprintf("%f,%f,%f,%f", box.MinLat, box.MinLon, box.MaxLat, box.MaxLon)
	query := fmt.Sprintf(streetQuery, c.highways, bbox)

	data, err := resilience.Retry(ctx, "overpass", c.policy, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "streets: rate limit wait")
		}
		return c.fetch(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	ways, err := parseWays(data)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("streets: overpass query complete", zap.Int("ways", len(ways)))
	return ways, nil
}

func (c *Client) fetch(ctx context.Context, query string) ([]byte, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "streets: build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "streets: call overpass")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("streets: overpass returned %d", resp.StatusCode)
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.MarkTransient(err, resp.StatusCode)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}

func parseWays(data []byte) ([]Way, error) {
	var doc struct {
		Elements []struct {
			Type     string `json:"type"`
			ID       int64  `json:"id"`
			Geometry []struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"geometry"`
			Tags map[string]string `json:"tags"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "streets: parse overpass response")
	}

	var ways []Way
	for _, el := range doc.Elements {
		if el.Type != "way" || len(el.Geometry) < 2 {
			continue
		}
		coords := make([]geom.Coord, len(el.Geometry))
		for i, n := range el.Geometry {
			coords[i] = geom.Coord{n.Lon, n.Lat}
		}
		ways = append(ways, Way{
			OSMID:   el.ID,
			Name:    el.Tags["name"],
			Highway: el.Tags["highway"],
			Coords:  coords,
		})
	}
	return ways, nil
}
