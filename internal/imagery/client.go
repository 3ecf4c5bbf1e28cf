package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bkd-mataram/padscan/internal/resilience"
)

// Client talks to the satellite classification service over HTTP. Requests
// carry the region, period, and the cloud cover ceiling; the service answers
// with raw candidate polygons. Transient failures are retried; a 404 or an
// empty scene set maps to ErrUnavailable.
type Client struct {
	endpoint    string
	cloudMaxPct int
	http        *http.Client
	policy      resilience.Policy
}

// ClientOptions configures the classifier client.
type ClientOptions struct {
	Endpoint    string
	Timeout     time.Duration
	CloudMaxPct int
	Retries     int
}

// NewClient builds a classifier client.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	policy := resilience.DefaultPolicy()
	if opts.Retries > 0 {
		policy = policy.WithAttempts(opts.Retries)
	}
	return &Client{
		endpoint:    opts.Endpoint,
		cloudMaxPct: opts.CloudMaxPct,
		http:        &http.Client{Timeout: opts.Timeout},
		policy:      policy,
	}
}

type classifyRequest struct {
	Lon         float64 `json:"lon"`
	Lat         float64 `json:"lat"`
	RadiusM     int     `json:"radius_m"`
	YearStart   int     `json:"year_start"`
	YearEnd     int     `json:"year_end,omitempty"`
	CloudMaxPct int     `json:"cloud_max_pct"`
}

func (c *Client) request(region Region, yearStart, yearEnd int) classifyRequest {
	return classifyRequest{
		Lon:         region.CenterLon,
		Lat:         region.CenterLat,
		RadiusM:     region.RadiusM,
		YearStart:   yearStart,
		YearEnd:     yearEnd,
		CloudMaxPct: c.cloudMaxPct,
	}
}

// ParkingCandidates implements Classifier.
func (c *Client) ParkingCandidates(ctx context.Context, region Region, year int) ([]Feature, error) {
	var resp struct {
		Features []Feature `json:"features"`
	}
	if err := c.post(ctx, "/v1/parking", c.request(region, year, 0), &resp); err != nil {
		return nil, err
	}
	if len(resp.Features) == 0 {
		return nil, ErrUnavailable
	}
	return resp.Features, nil
}

// LandChanges implements Classifier.
func (c *Client) LandChanges(ctx context.Context, region Region, yearStart, yearEnd int) ([]Change, error) {
	var resp struct {
		Changes []Change `json:"changes"`
	}
	if err := c.post(ctx, "/v1/land-changes", c.request(region, yearStart, yearEnd), &resp); err != nil {
		return nil, err
	}
	if len(resp.Changes) == 0 {
		return nil, ErrUnavailable
	}
	return resp.Changes, nil
}

// BuildingDeltas implements Classifier.
func (c *Client) BuildingDeltas(ctx context.Context, region Region, yearStart, yearEnd int) ([]BuildingDelta, error) {
	var resp struct {
		Changes []BuildingDelta `json:"changes"`
	}
	if err := c.post(ctx, "/v1/building-changes", c.request(region, yearStart, yearEnd), &resp); err != nil {
		return nil, err
	}
	if len(resp.Changes) == 0 {
		return nil, ErrUnavailable
	}
	return resp.Changes, nil
}

// SampleTexture implements TextureSampler with one batched POST.
func (c *Client) SampleTexture(ctx context.Context, points [][2]float64) ([]float64, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if c.endpoint == "" {
		return nil, ErrUnavailable
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return nil, eris.Wrap(err, "imagery: encode texture request")
	}

	data, err := resilience.Retry(ctx, "imagery", c.policy, func(ctx context.Context) ([]byte, error) {
		return c.roundTrip(ctx, "/v1/texture", body)
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Values []float64 `json:"values"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "imagery: decode texture response")
	}
	if len(resp.Values) != len(points) {
		return nil, eris.Errorf("imagery: texture response has %d values for %d points", len(resp.Values), len(points))
	}
	return resp.Values, nil
}

// Chip fetches a rendered RGB chip (PNG) centered on the point for one year,
// for visual verification of a detection.
func (c *Client) Chip(ctx context.Context, lat, lon float64, year int) ([]byte, error) {
	if c.endpoint == "" {
		return nil, ErrUnavailable
	}

	body, err := json.Marshal(classifyRequest{
		Lon: lon, Lat: lat, RadiusM: 400,
		YearStart: year, CloudMaxPct: c.cloudMaxPct,
	})
	if err != nil {
		return nil, eris.Wrap(err, "imagery: encode chip request")
	}

	data, err := resilience.Retry(ctx, "imagery", c.policy, func(ctx context.Context) ([]byte, error) {
		return c.roundTrip(ctx, "/v1/chip", body)
	})
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrUnavailable
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, path string, req classifyRequest, out any) error {
	if c.endpoint == "" {
		return ErrUnavailable
	}

	body, err := json.Marshal(req)
	if err != nil {
		return eris.Wrap(err, "imagery: encode request")
	}

	data, err := resilience.Retry(ctx, "imagery", c.policy, func(ctx context.Context) ([]byte, error) {
		return c.roundTrip(ctx, path, body)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "imagery: decode response")
	}

	zap.L().Debug("imagery: classifier call complete",
		zap.String("path", path),
		zap.Int("bytes", len(data)))
	return nil
}

func (c *Client) roundTrip(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "imagery: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "imagery: call classifier")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUnavailable
	case resilience.RetryableStatus(resp.StatusCode):
		return nil, resilience.MarkTransient(
			eris.Errorf("imagery: classifier returned %d", resp.StatusCode), resp.StatusCode)
	default:
		return nil, eris.Errorf("imagery: classifier returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
