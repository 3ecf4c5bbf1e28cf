// Package store persists analysis runs and their detections. Two backends
// implement the same interface: SQLite for the single-laptop install at the
// tax office and PostgreSQL for the shared server.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/revenue"
)

// RunStatus tracks an analysis run through its lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded analysis: which revenue stream, where, what came out.
type Run struct {
	ID        string           `json:"id"`
	Category  revenue.Category `json:"category"`
	District  string           `json:"district"`
	Source    detect.Source    `json:"source,omitempty"`
	Summary   *revenue.Summary `json:"summary,omitempty"`
	Status    RunStatus        `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Category revenue.Category `json:"category,omitempty"`
	District string           `json:"district,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs.
type Store interface {
	CreateRun(ctx context.Context, category revenue.Category, district string) (*Run, error)
	CompleteRun(ctx context.Context, runID string, source detect.Source, summary *revenue.Summary) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	SaveDetections(ctx context.Context, runID string, set *detect.Set) error
	ListDetections(ctx context.Context, runID string) ([]detect.Detection, error)

	Migrate(ctx context.Context) error
	Close() error
}

// detectionRow flattens one detection for persistence. The full detection is
// kept as JSON so backends stay schema-stable as detection fields evolve.
type detectionRow struct {
	DetectionID string
	Category    revenue.Category
	Source      detect.Source
	Lat, Lon    float64
	AreaM2      float64
	AnnualIDR   int64
	Payload     []byte
}

func flattenDetection(d detect.Detection) (detectionRow, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return detectionRow{}, eris.Wrap(err, "store: marshal detection")
	}
	m := d.Meta()
	return detectionRow{
		DetectionID: m.ID,
		Category:    revenue.CategoryOf(d),
		Source:      m.Source,
		Lat:         m.Lat,
		Lon:         m.Lon,
		AreaM2:      m.AreaM2,
		AnnualIDR:   d.AnnualRevenue(),
		Payload:     payload,
	}, nil
}

// inflateDetection rebuilds the typed detection from its category and payload.
func inflateDetection(category revenue.Category, payload []byte) (detect.Detection, error) {
	var d detect.Detection
	switch category {
	case revenue.CategoryParking:
		d = &detect.Parking{}
	case revenue.CategoryPBB:
		d = &detect.BuildingChange{}
	case revenue.CategoryLandChange:
		d = &detect.LandChange{}
	default:
		return nil, eris.Errorf("store: unknown detection category %q", category)
	}
	if err := json.Unmarshal(payload, d); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal %s detection", category)
	}
	return d, nil
}
