package parking

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/imagery"
)

// Pipeline runs one parking detection pass: classify imagery, drop implausible
// shapes, and price the survivors. When the classifier has no usable scene the
// pipeline degrades to the synthetic generator and tags its output so.
type Pipeline struct {
	classifier imagery.Classifier
	fallback   imagery.Classifier // nil disables the synthetic path
	filter     *detect.ShapeFilter
	tariffs    Tariffs
}

// Result is the outcome of one detection pass.
type Result struct {
	Detections []*detect.Parking
	Source     detect.Source
	Shape      detect.ShapeStats
}

// NewPipeline assembles a parking pipeline. fallback may be nil to disable the
// synthetic degradation path.
func NewPipeline(classifier, fallback imagery.Classifier, filter *detect.ShapeFilter, tariffs Tariffs) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		fallback:   fallback,
		filter:     filter,
		tariffs:    tariffs,
	}
}

// Detect runs the pipeline for one region and year.
func (p *Pipeline) Detect(ctx context.Context, region imagery.Region, year int) (*Result, error) {
	source := detect.SourceSatellite
	features, err := p.classifier.ParkingCandidates(ctx, region, year)
	if err != nil {
		if p.fallback == nil {
			return nil, eris.Wrap(err, "parking: classify imagery")
		}
		zap.L().Warn("parking: classifier unavailable, using synthetic data", zap.Error(err))
		source = detect.SourceSynthetic
		features, err = p.fallback.ParkingCandidates(ctx, region, year)
		if err != nil {
			return nil, eris.Wrap(err, "parking: synthetic fallback")
		}
	}

	detections := make([]*detect.Parking, 0, len(features))
	for _, f := range features {
		if !p.filter.Accept(f.AreaM2, f.Footprint) {
			continue
		}

		area := math.Round(f.AreaM2*10) / 10
		ptype := ClassifyType(area)
		daily, monthly, annual := EstimateRevenue(area, ptype, p.tariffs)

		detections = append(detections, &detect.Parking{
			Base: detect.Base{
				ID:         detect.FormatID("PKR", len(detections)+1),
				Lat:        f.Lat,
				Lon:        f.Lon,
				AreaM2:     area,
				Confidence: f.Confidence,
				Source:     source,
				Footprint:  f.Footprint,
			},
			Type:           ptype,
			Capacity:       EstimateCapacity(area),
			RevenueDaily:   daily,
			RevenueMonthly: monthly,
			RevenueAnnual:  annual,
		})
	}

	zap.L().Info("parking: detection pass complete",
		zap.Int("candidates", len(features)),
		zap.Int("accepted", len(detections)),
		zap.String("source", string(source)))

	return &Result{
		Detections: detections,
		Source:     source,
		Shape:      p.filter.Stats(),
	}, nil
}
