package poi

import (
	"context"

	"go.uber.org/zap"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/imagery"
	"github.com/bkd-mataram/padscan/internal/parking"
)

// assumedAreas maps a POI category to the lot area assumed for its parking
// seed, sized so the parking type classifier lands on the matching bucket.
var assumedAreas = map[string]float64{
	"mall":        2000,
	"supermarket": 1200,
	"hospital":    800,
	"hotel":       600,
	"guest house": 300,
	"bank":        300,
	"restaurant":  150,
	"fast food":   150,
	"cafe":        150,
	"convenience": 150,
}

const defaultAssumedArea = 200

// Scorer turns POIs into low-confidence parking seeds, with the confidence of
// each seed derived from an imagery activity signal sampled in one batched
// request.
type Scorer struct {
	sampler imagery.TextureSampler
	tariffs parking.Tariffs
}

// NewScorer builds a Scorer over the given texture sampler.
func NewScorer(sampler imagery.TextureSampler, tariffs parking.Tariffs) *Scorer {
	return &Scorer{sampler: sampler, tariffs: tariffs}
}

// Seeds converts POIs into POI-sourced parking detections. When the sampler is
// unreachable every seed keeps the floor confidence instead of failing the
// batch: an unscored seed is still a seed.
func (s *Scorer) Seeds(ctx context.Context, pois []POI) []*detect.Parking {
	if len(pois) == 0 {
		return nil
	}

	points := make([][2]float64, len(pois))
	for i, p := range pois {
		points[i] = [2]float64{p.Lon, p.Lat}
	}

	scores, err := s.sampler.SampleTexture(ctx, points)
	if err != nil {
		zap.L().Warn("poi: activity sampling unavailable, seeds keep floor confidence", zap.Error(err))
		scores = nil
	}

	seeds := make([]*detect.Parking, 0, len(pois))
	for i, p := range pois {
		area := assumedAreas[p.Category]
		if area == 0 {
			area = defaultAssumedArea
		}

		confidence := confidenceFloor
		if scores != nil {
			confidence = scoreToConfidence(scores[i])
		}

		ptype := parking.ClassifyType(area)
		daily, monthly, annual := parking.EstimateRevenue(area, ptype, s.tariffs)
		seeds = append(seeds, &detect.Parking{
			Base: detect.Base{
				ID:         detect.FormatID("POI", i+1),
				Lat:        p.Lat,
				Lon:        p.Lon,
				AreaM2:     area,
				Confidence: confidence,
				Source:     detect.SourcePOI,
			},
			Type:           ptype,
			Capacity:       parking.EstimateCapacity(area),
			RevenueDaily:   daily,
			RevenueMonthly: monthly,
			RevenueAnnual:  annual,
		})
	}
	return seeds
}

const (
	confidenceFloor   = 0.3
	confidenceCeiling = 0.8
)

// scoreToConfidence maps an activity score in [0, 1] onto the seed confidence
// band. POI seeds stay below satellite-confirmed confidence on purpose.
func scoreToConfidence(score float64) float64 {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return confidenceFloor + score*(confidenceCeiling-confidenceFloor)
}
