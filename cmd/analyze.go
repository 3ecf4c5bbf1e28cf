package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bkd-mataram/padscan/internal/building"
	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/export"
	"github.com/bkd-mataram/padscan/internal/geo"
	"github.com/bkd-mataram/padscan/internal/imagery"
	"github.com/bkd-mataram/padscan/internal/landuse"
	"github.com/bkd-mataram/padscan/internal/parking"
	"github.com/bkd-mataram/padscan/internal/poi"
	"github.com/bkd-mataram/padscan/internal/revenue"
	"github.com/bkd-mataram/padscan/internal/store"
)

var (
	analyzeDistrict   string
	analyzeYear       int
	analyzeYearEnd    int
	analyzeKelurahan  []string
	analyzeLingkungan []string
	analyzeRT         []string
	analyzeOut        string
	analyzeNoSave     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a detection and revenue estimation pass",
}

var analyzeParkingCmd = &cobra.Command{
	Use:   "parking",
	Short: "Detect parking lots and estimate retribution revenue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd.Context(), revenue.CategoryParking, cfg.Targets.Parking, detectParking)
	},
}

var analyzeLanduseCmd = &cobra.Command{
	Use:   "landuse",
	Short: "Detect land conversions and estimate the PBB at stake",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd.Context(), revenue.CategoryLandChange, cfg.Targets.LandChange, detectLanduse)
	},
}

var analyzeBuildingCmd = &cobra.Command{
	Use:   "building",
	Short: "Detect building expansions and estimate the PBB increase",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalysis(cmd.Context(), revenue.CategoryPBB, cfg.Targets.PBB, detectBuilding)
	},
}

// analysisRequest carries the per-invocation parameters of one detection
// pass. Handlers and commands build their own value, so concurrent runs never
// share state.
type analysisRequest struct {
	district geo.District
	year     int
	yearEnd  int
}

// detectFn runs one category's detection and returns the fused, source-tagged
// set.
type detectFn func(ctx context.Context, req analysisRequest) (*detect.Set, detect.Source, error)

// defaultYears is the imagery window used when no years are given: last full
// year against the current one.
func defaultYears() (start, end int) {
	now := time.Now()
	return now.Year() - 1, now.Year()
}

// selectionNarrows reports whether the selection filters below district level.
func selectionNarrows(sel geo.Selection) bool {
	return len(sel.Kelurahan)+len(sel.Lingkungan)+len(sel.RT) > 0
}

// clipRegion resolves the merged geometry of a narrowed selection. A nil
// region aggregates the whole district.
func clipRegion(ix *geo.Index, sel geo.Selection) (*geom.MultiPolygon, error) {
	if !selectionNarrows(sel) {
		return nil, nil
	}
	region := ix.MergedGeometry(sel)
	if region == nil {
		return nil, eris.Errorf("no SLS units in %s match the selection", sel.District)
	}
	return region, nil
}

func runAnalysis(ctx context.Context, category revenue.Category, targetIDR float64, fn detectFn) error {
	district, ok := geo.DistrictByName(analyzeDistrict)
	if !ok {
		return eris.Errorf("unknown district %q (expected one of %v)", analyzeDistrict, geo.DistrictNames())
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var run *store.Run
	if !analyzeNoSave {
		run, err = env.store.CreateRun(ctx, category, district.NMKec)
		if err != nil {
			return err
		}
	}

	req := analysisRequest{district: district, year: analyzeYear, yearEnd: analyzeYearEnd}
	set, source, err := fn(ctx, req)
	if err != nil {
		if run != nil {
			if ferr := env.store.FailRun(ctx, run.ID, err.Error()); ferr != nil {
				zap.L().Warn("record failed run", zap.Error(ferr))
			}
		}
		return err
	}

	sel := geo.Selection{
		District:   district.NMKec,
		Kelurahan:  analyzeKelurahan,
		Lingkungan: analyzeLingkungan,
		RT:         analyzeRT,
	}

	// Attribute placements when boundaries are available; an unfiltered
	// analysis still works without them, just without SLS context.
	var region *geom.MultiPolygon
	if ix, berr := env.boundaries(); berr != nil {
		if selectionNarrows(sel) {
			return eris.Wrap(berr, "spatial selection requires boundaries")
		}
		zap.L().Warn("boundaries unavailable, skipping attribution", zap.Error(berr))
	} else {
		attributePlacements(ix, set)
		if region, err = clipRegion(ix, sel); err != nil {
			return err
		}
	}

	summary := revenue.Aggregate(set, region)
	report := revenue.AgainstTarget(category, int64(targetIDR), summary)
	printSummary(set, summary, report, source, region)

	if run != nil {
		if err := env.store.SaveDetections(ctx, run.ID, set); err != nil {
			return err
		}
		// The stored summary always covers the whole run; the selection
		// view is recomputed on demand.
		stored := summary
		if region != nil {
			stored = revenue.Aggregate(set, nil)
		}
		if err := env.store.CompleteRun(ctx, run.ID, source, &stored); err != nil {
			return err
		}
		fmt.Printf("\nRun saved: %s\n", run.ID)
	}

	if analyzeOut != "" {
		if err := writeWorkbook(analyzeOut, set); err != nil {
			return err
		}
		fmt.Printf("Workbook written: %s\n", analyzeOut)
	}
	return nil
}

func detectParking(ctx context.Context, req analysisRequest) (*detect.Set, detect.Source, error) {
	region := imagery.RegionForDistrict(req.district)
	client := classifier()
	filter := detect.NewShapeFilter(cfg.Parking.MinAreaM2, cfg.Parking.MaxAreaM2, cfg.Parking.MinAspectRatio)
	pipeline := parking.NewPipeline(client, fallback(), filter, tariffs())

	// The spectral pass and the POI harvest hit independent backends, so
	// they run concurrently.
	var satResult *parking.Result
	var seeds []*detect.Parking

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		satResult, err = pipeline.Detect(gctx, region, req.year)
		return err
	})
	g.Go(func() error {
		pois, err := poiClient().ParkingRelated(gctx, regionBBox(region))
		if err != nil {
			// POI seeding is additive evidence; losing it degrades the
			// pass instead of failing it.
			zap.L().Warn("poi harvest failed", zap.Error(err))
			return nil
		}
		seeds = poi.NewScorer(client, tariffs()).Seeds(gctx, pois)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	satBatch := make([]detect.Detection, len(satResult.Detections))
	for i, d := range satResult.Detections {
		satBatch[i] = d
	}
	poiBatch := make([]detect.Detection, len(seeds))
	for i, d := range seeds {
		poiBatch[i] = d
	}

	zap.L().Info("parking analysis fused",
		zap.Int("satellite", len(satBatch)),
		zap.Int("poi", len(poiBatch)),
		zap.Int64("shape_rejected_area", satResult.Shape.RejectedArea),
		zap.Int64("shape_rejected_shape", satResult.Shape.RejectedShape))

	return detect.NewSet(satBatch, poiBatch), satResult.Source, nil
}

func detectLanduse(ctx context.Context, req analysisRequest) (*detect.Set, detect.Source, error) {
	pipeline := landuse.NewPipeline(classifier(), fallback(), cfg.Change.MinAreaM2, cfg.Change.MinConfidence, req.district.NJOPZone, rates())
	result, err := pipeline.Detect(ctx, imagery.RegionForDistrict(req.district), req.year, req.yearEnd)
	if err != nil {
		return nil, "", err
	}

	batch := make([]detect.Detection, len(result.Detections))
	for i, d := range result.Detections {
		batch[i] = d
	}
	zap.L().Info("landuse analysis complete",
		zap.Int("detections", len(batch)),
		zap.Int("noise_dropped", result.Noise),
		zap.Int("low_confidence_dropped", result.LowConfidence))
	return detect.NewSet(batch), result.Source, nil
}

func detectBuilding(ctx context.Context, req analysisRequest) (*detect.Set, detect.Source, error) {
	pipeline := building.NewPipeline(classifier(), fallback(), cfg.Change.BuildingMinAreaM2, req.district.NJOPZone, rates())
	result, err := pipeline.Detect(ctx, imagery.RegionForDistrict(req.district), req.year, req.yearEnd)
	if err != nil {
		return nil, "", err
	}

	batch := make([]detect.Detection, len(result.Detections))
	for i, d := range result.Detections {
		batch[i] = d
	}
	return detect.NewSet(batch), result.Source, nil
}

// regionBBox converts a circular region into the bounding box Overpass wants.
func regionBBox(r imagery.Region) poi.BBox {
	// 1 degree of latitude is ~111km; longitude shrinks with cos(lat),
	// negligible this close to the equator.
	deg := float64(r.RadiusM) / 111_000
	return poi.BBox{
		MinLat: r.CenterLat - deg,
		MinLon: r.CenterLon - deg,
		MaxLat: r.CenterLat + deg,
		MaxLon: r.CenterLon + deg,
	}
}

// attributePlacements resolves each detection's administrative context.
func attributePlacements(ix *geo.Index, set *detect.Set) {
	for _, d := range set.All() {
		m := d.Meta()
		if p, ok := ix.Locate(m.Lon, m.Lat); ok {
			m.District = p.District
			m.Kelurahan = p.Kelurahan
			m.SLSLabel = p.SLSLabel
		}
	}
}

func printSummary(set *detect.Set, s revenue.Summary, r revenue.TargetReport, source detect.Source, region *geom.MultiPolygon) {
	if region != nil {
		fmt.Println("Scope:             selected SLS units")
	}
	fmt.Printf("Detections:        %d (source: %s)\n", s.Count, source)
	fmt.Printf("Total area:        %.1f m2\n", s.TotalAreaM2)
	fmt.Printf("Annual estimate:   %s\n", revenue.FormatIDR(s.TotalAnnualIDR))
	fmt.Printf("Annual target:     %s (%.1f%% covered)\n", revenue.FormatIDR(r.TargetIDR), r.PctOfTarget)

	verified := revenue.AggregateVerified(set, region)
	fmt.Printf("Verified estimate: %s (%d detections)\n", revenue.FormatIDR(verified.TotalAnnualIDR), verified.Count)

	if s.Synthetic {
		fmt.Println("\nNOTE: includes simulated data (demo mode); do not use for planning.")
	}
}

func writeWorkbook(path string, set *detect.Set) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	return export.WriteDetections(f, set)
}

func init() {
	yearStart, yearEnd := defaultYears()
	analyzeCmd.PersistentFlags().StringVar(&analyzeDistrict, "district", "", "district (kecamatan) to analyze")
	analyzeCmd.PersistentFlags().IntVar(&analyzeYear, "year", yearStart, "imagery year (start year for change detection)")
	analyzeCmd.PersistentFlags().IntVar(&analyzeYearEnd, "year-end", yearEnd, "end year for change detection")
	analyzeCmd.PersistentFlags().StringSliceVar(&analyzeKelurahan, "kelurahan", nil, "restrict the revenue summary to these kelurahan")
	analyzeCmd.PersistentFlags().StringSliceVar(&analyzeLingkungan, "lingkungan", nil, "restrict the revenue summary to these lingkungan")
	analyzeCmd.PersistentFlags().StringSliceVar(&analyzeRT, "rt", nil, "restrict the revenue summary to these RT units")
	analyzeCmd.PersistentFlags().StringVar(&analyzeOut, "out", "", "write detections to an XLSX workbook")
	analyzeCmd.PersistentFlags().BoolVar(&analyzeNoSave, "no-save", false, "skip persisting the run")
	analyzeCmd.MarkPersistentFlagRequired("district") //nolint:errcheck

	analyzeCmd.AddCommand(analyzeParkingCmd, analyzeLanduseCmd, analyzeBuildingCmd)
	rootCmd.AddCommand(analyzeCmd)
}
