package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/bkd-mataram/padscan/internal/detect"
	"github.com/bkd-mataram/padscan/internal/geo"
	"github.com/bkd-mataram/padscan/internal/revenue"
	"github.com/bkd-mataram/padscan/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{env: env}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/districts", api.districts)
			r.Get("/boundaries", api.boundaries)
			r.Get("/kelurahan", api.kelurahan)
			r.Get("/lingkungan", api.lingkungan)
			r.Get("/rt", api.rt)
			r.Get("/locate", api.locate)
			r.Get("/cache/stats", api.cacheStats)
			r.Post("/cache/clear", api.cacheClear)

			r.Post("/analyze", api.analyze(ctx))
			r.Get("/runs", api.listRuns)
			r.Get("/runs/{id}", api.getRun)
			r.Get("/runs/{id}/detections", api.runDetections)
			r.Get("/runs/{id}/summary", api.runSummary)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type apiServer struct {
	env *appEnv
}

func (a *apiServer) districts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, geo.Districts)
}

func selectionFromQuery(r *http.Request) geo.Selection {
	q := r.URL.Query()
	return geo.Selection{
		District:   q.Get("district"),
		Kelurahan:  q["kelurahan"],
		Lingkungan: q["lingkungan"],
		RT:         q["rt"],
	}
}

func (a *apiServer) boundaries(w http.ResponseWriter, r *http.Request) {
	ix, err := a.env.boundaries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	data, err := ix.DistrictGeoJSON(selectionFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func (a *apiServer) kelurahan(w http.ResponseWriter, r *http.Request) {
	ix, err := a.env.boundaries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ix.Kelurahan(r.URL.Query().Get("district")))
}

func (a *apiServer) lingkungan(w http.ResponseWriter, r *http.Request) {
	ix, err := a.env.boundaries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, ix.Lingkungan(q.Get("district"), q["kelurahan"]...))
}

func (a *apiServer) rt(w http.ResponseWriter, r *http.Request) {
	ix, err := a.env.boundaries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, ix.RTs(q.Get("district"), q["kelurahan"], q["lingkungan"]))
}

func (a *apiServer) locate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, eris.New("lat and lon are required"))
		return
	}

	ix, err := a.env.boundaries()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	p, ok := ix.Locate(lon, lat)
	if !ok {
		writeError(w, http.StatusNotFound, eris.New("no SLS unit contains the point"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *apiServer) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.env.loader.CacheStats())
}

func (a *apiServer) cacheClear(w http.ResponseWriter, _ *http.Request) {
	a.env.loader.ClearCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// analyze accepts a detection request and runs it asynchronously, returning
// the run id to poll. serveCtx outlives the HTTP request.
func (a *apiServer) analyze(serveCtx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Category string `json:"category"`
			District string `json:"district"`
			Year     int    `json:"year"`
			YearEnd  int    `json:"year_end"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}

		district, ok := geo.DistrictByName(req.District)
		if !ok {
			writeError(w, http.StatusBadRequest, eris.Errorf("unknown district %q", req.District))
			return
		}

		var fn detectFn
		switch revenue.Category(req.Category) {
		case revenue.CategoryParking:
			fn = detectParking
		case revenue.CategoryLandChange:
			fn = detectLanduse
		case revenue.CategoryPBB:
			fn = detectBuilding
		default:
			writeError(w, http.StatusBadRequest, eris.Errorf("unknown category %q", req.Category))
			return
		}

		// Years live in the request value, not the flag globals, so
		// concurrent analyze calls never see each other's window.
		areq := analysisRequest{district: district}
		areq.year, areq.yearEnd = defaultYears()
		if req.Year != 0 {
			areq.year = req.Year
		}
		if req.YearEnd != 0 {
			areq.yearEnd = req.YearEnd
		}

		run, err := a.env.store.CreateRun(serveCtx, revenue.Category(req.Category), district.NMKec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		go func() {
			set, source, err := fn(serveCtx, areq)
			if err != nil {
				zap.L().Error("analysis failed",
					zap.String("run", run.ID),
					zap.String("category", req.Category),
					zap.Error(err))
				if ferr := a.env.store.FailRun(serveCtx, run.ID, err.Error()); ferr != nil {
					zap.L().Warn("record failed run", zap.Error(ferr))
				}
				return
			}
			if ix, err := a.env.boundaries(); err == nil {
				attributePlacements(ix, set)
			}
			summary := revenue.Aggregate(set, nil)
			if err := a.env.store.SaveDetections(serveCtx, run.ID, set); err != nil {
				zap.L().Error("save detections", zap.String("run", run.ID), zap.Error(err))
				return
			}
			if err := a.env.store.CompleteRun(serveCtx, run.ID, source, &summary); err != nil {
				zap.L().Error("complete run", zap.String("run", run.ID), zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"run_id": run.ID,
			"status": string(store.RunStatusRunning),
		})
	}
}

func (a *apiServer) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	runs, err := a.env.store.ListRuns(r.Context(), store.RunFilter{
		Category: revenue.Category(q.Get("category")),
		District: q.Get("district"),
		Limit:    limit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *apiServer) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.env.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *apiServer) runDetections(w http.ResponseWriter, r *http.Request) {
	detections, err := a.env.store.ListDetections(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	// Optional strict view: POI-sourced plus AI-confirmed only.
	if r.URL.Query().Get("verified") == "true" {
		detections = detect.NewSet(detections).VerifiedOnly()
	}
	writeJSON(w, http.StatusOK, detections)
}

// runSummary recomputes a run's revenue rollup, optionally clipped to the
// kelurahan/lingkungan/rt selection in the query.
func (a *apiServer) runSummary(w http.ResponseWriter, r *http.Request) {
	detections, err := a.env.store.ListDetections(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	set := detect.NewSet(detections)

	var region *geom.MultiPolygon
	if sel := selectionFromQuery(r); selectionNarrows(sel) {
		ix, err := a.env.boundaries()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if region, err = clipRegion(ix, sel); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]revenue.Summary{
		"summary":  revenue.Aggregate(set, region),
		"verified": revenue.AggregateVerified(set, region),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
