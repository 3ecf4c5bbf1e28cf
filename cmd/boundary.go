package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bkd-mataram/padscan/internal/geo"
)

var (
	boundaryDistrict   string
	boundaryKelurahan  []string
	boundaryLingkungan []string
	locateLat          float64
	locateLon          float64
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Inspect the SLS boundary hierarchy",
}

var boundaryKelurahanCmd = &cobra.Command{
	Use:   "kelurahan",
	Short: "List kelurahan in a district",
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := loadBoundaries(cmd)
		if err != nil {
			return err
		}
		for _, k := range ix.Kelurahan(boundaryDistrict) {
			fmt.Println(k)
		}
		return nil
	},
}

var boundaryLingkunganCmd = &cobra.Command{
	Use:   "lingkungan",
	Short: "List lingkungan in a district, optionally narrowed by kelurahan",
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := loadBoundaries(cmd)
		if err != nil {
			return err
		}
		for _, l := range ix.Lingkungan(boundaryDistrict, boundaryKelurahan...) {
			fmt.Println(l)
		}
		return nil
	},
}

var boundaryRTCmd = &cobra.Command{
	Use:   "rt",
	Short: "List RT units, narrowed by kelurahan and lingkungan",
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := loadBoundaries(cmd)
		if err != nil {
			return err
		}
		for _, rt := range ix.RTs(boundaryDistrict, boundaryKelurahan, boundaryLingkungan) {
			fmt.Println(rt)
		}
		return nil
	},
}

var boundaryLocateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolve the administrative unit containing a coordinate",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ix, err := env.boundaries()
		if err != nil {
			return err
		}
		p, ok := ix.Locate(locateLon, locateLat)
		if !ok {
			return eris.Errorf("no SLS unit contains %f,%f", locateLat, locateLon)
		}
		fmt.Printf("District:   %s\n", p.District)
		fmt.Printf("Kelurahan:  %s\n", p.Kelurahan)
		fmt.Printf("Lingkungan: %s\n", p.Lingkungan)
		fmt.Printf("RT:         %s\n", p.RT)
		fmt.Printf("SLS:        %s\n", p.SLSLabel)
		return nil
	},
}

var boundarySLSCmd = &cobra.Command{
	Use:   "sls <label>",
	Short: "Resolve an SLS label to its parent kelurahan and lingkungan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := loadBoundaries(cmd)
		if err != nil {
			return err
		}
		kel, ling, ok := ix.LocateSLS(boundaryDistrict, args[0])
		if !ok {
			return eris.Errorf("no unit labelled %q in %s", args[0], boundaryDistrict)
		}
		fmt.Printf("Kelurahan:  %s\n", kel)
		fmt.Printf("Lingkungan: %s\n", ling)
		return nil
	},
}

var boundaryCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Drop all cached boundary indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		env.loader.ClearCache()
		fmt.Println("Boundary cache cleared.")
		return nil
	},
}

func loadBoundaries(cmd *cobra.Command) (*geo.Index, error) {
	env, err := initEnv(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer env.Close()
	return env.boundaries()
}

func init() {
	for _, c := range []*cobra.Command{boundaryKelurahanCmd, boundaryLingkunganCmd, boundaryRTCmd, boundarySLSCmd} {
		c.Flags().StringVar(&boundaryDistrict, "district", "", "district (kecamatan)")
		c.Flags().StringSliceVar(&boundaryKelurahan, "kelurahan", nil, "restrict to these kelurahan")
		c.MarkFlagRequired("district") //nolint:errcheck
	}
	boundaryRTCmd.Flags().StringSliceVar(&boundaryLingkungan, "lingkungan", nil, "restrict to these lingkungan")

	boundaryLocateCmd.Flags().Float64Var(&locateLat, "lat", 0, "latitude")
	boundaryLocateCmd.Flags().Float64Var(&locateLon, "lon", 0, "longitude")
	boundaryLocateCmd.MarkFlagRequired("lat") //nolint:errcheck
	boundaryLocateCmd.MarkFlagRequired("lon") //nolint:errcheck

	boundaryCmd.AddCommand(boundaryKelurahanCmd, boundaryLingkunganCmd, boundaryRTCmd, boundaryLocateCmd, boundaryCacheCmd)
	rootCmd.AddCommand(boundaryCmd)
}
