package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/search"
	"github.com/sells-group/nearby-events/pkg/geohash"
)

var (
	geohashPrecision int
	geohashFull      bool
)

var geohashCmd = &cobra.Command{
	Use:   "geohash",
	Short: "Geohash utilities",
}

var geohashEncodeCmd = &cobra.Command{
	Use:   "encode <lat> <lng>",
	Short: "Encode a point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lng, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}
		hash, err := geohash.Encode(lat, lng, geohashPrecision)
		if err != nil {
			return eris.Wrap(err, "encode")
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var geohashDecodeCmd = &cobra.Command{
	Use:   "decode <hash>",
	Short: "Decode a cell to its center and bounds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lng, err := geohash.Decode(args[0])
		if err != nil {
			return eris.Wrap(err, "decode")
		}
		b, err := geohash.Bounds(args[0])
		if err != nil {
			return eris.Wrap(err, "bounds")
		}
		return writeJSON(cmd, map[string]any{
			"center": model.Coordinates{Lat: lat, Lng: lng},
			"min":    model.Coordinates{Lat: b.Min(1), Lng: b.Min(0)},
			"max":    model.Coordinates{Lat: b.Max(1), Lng: b.Max(0)},
		})
	},
}

var geohashNeighborsCmd = &cobra.Command{
	Use:   "neighbors <hash>",
	Short: "List a cell and its eight neighbors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cells, err := geohash.Neighbors(args[0])
		if err != nil {
			return eris.Wrap(err, "neighbors")
		}
		return writeJSON(cmd, cells)
	},
}

var geohashCellsCmd = &cobra.Command{
	Use:   "cells <lat> <lng> <radius-miles>",
	Short: "List the index cells a radius search would query",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, lng, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}
		radius, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return eris.Wrapf(model.ErrValidationFailed, "radius %q", args[2])
		}
		sc := search.DefaultConfig()
		sc.FullCoverage = geohashFull
		p := search.New(nil, nil, nil, sc, nil)
		cells, err := p.Cells(model.Coordinates{Lat: lat, Lng: lng}, radius)
		if err != nil {
			return eris.Wrap(err, "cells")
		}
		return writeJSON(cmd, cells)
	},
}

func parsePoint(latArg, lngArg string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil {
		return 0, 0, eris.Wrapf(model.ErrInvalidCoordinate, "lat %q", latArg)
	}
	lng, err := strconv.ParseFloat(lngArg, 64)
	if err != nil {
		return 0, 0, eris.Wrapf(model.ErrInvalidCoordinate, "lng %q", lngArg)
	}
	return lat, lng, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	geohashEncodeCmd.Flags().IntVar(&geohashPrecision, "precision", search.IndexPrecision, "geohash length (1-12)")
	geohashCellsCmd.Flags().BoolVar(&geohashFull, "full-coverage", false, "expand rings until the radius is covered")
	geohashCmd.AddCommand(geohashEncodeCmd, geohashDecodeCmd, geohashNeighborsCmd, geohashCellsCmd)
	rootCmd.AddCommand(geohashCmd)
}
