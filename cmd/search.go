package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nearby-events/internal/search"
)

var searchFlags struct {
	lat, lng      float64
	address, city string
	state, zip    string
	country       string
	radius        float64
	start, end    string
	date, time    string
	endDate       string
	windowMinutes float64
	tags          []string
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a radius search against the event index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Planner.Search(ctx, searchQuery(cmd))
		if err != nil {
			return eris.Wrap(err, "search")
		}

		return writeJSON(cmd, res)
	},
}

func searchQuery(cmd *cobra.Command) search.Query {
	f := searchFlags
	q := search.Query{
		Center: search.CenterInput{
			Address: f.address,
			City:    f.city,
			State:   f.state,
			Zip:     f.zip,
			Country: f.country,
		},
		RadiusMiles: f.radius,
		Window: search.WindowInput{
			StartTime:     f.start,
			EndTime:       f.end,
			Date:          f.date,
			Time:          f.time,
			EndDate:       f.endDate,
			WindowMinutes: f.windowMinutes,
		},
	}
	if cmd.Flags().Changed("lat") {
		lat := f.lat
		q.Center.Lat = &lat
	}
	if cmd.Flags().Changed("lng") {
		lng := f.lng
		q.Center.Lng = &lng
	}
	if len(f.tags) > 0 {
		q.Tags = f.tags
	}
	return q
}

func init() {
	fl := searchCmd.Flags()
	fl.Float64Var(&searchFlags.lat, "lat", 0, "center latitude")
	fl.Float64Var(&searchFlags.lng, "lng", 0, "center longitude")
	fl.StringVar(&searchFlags.address, "address", "", "center street address")
	fl.StringVar(&searchFlags.city, "city", "", "center city")
	fl.StringVar(&searchFlags.state, "state", "", "center state")
	fl.StringVar(&searchFlags.zip, "zip", "", "center postal code")
	fl.StringVar(&searchFlags.country, "country", "", "center country")
	fl.Float64Var(&searchFlags.radius, "radius", 0, "radius in miles (default from config)")
	fl.StringVar(&searchFlags.start, "start-time", "", "window start (ISO 8601)")
	fl.StringVar(&searchFlags.end, "end-time", "", "window end (ISO 8601, or HH:MM with --date)")
	fl.StringVar(&searchFlags.date, "date", "", "window date (YYYY-MM-DD)")
	fl.StringVar(&searchFlags.time, "time", "", "window time of day (HH:MM)")
	fl.StringVar(&searchFlags.endDate, "end-date", "", "window end date (YYYY-MM-DD)")
	fl.Float64Var(&searchFlags.windowMinutes, "window-minutes", 0, "window length in minutes")
	fl.StringSliceVar(&searchFlags.tags, "tags", nil, "match any of these tags")
	rootCmd.AddCommand(searchCmd)
}
