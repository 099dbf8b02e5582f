package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-events/internal/discovery"
)

var discoverFlags struct {
	city, region, country string
	start, end, timezone  string
	radius                float64
	lat, lng              float64
	noLocalPreference     bool
	debug                 bool
	save                  bool
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find public events with the configured web-search LLM",
	Long:  "Asks the discovery provider for events near a place and date range, then prints the validated candidates as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Finder == nil {
			return eris.Errorf("discovery provider %s is not configured", cfg.Discovery.Provider)
		}

		req := discoveryRequest(cmd)
		items, err := env.Finder.Find(ctx, req)
		if err != nil {
			return eris.Wrap(err, "discover")
		}

		if discoverFlags.save {
			for _, c := range items {
				ev, created, err := env.Events.SaveAIEvent(ctx, "", c)
				if err != nil {
					zap.L().Warn("save candidate", zap.String("title", c.String("title")), zap.Error(err))
					continue
				}
				zap.L().Debug("candidate saved", zap.String("event_id", ev.EventID), zap.Bool("created", created))
			}
		}

		return writeJSON(cmd, map[string]any{"count": len(items), "items": items})
	},
}

// discoveryRequest reads the flags; radius and coordinates count only when
// the flag was set.
func discoveryRequest(cmd *cobra.Command) discovery.Request {
	f := discoverFlags
	req := discovery.Request{
		City:        f.city,
		Region:      f.region,
		Country:     f.country,
		StartDate:   f.start,
		EndDate:     f.end,
		Timezone:    f.timezone,
		PreferLocal: !f.noLocalPreference,
		Debug:       f.debug,
	}
	if cmd.Flags().Changed("radius") {
		r := f.radius
		req.RadiusMiles = &r
	}
	if cmd.Flags().Changed("lat") {
		lat := f.lat
		req.Lat = &lat
	}
	if cmd.Flags().Changed("lng") {
		lng := f.lng
		req.Lng = &lng
	}
	return req
}

func init() {
	fl := discoverCmd.Flags()
	fl.StringVar(&discoverFlags.city, "city", "", "city name")
	fl.StringVar(&discoverFlags.region, "state", "", "state or region")
	fl.StringVar(&discoverFlags.country, "country", "", "country")
	fl.StringVar(&discoverFlags.start, "start", "", "start date (YYYY-MM-DD)")
	fl.StringVar(&discoverFlags.end, "end", "", "end date (YYYY-MM-DD)")
	fl.StringVar(&discoverFlags.timezone, "timezone", "", "IANA timezone for normalization")
	fl.Float64Var(&discoverFlags.radius, "radius", discovery.DefaultRadiusMiles, "search radius in miles")
	fl.Float64Var(&discoverFlags.lat, "lat", 0, "latitude, fills missing location fields by reverse geocoding")
	fl.Float64Var(&discoverFlags.lng, "lng", 0, "longitude")
	fl.BoolVar(&discoverFlags.noLocalPreference, "no-local-preference", false, "do not prefer local sources")
	fl.BoolVar(&discoverFlags.debug, "debug", false, "log the raw model response")
	fl.BoolVar(&discoverFlags.save, "save", false, "save each candidate as an AI event")
	rootCmd.AddCommand(discoverCmd)
}
