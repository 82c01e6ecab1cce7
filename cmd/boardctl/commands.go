package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"tubeboard.app/internal/board"
	"tubeboard.app/internal/models"
	"tubeboard.app/internal/rtt"
)

const defaultServer = "http://localhost:4000"

type cli struct {
	env     env
	server  string
	profile string
	asJSON  bool
	timeout time.Duration
	client  *boardClient
}

// sessionEntry mirrors GET /api/session.json.
type sessionEntry struct {
	board.Snapshot
	Stale      bool `json:"stale"`
	AgeSeconds int  `json:"ageSeconds"`
}

func newRootCmd(e env) *cobra.Command {
	c := &cli{env: e}

	server := defaultServer
	if v, ok := e.lookupEnv("TUBEBOARD_SERVER"); ok && v != "" {
		server = v
	}

	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Live London departure boards in the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := resolveProfile(c.profile, c.env)
			if err != nil {
				return err
			}
			c.client = newBoardClient(c.server, profile, c.timeout)
			return nil
		},
	}
	root.SetOut(e.out)
	root.SetErr(e.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.server, "server", server, "tubeboard server URL (env TUBEBOARD_SERVER)")
	flags.StringVar(&c.profile, "profile", "", "profile id (env TUBEBOARD_PROFILE, default a saved id)")
	flags.BoolVar(&c.asJSON, "json", false, "print JSON instead of tables")
	flags.DurationVar(&c.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		c.linesCmd(),
		c.stationsCmd(),
		c.arrivalsCmd(),
		c.railCmd(),
		c.nearCmd(),
		c.watchCmd(),
		c.favoritesCmd(),
		c.filtersCmd(),
	)
	return root
}

func (c *cli) linesCmd() *cobra.Command {
	var modes string
	cmd := &cobra.Command{
		Use:   "lines",
		Short: "List lines for the active filters, or for --modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := map[string]string{}
			if modes != "" {
				query["modes"] = modes
			}
			lines, err := getList[board.LineTile](cmd.Context(), c.client, "/api/lines.json", query)
			if err != nil {
				return err
			}
			return c.emit(lines.List, func(p *printer) { p.lines(lines.List) })
		},
	}
	cmd.Flags().StringVar(&modes, "modes", "", "comma separated filters, e.g. tube,bus")
	return cmd
}

func (c *cli) stationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stations <line>",
		Short: "List the stations on a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/lines/" + url.PathEscape(args[0]) + "/stations.json"
			stations, err := getList[board.StationTile](cmd.Context(), c.client, path, nil)
			if err != nil {
				return err
			}
			return c.emit(stations.List, func(p *printer) { p.stations(stations.List) })
		},
	}
}

func (c *cli) arrivalsCmd() *cobra.Command {
	var line string
	cmd := &cobra.Command{
		Use:   "arrivals <station>",
		Short: "Show a station's arrivals grouped by platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{}
			if line != "" {
				query["line"] = line
			}
			path := "/api/stations/" + url.PathEscape(args[0]) + "/arrivals.json"
			data, err := sendEntry[models.ArrivalsData](cmd.Context(), c.client, http.MethodGet, path, query, nil)
			if err != nil {
				return err
			}
			return c.emit(data, func(p *printer) { p.board(data.Board) })
		},
	}
	cmd.Flags().StringVar(&line, "line", "", "only show this line")
	return cmd
}

func (c *cli) railCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rail <station>",
		Short: "Show National Rail arrivals from Realtime Trains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/stations/" + url.PathEscape(args[0]) + "/rail-arrivals.json"
			rows, err := getList[rtt.Arrival](cmd.Context(), c.client, path, nil)
			if err != nil {
				return err
			}
			return c.emit(rows.List, func(p *printer) { p.rail(rows.List) })
		},
	}
}

func (c *cli) nearCmd() *cobra.Command {
	var radius float64
	var limit int
	cmd := &cobra.Command{
		Use:   "near <lat> <lon>",
		Short: "List known stations near a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{"lat": args[0], "lon": args[1]}
			if radius > 0 {
				query["radius"] = strconv.FormatFloat(radius, 'f', -1, 64)
			}
			if limit > 0 {
				query["limit"] = strconv.Itoa(limit)
			}
			near, err := getList[board.NearbyStation](cmd.Context(), c.client, "/api/stations-near.json", query)
			if err != nil {
				return err
			}
			return c.emit(near, func(p *printer) { p.nearby(near.List, near.LimitExceeded) })
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 0, "search radius in meters")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum stations")
	return cmd
}

// watchCmd opens the station in the profile's server-side session and
// redraws the session snapshot, which the server keeps refreshing.
func (c *cli) watchCmd() *cobra.Command {
	var (
		line     string
		interval time.Duration
		count    int
	)
	cmd := &cobra.Command{
		Use:   "watch <station>",
		Short: "Follow a station board until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if line != "" {
				if _, err := sendEntry[sessionEntry](ctx, c.client, http.MethodPost,
					"/api/session/line/"+url.PathEscape(line), nil, nil); err != nil {
					return err
				}
			}
			entry, err := sendEntry[sessionEntry](ctx, c.client, http.MethodPost,
				"/api/session/station/"+url.PathEscape(args[0]), nil, nil)
			if err != nil {
				return err
			}
			return c.watch(ctx, entry, interval, count)
		},
	}
	cmd.Flags().StringVar(&line, "line", "", "open the station from this line")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "redraw interval")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many redraws")
	_ = cmd.Flags().MarkHidden("count")
	return cmd
}

func (c *cli) watch(ctx context.Context, entry sessionEntry, interval time.Duration, count int) error {
	if err := c.emit(entry, func(p *printer) { p.session(entry, time.Now()) }); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for drawn := 1; count == 0 || drawn < count; drawn++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		next, err := sendEntry[sessionEntry](ctx, c.client, http.MethodGet, "/api/session.json", nil, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(c.env.errOut, "refresh failed:", err)
			continue
		}
		if next.View != board.ViewArrivals {
			return fmt.Errorf("session left the station board (now %s)", next.View)
		}
		if err := c.emit(next, func(p *printer) { p.session(next, time.Now()) }); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) favoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List favourite stations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			favs, err := getList[board.StationTile](cmd.Context(), c.client, "/api/favorites.json", nil)
			if err != nil {
				return err
			}
			return c.emit(favs.List, func(p *printer) { p.stations(favs.List) })
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <station>",
		Short: "Add or remove a favourite station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/favorites/" + url.PathEscape(args[0]) + "/toggle.json"
			result, err := sendEntry[models.FavoriteToggle](cmd.Context(), c.client, http.MethodPost, path, nil, nil)
			if err != nil {
				return err
			}
			return c.emit(result, func(p *printer) { p.toggle(result) })
		},
	})
	return cmd
}

func (c *cli) filtersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Show the active mode filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := sendEntry[models.FiltersData](cmd.Context(), c.client, http.MethodGet, "/api/filters.json", nil, nil)
			if err != nil {
				return err
			}
			return c.emit(data, func(p *printer) { p.filters(data) })
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set [filter...]",
		Short: "Replace the active filters; no arguments clears them",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := models.FiltersRequest{Filters: args}
			if body.Filters == nil {
				body.Filters = []string{}
			}
			data, err := sendEntry[models.FiltersData](cmd.Context(), c.client, http.MethodPut, "/api/filters.json", nil, body)
			if err != nil {
				return err
			}
			return c.emit(data, func(p *printer) { p.filters(data) })
		},
	})
	return cmd
}
